package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

// Identity is the authenticated caller passed explicitly into every core operation.
type Identity struct {
	BuyerID string
	Role    string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func (u *User) Identity() Identity {
	return Identity{BuyerID: u.ID, Role: u.Role}
}
