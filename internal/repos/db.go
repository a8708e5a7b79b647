package repos

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// OpenDB opens the store, applies migrations and seeds demo data on an empty database.
//
// The pool is capped at one connection: ":memory:" databases are per-connection,
// and SQLite serializes writers anyway.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, err
	}

	if err := RunMigrations(db.DB); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the embedded schema. The migrate instance is not closed
// because that would close the shared *sql.DB.
func RunMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// InTx runs fn inside one transaction, committing only when fn returns nil.
// fn must issue every statement through tx; the pool has a single connection.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(se.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY"))
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	zap.L().Info("seed.catalog", zap.String("component", "repos"))

	now := time.Now().UTC()
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	tx.MustExec(`INSERT INTO products(id,title,category,price,active,created_at) VALUES
	  ('tee-summit','Summit Club Tee','shop','499.00',1,?),
	  ('jacket-ridge','Ridge Shell Jacket','shop','3499.00',1,?),
	  ('bib-marathon','City Marathon 2026 Entry','competition','1200.00',1,?),
	  ('trek-hampta','Hampta Pass Trek (5 days)','trek','8999.00',1,?),
	  ('plan-core','Core Strength 8-week Plan','fitness','799.00',1,?)`,
		now, now, now, now, now)

	tx.MustExec(`INSERT INTO variant_stock(product_id,size,color,stock,updated_at) VALUES
	  ('tee-summit','S','Red',10,?),
	  ('tee-summit','M','Red',8,?),
	  ('tee-summit','L','Blue',3,?),
	  ('jacket-ridge','M','Black',4,?),
	  ('jacket-ridge','L','Black',0,?),
	  ('bib-marathon','STD','NA',250,?),
	  ('trek-hampta','STD','NA',12,?),
	  ('plan-core','STD','NA',1000,?)`,
		now, now, now, now, now, now, now, now)

	return tx.Commit()
}

// seedUsers ensures two buyers with a default address and one admin exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) (u, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}, err
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var users []u
	for _, x := range [][4]string{
		{"u-asha", "asha@basecamp.test", "Asha", "USER"},
		{"u-ravi", "ravi@basecamp.test", "Ravi", "USER"},
		{"u-admin", "admin@basecamp.test", "Admin", "ADMIN"},
	} {
		usr, err := mk(x[0], x[1], x[2], x[3], "Passw0rd!")
		if err != nil {
			return err
		}
		users = append(users, usr)
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO addresses(id,buyer_id,recipient_name,phone,line1,line2,city,state,postal_code,is_default) VALUES
		  ('addr-asha-home','u-asha','Asha Rao','9800000001','12 Lake View Road','Flat 3B','Pune','MH','411001',1),
		  ('addr-ravi-home','u-ravi','Ravi Menon','9800000002','7 Hill Street','','Manali','HP','175131',1)
	`); err != nil {
		return err
	}

	return tx.Commit()
}
