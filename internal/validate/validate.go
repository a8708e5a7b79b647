package validate

import (
	"regexp"
	"strings"
)

// MaxLineQty caps a single cart line.
const MaxLineQty = 99

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reAttr  = regexp.MustCompile(`^[A-Za-z0-9 ._/-]{1,24}$`)
	reToken = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Qty reports whether n is an acceptable line quantity.
func Qty(n int) bool {
	return n >= 1 && n <= MaxLineQty
}

// ID validates a simple resource identifier (product/line/address/order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Attr validates a variant attribute such as a size or a color.
func Attr(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reAttr.MatchString(s)
}

// Token validates a client request token (Idempotency-Key).
func Token(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reToken.MatchString(s)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
