package credential

import "strings"

// commonPasswords is a small embedded blacklist of frequently breached
// passwords. Matching is case-insensitive and also applied with trailing
// digits/symbols stripped, so "Password123!" is caught by "password".
var commonPasswords = map[string]struct{}{
	"password":      {},
	"passwort":      {},
	"passw0rd":      {},
	"p@ssword":      {},
	"p@ssw0rd":      {},
	"123456":        {},
	"1234567":       {},
	"12345678":      {},
	"123456789":     {},
	"1234567890":    {},
	"qwerty":        {},
	"qwertyuiop":    {},
	"qwerty123":     {},
	"abc123":        {},
	"letmein":       {},
	"welcome":       {},
	"welcome1":      {},
	"monkey":        {},
	"dragon":        {},
	"master":        {},
	"shadow":        {},
	"superman":      {},
	"michael":       {},
	"football":      {},
	"baseball":      {},
	"iloveyou":      {},
	"trustno1":      {},
	"sunshine":      {},
	"princess":      {},
	"admin":         {},
	"administrator": {},
	"root":          {},
	"login":         {},
	"starwars":      {},
	"whatever":      {},
	"freedom":       {},
	"secret":        {},
	"ninja":         {},
	"mustang":       {},
	"access":        {},
	"batman":        {},
	"hunter":        {},
	"killer":        {},
	"pepper":        {},
	"charlie":       {},
	"jordan":        {},
	"maritime":      {},
	"sailor":        {},
	"anchor":        {},
	"captain":       {},
}

// isCommonPassword reports whether password (lowercased, optionally with
// trailing digits and punctuation stripped) is in the embedded blacklist.
func isCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return true
	}
	stripped := strings.TrimRight(lower, "0123456789!@#$%^&*.?_-")
	if stripped != lower {
		if _, ok := commonPasswords[stripped]; ok {
			return true
		}
	}
	return false
}
