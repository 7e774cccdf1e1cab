// Package credential validates candidate passwords: strength classes, common
// password blacklist, email-derived content, history reuse, and an entropy
// estimate. Validation is pure: no store calls beyond the supplied history.
package credential

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength is the minimum accepted password length.
	MinLength = 12
	// HistoryDepth is how many recent password hashes are checked for reuse.
	HistoryDepth = 5
	// EntropyWarnBits is the entropy estimate below which a non-blocking
	// warning is emitted.
	EntropyWarnBits = 50.0
)

// Context carries the inputs a validation run may consult. History holds
// recent password hashes, newest first; only the first HistoryDepth entries
// are checked.
type Context struct {
	Email   string
	History []string
}

// Result is the outcome of a validation run. Errors block acceptance;
// Warnings do not.
type Result struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	EntropyBits float64
}

// Validate checks password against the policy and returns a Result. It never
// returns an error: policy violations are data, not failures.
func Validate(password string, vctx Context) Result {
	res := Result{EntropyBits: estimateEntropy(password)}

	if len(password) < MinLength {
		res.Errors = append(res.Errors, "password must be at least 12 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper {
		res.Errors = append(res.Errors, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		res.Errors = append(res.Errors, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		res.Errors = append(res.Errors, "password must contain at least one digit")
	}
	if !hasSpecial {
		res.Errors = append(res.Errors, "password must contain at least one special character")
	}

	if isCommonPassword(password) {
		res.Errors = append(res.Errors, "password is too common")
	}

	if local := emailLocalPart(vctx.Email); len(local) >= 3 &&
		strings.Contains(strings.ToLower(password), local) {
		res.Errors = append(res.Errors, "password must not contain your email address")
	}

	history := vctx.History
	if len(history) > HistoryDepth {
		history = history[:HistoryDepth]
	}
	for _, hash := range history {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
			res.Errors = append(res.Errors, "password was used recently; choose a new one")
			break
		}
	}

	if res.EntropyBits < EntropyWarnBits {
		res.Warnings = append(res.Warnings, "password entropy is low; consider a longer passphrase")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// estimateEntropy returns length × log2(pool size), where the pool is the sum
// of the character classes present. A rough but monotone estimate; exact
// strength scoring is not the goal.
func estimateEntropy(password string) float64 {
	if password == "" {
		return 0
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	pool := 0
	if hasLower {
		pool += 26
	}
	if hasUpper {
		pool += 26
	}
	if hasDigit {
		pool += 10
	}
	if hasSpecial {
		pool += 33
	}
	if pool == 0 {
		return 0
	}
	return float64(len([]rune(password))) * math.Log2(float64(pool))
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	return email[:at]
}
