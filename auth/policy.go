package auth

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

// ValidatePassword applies the account password policy: at least 8
// characters with an uppercase letter, a lowercase letter, and a digit.
// The same policy gates registration and password change.
func ValidatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", errs.ErrValidation)
	}
	if !hasClass(pw, unicode.IsUpper) {
		return fmt.Errorf("%w: password must include an uppercase letter", errs.ErrValidation)
	}
	if !hasClass(pw, unicode.IsLower) {
		return fmt.Errorf("%w: password must include a lowercase letter", errs.ErrValidation)
	}
	if !hasClass(pw, unicode.IsDigit) {
		return fmt.Errorf("%w: password must include a digit", errs.ErrValidation)
	}
	return nil
}

// Strength scores a password 0-4 using zxcvbn. Advisory only; no
// operation fails on a low score.
func Strength(pw string) int {
	return zxcvbn.PasswordStrength(pw, nil).Score
}

func hasClass(s string, is func(rune) bool) bool {
	for _, r := range s {
		if is(r) {
			return true
		}
	}
	return false
}
