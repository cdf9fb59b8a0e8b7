package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

const (
	// GeneratedMinLen and GeneratedMaxLen bound generated passwords.
	GeneratedMinLen = 8
	GeneratedMaxLen = 32

	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// GenerateOptions selects which character classes a generated password
// draws from.
type GenerateOptions struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

// DefaultGenerateOptions enables every character class at 12 characters.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Length: 12, Upper: true, Lower: true, Digits: true, Symbols: true}
}

// Generate returns a random password built from the enabled character
// classes using a CSPRNG.
func Generate(opts GenerateOptions) (string, error) {
	if opts.Length < GeneratedMinLen || opts.Length > GeneratedMaxLen {
		return "", fmt.Errorf("%w: length must be between %d and %d",
			errs.ErrValidation, GeneratedMinLen, GeneratedMaxLen)
	}

	var chars string
	if opts.Lower {
		chars += lowerChars
	}
	if opts.Upper {
		chars += upperChars
	}
	if opts.Digits {
		chars += digitChars
	}
	if opts.Symbols {
		chars += symbolChars
	}
	if chars == "" {
		return "", fmt.Errorf("%w: at least one character class is required", errs.ErrValidation)
	}

	out := make([]byte, opts.Length)
	max := big.NewInt(int64(len(chars)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = chars[n.Int64()]
	}
	return string(out), nil
}
