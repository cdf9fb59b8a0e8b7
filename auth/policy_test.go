package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		ok   bool
	}{
		{"valid", "Passw0rd1", true},
		{"minimum length", "Aa345678", true},
		{"too short", "Aa1", false},
		{"seven chars", "Abcdef1", false},
		{"no uppercase", "passw0rd1", false},
		{"no lowercase", "PASSW0RD1", false},
		{"no digit", "Password!", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.pw)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, errs.ErrValidation), "want validation error, got %v", err)
		})
	}
}

func TestStrengthScoresWeakBelowStrong(t *testing.T) {
	weak := Strength("password")
	strong := Strength("mZ#9kQ!vTr2p@Lw8")
	require.Less(t, weak, strong)
}

func TestGenerateRespectsLengthAndClasses(t *testing.T) {
	pw, err := Generate(GenerateOptions{Length: 16, Lower: true, Digits: true})
	require.NoError(t, err)
	require.Len(t, pw, 16)
	for _, r := range pw {
		require.Contains(t, lowerChars+digitChars, string(r))
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	_, err := Generate(GenerateOptions{Length: 7, Lower: true})
	require.True(t, errors.Is(err, errs.ErrValidation))

	_, err = Generate(GenerateOptions{Length: 33, Lower: true})
	require.True(t, errors.Is(err, errs.ErrValidation))
}

func TestGenerateRejectsNoClasses(t *testing.T) {
	_, err := Generate(GenerateOptions{Length: 12})
	require.True(t, errors.Is(err, errs.ErrValidation))
}

func TestGenerateDefaultOptions(t *testing.T) {
	pw, err := Generate(DefaultGenerateOptions())
	require.NoError(t, err)
	require.Len(t, pw, 12)
}
