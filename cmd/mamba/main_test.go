package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

func TestAsUserErrorMapsEmptyVault(t *testing.T) {
	err := asUserError(fmt.Errorf("fetch key: %w", errs.ErrNoKey))

	var ue userError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "vault is empty", ue.msg)
}

func TestAsUserErrorMapsTaxonomy(t *testing.T) {
	for _, sentinel := range []error{
		errs.ErrValidation,
		errs.ErrConflict,
		errs.ErrNotFound,
		errs.ErrInvalidCredentials,
		errs.ErrLocked,
		errs.ErrSecondFactor,
		errs.ErrService,
	} {
		var ue userError
		require.True(t, errors.As(asUserError(sentinel), &ue), "sentinel %v", sentinel)
	}
}

func TestAsUserErrorPassesUnknownThrough(t *testing.T) {
	unknown := errors.New("disk on fire")
	require.Equal(t, unknown, asUserError(unknown))
}
