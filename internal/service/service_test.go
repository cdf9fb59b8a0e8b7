package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rmiah209/mamba-password-manager/auth"
	"github.com/rmiah209/mamba-password-manager/internal/accounts"
	"github.com/rmiah209/mamba-password-manager/internal/errs"
	"github.com/rmiah209/mamba-password-manager/internal/locker"
	"github.com/rmiah209/mamba-password-manager/internal/logging"
	"github.com/rmiah209/mamba-password-manager/internal/twofa"
	"github.com/rmiah209/mamba-password-manager/internal/vault"
)

type fakeSender struct{ code string }

func (f *fakeSender) SendCode(_ context.Context, _, code string) error {
	f.code = code
	return nil
}

type fakeBreach struct {
	count int
	err   error
}

func (f *fakeBreach) LeakCount(context.Context, string) (int, error) {
	return f.count, f.err
}

type fixture struct {
	svc      *Service
	accounts *accounts.Store
	sender   *fakeSender
}

func newFixture(t *testing.T, breach BreachAdvisor) *fixture {
	t.Helper()
	dir := t.TempDir()

	adb, err := accounts.Open(accounts.Config{FilePath: filepath.Join(dir, "accounts.db")})
	require.NoError(t, err)
	t.Cleanup(func() { adb.Close() })

	vdb, err := vault.Open(vault.Config{FilePath: filepath.Join(dir, "vault.db")})
	require.NoError(t, err)
	t.Cleanup(func() { vdb.Close() })

	store := accounts.NewStore(adb, auth.NewHasher(bcrypt.MinCost))
	locks := locker.New()
	keys := vault.NewKeyVault(vdb, locks)
	secrets := vault.NewSecretVault(vdb, keys, locks)
	sender := &fakeSender{}
	issuer := twofa.NewIssuer(sender)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{
		svc:      New(store, keys, secrets, issuer, breach, dir, log),
		accounts: store,
		sender:   sender,
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, &fakeBreach{count: 0})
	ctx := context.Background()

	base := time.Now()
	f.accounts.SetClockUnsafe(func() time.Time { return base })

	res, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccountID)
	aliceID := res.AccountID

	for i := 0; i < 3; i++ {
		_, err := f.svc.Authenticate(ctx, "alice", "wrong")
		require.True(t, errors.Is(err, errs.ErrInvalidCredentials))
	}
	_, err = f.svc.Authenticate(ctx, "alice", "Passw0rd1")
	require.True(t, errors.Is(err, errs.ErrLocked))

	// export on an empty vault (before any key/secret exists the key is
	// still missing, so ensure it first)
	created, err := f.svc.EnsureKey(ctx, aliceID)
	require.NoError(t, err)
	require.True(t, created)
	created, err = f.svc.EnsureKey(ctx, aliceID)
	require.NoError(t, err)
	require.False(t, created)

	ok, err := f.svc.AddSecret(ctx, aliceID, "example.com", "s3cret!")
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := f.svc.ViewSecrets(ctx, aliceID)
	require.NoError(t, err)
	require.Equal(t, []vault.Entry{{Website: "example.com", Password: "s3cret!"}}, entries)

	ok, err = f.svc.DeleteSecret(ctx, aliceID, "example.com")
	require.NoError(t, err)
	require.True(t, ok)

	entries, err = f.svc.ViewSecrets(ctx, aliceID)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, ok, err = f.svc.Export(ctx, "alice", aliceID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegisterDegradesWhenBreachAdvisorDown(t *testing.T) {
	f := newFixture(t, &fakeBreach{err: errs.ErrService})
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)
	require.Equal(t, -1, res.LeakCount)
}

func TestRegisterReportsLeakCount(t *testing.T) {
	f := newFixture(t, &fakeBreach{count: 1234})
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)
	require.Equal(t, 1234, res.LeakCount)
}

func TestPasswordChangeFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)

	challengeID, err := f.svc.BeginPasswordChange(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, f.sender.code)

	// wrong code consumes the challenge
	wrong := "000000"
	if f.sender.code == wrong {
		wrong = "000001"
	}
	err = f.svc.ConfirmPasswordChange(ctx, "alice", challengeID, wrong, "N3wPassword")
	require.True(t, errors.Is(err, errs.ErrSecondFactor))

	challengeID, err = f.svc.BeginPasswordChange(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmPasswordChange(ctx, "alice", challengeID, f.sender.code, "N3wPassword"))

	_, err = f.svc.Authenticate(ctx, "alice", "N3wPassword")
	require.NoError(t, err)
}

func TestAccountDeleteCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)
	aliceID := res.AccountID

	_, err = f.svc.EnsureKey(ctx, aliceID)
	require.NoError(t, err)
	ok, err := f.svc.AddSecret(ctx, aliceID, "example.com", "s3cret!")
	require.NoError(t, err)
	require.True(t, ok)

	// wrong password blocks the flow before any code is sent
	_, err = f.svc.BeginAccountDelete(ctx, "alice", "wrong")
	require.True(t, errors.Is(err, errs.ErrInvalidCredentials))

	challengeID, err := f.svc.BeginAccountDelete(ctx, "alice", "Passw0rd1")
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmAccountDelete(ctx, "alice", challengeID, f.sender.code))

	_, err = f.svc.Authenticate(ctx, "alice", "Passw0rd1")
	require.True(t, errors.Is(err, errs.ErrNotFound))

	// key and secrets are gone with the account
	_, err = f.svc.ViewSecrets(ctx, aliceID)
	require.True(t, errors.Is(err, errs.ErrNoKey))
}

func TestCheckBreachWithoutAdvisor(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CheckBreach(context.Background(), "anything")
	require.True(t, errors.Is(err, errs.ErrService))
}

func TestExportWritesUsernameNamedFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice", "Passw0rd1", "+447700000000")
	require.NoError(t, err)

	_, err = f.svc.EnsureKey(ctx, res.AccountID)
	require.NoError(t, err)
	ok, err := f.svc.AddSecret(ctx, res.AccountID, "example.com", "s3cret!")
	require.NoError(t, err)
	require.True(t, ok)

	path, ok, err := f.svc.Export(ctx, "alice", res.AccountID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice_passwords.json", filepath.Base(path))
	require.FileExists(t, path)
}
