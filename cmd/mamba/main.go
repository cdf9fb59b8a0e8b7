// Command mamba is the CLI surface of the credential vault. It
// collects input, renders results, and exits; every rule lives in the
// core packages it calls into.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rmiah209/mamba-password-manager/auth"
	"github.com/rmiah209/mamba-password-manager/internal/accounts"
	"github.com/rmiah209/mamba-password-manager/internal/config"
	"github.com/rmiah209/mamba-password-manager/internal/errs"
	"github.com/rmiah209/mamba-password-manager/internal/locker"
	"github.com/rmiah209/mamba-password-manager/internal/logging"
	"github.com/rmiah209/mamba-password-manager/internal/service"
	"github.com/rmiah209/mamba-password-manager/internal/twofa"
	"github.com/rmiah209/mamba-password-manager/internal/vault"
)

const cliVersion = "0.1.0"

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "version" {
		fmt.Println(cliVersion)
		return
	}

	app, err := buildApp()
	if err != nil {
		handleError(err)
	}
	defer app.close()

	switch cmd {
	case "register":
		err = app.runRegister(args)
	case "login":
		err = app.runLogin(args)
	case "logout":
		err = app.runLogout(args)
	case "add":
		err = app.runAdd(args)
	case "view":
		err = app.runView(args)
	case "update":
		err = app.runUpdate(args)
	case "delete":
		err = app.runDelete(args)
	case "export":
		err = app.runExport(args)
	case "generate":
		err = app.runGenerate(args)
	case "check":
		err = app.runCheck(args)
	case "change-password":
		err = app.runChangePassword(args)
	case "delete-account":
		err = app.runDeleteAccount(args)
	default:
		printUsage()
		os.Exit(1)
	}
	handleError(err)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: mamba <command> [flags]

commands:
  register         create an account (username, phone, password)
  login            verify credentials
  logout           reset the failed-attempt counter
  add              store a password for a website
  view             list stored passwords (decrypted)
  update           replace the password for a website
  delete           remove the password for a website
  export           decrypt the vault to <username>_passwords.json
  generate         generate a random password
  check            look a password up in known breaches
  change-password  change the account password (SMS code required)
  delete-account   delete the account and its vault (SMS code required)
  version          print the CLI version`)
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		color.Red(uerr.msg)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}

// app bundles the wired service with the handles the process owns.
type app struct {
	svc        *service.Service
	accountsDB io.Closer
	vaultDB    io.Closer
}

func buildApp() (*app, error) {
	cfg := config.Load()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	adb, err := accounts.Open(accounts.Config{FilePath: cfg.AccountsDBPath})
	if err != nil {
		return nil, fmt.Errorf("open accounts store: %w", err)
	}

	vdb, err := vault.Open(vault.Config{FilePath: cfg.VaultDBPath})
	if err != nil {
		adb.Close()
		return nil, fmt.Errorf("open vault store: %w", err)
	}

	store := accounts.NewStore(adb, auth.NewHasher(auth.DefaultHashCost))
	locks := locker.New()
	keys := vault.NewKeyVault(vdb, locks)
	secrets := vault.NewSecretVault(vdb, keys, locks)

	var sender twofa.Sender
	if cfg.SMSConfigured() {
		sender, err = twofa.NewTwilioSender(twofa.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
		if err != nil {
			adb.Close()
			vdb.Close()
			return nil, err
		}
	} else {
		sender = unconfiguredSender{}
	}

	svc := service.New(store, keys, secrets, twofa.NewIssuer(sender), auth.NewBreachAdvisor(), cfg.ExportDir, logger)
	return &app{svc: svc, accountsDB: adb, vaultDB: vdb}, nil
}

func (a *app) close() {
	a.vaultDB.Close()
	a.accountsDB.Close()
}

// unconfiguredSender fails every send with a clear message instead of
// crashing deep inside a flow that needs SMS.
type unconfiguredSender struct{}

func (unconfiguredSender) SendCode(context.Context, string, string) error {
	return errors.New("SMS channel not configured: set MAMBA_TWILIO_SID, MAMBA_TWILIO_TOKEN, MAMBA_TWILIO_FROM")
}

func (a *app) runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "username")
	phone := fs.String("phone", "", "phone contact for one-time codes")
	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}
	if *user == "" || *phone == "" {
		return userError{msg: "missing required flags: --user and --phone"}
	}

	pw, err := promptPassword("Choose account password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm account password: ")
	if err != nil {
		return err
	}
	if !bytes.Equal(pw, confirm) {
		return userError{msg: "passwords do not match"}
	}

	res, err := a.svc.Register(context.Background(), *user, string(pw), *phone)
	if err != nil {
		return asUserError(err)
	}

	color.Green("account created for %s", *user)
	if res.LeakCount > 0 {
		color.Yellow("warning: this password appears in %d known breaches; consider changing it", res.LeakCount)
	}
	if res.Strength < 3 {
		color.Yellow("warning: password strength %d/4; `mamba generate` can do better", res.Strength)
	}
	return nil
}

func (a *app) runLogin(args []string) error {
	user, err := parseUserFlag("login", args)
	if err != nil {
		return err
	}
	if _, err := a.authenticate(user); err != nil {
		return err
	}
	color.Green("welcome back, %s", user)
	return nil
}

func (a *app) runLogout(args []string) error {
	user, err := parseUserFlag("logout", args)
	if err != nil {
		return err
	}
	if err := a.svc.Logout(context.Background(), user); err != nil {
		return err
	}
	color.Green("logged out")
	return nil
}

func (a *app) runAdd(args []string) error {
	user, site, err := parseUserSiteFlags("add", args)
	if err != nil {
		return err
	}
	accountID, err := a.authenticate(user)
	if err != nil {
		return err
	}

	secret, err := promptPassword(fmt.Sprintf("Password for %s: ", site))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := a.svc.EnsureKey(ctx, accountID); err != nil {
		return err
	}
	ok, err := a.svc.AddSecret(ctx, accountID, site, string(secret))
	if err != nil {
		return asUserError(err)
	}
	if !ok {
		return userError{msg: "nothing stored: website already present or input empty"}
	}
	color.Green("stored password for %s", site)
	return nil
}

func (a *app) runView(args []string) error {
	user, err := parseUserFlag("view", args)
	if err != nil {
		return err
	}
	accountID, err := a.authenticate(user)
	if err != nil {
		return err
	}

	entries, err := a.svc.ViewSecrets(context.Background(), accountID)
	if err != nil {
		if errors.Is(err, errs.ErrIntegrity) {
			return userError{msg: "vault integrity check failed; refusing to show possibly corrupted data"}
		}
		return asUserError(err)
	}
	if len(entries) == 0 {
		fmt.Println("vault is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", e.Website, e.Password)
	}
	return nil
}

func (a *app) runUpdate(args []string) error {
	user, site, err := parseUserSiteFlags("update", args)
	if err != nil {
		return err
	}
	accountID, err := a.authenticate(user)
	if err != nil {
		return err
	}

	secret, err := promptPassword(fmt.Sprintf("New password for %s: ", site))
	if err != nil {
		return err
	}

	ok, err := a.svc.UpdateSecret(context.Background(), accountID, site, string(secret))
	if err != nil {
		return asUserError(err)
	}
	if !ok {
		return userError{msg: "nothing updated: website not found or input empty"}
	}
	color.Green("updated password for %s", site)
	return nil
}

func (a *app) runDelete(args []string) error {
	user, site, err := parseUserSiteFlags("delete", args)
	if err != nil {
		return err
	}
	accountID, err := a.authenticate(user)
	if err != nil {
		return err
	}

	ok, err := a.svc.DeleteSecret(context.Background(), accountID, site)
	if err != nil {
		return asUserError(err)
	}
	if !ok {
		return userError{msg: "nothing deleted: website not found"}
	}
	color.Green("deleted password for %s", site)
	return nil
}

func (a *app) runExport(args []string) error {
	user, err := parseUserFlag("export", args)
	if err != nil {
		return err
	}
	accountID, err := a.authenticate(user)
	if err != nil {
		return err
	}

	path, ok, err := a.svc.Export(context.Background(), user, accountID)
	if err != nil {
		return asUserError(err)
	}
	if !ok {
		return userError{msg: "vault is empty; nothing exported"}
	}
	color.Yellow("exported DECRYPTED passwords to %s; handle with care", path)
	return nil
}

func (a *app) runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	length := fs.Int("length", 12, "password length (8-32)")
	noUpper := fs.Bool("no-upper", false, "exclude uppercase letters")
	noLower := fs.Bool("no-lower", false, "exclude lowercase letters")
	noDigits := fs.Bool("no-digits", false, "exclude digits")
	noSymbols := fs.Bool("no-symbols", false, "exclude symbols")
	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}

	pw, err := auth.Generate(auth.GenerateOptions{
		Length:  *length,
		Upper:   !*noUpper,
		Lower:   !*noLower,
		Digits:  !*noDigits,
		Symbols: !*noSymbols,
	})
	if err != nil {
		return asUserError(err)
	}
	fmt.Println(pw)
	return nil
}

func (a *app) runCheck(args []string) error {
	if len(args) != 0 {
		return userError{msg: "check takes no arguments"}
	}
	pw, err := promptPassword("Password to check: ")
	if err != nil {
		return err
	}

	count, err := a.svc.CheckBreach(context.Background(), string(pw))
	if err != nil {
		if errors.Is(err, errs.ErrService) {
			return userError{msg: "breach service unavailable; try again later"}
		}
		return err
	}
	if count > 0 {
		color.Red("this password appears in %d known breaches", count)
	} else {
		color.Green("no known breaches for this password")
	}
	return nil
}

func (a *app) runChangePassword(args []string) error {
	user, err := parseUserFlag("change-password", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	challengeID, err := a.svc.BeginPasswordChange(ctx, user)
	if err != nil {
		return asUserError(err)
	}
	fmt.Println("a verification code was sent to your registered phone")

	code, err := promptLine("Enter code: ")
	if err != nil {
		return err
	}
	newPw, err := promptPassword("New account password: ")
	if err != nil {
		return err
	}

	if err := a.svc.ConfirmPasswordChange(ctx, user, challengeID, code, string(newPw)); err != nil {
		return asUserError(err)
	}
	color.Green("password changed")
	return nil
}

func (a *app) runDeleteAccount(args []string) error {
	user, err := parseUserFlag("delete-account", args)
	if err != nil {
		return err
	}

	pw, err := promptPassword("Account password: ")
	if err != nil {
		return err
	}

	ctx := context.Background()
	challengeID, err := a.svc.BeginAccountDelete(ctx, user, string(pw))
	if err != nil {
		return asUserError(err)
	}
	fmt.Println("a verification code was sent to your registered phone")

	code, err := promptLine("Enter code: ")
	if err != nil {
		return err
	}

	if err := a.svc.ConfirmAccountDelete(ctx, user, challengeID, code); err != nil {
		return asUserError(err)
	}
	color.Green("account and vault deleted")
	return nil
}

func (a *app) authenticate(user string) (string, error) {
	pw, err := promptPassword("Account password: ")
	if err != nil {
		return "", err
	}
	accountID, err := a.svc.Authenticate(context.Background(), user, string(pw))
	if err != nil {
		return "", asUserError(err)
	}
	return accountID, nil
}

func parseUserFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return "", userError{msg: "invalid arguments"}
	}
	if *user == "" {
		return "", userError{msg: "missing required flag: --user"}
	}
	return *user, nil
}

func parseUserSiteFlags(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "username")
	site := fs.String("site", "", "website label")
	if err := fs.Parse(args); err != nil {
		return "", "", userError{msg: "invalid arguments"}
	}
	if *user == "" || *site == "" {
		return "", "", userError{msg: "missing required flags: --user and --site"}
	}
	return *user, *site, nil
}

// asUserError maps the core error taxonomy onto messages a user can
// act on; anything else stays an unexpected error.
func asUserError(err error) error {
	switch {
	case errors.Is(err, errs.ErrNoKey):
		return userError{msg: "vault is empty"}
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrLocked),
		errors.Is(err, errs.ErrSecondFactor),
		errors.Is(err, errs.ErrService):
		return userError{msg: err.Error()}
	}
	return err
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
