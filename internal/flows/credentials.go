package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

type CredentialMetrics struct {
	PasswordChanged       int
	EmailChanged          int
	ProfileUpdated        int
	OtherDevicesLoggedOut int
}

type CredentialEvents struct {
	PasswordChange string
	EmailChange    string
	ProfileUpdate  string
	LogoutOthers   string
}

type CredentialErrors struct {
	EngineNotReady error
	// Unauthorized is returned when the password changed after the
	// caller's account was loaded.
	Unauthorized error
	Invalid      func([]FieldError) error
}

type CredentialDeps struct {
	NormalizeEmail func(string) string

	Accounts AccountAccess

	VerifyPassword   func(plaintext, encoded string) (bool, error)
	SetPassword      func(*Account, string) error
	ValidatePassword func(context.Context, string) []string

	// RebindSession stores the account's new credential epoch on the
	// caller's session so it survives its own password change.
	RebindSession      func(ctx context.Context, sessionID string, account Account) error
	PurgeOtherSessions func(ctx context.Context, accountID, keepSessionID string) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics CredentialMetrics
	Events  CredentialEvents
	Errors  CredentialErrors
}

// ChangePasswordInput is the submitted change-password form.
type ChangePasswordInput struct {
	SessionID string
	Account   Account
	Current   string
	Password  string
	Repeat    string
}

// RunChangePassword replaces the password after checking the current one.
// The caller's session is rebound; every other session fails its next
// epoch check.
func RunChangePassword(ctx context.Context, in ChangePasswordInput, deps CredentialDeps) (Account, error) {
	normalizeCredentialDeps(&deps)

	if deps.Accounts.Update == nil || deps.VerifyPassword == nil || deps.SetPassword == nil || deps.RebindSession == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	account := in.Account
	if !passwordMatches(deps, in.Current, account.PasswordHash) {
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, account.ID, in.SessionID, nil, func() map[string]string {
			return map[string]string{"reason": "invalid_current"}
		})
		return Account{}, deps.Errors.Invalid([]FieldError{{Field: "current_password", Message: "Please enter your current password"}})
	}
	if fields := newPasswordErrors(ctx, "password", in.Password, in.Repeat, deps.ValidatePassword); len(fields) > 0 {
		return Account{}, deps.Errors.Invalid(fields)
	}

	account, err := replaceHash(ctx, deps, account, in.Password)
	if err != nil {
		return Account{}, err
	}
	if err := deps.RebindSession(ctx, in.SessionID, account); err != nil {
		return Account{}, err
	}

	deps.MetricInc(deps.Metrics.PasswordChanged)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, account.ID, in.SessionID, nil, nil)
	return account, nil
}

// RunChangeEmail replaces the login email. The account's verified status
// follows from the new value.
func RunChangeEmail(ctx context.Context, sessionID string, account Account, newEmail string, deps CredentialDeps) (Account, error) {
	normalizeCredentialDeps(&deps)

	if !deps.Accounts.ready() {
		return Account{}, deps.Errors.EngineNotReady
	}

	newEmail = strings.TrimSpace(newEmail)
	fields, err := emailErrors(ctx, newEmail, account.ID, deps.Accounts, deps.NormalizeEmail)
	if err != nil {
		return Account{}, err
	}
	if len(fields) > 0 {
		return Account{}, deps.Errors.Invalid(fields)
	}

	account, err = updateIfCredential(ctx, deps.Accounts, account.ID, account.PasswordHash, func(a *Account) {
		a.Email = newEmail
	})
	if err != nil {
		if deps.Accounts.IsExists(err) {
			return Account{}, deps.Errors.Invalid([]FieldError{{Field: "email", Message: msgEmailTaken}})
		}
		return Account{}, credentialError(deps, err)
	}

	deps.MetricInc(deps.Metrics.EmailChanged)
	deps.EmitAudit(ctx, deps.Events.EmailChange, true, account.ID, sessionID, nil, nil)
	return account, nil
}

// RunUpdateProfile renames the account.
func RunUpdateProfile(ctx context.Context, account Account, name string, deps CredentialDeps) (Account, error) {
	normalizeCredentialDeps(&deps)

	if deps.Accounts.Update == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, deps.Errors.Invalid([]FieldError{{Field: "name", Message: msgNameBlank}})
	}

	account, err := deps.Accounts.Update(ctx, account.ID, func(a *Account) error {
		a.Name = name
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdated)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, account.ID, "", nil, nil)
	return account, nil
}

// RunLogoutOtherDevices re-hashes the current password under a fresh salt.
// The new hash advances the credential epoch, so every other session and
// remember-me token of the account stops authenticating. Stored sessions
// are also purged eagerly; purge failures are logged and do not fail the
// call.
func RunLogoutOtherDevices(ctx context.Context, sessionID string, account Account, plaintext string, deps CredentialDeps) (Account, error) {
	normalizeCredentialDeps(&deps)

	if deps.Accounts.Update == nil || deps.VerifyPassword == nil || deps.SetPassword == nil || deps.RebindSession == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	if !passwordMatches(deps, plaintext, account.PasswordHash) {
		deps.EmitAudit(ctx, deps.Events.LogoutOthers, false, account.ID, sessionID, nil, func() map[string]string {
			return map[string]string{"reason": "invalid_password"}
		})
		return Account{}, deps.Errors.Invalid([]FieldError{{Field: "password", Message: "Please enter your password."}})
	}

	account, err := replaceHash(ctx, deps, account, plaintext)
	if err != nil {
		return Account{}, err
	}
	if err := deps.RebindSession(ctx, sessionID, account); err != nil {
		return Account{}, err
	}

	purged := 0
	if deps.PurgeOtherSessions != nil {
		n, err := deps.PurgeOtherSessions(ctx, account.ID, sessionID)
		if err != nil {
			deps.Logger.WarnContext(ctx, "session purge failed", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		purged = n
	}

	deps.MetricInc(deps.Metrics.OtherDevicesLoggedOut)
	deps.EmitAudit(ctx, deps.Events.LogoutOthers, true, account.ID, sessionID, nil, func() map[string]string {
		return map[string]string{"purged": strconv.Itoa(purged)}
	})
	return account, nil
}

// replaceHash hashes plaintext outside the store update and writes it only
// if account's hash is still the stored one.
func replaceHash(ctx context.Context, deps CredentialDeps, account Account, plaintext string) (Account, error) {
	next := account
	if err := deps.SetPassword(&next, plaintext); err != nil {
		return Account{}, err
	}
	out, err := updateIfCredential(ctx, deps.Accounts, account.ID, account.PasswordHash, func(a *Account) {
		a.PasswordHash = next.PasswordHash
	})
	if err != nil {
		return Account{}, credentialError(deps, err)
	}
	return out, nil
}

func credentialError(deps CredentialDeps, err error) error {
	if errors.Is(err, errCredentialChanged) {
		return deps.Errors.Unauthorized
	}
	return err
}

func passwordMatches(deps CredentialDeps, plaintext, encoded string) bool {
	if plaintext == "" {
		return false
	}
	ok, err := deps.VerifyPassword(plaintext, encoded)
	return err == nil && ok
}

func normalizeCredentialDeps(deps *CredentialDeps) {
	normalizeAccountAccess(&deps.Accounts)

	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Errors.Unauthorized == nil {
		deps.Errors.Unauthorized = errCredentialChanged
	}
	if deps.Errors.Invalid == nil {
		deps.Errors.Invalid = func([]FieldError) error { return deps.Errors.EngineNotReady }
	}
	deps.Logger = defaultLogger(deps.Logger)
}
