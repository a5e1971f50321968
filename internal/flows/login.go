package flows

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

type LoginMetrics struct {
	Success     int
	Failure     int
	RateLimited int
}

type LoginEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	RateLimited        error
}

type LoginDeps struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	NormalizeEmail      func(string) string

	Accounts AccountAccess

	// DummyHash is verified against for unknown emails so both paths
	// spend one hash computation.
	DummyHash      string
	VerifyPassword func(plaintext, encoded string) (bool, error)

	CheckLoginRate     func(ctx context.Context, email, ip string) error
	IncrementLoginRate func(ctx context.Context, email, ip string) error
	ResetLoginRate     func(ctx context.Context, email string) error
	IsRateLimited      func(error) bool

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin checks email and password and records the login on success.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (Account, error) {
	normalizeLoginDeps(&deps)

	if !deps.Accounts.ready() || deps.VerifyPassword == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	key := deps.NormalizeEmail(email)
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, key, ip); err != nil {
			if !deps.IsRateLimited(err) {
				return Account{}, err
			}
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", deps.Errors.RateLimited, nil)
			return Account{}, deps.Errors.RateLimited
		}
	}

	fail := func(accountID, reason string) (Account, error) {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, key, ip); err != nil {
				deps.Logger.WarnContext(ctx, "login throttle increment failed", slog.Any("error", err))
			}
		}
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, accountID, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return Account{}, deps.Errors.InvalidCredentials
	}

	if key == "" || password == "" {
		return fail("", "empty_credentials")
	}

	account, err := deps.Accounts.GetByEmail(ctx, key)
	if err != nil {
		if !deps.Accounts.IsNotFound(err) {
			return Account{}, err
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		return fail("", "unknown_email")
	}

	ok, err := deps.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		return fail(account.ID, "password_mismatch")
	}

	// The hash check took a while; a reset or logout-others that landed in
	// between must win over this login.
	verified := account
	account, err = deps.Accounts.Update(ctx, verified.ID, func(a *Account) error {
		if a.PasswordHash != verified.PasswordHash || deps.NormalizeEmail(a.Email) != key {
			return errCredentialChanged
		}
		a.LoggedInAt = deps.Now()
		return nil
	})
	if errors.Is(err, errCredentialChanged) || (err != nil && deps.Accounts.IsNotFound(err)) {
		return fail(verified.ID, "credential_changed")
	}
	if err != nil {
		return Account{}, err
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, key); err != nil {
			deps.Logger.WarnContext(ctx, "login throttle reset failed", slog.String("account_id", account.ID), slog.Any("error", err))
		}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, account.ID, "", nil, nil)
	return account, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	normalizeAccountAccess(&deps.Accounts)

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return true }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Logger = defaultLogger(deps.Logger)
}
