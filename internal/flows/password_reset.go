package flows

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/mail"
)

const (
	resetRoute = "/reset-password/"
	// ResetProofParam carries the account fingerprint inside reset links.
	ResetProofParam = "valid"
)

type PasswordResetMetrics struct {
	Request      int
	RateLimited  int
	LinkInvalid  int
	LinkAccepted int
	Replay       int
	Completed    int
}

type PasswordResetEvents struct {
	Request      string
	LinkAccepted string
	LinkInvalid  string
	Confirm      string
	Replay       string
}

type PasswordResetErrors struct {
	EngineNotReady  error
	RateLimited     error
	NotFound        error
	LinkInvalid     error
	LinkAlreadyUsed error
	Invalid         func([]FieldError) error
}

type PasswordResetDeps struct {
	LinkTTL time.Duration

	Now func() time.Time

	Accounts AccountAccess
	Link     LinkDeps

	ConsumeLimiter  func(context.Context, string) (bool, error)
	MapLimiterError func(error) error

	Fingerprint        func(Account) string
	FingerprintMatches func(Account, string) bool
	SetPassword        func(*Account, string) error
	ValidatePassword   func(context.Context, string) []string
	NormalizeEmail     func(string) string

	SendMail              func(context.Context, mail.Message) error
	PurgeOtherSessions    func(ctx context.Context, accountID, keepSessionID string) (int, error)
	SleepEnumerationDelay func(context.Context) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// CompletePasswordResetInput is the submitted reset form.
type CompletePasswordResetInput struct {
	SessionID   string
	Fingerprint string
	Password    string
	Repeat      string
}

// RunRequestPasswordReset sends a signed reset link to email when it names
// an account. Known and unknown addresses produce the same result.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if !deps.Accounts.ready() || !deps.Link.ready() || deps.ConsumeLimiter == nil || deps.SendMail == nil || deps.Fingerprint == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return deps.Errors.Invalid([]FieldError{{Field: "email", Message: "Please enter your email."}})
	}
	key := deps.NormalizeEmail(email)

	accepted, err := deps.ConsumeLimiter(ctx, key)
	if err != nil {
		return deps.MapLimiterError(err)
	}
	if !accepted {
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.Request, false, "", "", deps.Errors.RateLimited, nil)
		return deps.Errors.RateLimited
	}

	deps.MetricInc(deps.Metrics.Request)

	account, err := deps.Accounts.GetByEmail(ctx, key)
	if err != nil {
		if deps.Accounts.IsNotFound(err) {
			deps.EmitAudit(ctx, deps.Events.Request, true, "", "", nil, func() map[string]string {
				return map[string]string{"known": "false"}
			})
			return deps.SleepEnumerationDelay(ctx)
		}
		return err
	}

	now := deps.Now()
	expiresAt := now.Add(deps.LinkTTL)
	query := url.Values{ResetProofParam: {deps.Fingerprint(account)}}
	link, err := deps.Link.SignLink(linkURL(deps.Link.BaseURL, resetRoute, account.ID, query), expiresAt)
	if err != nil {
		return err
	}

	msg := mail.Message{
		To:       account.Email,
		ToName:   account.Name,
		Subject:  "Password Reset Request",
		Tag:      mail.TagForgotPassword,
		Metadata: map[string]string{mail.MetadataLink: link},
		Text:     resetMailText(account, link, expiresAt),
	}
	// A delivery failure is only logged; returning it would tell the caller
	// the address belongs to an account.
	if err := deps.SendMail(ctx, msg); err != nil {
		deps.Logger.ErrorContext(ctx, "password reset mail failed", slog.String("account_id", account.ID), slog.Any("error", err))
		deps.EmitAudit(ctx, deps.Events.Request, false, account.ID, "", err, nil)
		return nil
	}

	deps.EmitAudit(ctx, deps.Events.Request, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"known": "true"}
	})
	return nil
}

// RunAcceptPasswordResetLink verifies a clicked reset link and binds it to
// the clicking session. It returns the proof carried by the link so the
// caller can redirect to a URL without the signature.
func RunAcceptPasswordResetLink(ctx context.Context, sessionID, accountID, rawURL string, deps PasswordResetDeps) (string, error) {
	normalizePasswordResetDeps(&deps)

	if !deps.Link.ready() {
		return "", deps.Errors.EngineNotReady
	}

	ok, err := bindLink(ctx, deps.Link, resetRoute, sessionID, accountID, rawURL, deps.Now())
	if err != nil {
		return "", err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LinkInvalid)
		deps.EmitAudit(ctx, deps.Events.LinkInvalid, false, accountID, sessionID, deps.Errors.LinkInvalid, nil)
		return "", deps.Errors.LinkInvalid
	}

	deps.MetricInc(deps.Metrics.LinkAccepted)
	deps.EmitAudit(ctx, deps.Events.LinkAccepted, true, accountID, sessionID, nil, nil)
	return proofFromURL(rawURL), nil
}

// RunCheckPasswordReset resolves the account bound to sessionID and checks
// that fingerprint still matches it.
func RunCheckPasswordReset(ctx context.Context, sessionID, fingerprint string, deps PasswordResetDeps) (Account, error) {
	normalizePasswordResetDeps(&deps)

	if !deps.Accounts.ready() || !deps.Link.ready() || deps.FingerprintMatches == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	accountID, err := markedAccountID(ctx, deps.Link, sessionID, deps.Now())
	if err != nil {
		return Account{}, err
	}
	if accountID == "" {
		return Account{}, deps.Errors.NotFound
	}

	account, err := deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if deps.Accounts.IsNotFound(err) {
			return Account{}, deps.Errors.NotFound
		}
		return Account{}, err
	}

	if fingerprint == "" {
		return Account{}, deps.Errors.NotFound
	}
	if !deps.FingerprintMatches(account, fingerprint) {
		deps.MetricInc(deps.Metrics.Replay)
		deps.EmitAudit(ctx, deps.Events.Replay, false, account.ID, sessionID, deps.Errors.LinkAlreadyUsed, nil)
		return Account{}, deps.Errors.LinkAlreadyUsed
	}

	return account, nil
}

// RunCompletePasswordReset sets the new password for the account bound to
// the session. Only the hash is written. Two completions racing on the same
// link both pass the fingerprint check; the later update wins.
func RunCompletePasswordReset(ctx context.Context, in CompletePasswordResetInput, deps PasswordResetDeps) (Account, error) {
	normalizePasswordResetDeps(&deps)

	if deps.SetPassword == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	account, err := RunCheckPasswordReset(ctx, in.SessionID, in.Fingerprint, deps)
	if err != nil {
		return Account{}, err
	}

	if fields := newPasswordErrors(ctx, "password", in.Password, in.Repeat, deps.ValidatePassword); len(fields) > 0 {
		return Account{}, deps.Errors.Invalid(fields)
	}

	next := account
	if err := deps.SetPassword(&next, in.Password); err != nil {
		return Account{}, err
	}
	account, err = deps.Accounts.Update(ctx, account.ID, func(a *Account) error {
		a.PasswordHash = next.PasswordHash
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	if err := releaseLink(ctx, deps.Link, in.SessionID, account.ID); err != nil {
		deps.Logger.WarnContext(ctx, "reset marker cleanup failed", slog.String("account_id", account.ID), slog.Any("error", err))
	}
	if deps.PurgeOtherSessions != nil {
		if n, err := deps.PurgeOtherSessions(ctx, account.ID, in.SessionID); err != nil {
			deps.Logger.WarnContext(ctx, "session purge after reset failed", slog.String("account_id", account.ID), slog.Any("error", err))
		} else if n > 0 {
			deps.Logger.InfoContext(ctx, "sessions purged after reset", slog.String("account_id", account.ID), slog.Int("count", n))
		}
	}

	deps.MetricInc(deps.Metrics.Completed)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, account.ID, in.SessionID, nil, nil)
	return account, nil
}

// newPasswordErrors validates a new password and its confirmation under
// field. Policy messages come first.
func newPasswordErrors(ctx context.Context, field, plaintext, repeat string, policy func(context.Context, string) []string) []FieldError {
	var fields []FieldError
	if plaintext != repeat {
		fields = append(fields, FieldError{Field: field, Message: "The password fields must match."})
		return fields
	}
	if policy != nil {
		for _, msg := range policy(ctx, plaintext) {
			fields = append(fields, FieldError{Field: field, Message: msg})
		}
	}
	return fields
}

func proofFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(ResetProofParam)
}

func resetMailText(account Account, link string, expiresAt time.Time) string {
	greeting := "Hello,"
	if name := firstWord(account.Name); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf(
		"%s\n\nSomeone requested a password reset for your account. Follow the link below to choose a new password:\n\n%s\n\nThe link expires at %s. If you did not request this, you can ignore this email.\n",
		greeting, link, expiresAt.UTC().Format(time.RFC1123),
	)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	normalizeAccountAccess(&deps.Accounts)
	normalizeLinkDeps(&deps.Link)

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = identity
	}
	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Errors.Invalid == nil {
		deps.Errors.Invalid = func([]FieldError) error { return deps.Errors.LinkInvalid }
	}
	deps.Logger = defaultLogger(deps.Logger)
}
