package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/mail"
)

const verifyRoute = "/verify-email/"

var errAlreadyVerified = errors.New("email already verified")

type EmailVerificationMetrics struct {
	Request      int
	RateLimited  int
	LinkInvalid  int
	LinkAccepted int
	Replay       int
	Completed    int
}

type EmailVerificationEvents struct {
	Request      string
	LinkAccepted string
	LinkInvalid  string
	Confirm      string
	Replay       string
}

type EmailVerificationErrors struct {
	EngineNotReady  error
	AlreadyVerified error
	RateLimited     error
	NotFound        error
	LinkInvalid     error
	LinkAlreadyUsed error
}

type EmailVerificationDeps struct {
	LinkTTL time.Duration

	Now func() time.Time

	Accounts AccountAccess
	Link     LinkDeps

	ConsumeLimiter  func(context.Context, string) (bool, error)
	MapLimiterError func(error) error

	IsVerified     func(Account) bool
	MarkVerified   func(*Account)
	NormalizeEmail func(string) string

	SendMail func(context.Context, mail.Message) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics EmailVerificationMetrics
	Events  EmailVerificationEvents
	Errors  EmailVerificationErrors
}

// RunSendVerification mails a signed verification link for the account's
// current email.
func RunSendVerification(ctx context.Context, account Account, deps EmailVerificationDeps) error {
	normalizeEmailVerificationDeps(&deps)

	if !deps.Link.ready() || deps.ConsumeLimiter == nil || deps.SendMail == nil || deps.IsVerified == nil {
		return deps.Errors.EngineNotReady
	}
	if deps.IsVerified(account) {
		return deps.Errors.AlreadyVerified
	}

	accepted, err := deps.ConsumeLimiter(ctx, deps.NormalizeEmail(account.Email))
	if err != nil {
		return deps.MapLimiterError(err)
	}
	if !accepted {
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.Request, false, account.ID, "", deps.Errors.RateLimited, nil)
		return deps.Errors.RateLimited
	}

	now := deps.Now()
	expiresAt := now.Add(deps.LinkTTL)
	link, err := deps.Link.SignLink(linkURL(deps.Link.BaseURL, verifyRoute, account.ID, nil), expiresAt)
	if err != nil {
		return err
	}

	msg := mail.Message{
		To:       account.Email,
		ToName:   account.Name,
		Subject:  "Email Verification",
		Tag:      mail.TagVerifyEmail,
		Metadata: map[string]string{mail.MetadataLink: link},
		Text:     verifyMailText(account, link, expiresAt),
	}
	if err := deps.SendMail(ctx, msg); err != nil {
		deps.Logger.WarnContext(ctx, "verification mail failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return err
	}

	deps.MetricInc(deps.Metrics.Request)
	deps.EmitAudit(ctx, deps.Events.Request, true, account.ID, "", nil, nil)
	return nil
}

// RunAcceptVerificationLink verifies a clicked link and binds it to the
// clicking session.
func RunAcceptVerificationLink(ctx context.Context, sessionID, accountID, rawURL string, deps EmailVerificationDeps) error {
	normalizeEmailVerificationDeps(&deps)

	if !deps.Link.ready() {
		return deps.Errors.EngineNotReady
	}

	ok, err := bindLink(ctx, deps.Link, verifyRoute, sessionID, accountID, rawURL, deps.Now())
	if err != nil {
		return err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LinkInvalid)
		deps.EmitAudit(ctx, deps.Events.LinkInvalid, false, accountID, sessionID, deps.Errors.LinkInvalid, nil)
		return deps.Errors.LinkInvalid
	}

	deps.MetricInc(deps.Metrics.LinkAccepted)
	deps.EmitAudit(ctx, deps.Events.LinkAccepted, true, accountID, sessionID, nil, nil)
	return nil
}

// RunCompleteVerification marks the account bound to sessionID verified.
// A verified account is the used state of its link.
func RunCompleteVerification(ctx context.Context, sessionID string, deps EmailVerificationDeps) (Account, error) {
	normalizeEmailVerificationDeps(&deps)

	if !deps.Accounts.ready() || !deps.Link.ready() || deps.IsVerified == nil || deps.MarkVerified == nil {
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

	if deps.IsVerified(account) {
		deps.MetricInc(deps.Metrics.Replay)
		deps.EmitAudit(ctx, deps.Events.Replay, false, account.ID, sessionID, deps.Errors.LinkAlreadyUsed, nil)
		return Account{}, deps.Errors.LinkAlreadyUsed
	}

	account, err = deps.Accounts.Update(ctx, account.ID, func(a *Account) error {
		if deps.IsVerified(*a) {
			return errAlreadyVerified
		}
		deps.MarkVerified(a)
		return nil
	})
	if errors.Is(err, errAlreadyVerified) {
		deps.MetricInc(deps.Metrics.Replay)
		deps.EmitAudit(ctx, deps.Events.Replay, false, accountID, sessionID, deps.Errors.LinkAlreadyUsed, nil)
		return Account{}, deps.Errors.LinkAlreadyUsed
	}
	if err != nil {
		return Account{}, err
	}
	if err := releaseLink(ctx, deps.Link, sessionID, account.ID); err != nil {
		deps.Logger.WarnContext(ctx, "verification marker cleanup failed", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	deps.MetricInc(deps.Metrics.Completed)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, account.ID, sessionID, nil, nil)
	return account, nil
}

func verifyMailText(account Account, link string, expiresAt time.Time) string {
	greeting := "Hello,"
	if name := firstWord(account.Name); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf(
		"%s\n\nPlease confirm %s by following the link below:\n\n%s\n\nThe link expires at %s.\n",
		greeting, account.Email, link, expiresAt.UTC().Format(time.RFC1123),
	)
}

func normalizeEmailVerificationDeps(deps *EmailVerificationDeps) {
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
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Logger = defaultLogger(deps.Logger)
}
