package goAccount

import (
	"context"
	"errors"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/stores"
	"github.com/MrEthical07/goAccount/mail"
)

// RequestPasswordReset mails a signed reset link when email belongs to an
// account. The limiter keyed by the normalized email runs first, so known
// and unknown addresses are indistinguishable: both return nil or both
// return ErrRateLimited.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return internalflows.RunRequestPasswordReset(ctx, email, e.flows.PasswordReset)
}

// AcceptPasswordResetLink checks the signature and expiry of a clicked
// reset link and binds it to sessionID. It returns the link's fingerprint
// for the follow-up URL. Invalid or expired links yield ErrLinkInvalid.
func (e *Engine) AcceptPasswordResetLink(ctx context.Context, sessionID, accountID, rawURL string) (string, error) {
	return internalflows.RunAcceptPasswordResetLink(ctx, sessionID, accountID, rawURL, e.flows.PasswordReset)
}

// CheckPasswordReset returns the account bound to sessionID by an accepted
// link. It fails with ErrNotFound when nothing is bound or fingerprint is
// blank, and with ErrLinkAlreadyUsed once the password has changed since
// the link was issued.
func (e *Engine) CheckPasswordReset(ctx context.Context, sessionID, fingerprint string) (Account, error) {
	acc, err := internalflows.RunCheckPasswordReset(ctx, sessionID, fingerprint, e.flows.PasswordReset)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

// CompletePasswordReset re-runs CheckPasswordReset, validates the new
// password, saves it, and purges the account's other sessions. The
// returned account is ready to be logged in.
func (e *Engine) CompletePasswordReset(ctx context.Context, sessionID, fingerprint, newPassword, repeat string) (Account, error) {
	acc, err := internalflows.RunCompletePasswordReset(ctx, internalflows.CompletePasswordResetInput{
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Password:    newPassword,
		Repeat:      repeat,
	}, e.flows.PasswordReset)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		LinkTTL:         e.config.PasswordReset.LinkTTL,
		Now:             e.now,
		Accounts:        e.accountAccess(),
		Link:            e.linkFlowDeps(stores.PurposePasswordReset),
		ConsumeLimiter:  e.resetLimiter.Consume,
		MapLimiterError: mapLimiterError,
		Fingerprint: func(a internalflows.Account) string {
			return ComputeFingerprint(Account(a))
		},
		FingerprintMatches: func(a internalflows.Account, candidate string) bool {
			return FingerprintMatches(Account(a), candidate)
		},
		SetPassword:           e.setPassword,
		ValidatePassword:      e.validatePassword,
		NormalizeEmail:        NormalizeEmail,
		SendMail:              e.sendMail,
		PurgeOtherSessions:    e.purgeOtherSessions,
		SleepEnumerationDelay: e.sleepEnumerationDelay,
		MetricInc:             e.metricFunc(),
		EmitAudit:             e.emitAudit,
		Logger:                e.logger,
		Metrics: internalflows.PasswordResetMetrics{
			Request:      int(MetricPasswordResetRequest),
			RateLimited:  int(MetricPasswordResetRateLimited),
			LinkInvalid:  int(MetricPasswordResetLinkInvalid),
			LinkAccepted: int(MetricPasswordResetLinkAccepted),
			Replay:       int(MetricPasswordResetReplay),
			Completed:    int(MetricPasswordResetCompleted),
		},
		Events: internalflows.PasswordResetEvents{
			Request:      auditEventPasswordResetRequest,
			LinkAccepted: auditEventPasswordResetLinkAccepted,
			LinkInvalid:  auditEventPasswordResetLinkInvalid,
			Confirm:      auditEventPasswordResetConfirm,
			Replay:       auditEventPasswordResetReplay,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:  ErrEngineNotReady,
			RateLimited:     ErrRateLimited,
			NotFound:        ErrNotFound,
			LinkInvalid:     ErrLinkInvalid,
			LinkAlreadyUsed: ErrLinkAlreadyUsed,
			Invalid:         validationFromFields,
		},
	}
	return deps
}

func (e *Engine) sendMail(ctx context.Context, msg mail.Message) error {
	return e.mailer.Send(ctx, msg)
}

func mapLimiterError(err error) error {
	if errors.Is(err, limiters.ErrLimiterRedisUnavailable) {
		return mapBackendError(err)
	}
	return err
}
