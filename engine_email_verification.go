package goAccount

import (
	"context"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/stores"
)

// SendVerification mails a signed verification link for acc's current
// email. Verified accounts get ErrAlreadyVerified and no mail; repeated
// requests inside the limiter window get ErrRateLimited.
func (e *Engine) SendVerification(ctx context.Context, acc Account) error {
	return internalflows.RunSendVerification(ctx, internalflows.Account(acc), e.flows.EmailVerification)
}

// AcceptVerificationLink checks a clicked verification link and binds it
// to sessionID.
func (e *Engine) AcceptVerificationLink(ctx context.Context, sessionID, accountID, rawURL string) error {
	return internalflows.RunAcceptVerificationLink(ctx, sessionID, accountID, rawURL, e.flows.EmailVerification)
}

// CompleteVerification verifies the account bound to sessionID and
// returns it. An account that is already verified yields
// ErrLinkAlreadyUsed.
func (e *Engine) CompleteVerification(ctx context.Context, sessionID string) (Account, error) {
	acc, err := internalflows.RunCompleteVerification(ctx, sessionID, e.flows.EmailVerification)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

func (e *Engine) emailVerificationFlowDeps() internalflows.EmailVerificationDeps {
	return internalflows.EmailVerificationDeps{
		LinkTTL:         e.config.EmailVerification.LinkTTL,
		Now:             e.now,
		Accounts:        e.accountAccess(),
		Link:            e.linkFlowDeps(stores.PurposeEmailVerification),
		ConsumeLimiter:  e.verificationLimiter.Consume,
		MapLimiterError: mapLimiterError,
		IsVerified: func(a internalflows.Account) bool {
			return Account(a).IsVerified()
		},
		MarkVerified: func(a *internalflows.Account) {
			acc := Account(*a)
			acc.MarkVerified()
			*a = internalflows.Account(acc)
		},
		NormalizeEmail: NormalizeEmail,
		SendMail:       e.sendMail,
		MetricInc:      e.metricFunc(),
		EmitAudit:      e.emitAudit,
		Logger:         e.logger,
		Metrics: internalflows.EmailVerificationMetrics{
			Request:      int(MetricEmailVerificationRequest),
			RateLimited:  int(MetricEmailVerificationRateLimited),
			LinkInvalid:  int(MetricEmailVerificationLinkInvalid),
			LinkAccepted: int(MetricEmailVerificationLinkAccepted),
			Replay:       int(MetricEmailVerificationReplay),
			Completed:    int(MetricEmailVerificationCompleted),
		},
		Events: internalflows.EmailVerificationEvents{
			Request:      auditEventEmailVerificationRequest,
			LinkAccepted: auditEventEmailVerificationAccepted,
			LinkInvalid:  auditEventEmailVerificationInvalid,
			Confirm:      auditEventEmailVerificationConfirm,
			Replay:       auditEventEmailVerificationReplay,
		},
		Errors: internalflows.EmailVerificationErrors{
			EngineNotReady:  ErrEngineNotReady,
			AlreadyVerified: ErrAlreadyVerified,
			RateLimited:     ErrRateLimited,
			NotFound:        ErrNotFound,
			LinkInvalid:     ErrLinkInvalid,
			LinkAlreadyUsed: ErrLinkAlreadyUsed,
		},
	}
}
