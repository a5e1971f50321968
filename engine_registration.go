package goAccount

import (
	"context"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// Register validates in and creates an unverified account. Field problems
// come back as a *ValidationError; a client IP that registered too often
// in the current window gets ErrRateLimited.
func (e *Engine) Register(ctx context.Context, in RegistrationInput) (Account, error) {
	acc, err := internalflows.RunRegister(ctx, internalflows.RegistrationInput(in), e.flows.Registration)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

func (e *Engine) registrationFlowDeps() internalflows.RegistrationDeps {
	return internalflows.RegistrationDeps{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		NormalizeEmail:      NormalizeEmail,
		NewAccountID:        newAccountID,
		Accounts:            e.accountAccess(),
		ConsumeLimiter:      e.registrationLimiter.Consume,
		MapLimiterError:     mapLimiterError,
		SetPassword:         e.setPassword,
		ValidatePassword:    e.validatePassword,
		MetricInc:           e.metricFunc(),
		EmitAudit:           e.emitAudit,
		Logger:              e.logger,
		Metrics: internalflows.RegistrationMetrics{
			Success:     int(MetricRegistrationSuccess),
			Duplicate:   int(MetricRegistrationDuplicate),
			RateLimited: int(MetricRegistrationRateLimited),
		},
		Events: internalflows.RegistrationEvents{
			Success:     auditEventRegistrationSuccess,
			Duplicate:   auditEventRegistrationDuplicate,
			RateLimited: auditEventRegistrationRateLimited,
		},
		Errors: internalflows.RegistrationErrors{
			EngineNotReady: ErrEngineNotReady,
			RateLimited:    ErrRateLimited,
			Invalid:        validationFromFields,
		},
	}
}
