package goAccount

import (
	"context"
	"errors"

	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/rate"
)

// Login checks email and password. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials after the same amount of hashing work. Too
// many failures for the email or the client IP yield ErrRateLimited.
func (e *Engine) Login(ctx context.Context, email, password string) (Account, error) {
	acc, err := internalflows.RunLogin(ctx, email, password, e.flows.Login)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

// ChangePassword replaces acc's password after checking current. The
// session sessionID stays logged in; every other session of the account
// stops authenticating.
func (e *Engine) ChangePassword(ctx context.Context, sessionID string, acc Account, current, newPassword, repeat string) (Account, error) {
	out, err := internalflows.RunChangePassword(ctx, internalflows.ChangePasswordInput{
		SessionID: sessionID,
		Account:   internalflows.Account(acc),
		Current:   current,
		Password:  newPassword,
		Repeat:    repeat,
	}, e.flows.Credentials)
	if err != nil {
		return Account{}, err
	}
	return Account(out), nil
}

// ChangeEmail replaces acc's login email. Sessions restored from a
// remember-me token get ErrFullAuthRequired.
func (e *Engine) ChangeEmail(ctx context.Context, sessionID string, acc Account, newEmail string) (Account, error) {
	state, err := e.ResolveSession(ctx, sessionID)
	if err != nil {
		return Account{}, err
	}
	if !state.Authenticated() || state.Account.ID != acc.ID {
		return Account{}, ErrUnauthorized
	}
	if !state.FullyAuthenticated() {
		return Account{}, ErrFullAuthRequired
	}

	out, err := internalflows.RunChangeEmail(ctx, sessionID, internalflows.Account(acc), newEmail, e.flows.Credentials)
	if err != nil {
		return Account{}, err
	}
	return Account(out), nil
}

// UpdateProfile renames acc.
func (e *Engine) UpdateProfile(ctx context.Context, acc Account, name string) (Account, error) {
	out, err := internalflows.RunUpdateProfile(ctx, internalflows.Account(acc), name, e.flows.Credentials)
	if err != nil {
		return Account{}, err
	}
	return Account(out), nil
}

// LogoutOtherDevices re-hashes acc's current password, which moves its
// credential epoch forward. sessionID is rebound to the new epoch; all
// other sessions and remember-me tokens of the account are invalidated.
func (e *Engine) LogoutOtherDevices(ctx context.Context, sessionID string, acc Account, currentPassword string) (Account, error) {
	out, err := internalflows.RunLogoutOtherDevices(ctx, sessionID, internalflows.Account(acc), currentPassword, e.flows.Credentials)
	if err != nil {
		return Account{}, err
	}
	return Account(out), nil
}

func (e *Engine) verifyPassword(plaintext, encoded string) (bool, error) {
	return e.hasher.Verify(plaintext, encoded)
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		NormalizeEmail:      NormalizeEmail,
		Accounts:            e.accountAccess(),
		DummyHash:           e.dummyHash,
		VerifyPassword:      e.verifyPassword,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, rate.ErrRateLimited)
		},
		MetricInc: e.metricFunc(),
		EmitAudit: e.emitAudit,
		Logger:    e.logger,
		Metrics: internalflows.LoginMetrics{
			Success:     int(MetricLoginSuccess),
			Failure:     int(MetricLoginFailure),
			RateLimited: int(MetricLoginRateLimited),
		},
		Events: internalflows.LoginEvents{
			Success:     auditEventLoginSuccess,
			Failure:     auditEventLoginFailure,
			RateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			RateLimited:        ErrRateLimited,
		},
	}

	if e.loginLimiter != nil {
		deps.CheckLoginRate = func(ctx context.Context, email, ip string) error {
			err := e.loginLimiter.CheckLogin(ctx, email, ip)
			if err != nil && !errors.Is(err, rate.ErrRateLimited) {
				return mapBackendError(err)
			}
			return err
		}
		deps.IncrementLoginRate = e.loginLimiter.IncrementLogin
		deps.ResetLoginRate = e.loginLimiter.ResetLogin
	}

	return deps
}

func (e *Engine) credentialFlowDeps() internalflows.CredentialDeps {
	return internalflows.CredentialDeps{
		NormalizeEmail:   NormalizeEmail,
		Accounts:         e.accountAccess(),
		VerifyPassword:   e.verifyPassword,
		SetPassword:      e.setPassword,
		ValidatePassword: e.validatePassword,
		RebindSession: func(ctx context.Context, sessionID string, a internalflows.Account) error {
			return e.RebindSession(ctx, sessionID, Account(a))
		},
		PurgeOtherSessions: e.purgeOtherSessions,
		MetricInc:          e.metricFunc(),
		EmitAudit:          e.emitAudit,
		Logger:             e.logger,
		Metrics: internalflows.CredentialMetrics{
			PasswordChanged:       int(MetricPasswordChanged),
			EmailChanged:          int(MetricEmailChanged),
			ProfileUpdated:        int(MetricProfileUpdated),
			OtherDevicesLoggedOut: int(MetricLogoutOtherDevices),
		},
		Events: internalflows.CredentialEvents{
			PasswordChange: auditEventPasswordChange,
			EmailChange:    auditEventEmailChange,
			ProfileUpdate:  auditEventProfileUpdate,
			LogoutOthers:   auditEventLogoutOtherDevices,
		},
		Errors: internalflows.CredentialErrors{
			EngineNotReady: ErrEngineNotReady,
			Unauthorized:   ErrUnauthorized,
			Invalid:        validationFromFields,
		},
	}
}
