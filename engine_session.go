package goAccount

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/session"
)

// StartSession creates an anonymous session and returns its id.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}

	now := e.now()
	sess := &session.Session{
		SessionID: sid.String(),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.TTL).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.TTL); err != nil {
		return "", mapSessionError(err)
	}
	return sess.SessionID, nil
}

// ResolveSession loads sessionID and attaches its account while the
// account's credential epoch still matches the one the session recorded.
// Stale sessions are demoted to anonymous and reported as such.
func (e *Engine) ResolveSession(ctx context.Context, sessionID string) (*SessionState, error) {
	if !internal.ValidSessionID(sessionID) {
		return nil, ErrSessionNotFound
	}

	start := time.Now()
	resolved, err := internalflows.RunResolveSession(ctx, sessionID, e.flows.Session)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	state := &SessionState{
		SessionID:  sessionID,
		Remembered: resolved.Session.Remembered,
	}
	if resolved.Account != nil {
		acc := Account(*resolved.Account)
		state.Account = &acc
	}
	return state, nil
}

// AuthenticateSession logs acc into the browser that owns sessionID. The
// session id is rotated: a new id carrying the account and its credential
// epoch replaces the old one, and pending flashes move across. An empty or
// unknown sessionID just issues a fresh session.
func (e *Engine) AuthenticateSession(ctx context.Context, sessionID string, acc Account, remembered bool) (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}

	now := e.now()
	sess := &session.Session{
		SessionID:  sid.String(),
		AccountID:  acc.ID,
		Epoch:      CredentialEpoch(acc),
		Remembered: remembered,
		CreatedAt:  now.Unix(),
		ExpiresAt:  now.Add(e.config.Session.TTL).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.TTL); err != nil {
		return "", mapSessionError(err)
	}

	if sessionID != "" && sessionID != sess.SessionID {
		flashes, err := e.sessionStore.PopFlashes(ctx, sessionID)
		if err != nil {
			e.logger.WarnContext(ctx, "flash carry-over failed", slog.Any("error", err))
		}
		for _, f := range flashes {
			if err := e.sessionStore.PushFlash(ctx, sess.SessionID, f, e.config.Session.FlashTTL); err != nil {
				e.logger.WarnContext(ctx, "flash carry-over failed", slog.Any("error", err))
				break
			}
		}
		if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
			e.logger.WarnContext(ctx, "old session cleanup failed", slog.Any("error", err))
		}
	}

	e.metricInc(MetricSessionCreated)
	return sess.SessionID, nil
}

// RebindSession records acc's current credential epoch on sessionID so the
// caller's own session survives a password change it just made.
func (e *Engine) RebindSession(ctx context.Context, sessionID string, acc Account) error {
	sess, err := e.sessionStore.Get(ctx, sessionID, e.config.Session.TTL)
	if err != nil {
		return mapSessionError(err)
	}
	if sess.AccountID != acc.ID {
		return ErrUnauthorized
	}

	sess.Epoch = CredentialEpoch(acc)
	ttl := time.Unix(sess.ExpiresAt, 0).Sub(e.now())
	if ttl <= 0 {
		return ErrSessionNotFound
	}
	if err := e.sessionStore.Save(ctx, sess, ttl); err != nil {
		return mapSessionError(err)
	}
	return nil
}

// EndSession deletes sessionID and its flashes.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		return mapSessionError(err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// IssueRememberToken signs a remember-me token for acc bound to its
// current credential epoch.
func (e *Engine) IssueRememberToken(acc Account) (string, time.Time, error) {
	if e.remember == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	return e.remember.Create(acc.ID, CredentialEpoch(acc))
}

// ResumeRemembered authenticates a remember-me token. It fails with
// ErrUnauthorized once the account's password has changed since issue.
func (e *Engine) ResumeRemembered(ctx context.Context, token string) (Account, error) {
	if e.remember == nil {
		return Account{}, ErrUnauthorized
	}
	acc, err := internalflows.RunResumeRemembered(ctx, token, e.flows.Session)
	if err != nil {
		return Account{}, err
	}
	return Account(acc), nil
}

// PushFlash queues a one-time message for the next page of sessionID.
func (e *Engine) PushFlash(ctx context.Context, sessionID, flashType, message string) error {
	err := e.sessionStore.PushFlash(ctx, sessionID, session.Flash{Type: flashType, Message: message}, e.config.Session.FlashTTL)
	return mapSessionError(err)
}

// PopFlashes returns and clears the queued messages of sessionID.
func (e *Engine) PopFlashes(ctx context.Context, sessionID string) ([]session.Flash, error) {
	flashes, err := e.sessionStore.PopFlashes(ctx, sessionID)
	if err != nil {
		return nil, mapSessionError(err)
	}
	return flashes, nil
}

// SessionIDs lists the stored session ids of accountID.
func (e *Engine) SessionIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := e.sessionStore.SessionIDs(ctx, accountID)
	if err != nil {
		return nil, mapSessionError(err)
	}
	return ids, nil
}

func (e *Engine) purgeOtherSessions(ctx context.Context, accountID, keepSessionID string) (int, error) {
	n, err := e.sessionStore.DeleteAllForAccount(ctx, accountID, keepSessionID)
	if err != nil {
		return 0, mapSessionError(err)
	}
	return n, nil
}

func mapSessionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return mapBackendError(err)
}

func (e *Engine) sessionFlowDeps() internalflows.SessionDeps {
	deps := internalflows.SessionDeps{
		TTL:      e.config.Session.TTL,
		Now:      e.now,
		Sessions: e.sessionStore,
		IsSessionNotFound: func(err error) bool {
			return errors.Is(err, session.ErrSessionNotFound)
		},
		MapSessionError: mapSessionError,
		Accounts:        e.accountAccess(),
		Epoch: func(a internalflows.Account) [32]byte {
			return CredentialEpoch(Account(a))
		},
		EpochEqual: EpochEqual,
		MetricInc:  e.metricFunc(),
		EmitAudit:  e.emitAudit,
		Logger:     e.logger,
		Metrics: internalflows.SessionMetrics{
			Resolved:    int(MetricSessionResolved),
			Invalidated: int(MetricSessionInvalidated),
			Resumed:     int(MetricRememberResumed),
			ResumeFail:  int(MetricRememberRejected),
		},
		Events: internalflows.SessionEvents{
			Invalidated: auditEventSessionInvalidated,
			Resumed:     auditEventRememberResumed,
		},
		Errors: internalflows.SessionErrors{
			EngineNotReady:  ErrEngineNotReady,
			SessionNotFound: ErrSessionNotFound,
			Unauthorized:    ErrUnauthorized,
		},
	}

	if e.remember != nil {
		deps.ParseRemember = func(token string) (string, [32]byte, error) {
			claims, err := e.remember.Parse(token)
			if err != nil {
				return "", [32]byte{}, err
			}
			epoch, err := claims.EpochBytes()
			if err != nil {
				return "", [32]byte{}, err
			}
			return claims.UID, epoch, nil
		}
	}

	return deps
}
