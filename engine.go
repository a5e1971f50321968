package goAccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/audit"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/internal/stores"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/session"
	"github.com/MrEthical07/goAccount/signedlink"
	"github.com/google/uuid"
)

const (
	enumerationDelayMin = 20 * time.Millisecond
	enumerationDelayMax = 40 * time.Millisecond
)

// Engine runs the account lifecycle: registration, login, signed-link
// password reset and email verification, credential changes, and the
// sessions those changes invalidate. Build one with New and Builder.Build.
//
// Engine methods are safe for concurrent use.
type Engine struct {
	config Config
	clock  Clock
	logger *slog.Logger

	accounts AccountStore
	mailer   Mailer
	hasher   PasswordHasher
	policy   PasswordPolicy

	links        *signedlink.Codec
	markers      *stores.LinkMarkerStore
	sessionStore *session.Store
	remember     *jwt.Manager

	loginLimiter        *rate.Limiter
	resetLimiter        RateLimiter
	verificationLimiter RateLimiter
	registrationLimiter RateLimiter

	audit   *audit.Dispatcher
	metrics *Metrics

	dummyHash string
	flows     internalflows.Deps
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping checks the Redis connection behind sessions and markers.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	latency, err := e.sessionStore.Ping(ctx)
	if err != nil {
		return 0, mapBackendError(err)
	}
	return latency, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		Session:           e.sessionFlowDeps(),
		PasswordReset:     e.passwordResetFlowDeps(),
		EmailVerification: e.emailVerificationFlowDeps(),
		Registration:      e.registrationFlowDeps(),
		Login:             e.loginFlowDeps(),
		Credentials:       e.credentialFlowDeps(),
	}
}

func (e *Engine) accountAccess() internalflows.AccountAccess {
	if e == nil || e.accounts == nil {
		return internalflows.AccountAccess{}
	}
	return internalflows.AccountAccess{
		GetByID: func(ctx context.Context, id string) (internalflows.Account, error) {
			a, err := e.accounts.GetByID(ctx, id)
			return internalflows.Account(a), err
		},
		GetByEmail: func(ctx context.Context, email string) (internalflows.Account, error) {
			a, err := e.accounts.GetByEmail(ctx, email)
			return internalflows.Account(a), err
		},
		Create: func(ctx context.Context, a internalflows.Account) error {
			return e.accounts.Create(ctx, Account(a))
		},
		Update: func(ctx context.Context, id string, fn func(*internalflows.Account) error) (internalflows.Account, error) {
			a, err := e.accounts.Update(ctx, id, func(acc *Account) error {
				return fn((*internalflows.Account)(acc))
			})
			return internalflows.Account(a), err
		},
		IsNotFound: func(err error) bool {
			return errors.Is(err, ErrNotFound)
		},
		IsExists: func(err error) bool {
			return errors.Is(err, ErrAccountExists)
		},
	}
}

func (e *Engine) linkFlowDeps(purpose stores.Purpose) internalflows.LinkDeps {
	return internalflows.LinkDeps{
		BaseURL:   e.config.Links.BaseURL,
		MarkerTTL: e.config.Links.MarkerTTL,
		SignLink:  e.links.Sign,
		CheckLink: e.links.Check,
		PutMarker: func(ctx context.Context, sessionID, accountID string, expiresAt time.Time, ttl time.Duration) error {
			return e.markers.Put(ctx, sessionID, &stores.LinkMarker{
				Purpose:   purpose,
				AccountID: accountID,
				ExpiresAt: expiresAt.Unix(),
			}, ttl)
		},
		GetMarker: func(ctx context.Context, sessionID string, now time.Time) (string, error) {
			marker, err := e.markers.Get(ctx, purpose, sessionID, now)
			if err != nil {
				return "", err
			}
			return marker.AccountID, nil
		},
		ConsumeMarker: func(ctx context.Context, sessionID, accountID string) error {
			return e.markers.Consume(ctx, purpose, sessionID, accountID)
		},
		IsMarkerNotFound: func(err error) bool {
			return errors.Is(err, stores.ErrMarkerNotFound) || errors.Is(err, stores.ErrMarkerCorrupt)
		},
		MapMarkerError: mapBackendError,
	}
}

func (e *Engine) setPassword(a *internalflows.Account, plaintext string) error {
	acc := Account(*a)
	if err := SetPassword(&acc, e.hasher, plaintext); err != nil {
		return err
	}
	*a = internalflows.Account(acc)
	return nil
}

func (e *Engine) validatePassword(ctx context.Context, plaintext string) []string {
	return e.policy.Validate(ctx, plaintext)
}

func (e *Engine) sleepEnumerationDelay(ctx context.Context) error {
	d, err := internal.RandomDuration(enumerationDelayMin, enumerationDelayMax)
	if err != nil {
		d = enumerationDelayMin
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) metricFunc() func(int) {
	return func(id int) {
		e.metricInc(MetricID(id))
	}
}

func newAccountID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func validationFromFields(fields []internalflows.FieldError) error {
	v := &ValidationError{}
	for _, f := range fields {
		v.Add(f.Field, f.Message)
	}
	return v
}

// mapBackendError wraps Redis component failures in ErrBackendUnavailable.
func mapBackendError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		return err
	case errors.Is(err, stores.ErrMarkerRedisUnavailable),
		errors.Is(err, limiters.ErrLimiterRedisUnavailable),
		errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return err
	}
}
