package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/session"
)

type SessionStore interface {
	Get(ctx context.Context, sessionID string, ttl time.Duration) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
}

type SessionMetrics struct {
	Resolved    int
	Invalidated int
	Resumed     int
	ResumeFail  int
}

type SessionEvents struct {
	Invalidated string
	Resumed     string
}

type SessionErrors struct {
	EngineNotReady  error
	SessionNotFound error
	Unauthorized    error
}

// SessionDeps captures session resolution dependencies.
type SessionDeps struct {
	TTL time.Duration
	Now func() time.Time

	Sessions          SessionStore
	IsSessionNotFound func(error) bool
	MapSessionError   func(error) error

	Accounts AccountAccess

	Epoch      func(Account) [32]byte
	EpochEqual func(a, b [32]byte) bool

	// ParseRemember returns the account id and credential epoch carried by
	// a remember-me token.
	ParseRemember func(string) (string, [32]byte, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics SessionMetrics
	Events  SessionEvents
	Errors  SessionErrors
}

// ResolvedSession is a loaded session and, when it still authenticates,
// its account.
type ResolvedSession struct {
	Session *session.Session
	Account *Account
}

// RunResolveSession loads sessionID and checks an attached account against
// its current credential epoch. A session whose account is gone or whose
// epoch no longer matches is demoted to anonymous in place.
func RunResolveSession(ctx context.Context, sessionID string, deps SessionDeps) (ResolvedSession, error) {
	normalizeSessionDeps(&deps)

	if deps.Sessions == nil || deps.Epoch == nil || deps.Accounts.GetByID == nil {
		return ResolvedSession{}, deps.Errors.EngineNotReady
	}

	sess, err := deps.Sessions.Get(ctx, sessionID, deps.TTL)
	if err != nil {
		if deps.IsSessionNotFound(err) {
			return ResolvedSession{}, deps.Errors.SessionNotFound
		}
		return ResolvedSession{}, deps.MapSessionError(err)
	}
	deps.MetricInc(deps.Metrics.Resolved)

	if sess.Anonymous() {
		return ResolvedSession{Session: sess}, nil
	}

	account, err := deps.Accounts.GetByID(ctx, sess.AccountID)
	if err != nil && !deps.Accounts.IsNotFound(err) {
		return ResolvedSession{}, err
	}
	if err == nil && deps.EpochEqual(sess.Epoch, deps.Epoch(account)) {
		return ResolvedSession{Session: sess, Account: &account}, nil
	}

	reason := "epoch_mismatch"
	if err != nil {
		reason = "account_missing"
	}
	accountID := sess.AccountID

	if err := demote(ctx, deps, sess); err != nil {
		return ResolvedSession{}, err
	}

	deps.MetricInc(deps.Metrics.Invalidated)
	deps.EmitAudit(ctx, deps.Events.Invalidated, false, accountID, sessionID, deps.Errors.Unauthorized, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ResolvedSession{Session: sess}, nil
}

// RunResumeRemembered authenticates a remember-me token against the
// account's current credential epoch.
func RunResumeRemembered(ctx context.Context, token string, deps SessionDeps) (Account, error) {
	normalizeSessionDeps(&deps)

	if deps.ParseRemember == nil || deps.Epoch == nil || deps.Accounts.GetByID == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	fail := func(reason string) (Account, error) {
		deps.MetricInc(deps.Metrics.ResumeFail)
		deps.EmitAudit(ctx, deps.Events.Resumed, false, "", "", deps.Errors.Unauthorized, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return Account{}, deps.Errors.Unauthorized
	}

	accountID, epoch, err := deps.ParseRemember(token)
	if err != nil {
		return fail("invalid_token")
	}

	account, err := deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if deps.Accounts.IsNotFound(err) {
			return fail("account_missing")
		}
		return Account{}, err
	}
	if !deps.EpochEqual(epoch, deps.Epoch(account)) {
		return fail("epoch_mismatch")
	}

	deps.MetricInc(deps.Metrics.Resumed)
	deps.EmitAudit(ctx, deps.Events.Resumed, true, account.ID, "", nil, nil)
	return account, nil
}

func demote(ctx context.Context, deps SessionDeps, sess *session.Session) error {
	sess.AccountID = ""
	sess.Epoch = [32]byte{}
	sess.Remembered = false

	ttl := time.Unix(sess.ExpiresAt, 0).Sub(deps.Now())
	if ttl <= 0 {
		return nil
	}
	if err := deps.Sessions.Save(ctx, sess, ttl); err != nil {
		return deps.MapSessionError(err)
	}
	return nil
}

func normalizeSessionDeps(deps *SessionDeps) {
	normalizeAccountAccess(&deps.Accounts)

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsSessionNotFound == nil {
		deps.IsSessionNotFound = func(error) bool { return false }
	}
	if deps.MapSessionError == nil {
		deps.MapSessionError = identity
	}
	if deps.EpochEqual == nil {
		deps.EpochEqual = func(a, b [32]byte) bool { return a == b }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Logger = defaultLogger(deps.Logger)
}
