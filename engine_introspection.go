package goAccount

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MrEthical07/goAccount/session"
)

// SessionInfo is the safe view of one signed-in browser session. It never
// carries the credential epoch.
type SessionInfo struct {
	SessionID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Remembered bool
	Current    bool
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	// StoreAvailable is true when the account store has no Ping method.
	StoreAvailable bool
}

// Healthy reports whether every backend answered.
func (h HealthStatus) Healthy() bool {
	return h.RedisAvailable && h.StoreAvailable
}

type storePinger interface {
	Ping(ctx context.Context) error
}

// ListActiveSessions returns the live sessions still authenticated as acc,
// oldest first. Sessions left over from an earlier credential epoch are
// omitted. Reading does not renew any session.
func (e *Engine) ListActiveSessions(ctx context.Context, acc Account, currentSessionID string) ([]SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if acc.ID == "" {
		return nil, ErrNotFound
	}

	ids, err := e.sessionStore.SessionIDs(ctx, acc.ID)
	if err != nil {
		return nil, mapSessionError(err)
	}

	epoch := CredentialEpoch(acc)
	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, err := e.sessionStore.Peek(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrCorruptSession) {
				continue
			}
			return nil, mapSessionError(err)
		}
		if sess.AccountID != acc.ID || !EpochEqual(sess.Epoch, epoch) {
			continue
		}
		out = append(out, SessionInfo{
			SessionID:  id,
			CreatedAt:  time.Unix(sess.CreatedAt, 0),
			ExpiresAt:  time.Unix(sess.ExpiresAt, 0),
			Remembered: sess.Remembered,
			Current:    id == currentSessionID,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ActiveSessionCount returns len(ListActiveSessions).
func (e *Engine) ActiveSessionCount(ctx context.Context, acc Account) (int, error) {
	sessions, err := e.ListActiveSessions(ctx, acc, "")
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Health pings Redis and, when it supports it, the account store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessionStore == nil {
		return HealthStatus{}
	}

	var status HealthStatus
	if latency, err := e.sessionStore.Ping(ctx); err == nil {
		status.RedisAvailable = true
		status.RedisLatency = latency
	}

	status.StoreAvailable = true
	if p, ok := e.accounts.(storePinger); ok {
		status.StoreAvailable = p.Ping(ctx) == nil
	}
	return status
}
