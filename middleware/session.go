package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

// SessionEngine is the Engine surface LoadSession depends on.
type SessionEngine interface {
	StartSession(ctx context.Context) (string, error)
	ResolveSession(ctx context.Context, sessionID string) (*goAccount.SessionState, error)
	AuthenticateSession(ctx context.Context, sessionID string, acc goAccount.Account, remembered bool) (string, error)
	ResumeRemembered(ctx context.Context, token string) (goAccount.Account, error)
}

// Options configures LoadSession.
type Options struct {
	Cookies Cookies
	// TrustForwardedFor takes the client IP from the first X-Forwarded-For
	// entry. Enable only behind a proxy that sets it.
	TrustForwardedFor bool
	Logger            *slog.Logger
}

type stateContextKey struct{}

// StateFromContext returns the session attached by LoadSession.
func StateFromContext(ctx context.Context) (*goAccount.SessionState, bool) {
	st, ok := ctx.Value(stateContextKey{}).(*goAccount.SessionState)
	return st, ok && st != nil
}

// WithState attaches st to ctx. Handlers that rotate the session id use it
// to pass the new state downstream.
func WithState(ctx context.Context, st *goAccount.SessionState) context.Context {
	return context.WithValue(ctx, stateContextKey{}, st)
}

// LoadSession resolves the session cookie on every request. Missing or
// unknown sessions are replaced by a fresh anonymous one. Anonymous
// sessions carrying a remember-me cookie are upgraded when the token still
// matches the account's credential epoch, and the cookie is cleared when it
// does not.
func LoadSession(engine SessionEngine, opts Options) func(http.Handler) http.Handler {
	cookies := opts.Cookies.normalized()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := goAccount.WithClientIP(r.Context(), clientIP(r, opts.TrustForwardedFor))

			state, err := resolveOrStart(ctx, engine, cookieValue(r, cookies.SessionName))
			if err != nil {
				logger.ErrorContext(ctx, "session load failed", slog.Any("error", err))
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			if !state.Authenticated() {
				if token := cookieValue(r, cookies.RememberName); token != "" {
					state = resumeRemembered(ctx, engine, state, token, w, cookies, logger)
				}
			}

			if cookieValue(r, cookies.SessionName) != state.SessionID {
				cookies.SetSession(w, state.SessionID)
			}

			next.ServeHTTP(w, r.WithContext(WithState(ctx, state)))
		})
	}
}

func resolveOrStart(ctx context.Context, engine SessionEngine, sid string) (*goAccount.SessionState, error) {
	if sid != "" {
		state, err := engine.ResolveSession(ctx, sid)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, goAccount.ErrSessionNotFound) {
			return nil, err
		}
	}

	sid, err := engine.StartSession(ctx)
	if err != nil {
		return nil, err
	}
	return &goAccount.SessionState{SessionID: sid}, nil
}

func resumeRemembered(
	ctx context.Context,
	engine SessionEngine,
	state *goAccount.SessionState,
	token string,
	w http.ResponseWriter,
	cookies Cookies,
	logger *slog.Logger,
) *goAccount.SessionState {
	acc, err := engine.ResumeRemembered(ctx, token)
	if err != nil {
		if !errors.Is(err, goAccount.ErrUnauthorized) {
			logger.WarnContext(ctx, "remember-me resume failed", slog.Any("error", err))
			return state
		}
		cookies.ClearRemember(w)
		return state
	}

	sid, err := engine.AuthenticateSession(ctx, state.SessionID, acc, true)
	if err != nil {
		logger.WarnContext(ctx, "remember-me session rotation failed", slog.Any("error", err))
		return state
	}
	return &goAccount.SessionState{SessionID: sid, Account: &acc, Remembered: true}
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
