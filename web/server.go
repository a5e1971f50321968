// Package web serves the account flows over HTTP: registration, login,
// password reset, email verification, and the credential pages of a
// signed-in account.
//
// Pages are rendered from embedded html/template files. Every route runs
// behind middleware.LoadSession, so handlers always see a session.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
)

// Options configures a Server.
type Options struct {
	Cookies           middleware.Cookies
	TrustForwardedFor bool
	Logger            *slog.Logger
	// Now drives cookie expiry. Defaults to time.Now.
	Now func() time.Time
}

// Server is the HTTP surface of an Engine.
type Server struct {
	engine  *goAccount.Engine
	cookies middleware.Cookies
	pages   *pages
	logger  *slog.Logger
	opts    Options
}

// New returns a Server for engine.
func New(engine *goAccount.Engine, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cookies := opts.Cookies
	if cookies.SessionName == "" && cookies.RememberName == "" && cookies.Path == "" {
		secure := cookies.Secure
		cookies = middleware.DefaultCookies()
		cookies.Secure = secure
	}
	cookies.Now = opts.Now

	p, err := loadPages()
	if err != nil {
		return nil, err
	}

	return &Server{
		engine:  engine,
		cookies: cookies,
		pages:   p,
		logger:  opts.Logger,
		opts:    opts,
	}, nil
}

// Handler returns the routed handler wrapped in session loading.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth("/login")
	full := middleware.RequireFullAuth("/login")

	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /register", s.registerForm)
	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("GET /login", s.loginForm)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /logout", s.logout)

	mux.HandleFunc("GET /forgot-password", s.forgotPasswordForm)
	mux.HandleFunc("POST /forgot-password", s.forgotPassword)
	mux.HandleFunc("GET /reset-password/{id}", s.acceptResetLink)
	mux.HandleFunc("GET /reset-password", s.resetPasswordForm)
	mux.HandleFunc("POST /reset-password", s.resetPassword)

	mux.Handle("POST /send-verification", auth(http.HandlerFunc(s.sendVerification)))
	mux.HandleFunc("GET /verify-email/{id}", s.acceptVerificationLink)
	mux.HandleFunc("GET /verify-email", s.completeVerification)

	mux.Handle("GET /change-password", auth(http.HandlerFunc(s.changePasswordForm)))
	mux.Handle("POST /change-password", auth(http.HandlerFunc(s.changePassword)))
	mux.Handle("GET /change-email", full(http.HandlerFunc(s.changeEmailForm)))
	mux.Handle("POST /change-email", full(http.HandlerFunc(s.changeEmail)))
	mux.Handle("GET /logout-other", auth(http.HandlerFunc(s.logoutOtherForm)))
	mux.Handle("POST /logout-other", auth(http.HandlerFunc(s.logoutOther)))
	mux.Handle("GET /profile", auth(http.HandlerFunc(s.profileForm)))
	mux.Handle("POST /profile", auth(http.HandlerFunc(s.profile)))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.healthz)
	root.Handle("/", middleware.LoadSession(s.engine, middleware.Options{
		Cookies:           s.cookies,
		TrustForwardedFor: s.opts.TrustForwardedFor,
		Logger:            s.logger,
	})(mux))
	return middleware.Trace(root)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Health(r.Context()).Healthy() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// state returns the session attached by LoadSession. Routes are only
// reachable through it, so a missing state is a wiring bug.
func state(r *http.Request) *goAccount.SessionState {
	st, ok := middleware.StateFromContext(r.Context())
	if !ok {
		return &goAccount.SessionState{}
	}
	return st
}

func (s *Server) flash(ctx context.Context, sessionID, flashType, message string) {
	if err := s.engine.PushFlash(ctx, sessionID, flashType, message); err != nil {
		s.logger.WarnContext(ctx, "flash push failed", slog.Any("error", err))
	}
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, flashType, message string) {
	s.flash(r.Context(), state(r).SessionID, flashType, message)
	http.Redirect(w, r, to, http.StatusFound)
}

// logIn rotates the caller's session onto acc and sets the new cookie. It
// returns the new session id.
func (s *Server) logIn(w http.ResponseWriter, r *http.Request, acc goAccount.Account) (string, bool) {
	sid, err := s.engine.AuthenticateSession(r.Context(), state(r).SessionID, acc, false)
	if err != nil {
		s.serverError(w, r, err)
		return "", false
	}
	s.cookies.SetSession(w, sid)
	return sid, true
}

// refreshRemember replaces a remember-me cookie the caller holds after the
// account's credential epoch moved.
func (s *Server) refreshRemember(w http.ResponseWriter, r *http.Request, acc goAccount.Account) {
	if _, err := r.Cookie(s.cookies.RememberName); err != nil {
		return
	}
	token, expiresAt, err := s.engine.IssueRememberToken(acc)
	if err != nil {
		s.cookies.ClearRemember(w)
		return
	}
	s.cookies.SetRemember(w, token, expiresAt)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, msgServiceUnavailable, http.StatusServiceUnavailable)
}
