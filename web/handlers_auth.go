package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/session"
)

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	v := view{Title: "Home"}
	if st := state(r); st.Authenticated() && !st.Account.IsVerified() {
		v.Banner = msgUnverifiedBanner
	}
	s.render(w, r, http.StatusOK, "home", v)
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) {
	if state(r).Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "register", view{Title: "Register"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if state(r).Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	acc, err := s.engine.Register(r.Context(), goAccount.RegistrationInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	})
	switch {
	case err == nil:
	case errors.Is(err, goAccount.ErrRateLimited):
		s.redirectWithFlash(w, r, "/", session.FlashError, msgRegisterRateLimited)
		return
	case s.renderInvalid(w, r, "register", "Register", err):
		return
	default:
		s.serverError(w, r, err)
		return
	}

	sid, ok := s.logIn(w, r, acc)
	if !ok {
		return
	}
	s.flash(r.Context(), sid, session.FlashSuccess, msgRegisterDone)
	s.sendVerificationFlash(r, sid, acc)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if state(r).FullyAuthenticated() {
		http.Redirect(w, r, middleware.SafeTarget(r.URL.Query().Get("target"), "/"), http.StatusFound)
		return
	}
	form := url.Values{"remember_me": {"on"}}
	s.render(w, r, http.StatusOK, "login", view{
		Title: "Log in",
		Form:  form,
		Extra: map[string]string{"target": r.URL.Query().Get("target")},
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	target := r.PostFormValue("target")

	acc, err := s.engine.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		msg := msgInvalidCredentials
		switch {
		case errors.Is(err, goAccount.ErrInvalidCredentials):
		case errors.Is(err, goAccount.ErrRateLimited):
			msg = msgLoginRateLimited
		default:
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, http.StatusUnauthorized, "login", view{
			Title:  "Log in",
			Form:   url.Values{"email": {r.PostFormValue("email")}, "remember_me": {r.PostFormValue("remember_me")}},
			Errors: map[string][]string{"email": {msg}},
			Extra:  map[string]string{"target": target},
		})
		return
	}

	if _, ok := s.logIn(w, r, acc); !ok {
		return
	}
	if r.PostFormValue("remember_me") != "" {
		token, expiresAt, err := s.engine.IssueRememberToken(acc)
		if err != nil {
			s.logger.WarnContext(r.Context(), "remember-me issue failed", slog.Any("error", err))
		} else {
			s.cookies.SetRemember(w, token, expiresAt)
		}
	}
	http.Redirect(w, r, middleware.SafeTarget(target, "/"), http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.EndSession(r.Context(), state(r).SessionID); err != nil {
		s.logger.WarnContext(r.Context(), "logout failed", slog.Any("error", err))
	}
	s.cookies.ClearRemember(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// sendVerificationFlash mails a verification link to acc and queues the
// matching flash on sid. Failures other than rate limiting are logged.
func (s *Server) sendVerificationFlash(r *http.Request, sid string, acc goAccount.Account) {
	err := s.engine.SendVerification(r.Context(), acc)
	switch {
	case err == nil:
		s.flash(r.Context(), sid, session.FlashNote, fmt.Sprintf(msgVerifyLinkSent, acc.Email))
	case errors.Is(err, goAccount.ErrAlreadyVerified):
	case errors.Is(err, goAccount.ErrRateLimited):
		s.flash(r.Context(), sid, session.FlashWarning, msgVerifyRecentlyRequested)
	default:
		s.logger.WarnContext(r.Context(), "verification mail failed", slog.String("account_id", acc.ID), slog.Any("error", err))
	}
}
