package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/session"
)

func (s *Server) forgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password", view{Title: "Forgot password"})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	err := s.engine.RequestPasswordReset(r.Context(), email)
	switch {
	case err == nil:
		s.redirectWithFlash(w, r, "/", session.FlashNote, fmt.Sprintf(msgResetLinkSent, email))
	case errors.Is(err, goAccount.ErrRateLimited):
		s.redirectWithFlash(w, r, "/forgot-password", session.FlashWarning, msgResetRecentlyRequested)
	case s.renderInvalid(w, r, "forgot_password", "Forgot password", err):
	default:
		s.serverError(w, r, err)
	}
}

// acceptResetLink binds a clicked reset link to the browser session and
// redirects to a URL without the signature.
func (s *Server) acceptResetLink(w http.ResponseWriter, r *http.Request) {
	fp, err := s.engine.AcceptPasswordResetLink(r.Context(), state(r).SessionID, r.PathValue("id"), r.URL.RequestURI())
	switch {
	case err == nil:
		http.Redirect(w, r, "/reset-password?"+url.Values{"valid": {fp}}.Encode(), http.StatusFound)
	case errors.Is(err, goAccount.ErrLinkInvalid):
		s.redirectWithFlash(w, r, "/forgot-password", session.FlashError, msgResetLinkInvalid)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) resetPasswordForm(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("valid")
	if _, err := s.engine.CheckPasswordReset(r.Context(), state(r).SessionID, fp); err != nil {
		s.resetError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "reset_password", view{Title: "Reset password", Extra: map[string]string{"valid": fp}})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	acc, err := s.engine.CompletePasswordReset(r.Context(), state(r).SessionID,
		r.PostFormValue("valid"), r.PostFormValue("password"), r.PostFormValue("repeat_password"))
	if err != nil {
		if s.renderInvalid(w, r, "reset_password", "Reset password", err) {
			return
		}
		s.resetError(w, r, err)
		return
	}

	sid, ok := s.logIn(w, r, acc)
	if !ok {
		return
	}
	s.cookies.ClearRemember(w)
	s.flash(r.Context(), sid, session.FlashSuccess, msgResetDone)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) resetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goAccount.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, goAccount.ErrLinkAlreadyUsed):
		s.redirectWithFlash(w, r, "/forgot-password", session.FlashError, msgResetLinkUsed)
	default:
		s.serverError(w, r, err)
	}
}
