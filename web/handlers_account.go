package web

import (
	"errors"
	"net/http"
	"net/url"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/session"
)

func (s *Server) changePasswordForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "change_password", view{Title: "Change password"})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	st := state(r)

	acc, err := s.engine.ChangePassword(r.Context(), st.SessionID, *st.Account,
		r.PostFormValue("current_password"), r.PostFormValue("password"), r.PostFormValue("repeat_password"))
	if err != nil {
		if !s.renderInvalid(w, r, "change_password", "Change password", err) {
			s.accountError(w, r, err)
		}
		return
	}

	s.refreshRemember(w, r, acc)
	s.redirectWithFlash(w, r, "/", session.FlashSuccess, msgChangePasswordDone)
}

func (s *Server) changeEmailForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "change_email", view{Title: "Change email", Form: url.Values{"email": {state(r).Account.Email}}})
}

func (s *Server) changeEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	st := state(r)

	acc, err := s.engine.ChangeEmail(r.Context(), st.SessionID, *st.Account, r.PostFormValue("email"))
	if err != nil {
		if !s.renderInvalid(w, r, "change_email", "Change email", err) {
			s.accountError(w, r, err)
		}
		return
	}

	s.flash(r.Context(), st.SessionID, session.FlashSuccess, msgChangeEmailDone)
	s.sendVerificationFlash(r, st.SessionID, acc)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) logoutOtherForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "logout_other", view{Title: "Log out other devices"})
}

func (s *Server) logoutOther(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	st := state(r)

	acc, err := s.engine.LogoutOtherDevices(r.Context(), st.SessionID, *st.Account, r.PostFormValue("password"))
	if err != nil {
		if !s.renderInvalid(w, r, "logout_other", "Log out other devices", err) {
			s.accountError(w, r, err)
		}
		return
	}

	s.refreshRemember(w, r, acc)
	s.redirectWithFlash(w, r, "/", session.FlashSuccess, msgLogoutOtherDone)
}

func (s *Server) profileForm(w http.ResponseWriter, r *http.Request) {
	st := state(r)
	sessions, err := s.engine.ListActiveSessions(r.Context(), *st.Account, st.SessionID)
	if err != nil {
		s.accountError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "profile", view{
		Title:    "Profile",
		Form:     url.Values{"name": {st.Account.Name}},
		Sessions: sessions,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	_, err := s.engine.UpdateProfile(r.Context(), *state(r).Account, r.PostFormValue("name"))
	if err != nil {
		if !s.renderInvalid(w, r, "profile", "Profile", err) {
			s.accountError(w, r, err)
		}
		return
	}
	s.redirectWithFlash(w, r, "/profile", session.FlashSuccess, msgProfileDone)
}

func (s *Server) accountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goAccount.ErrFullAuthRequired), errors.Is(err, goAccount.ErrUnauthorized):
		http.Redirect(w, r, middleware.LoginURL("/login", r.URL.Path), http.StatusFound)
	case errors.Is(err, goAccount.ErrNotFound):
		http.NotFound(w, r)
	default:
		s.serverError(w, r, err)
	}
}
