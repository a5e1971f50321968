package web

import (
	"errors"
	"net/http"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/session"
)

func (s *Server) sendVerification(w http.ResponseWriter, r *http.Request) {
	st := state(r)
	s.sendVerificationFlash(r, st.SessionID, *st.Account)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) acceptVerificationLink(w http.ResponseWriter, r *http.Request) {
	err := s.engine.AcceptVerificationLink(r.Context(), state(r).SessionID, r.PathValue("id"), r.URL.RequestURI())
	switch {
	case err == nil:
		http.Redirect(w, r, "/verify-email", http.StatusFound)
	case errors.Is(err, goAccount.ErrLinkInvalid):
		s.redirectWithFlash(w, r, "/", session.FlashError, msgVerifyLinkInvalid)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) completeVerification(w http.ResponseWriter, r *http.Request) {
	acc, err := s.engine.CompleteVerification(r.Context(), state(r).SessionID)
	switch {
	case err == nil:
	case errors.Is(err, goAccount.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, goAccount.ErrLinkAlreadyUsed):
		s.redirectWithFlash(w, r, "/", session.FlashWarning, msgVerifyLinkUsed)
		return
	default:
		s.serverError(w, r, err)
		return
	}

	sid := state(r).SessionID
	if st := state(r); !st.Authenticated() || st.Account.ID != acc.ID {
		var ok bool
		if sid, ok = s.logIn(w, r, acc); !ok {
			return
		}
	}
	s.flash(r.Context(), sid, session.FlashSuccess, msgVerifyDone)
	http.Redirect(w, r, "/", http.StatusFound)
}
