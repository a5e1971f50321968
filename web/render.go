package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

type pages struct {
	byName map[string]*template.Template
}

func loadPages() (*pages, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	p := &pages{byName: make(map[string]*template.Template)}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New("layout.html").ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, err
		}
		p.byName[name] = t
	}
	return p, nil
}

// view is the data every page template receives.
type view struct {
	Title   string
	Account *goAccount.Account
	Flashes []session.Flash
	Banner  string
	Form    url.Values
	Errors  map[string][]string
	Extra   map[string]string
	// Sessions lists the account's signed-in devices on the profile page.
	Sessions []goAccount.SessionInfo
}

// FieldErrors returns the messages for field.
func (v view) FieldErrors(field string) []string {
	return v.Errors[field]
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	t, ok := s.pages.byName[name]
	if !ok {
		s.serverError(w, r, errors.New("unknown page "+name))
		return
	}

	st := state(r)
	v.Account = st.Account
	if v.Form == nil {
		v.Form = url.Values{}
	}
	if st.SessionID != "" {
		flashes, err := s.engine.PopFlashes(r.Context(), st.SessionID)
		if err != nil {
			s.logger.WarnContext(r.Context(), "flash pop failed", slog.Any("error", err))
		}
		v.Flashes = flashes
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", v); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderInvalid re-renders a form with the field messages carried by err.
// It reports false when err is not a validation failure.
func (s *Server) renderInvalid(w http.ResponseWriter, r *http.Request, name, title string, err error) bool {
	var ve *goAccount.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	errs := make(map[string][]string)
	for _, fe := range ve.Errors {
		errs[fe.Field] = append(errs[fe.Field], fe.Message)
	}
	form := url.Values{}
	for k, vals := range r.PostForm {
		if strings.Contains(k, "password") {
			continue
		}
		form[k] = vals
	}
	s.render(w, r, http.StatusUnprocessableEntity, name, view{Title: title, Form: form, Errors: errs, Extra: map[string]string{"valid": r.PostFormValue("valid")}})
	return true
}
