package middleware

import (
	"net/http"
	"net/url"
)

// RequireAuth redirects to loginPath unless the request carries an
// authenticated session. The original path is passed as ?target=.
func RequireAuth(loginPath string) func(http.Handler) http.Handler {
	return guard(loginPath, func(r *http.Request) bool {
		st, ok := StateFromContext(r.Context())
		return ok && st.Authenticated()
	})
}

// RequireFullAuth redirects to loginPath unless the account logged in
// interactively in this session. Remembered sessions must re-enter their
// password.
func RequireFullAuth(loginPath string) func(http.Handler) http.Handler {
	return guard(loginPath, func(r *http.Request) bool {
		st, ok := StateFromContext(r.Context())
		return ok && st.FullyAuthenticated()
	})
}

func guard(loginPath string, allowed func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(r) {
				http.Redirect(w, r, LoginURL(loginPath, r.URL.RequestURI()), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL returns loginPath with target attached.
func LoginURL(loginPath, target string) string {
	if target == "" || target == "/" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"target": {target}}.Encode()
}

// SafeTarget returns target when it is a local absolute path, and
// fallback otherwise.
func SafeTarget(target, fallback string) string {
	if target == "" || target[0] != '/' || len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}
