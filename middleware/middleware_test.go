package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/mail"
	"github.com/MrEthical07/goAccount/store/memory"
)

const testPassword = "Tr0ub4dor&3-Zebra!Quill"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestEngine(t *testing.T) (*goAccount.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goAccount.DefaultConfig()
	cfg.Links.BaseURL = "https://accounts.example.test"
	cfg.Links.Secret = []byte("link-signing-secret-0123456789")
	cfg.RememberMe.SigningKey = []byte("remember-me-signing-key-0123456789abcdef")
	cfg.Session.JitterEnabled = false
	cfg.Session.JitterRange = 0
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goAccount.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(memory.New()).
		WithMailer(mail.NewRecorder()).
		WithLogger(discard).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func register(t *testing.T, engine *goAccount.Engine) goAccount.Account {
	t.Helper()
	acc, err := engine.Register(context.Background(), goAccount.RegistrationInput{
		Name:     "Karen Smith",
		Email:    "karen@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return acc
}

func captureState(got **goAccount.SessionState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, _ := StateFromContext(r.Context())
		*got = st
		w.WriteHeader(http.StatusNoContent)
	})
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoadSessionStartsAnonymousSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	var st *goAccount.SessionState
	h := LoadSession(engine, Options{Logger: discard})(captureState(&st))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	sid := responseCookie(rec, "SID")
	if sid == nil || sid.Value == "" || !sid.HttpOnly {
		t.Fatalf("expected session cookie, got %+v", sid)
	}
	if st == nil || st.Authenticated() || st.SessionID != sid.Value {
		t.Fatalf("unexpected state %+v", st)
	}

	// Same cookie again: resolved, not re-issued.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "SID", Value: sid.Value})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if c := responseCookie(rec, "SID"); c != nil {
		t.Fatalf("did not expect a new session cookie, got %+v", c)
	}
	if st.SessionID != sid.Value {
		t.Fatalf("expected session %q, got %q", sid.Value, st.SessionID)
	}
}

func TestLoadSessionReplacesUnknownCookie(t *testing.T) {
	engine, _ := newTestEngine(t)
	var st *goAccount.SessionState
	h := LoadSession(engine, Options{Logger: discard})(captureState(&st))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "SID", Value: "not-a-session"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	c := responseCookie(rec, "SID")
	if c == nil || c.Value == "not-a-session" || st.SessionID != c.Value {
		t.Fatalf("expected fresh session, cookie=%+v state=%+v", c, st)
	}
}

func TestLoadSessionResumesRememberMe(t *testing.T) {
	engine, _ := newTestEngine(t)
	acc := register(t, engine)
	token, _, err := engine.IssueRememberToken(acc)
	if err != nil {
		t.Fatalf("IssueRememberToken: %v", err)
	}

	var st *goAccount.SessionState
	h := LoadSession(engine, Options{Logger: discard})(captureState(&st))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: "REMEMBERME", Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !st.Authenticated() || st.Account.ID != acc.ID {
		t.Fatalf("expected remembered login, got %+v", st)
	}
	if st.FullyAuthenticated() {
		t.Fatal("remembered session must not count as fully authenticated")
	}
	if c := responseCookie(rec, "SID"); c == nil || c.Value != st.SessionID {
		t.Fatalf("expected rotated session cookie, got %+v", c)
	}
}

func TestLoadSessionClearsStaleRememberMe(t *testing.T) {
	engine, _ := newTestEngine(t)
	acc := register(t, engine)
	token, _, err := engine.IssueRememberToken(acc)
	if err != nil {
		t.Fatalf("IssueRememberToken: %v", err)
	}

	sid, err := engine.AuthenticateSession(context.Background(), "", acc, false)
	if err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}
	if _, err := engine.LogoutOtherDevices(context.Background(), sid, acc, testPassword); err != nil {
		t.Fatalf("LogoutOtherDevices: %v", err)
	}

	var st *goAccount.SessionState
	h := LoadSession(engine, Options{Logger: discard})(captureState(&st))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "REMEMBERME", Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if st.Authenticated() {
		t.Fatal("token issued before the epoch advanced must not log in")
	}
	if c := responseCookie(rec, "REMEMBERME"); c == nil || c.MaxAge >= 0 {
		t.Fatalf("expected remember-me cookie to be cleared, got %+v", c)
	}
}

func TestLoadSessionBackendDown(t *testing.T) {
	engine, mr := newTestEngine(t)
	mr.Close()

	called := false
	h := LoadSession(engine, Options{Logger: discard})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusServiceUnavailable || called {
		t.Fatalf("expected 503 without calling next, got %d called=%v", rec.Code, called)
	}
}

func TestGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	acc := goAccount.Account{ID: "a1"}

	tests := []struct {
		name     string
		state    *goAccount.SessionState
		guard    func(string) func(http.Handler) http.Handler
		wantCode int
	}{
		{"auth anonymous", &goAccount.SessionState{SessionID: "s"}, RequireAuth, http.StatusFound},
		{"auth remembered", &goAccount.SessionState{SessionID: "s", Account: &acc, Remembered: true}, RequireAuth, http.StatusOK},
		{"full remembered", &goAccount.SessionState{SessionID: "s", Account: &acc, Remembered: true}, RequireFullAuth, http.StatusFound},
		{"full interactive", &goAccount.SessionState{SessionID: "s", Account: &acc}, RequireFullAuth, http.StatusOK},
		{"no state", nil, RequireAuth, http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/change-email?x=1", nil)
			if tt.state != nil {
				req = req.WithContext(WithState(req.Context(), tt.state))
			}
			rec := httptest.NewRecorder()
			tt.guard("/login")(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if rec.Code == http.StatusFound {
				if loc := rec.Header().Get("Location"); loc != "/login?target=%2Fchange-email%3Fx%3D1" {
					t.Fatalf("unexpected redirect %q", loc)
				}
			}
		})
	}
}

func TestSafeTarget(t *testing.T) {
	tests := map[string]string{
		"/profile":             "/profile",
		"/a?b=c":               "/a?b=c",
		"":                     "/",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"https://evil.example": "/",
		"profile":              "/",
	}
	for in, want := range tests {
		if got := SafeTarget(in, "/"); got != want {
			t.Fatalf("SafeTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req, false); got != "10.0.0.1" {
		t.Fatalf("expected remote addr, got %q", got)
	}
	if got := clientIP(req, true); got != "203.0.113.7" {
		t.Fatalf("expected forwarded addr, got %q", got)
	}
}
