package goAccount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/mail"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testPassword    = "Tr0ub4dor&3-Zebra!Quill"
	testNewPassword = "N3w-Pa55word!Kettle#"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account

	getByIDCalls    int
	getByEmailCalls int

	// afterGetByEmail runs once GetByEmail has returned its snapshot, to
	// interleave a concurrent change.
	afterGetByEmail func()
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: map[string]Account{}}
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (Account, error) {
	acc, err := m.lookupEmail(email)
	if m.afterGetByEmail != nil {
		m.afterGetByEmail()
	}
	return acc, err
}

func (m *mockAccountStore) lookupEmail(email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++
	for _, acc := range m.accounts {
		if NormalizeEmail(acc.Email) == NormalizeEmail(email) {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *mockAccountStore) Create(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if NormalizeEmail(acc.Email) == NormalizeEmail(account.Email) {
			return ErrAccountExists
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockAccountStore) Update(_ context.Context, id string, fn func(*Account) error) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if err := fn(&account); err != nil {
		return Account{}, err
	}
	for other, acc := range m.accounts {
		if other != id && NormalizeEmail(acc.Email) == NormalizeEmail(account.Email) {
			return Account{}, ErrAccountExists
		}
	}
	m.accounts[id] = account
	return account, nil
}

func (m *mockAccountStore) get(t *testing.T, id string) Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		t.Fatalf("account %s not stored", id)
	}
	return acc
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, mail.Message) error {
	return errors.New("smtp down")
}

type testEnv struct {
	engine *Engine
	store  *mockAccountStore
	mail   *mail.Recorder
	clock  *testClock
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Links.BaseURL = "https://accounts.example.test"
	cfg.Links.Secret = []byte("link-signing-secret-0123456789")
	cfg.RememberMe.SigningKey = []byte("remember-me-signing-key-0123456789abcdef")
	cfg.Session.JitterEnabled = false
	cfg.Session.JitterRange = 0
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEnv(t testing.TB, configure ...func(*Builder)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		store: newMockAccountStore(),
		mail:  mail.NewRecorder(),
		clock: newTestClock(),
		mr:    mr,
		rdb:   rdb,
	}

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountStore(env.store).
		WithMailer(env.mail).
		WithClock(env.clock).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// seedAccount stores an account with testPassword, verified when verified
// is true.
func (env *testEnv) seedAccount(t testing.TB, id, email string, verified bool) Account {
	t.Helper()

	acc := Account{ID: id, Email: email, Name: "Alice Example", CreatedAt: env.clock.Now()}
	if err := SetPassword(&acc, env.engine.hasher, testPassword); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if verified {
		acc.MarkVerified()
	}
	if err := env.store.Create(context.Background(), acc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return acc
}

// login authenticates acc on a fresh session and returns the session id.
func (env *testEnv) login(t testing.TB, acc Account, remembered bool) string {
	t.Helper()

	sid, err := env.engine.AuthenticateSession(context.Background(), "", acc, remembered)
	if err != nil {
		t.Fatalf("AuthenticateSession failed: %v", err)
	}
	return sid
}

func (env *testEnv) anonymous(t testing.TB) string {
	t.Helper()

	sid, err := env.engine.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return sid
}

// lastLink returns the link of the newest mail carrying tag.
func (env *testEnv) lastLink(t *testing.T, tag string) string {
	t.Helper()

	msg, ok := env.mail.Last(tag)
	if !ok {
		t.Fatalf("no %s mail sent", tag)
	}
	return msg.Link()
}

// linkAccountID extracts the trailing path segment of a signed link.
func linkAccountID(t *testing.T, rawURL string) string {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	id, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		t.Fatalf("unescape id: %v", err)
	}
	return id
}
