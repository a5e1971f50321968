package goAccount

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccount/mail"
)

// AccountStore persists accounts. Email lookups are case-insensitive.
//
// Implementations return ErrNotFound for unknown accounts and
// ErrAccountExists when Create or Update would duplicate a normalized email.
//
// Update is the serialization point for account changes. It loads the
// current stored account, applies fn and writes the result atomically with
// respect to other updates of the same id. An error returned by fn aborts
// the write and is returned unchanged. Changes made from a stale snapshot
// therefore cannot revert fields written by a concurrent update.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, id string, fn func(*Account) error) (Account, error)
}

// Mailer delivers outbound messages synchronously.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// RateLimiter consumes one token for key and reports whether the request
// was accepted.
type RateLimiter interface {
	Consume(ctx context.Context, key string) (bool, error)
}

// PasswordPolicy returns the violation messages for a candidate password.
type PasswordPolicy interface {
	Validate(ctx context.Context, plaintext string) []string
}

// PasswordHasher produces and checks password hashes. Hash must use a
// fresh salt on every call.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// Clock is the engine's time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SessionState is the resolved view of a browser session.
type SessionState struct {
	SessionID string
	// Account is nil for anonymous sessions.
	Account *Account
	// Remembered is set when the session was restored from a remember-me
	// token rather than an interactive login.
	Remembered bool
}

// Authenticated reports whether an account is attached.
func (s *SessionState) Authenticated() bool {
	return s != nil && s.Account != nil
}

// FullyAuthenticated reports whether the account logged in interactively
// in this session.
func (s *SessionState) FullyAuthenticated() bool {
	return s.Authenticated() && !s.Remembered
}

// RegistrationInput is the data submitted to Register.
type RegistrationInput struct {
	Name     string
	Email    string
	Password string
}
