package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Account mirrors goAccount.Account field for field so the engine can
// convert between the two with a plain type conversion.
type Account struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	VerifiedEmail string
	LoggedInAt    time.Time
	CreatedAt     time.Time
}

// FieldError mirrors goAccount.FieldError.
type FieldError struct {
	Field   string
	Message string
}

// AccountAccess is the account persistence surface flows depend on.
type AccountAccess struct {
	GetByID    func(context.Context, string) (Account, error)
	GetByEmail func(context.Context, string) (Account, error)
	Create     func(context.Context, Account) error
	Update     func(ctx context.Context, id string, fn func(*Account) error) (Account, error)
	IsNotFound func(error) bool
	IsExists   func(error) bool
}

// errCredentialChanged aborts an update whose stored password hash no
// longer matches the one the caller verified.
var errCredentialChanged = errors.New("credential changed since it was verified")

// updateIfCredential applies change only while the stored hash still equals
// hash.
func updateIfCredential(ctx context.Context, a AccountAccess, id, hash string, change func(*Account)) (Account, error) {
	return a.Update(ctx, id, func(stored *Account) error {
		if stored.PasswordHash != hash {
			return errCredentialChanged
		}
		change(stored)
		return nil
	})
}

func (a AccountAccess) ready() bool {
	return a.GetByID != nil && a.GetByEmail != nil && a.Update != nil
}

// AuditFunc records one audit event. metadata is only called when the
// event is actually emitted.
type AuditFunc func(ctx context.Context, event string, success bool, accountID, sessionID string, err error, metadata func() map[string]string)

func normalizeAccountAccess(a *AccountAccess) {
	if a.IsNotFound == nil {
		a.IsNotFound = func(error) bool { return false }
	}
	if a.IsExists == nil {
		a.IsExists = func(error) bool { return false }
	}
}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func identity(err error) error { return err }
