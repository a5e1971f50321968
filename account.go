package goAccount

import (
	"strings"
	"time"
)

const (
	// RoleUser is granted to every account.
	RoleUser = "ROLE_USER"
	// RoleVerified is granted while the account's email is verified.
	RoleVerified = "ROLE_VERIFIED"
)

// Account is the protected entity. It is an owned value: mutating methods
// change only the receiver and callers persist it through AccountStore.Update.
//
// Verification is not a stored flag. An account is verified while Email and
// VerifiedEmail match case-insensitively, so changing the email away from
// the verified address unverifies it and changing it back restores it.
type Account struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	VerifiedEmail string
	LoggedInAt    time.Time
	CreatedAt     time.Time
}

// NormalizeEmail returns the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsVerified reports whether the current email has been verified.
func (a Account) IsVerified() bool {
	return a.VerifiedEmail != "" && strings.EqualFold(a.Email, a.VerifiedEmail)
}

// Roles returns the derived role set.
func (a Account) Roles() []string {
	if a.IsVerified() {
		return []string{RoleUser, RoleVerified}
	}
	return []string{RoleUser}
}

// HasRole reports whether role is in Roles.
func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// FirstName returns the first word of Name.
func (a Account) FirstName() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ChangeEmail replaces the login email. Verified status follows from the
// new value.
func (a *Account) ChangeEmail(email string) {
	a.Email = strings.TrimSpace(email)
}

// MarkVerified records the current email as verified.
func (a *Account) MarkVerified() {
	a.VerifiedEmail = a.Email
}

// MarkLoggedIn records an interactive login.
func (a *Account) MarkLoggedIn(at time.Time) {
	a.LoggedInAt = at
}

// Rename sets the display name.
func (a *Account) Rename(name string) {
	a.Name = strings.TrimSpace(name)
}

// SetPassword hashes plaintext and replaces the stored hash, advancing the
// account's credential epoch. It is the only way PasswordHash changes.
func SetPassword(a *Account, hasher PasswordHasher, plaintext string) error {
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}
