// Package memory provides an in-process goAccount.AccountStore for tests,
// demos, and single-instance deployments.
package memory

import (
	"context"
	"sync"

	goAccount "github.com/MrEthical07/goAccount"
)

// Store keeps accounts in maps guarded by a single RWMutex. Values are
// copied in and out, so callers never share an Account with the store.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]goAccount.Account
	byEmail map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]goAccount.Account),
		byEmail: make(map[string]string),
	}
}

// GetByID returns the account with id or goAccount.ErrNotFound.
func (s *Store) GetByID(_ context.Context, id string) (goAccount.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return goAccount.Account{}, goAccount.ErrNotFound
	}
	return acc, nil
}

// GetByEmail looks up an account by normalized email.
func (s *Store) GetByEmail(_ context.Context, email string) (goAccount.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[goAccount.NormalizeEmail(email)]
	if !ok {
		return goAccount.Account{}, goAccount.ErrNotFound
	}
	return s.byID[id], nil
}

// Create inserts a new account. Duplicate ids and emails return
// goAccount.ErrAccountExists.
func (s *Store) Create(_ context.Context, account goAccount.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := goAccount.NormalizeEmail(account.Email)
	if _, ok := s.byID[account.ID]; ok {
		return goAccount.ErrAccountExists
	}
	if _, ok := s.byEmail[key]; ok {
		return goAccount.ErrAccountExists
	}

	s.byID[account.ID] = account
	s.byEmail[key] = account.ID
	return nil
}

// Update applies fn to a copy of the stored account under the write lock
// and stores the result. Moving to an email held by another account
// returns goAccount.ErrAccountExists.
func (s *Store) Update(_ context.Context, id string, fn func(*goAccount.Account) error) (goAccount.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[id]
	if !ok {
		return goAccount.Account{}, goAccount.ErrNotFound
	}

	account := prev
	if err := fn(&account); err != nil {
		return goAccount.Account{}, err
	}
	account.ID = id

	key := goAccount.NormalizeEmail(account.Email)
	if owner, taken := s.byEmail[key]; taken && owner != id {
		return goAccount.Account{}, goAccount.ErrAccountExists
	}

	delete(s.byEmail, goAccount.NormalizeEmail(prev.Email))
	s.byID[id] = account
	s.byEmail[key] = id
	return account, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
