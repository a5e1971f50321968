// Package postgres implements goAccount.AccountStore on PostgreSQL with pgx.
//
// Errors carry samber/oops codes (ACCOUNT_NOT_FOUND, ACCOUNT_EXISTS,
// ACCOUNT_*_FAILED) and still satisfy errors.Is against the goAccount
// sentinels.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	goAccount "github.com/MrEthical07/goAccount"
)

// pool is the subset of *pgxpool.Pool the store uses.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

const selectAccount = `
	SELECT id, email, name, password_hash, verified_email, logged_in_at, created_at
	FROM accounts
`

// Store implements goAccount.AccountStore.
type Store struct {
	pool pool
	now  func() time.Time
}

// New returns a Store over p. *pgxpool.Pool satisfies the interface.
func New(p pool) *Store {
	return &Store{pool: p, now: time.Now}
}

// Open connects a pgxpool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("ACCOUNT_DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, oops.Code("ACCOUNT_DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return p, nil
}

// GetByID retrieves an account by id.
func (s *Store) GetByID(ctx context.Context, id string) (goAccount.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+`WHERE id = $1`, id)

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return goAccount.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(goAccount.ErrNotFound)
	}
	if err != nil {
		return goAccount.Account{}, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id).
			Wrap(err)
	}
	return acc, nil
}

// GetByEmail retrieves an account by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (goAccount.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+`WHERE email_key = $1`, goAccount.NormalizeEmail(email))

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return goAccount.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(goAccount.ErrNotFound)
	}
	if err != nil {
		return goAccount.Account{}, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return acc, nil
}

// Create inserts account. A taken email or id returns an error matching
// goAccount.ErrAccountExists.
func (s *Store) Create(ctx context.Context, account goAccount.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, email_key, name, password_hash, verified_email,
			logged_in_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		account.ID,
		account.Email,
		goAccount.NormalizeEmail(account.Email),
		account.Name,
		account.PasswordHash,
		account.VerifiedEmail,
		nullableTime(account.LoggedInAt),
		account.CreatedAt,
		s.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_EXISTS").
				With("id", account.ID).
				Wrap(goAccount.ErrAccountExists)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", account.ID).
			Wrap(err)
	}
	return nil
}

// Update locks the account row, applies fn to its current value and writes
// every mutable column back in the same transaction.
func (s *Store) Update(ctx context.Context, id string, fn func(*goAccount.Account) error) (goAccount.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return goAccount.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "begin transaction").
			With("id", id).
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	account, err := scanAccount(tx.QueryRow(ctx, selectAccount+`WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return goAccount.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(goAccount.ErrNotFound)
	}
	if err != nil {
		return goAccount.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "lock account").
			With("id", id).
			Wrap(err)
	}

	if err := fn(&account); err != nil {
		return goAccount.Account{}, err
	}
	account.ID = id

	if err := s.write(ctx, tx, account); err != nil {
		return goAccount.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return goAccount.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "commit").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

func (s *Store) write(ctx context.Context, tx pgx.Tx, account goAccount.Account) error {
	result, err := tx.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			email_key = $3,
			name = $4,
			password_hash = $5,
			verified_email = $6,
			logged_in_at = $7,
			updated_at = $8
		WHERE id = $1
	`,
		account.ID,
		account.Email,
		goAccount.NormalizeEmail(account.Email),
		account.Name,
		account.PasswordHash,
		account.VerifiedEmail,
		nullableTime(account.LoggedInAt),
		s.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_EXISTS").
				With("id", account.ID).
				Wrap(goAccount.ErrAccountExists)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID).
			Wrap(goAccount.ErrNotFound)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("ACCOUNT_DB_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func scanAccount(row pgx.Row) (goAccount.Account, error) {
	var (
		acc        goAccount.Account
		loggedInAt *time.Time
	)
	err := row.Scan(
		&acc.ID,
		&acc.Email,
		&acc.Name,
		&acc.PasswordHash,
		&acc.VerifiedEmail,
		&loggedInAt,
		&acc.CreatedAt,
	)
	if err != nil {
		return goAccount.Account{}, err
	}
	if loggedInAt != nil {
		acc.LoggedInAt = *loggedInAt
	}
	return acc, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
