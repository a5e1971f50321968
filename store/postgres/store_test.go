package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAccount "github.com/MrEthical07/goAccount"
)

var accountColumns = []string{"id", "email", "name", "password_hash", "verified_email", "logged_in_at", "created_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	s := New(mock)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func TestStore_GetByID(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	loggedIn := created.Add(time.Hour)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      goAccount.Account
		wantIs    error
		wantCode  string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountColumns).
					AddRow("a1", "Karen@Example.com", "Karen Smith", "$argon2id$x", "karen@example.com", &loggedIn, created)
				mock.ExpectQuery(`SELECT id, email, name`).WithArgs("a1").WillReturnRows(rows)
			},
			want: goAccount.Account{
				ID:            "a1",
				Email:         "Karen@Example.com",
				Name:          "Karen Smith",
				PasswordHash:  "$argon2id$x",
				VerifiedEmail: "karen@example.com",
				LoggedInAt:    loggedIn,
				CreatedAt:     created,
			},
		},
		{
			name: "never logged in",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountColumns).
					AddRow("a1", "a@example.com", "", "h", "", nil, created)
				mock.ExpectQuery(`SELECT id, email, name`).WithArgs("a1").WillReturnRows(rows)
			},
			want: goAccount.Account{ID: "a1", Email: "a@example.com", PasswordHash: "h", CreatedAt: created},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, email, name`).WithArgs("a1").WillReturnError(pgx.ErrNoRows)
			},
			wantIs:   goAccount.ErrNotFound,
			wantCode: "ACCOUNT_NOT_FOUND",
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, email, name`).WithArgs("a1").WillReturnError(errors.New("connection refused"))
			},
			wantCode: "ACCOUNT_GET_BY_ID_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setupMock(mock)

			got, err := s.GetByID(context.Background(), "a1")
			if tt.wantCode != "" {
				require.Error(t, err)
				assertErrorCode(t, err, tt.wantCode)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_GetByEmailNormalizes(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := pgxmock.NewRows(accountColumns).AddRow("a1", "Karen@Example.com", "Karen", "h", "", nil, created)
	mock.ExpectQuery(`WHERE email_key = \$1`).WithArgs("karen@example.com").WillReturnRows(rows)

	got, err := s.GetByEmail(context.Background(), "  KAREN@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	mock.ExpectQuery(`WHERE email_key = \$1`).WithArgs("ghost@example.com").WillReturnError(pgx.ErrNoRows)
	_, err = s.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, goAccount.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	acc := goAccount.Account{ID: "a1", Email: "Karen@Example.com", Name: "Karen", PasswordHash: "h", CreatedAt: created}

	tests := []struct {
		name     string
		execErr  error
		wantIs   error
		wantCode string
	}{
		{name: "inserted"},
		{
			name:     "duplicate email",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_email_key_idx"},
			wantIs:   goAccount.ErrAccountExists,
			wantCode: "ACCOUNT_EXISTS",
		},
		{
			name:     "other failure",
			execErr:  errors.New("connection reset"),
			wantCode: "ACCOUNT_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			exp := mock.ExpectExec(`INSERT INTO accounts`).
				WithArgs("a1", "Karen@Example.com", "karen@example.com", "Karen", "h", "", pgxmock.AnyArg(), created, pgxmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := s.Create(context.Background(), acc)
			if tt.wantCode != "" {
				require.Error(t, err)
				assertErrorCode(t, err, tt.wantCode)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_Update(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stored := func() *pgxmock.Rows {
		return pgxmock.NewRows(accountColumns).
			AddRow("a1", "Old@Example.com", "Karen", "h1", "old@example.com", nil, created)
	}

	t.Run("updated", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("a1").WillReturnRows(stored())
		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs("a1", "New@Example.com", "new@example.com", "Karen", "h1", "old@example.com", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		got, err := s.Update(context.Background(), "a1", func(a *goAccount.Account) error {
			a.Email = "New@Example.com"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "New@Example.com", got.Email)
		assert.Equal(t, "h1", got.PasswordHash, "fields fn did not touch keep their stored value")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("a1").WillReturnRows(stored())
		mock.ExpectRollback()

		stale := errors.New("stale")
		_, err := s.Update(context.Background(), "a1", func(*goAccount.Account) error { return stale })
		assert.ErrorIs(t, err, stale)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("a1").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), "a1", func(*goAccount.Account) error { return nil })
		assert.ErrorIs(t, err, goAccount.ErrNotFound)
		assertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("email conflict", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("a1").WillReturnRows(stored())
		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), "a1", func(a *goAccount.Account) error {
			a.Email = "taken@example.com"
			return nil
		})
		assert.ErrorIs(t, err, goAccount.ErrAccountExists)
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

		_, err := s.Update(context.Background(), "a1", func(*goAccount.Account) error { return nil })
		require.Error(t, err)
		assertErrorCode(t, err, "ACCOUNT_UPDATE_FAILED")
	})
}

func TestStore_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s := New(mock)

	mock.ExpectPing().WillReturnError(errors.New("down"))

	err = s.Ping(context.Background())
	require.Error(t, err)
	assertErrorCode(t, err, "ACCOUNT_DB_UNAVAILABLE")
}
