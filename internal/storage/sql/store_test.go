package sql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func newMockStore(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := Open(driver, db, false)
	require.NoError(t, err)
	return store, mock
}

func sampleCode() *domain.AccessCode {
	now := time.Date(2024, 3, 23, 12, 0, 0, 0, time.UTC)
	return &domain.AccessCode{
		ID:         "0b7c6f1e-0000-4000-8000-000000000001",
		Code:       "ABCD1234",
		ExpiryDays: 3,
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 3),
	}
}

func TestStore_CreateAccessCode(t *testing.T) {
	t.Run("postgres insert", func(t *testing.T) {
		s, mock := newMockStore(t, "postgres")
		c := sampleCode()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "access_codes"`)).
			WithArgs(c.ID, c.Code, c.ExpiryDays, sqlmock.AnyArg(), sqlmock.AnyArg(), false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.CreateAccessCode(context.Background(), c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres unique violation", func(t *testing.T) {
		s, mock := newMockStore(t, "postgres")
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "access_codes"`)).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

		err := s.CreateAccessCode(context.Background(), sampleCode())
		assert.ErrorIs(t, err, domain.ErrAccessCodeExists)
	})

	t.Run("mysql duplicate entry", func(t *testing.T) {
		s, mock := newMockStore(t, "mysql")
		mock.ExpectExec("INSERT INTO `access_codes`").
			WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

		err := s.CreateAccessCode(context.Background(), sampleCode())
		assert.ErrorIs(t, err, domain.ErrAccessCodeExists)
	})
}

func TestStore_GetAccessCodeByCode(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	c := sampleCode()
	now := c.CreatedAt.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"id", "code", "expiry_days", "created_at", "expires_at", "is_used"}).
		AddRow(c.ID, c.Code, c.ExpiryDays, c.CreatedAt, c.ExpiresAt, false)
	mock.ExpectQuery(`SELECT \* FROM "access_codes" WHERE code = \$1 AND expires_at > \$2`).
		WillReturnRows(rows)

	got, err := s.GetAccessCodeByCode(context.Background(), c.Code, now)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, 3, got.ExpiryDays)

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "access_codes"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := s.GetAccessCodeByCode(context.Background(), "NOPE", now)
		assert.ErrorIs(t, err, domain.ErrAccessCodeNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListAccessCodes(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	c := sampleCode()

	rows := sqlmock.NewRows([]string{"id", "code", "expiry_days", "created_at", "expires_at", "is_used"}).
		AddRow("1", "AAAA1111", 1, c.CreatedAt, c.CreatedAt.AddDate(0, 0, 1), false).
		AddRow("2", "BBBB2222", 3, c.CreatedAt, c.ExpiresAt, true)
	mock.ExpectQuery(`SELECT \* FROM "access_codes" WHERE expires_at > \$1 ORDER BY expires_at ASC`).
		WillReturnRows(rows)

	list, err := s.ListAccessCodes(context.Background(), c.CreatedAt)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AAAA1111", list[0].Code)
	assert.True(t, list[1].IsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Mutations(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "access_codes" SET "is_used"=\$1 WHERE id = \$2`).
		WithArgs(true, "1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.MarkAccessCodeUsed(ctx, "1"))

	mock.ExpectExec(`DELETE FROM "access_codes" WHERE id = \$1`).
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteAccessCode(ctx, "1"))

	mock.ExpectExec(`DELETE FROM "access_codes" WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteAccessCode(ctx, "missing"), domain.ErrAccessCodeNotFound)

	mock.ExpectExec(`DELETE FROM "access_codes" WHERE expires_at <= \$1`).
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := s.DeleteExpiredAccessCodes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = Open("sqlite", db, false)
	assert.Error(t, err)
}
