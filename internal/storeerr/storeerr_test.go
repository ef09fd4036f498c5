package storeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type restError struct{ code string }

func (e restError) Error() string { return "rest error " + e.code }
func (e restError) Code() string  { return e.code }

func TestClassifyPostgresCodes(t *testing.T) {
	cases := map[string]Kind{
		"42501": PermissionDenied,
		"23505": UniqueViolation,
		"23503": ForeignKeyViolation,
		"42703": UndefinedColumn,
		"42P01": UndefinedColumn,
		"40001": Unknown,
	}

	for code, want := range cases {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: code})
		assert.Equal(t, want, Classify(err), "code %s", code)
	}
}

func TestClassifyGormAndSQLite(t *testing.T) {
	assert.Equal(t, UniqueViolation, Classify(gorm.ErrDuplicatedKey))
	assert.Equal(t, ForeignKeyViolation, Classify(gorm.ErrForeignKeyViolated))
	assert.Equal(t, UniqueViolation, Classify(errors.New("constraint failed: UNIQUE constraint failed: organizations.slug (2067)")))
	assert.Equal(t, UndefinedColumn, Classify(errors.New("SQL logic error: no such column: foo (1)")))
	assert.Equal(t, Unknown, Classify(gorm.ErrRecordNotFound))
	assert.Equal(t, Unknown, Classify(nil))
}

func TestClassifyRestCodes(t *testing.T) {
	assert.Equal(t, UndefinedColumn, Classify(restError{code: "PGRST204"}))
	assert.Equal(t, PermissionDenied, Classify(restError{code: "PGRST301"}))
	assert.Equal(t, Unknown, Classify(restError{code: "PGRST000"}))
}

func TestWrap(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "organizations_slug_key"}
	err := Wrap(pgErr)

	var classified *Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, UniqueViolation, classified.Kind)
	assert.Equal(t, "23505", classified.Code)
	assert.Equal(t, "organizations_slug_key", classified.Constraint)
	assert.ErrorIs(t, err, pgErr)
	assert.True(t, Is(err, UniqueViolation))

	assert.Same(t, err, Wrap(err))
	assert.ErrorIs(t, Wrap(gorm.ErrRecordNotFound), gorm.ErrRecordNotFound)
	assert.NoError(t, Wrap(nil))
}

func TestClassifyOtherDrivers(t *testing.T) {
	assert.Equal(t, UniqueViolation, Classify(&pq.Error{Code: "23505"}))
	assert.Equal(t, PermissionDenied, Classify(fmt.Errorf("select: %w", &pq.Error{Code: "42501"})))

	assert.Equal(t, UniqueViolation, Classify(&mysql.MySQLError{Number: 1062}))
	assert.Equal(t, ForeignKeyViolation, Classify(&mysql.MySQLError{Number: 1452}))
	assert.Equal(t, UndefinedColumn, Classify(&mysql.MySQLError{Number: 1054}))
	assert.Equal(t, PermissionDenied, Classify(&mysql.MySQLError{Number: 1142}))
	assert.Equal(t, Unknown, Classify(&mysql.MySQLError{Number: 1213}))
}

func TestWrapCopiesDriverDetails(t *testing.T) {
	var classified *Error

	err := Wrap(&pq.Error{Code: "23503", Constraint: "sessions_course_id_fkey", Column: "course_id"})
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, ForeignKeyViolation, classified.Kind)
	assert.Equal(t, "sessions_course_id_fkey", classified.Constraint)
	assert.Equal(t, "course_id", classified.Column)

	err = Wrap(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, "1062", classified.Code)
}
