// Package storeerr classifies storage failures into a small set of kinds so
// callers above the repository layer never inspect driver error codes.
package storeerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Kind int

const (
	Unknown Kind = iota
	PermissionDenied
	UniqueViolation
	ForeignKeyViolation
	UndefinedColumn
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case UniqueViolation:
		return "unique_violation"
	case ForeignKeyViolation:
		return "foreign_key_violation"
	case UndefinedColumn:
		return "undefined_column"
	default:
		return "unknown"
	}
}

// Error is a classified storage failure. Code carries the driver code when
// one was available; Constraint and Column are best effort.
type Error struct {
	Kind       Kind
	Code       string
	Constraint string
	Column     string
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "storage error: " + e.Kind.String()
	}
	return fmt.Sprintf("storage error %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// sqlStateError is satisfied by drivers that expose a SQLSTATE without
// pgconn.
type sqlStateError interface {
	SQLState() string
}

// codeError is satisfied by REST gateways that report PostgREST style codes.
type codeError interface {
	Code() string
}

var sqliteMessages = []struct {
	fragment string
	kind     Kind
}{
	{"UNIQUE constraint failed", UniqueViolation},
	{"FOREIGN KEY constraint failed", ForeignKeyViolation},
	{"no such column", UndefinedColumn},
	{"has no column named", UndefinedColumn},
	{"no such table", UndefinedColumn},
}

// Classify returns the kind of err, or Unknown when err is not a recognised
// storage failure.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return kindFromCode(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return kindFromCode(string(pqErr.Code))
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return kindFromMySQL(myErr.Number)
	}

	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		if kind := kindFromCode(stateErr.SQLState()); kind != Unknown {
			return kind
		}
	}

	var restErr codeError
	if errors.As(err, &restErr) {
		if kind := kindFromCode(restErr.Code()); kind != Unknown {
			return kind
		}
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return UniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ForeignKeyViolation
	}

	msg := err.Error()
	for _, m := range sqliteMessages {
		if strings.Contains(msg, m.fragment) {
			return m.kind
		}
	}
	return Unknown
}

func kindFromCode(code string) Kind {
	switch code {
	case pgerrcode.InsufficientPrivilege, "PGRST301":
		return PermissionDenied
	case pgerrcode.UniqueViolation:
		return UniqueViolation
	case pgerrcode.ForeignKeyViolation:
		return ForeignKeyViolation
	case pgerrcode.UndefinedColumn, pgerrcode.UndefinedTable, "PGRST204":
		return UndefinedColumn
	default:
		return Unknown
	}
}

// MySQL server error numbers.
const (
	mysqlTableAccessDenied = 1142
	mysqlDuplicateEntry    = 1062
	mysqlNoReferencedRow   = 1452
	mysqlRowIsReferenced   = 1451
	mysqlBadField          = 1054
	mysqlNoSuchTable       = 1146
)

func kindFromMySQL(number uint16) Kind {
	switch number {
	case mysqlTableAccessDenied:
		return PermissionDenied
	case mysqlDuplicateEntry:
		return UniqueViolation
	case mysqlNoReferencedRow, mysqlRowIsReferenced:
		return ForeignKeyViolation
	case mysqlBadField, mysqlNoSuchTable:
		return UndefinedColumn
	default:
		return Unknown
	}
}

// Wrap classifies err. Recognised failures come back as *Error, everything
// else (including gorm.ErrRecordNotFound) is returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	kind := Classify(err)
	if kind == Unknown {
		return err
	}

	out := &Error{Kind: kind, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		out.Code = pgErr.Code
		out.Constraint = pgErr.ConstraintName
		out.Column = pgErr.ColumnName
		return out
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		out.Code = string(pqErr.Code)
		out.Constraint = pqErr.Constraint
		out.Column = pqErr.Column
		return out
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		out.Code = fmt.Sprintf("%d", myErr.Number)
	}
	return out
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return kind != Unknown && Classify(err) == kind
}
