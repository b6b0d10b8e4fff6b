package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pawtrack/pawtrack/failure"
)

// Sentinel errors wrapped inside Logical failures.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrIntegrity = errors.New("constraint violation")
)

// MySQL server error numbers of interest.
const (
	mysqlDupEntry        = 1062
	mysqlRowReferenced   = 1451
	mysqlNoReferencedRow = 1452
	mysqlCheckViolated   = 3819
	mysqlAccessDenied    = 1045
	mysqlUnknownDatabase = 1049
	mysqlTooManyConns    = 1040
)

// classify converts err into a *failure.Error. Errors that are already
// classified pass through untouched, so fn bodies in withConn may return
// their own Logical failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return failure.Wrap(failure.Logical, op+": not found", ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return failure.Connectivityf(err, "%s timed out", op)
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn):
		return failure.Connectivityf(err, "%s: connection lost", op)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDupEntry:
			return failure.Wrap(failure.Logical, op+": "+ErrDuplicate.Error(), errors.Join(ErrDuplicate, err))
		case mysqlRowReferenced, mysqlNoReferencedRow, mysqlCheckViolated:
			return failure.Wrap(failure.Logical, op+": "+ErrIntegrity.Error(), errors.Join(ErrIntegrity, err))
		case mysqlAccessDenied, mysqlUnknownDatabase, mysqlTooManyConns:
			return failure.Connectivityf(err, "%s failed", op)
		}
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return failure.Wrap(failure.Logical, op+": "+ErrDuplicate.Error(), errors.Join(ErrDuplicate, err))
		case strings.HasPrefix(pgErr.Code, "23"):
			return failure.Wrap(failure.Logical, op+": "+ErrIntegrity.Error(), errors.Join(ErrIntegrity, err))
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "28"),
			strings.HasPrefix(pgErr.Code, "57P"),
			pgErr.Code == "3D000":
			return failure.Connectivityf(err, "%s failed", op)
		}
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return failure.Connectivityf(err, "%s failed", op)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return failure.Wrap(failure.Logical, op+": "+ErrDuplicate.Error(), errors.Join(ErrDuplicate, err))
		}
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(liteErr.Error(), "UNIQUE constraint failed") {
				return failure.Wrap(failure.Logical, op+": "+ErrDuplicate.Error(), errors.Join(ErrDuplicate, err))
			}
			return failure.Wrap(failure.Logical, op+": "+ErrIntegrity.Error(), errors.Join(ErrIntegrity, err))
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED,
			sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB:
			return failure.Connectivityf(err, "%s failed", op)
		}
		return failure.Wrap(failure.Unexpected, op+" failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failure.Connectivityf(err, "%s: network error", op)
	}

	// database/sql does not export these.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "sql: database is closed"):
		return failure.Connectivityf(err, "%s: database is closed", op)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return failure.Wrap(failure.Logical, op+": "+ErrDuplicate.Error(), errors.Join(ErrDuplicate, err))
	case strings.Contains(msg, "constraint failed"):
		return failure.Wrap(failure.Logical, op+": "+ErrIntegrity.Error(), errors.Join(ErrIntegrity, err))
	}

	return failure.Wrap(failure.Unexpected, op+" failed", err)
}
