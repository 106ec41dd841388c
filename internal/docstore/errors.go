package docstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"academia-identity/backend/internal/identity/provider"
)

// translate maps driver failures onto provider error codes so the classifier can tell transient
// faults from the rest. Context errors are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) {
		return provider.WrapError(provider.CodeUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return provider.WrapError(postgresCode(pgErr.Code), err)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return provider.WrapError(sqliteCode(liteErr.Code()), err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return provider.WrapError(provider.CodeUnavailable, err)
	}
	return provider.WrapError(provider.CodeInternal, err)
}

// postgresCode maps a SQLSTATE to a provider code.
func postgresCode(state string) string {
	switch {
	case state == "53300" || state == "53400":
		// too_many_connections, configuration_limit_exceeded
		return provider.CodeResourceExhausted
	case state == "57014":
		// query_canceled
		return provider.CodeDeadlineExceeded
	case strings.HasPrefix(state, "08"), state == "57P01", state == "57P03":
		return provider.CodeUnavailable
	default:
		return provider.CodeInternal
	}
}

func sqliteCode(code int) string {
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return provider.CodeUnavailable
	case sqlite3.SQLITE_FULL:
		return provider.CodeResourceExhausted
	default:
		return provider.CodeInternal
	}
}
