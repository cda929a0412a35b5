package db

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsConnectionError reports whether err looks like a lost or unusable
// database connection: the caller should discard the connection, wait,
// redial, and retry the same unit of work.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 57: operator intervention
		// (admin shutdown, crash shutdown).
		return sqlStateClass(pgErr.Code) == "08" || sqlStateClass(pgErr.Code) == "57"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// pgx reports use of a dead connection with an unexported error.
	return strings.Contains(err.Error(), "conn closed") ||
		strings.Contains(err.Error(), "connection reset")
}

// IsDataError reports whether err is a data-quality failure (integrity
// constraint or data exception). These are never retried; the file is
// logged and skipped.
func IsDataError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return sqlStateClass(pgErr.Code) == "22" || sqlStateClass(pgErr.Code) == "23"
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
