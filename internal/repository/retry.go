package repository

import (
	"database/sql"
	"database/sql/driver"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"playerMarket/internal/domain"
)

// Postgres SQLSTATE codes after which the whole transaction may succeed
// if run again.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// classify wraps a driver error with operation context, marking retryable
// failures with domain.ErrTransient so callers can decide to run the
// transaction again.
func classify(err error, op string) error {
	if retryable(err) {
		return errors.Wrapf(domain.ErrTransient, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}
