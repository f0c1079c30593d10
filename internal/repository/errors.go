package repository

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/newsletter/newsletter/internal/apperr"
)

// translateError maps driver errors onto the application taxonomy.
func translateError(op string, err error) *apperr.Error {
	var pgErr *pgconn.PgError
	var connectErr *pgconn.ConnectError
	var netErr net.Error

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound(op, err)
	case errors.As(err, &pgErr):
		return apperr.Database(op, err)
	case errors.As(err, &connectErr):
		return apperr.Database(op, err)
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded):
		return apperr.Database(op, err)
	case errors.As(err, &netErr):
		return apperr.Database(op, err)
	case pgconn.SafeToRetry(err):
		return apperr.Database(op, err)
	default:
		return apperr.Internal(op, err)
	}
}
