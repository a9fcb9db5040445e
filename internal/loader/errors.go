package loader

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConstraintViolationError reports an integrity failure raised by the
// database during a load. These are never retried: the batch itself is
// inconsistent and resubmitting it cannot succeed.
type ConstraintViolationError struct {
	Table      string
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	return "constraint violation on " + e.Table + " (" + e.Constraint + "): " + e.Err.Error()
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// classify wraps integrity errors so callers can detect them with errors.As.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &ConstraintViolationError{Table: pgErr.TableName, Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// IsTransient reports whether a load error is worth retrying. Connection
// drops, serialization failures, resource exhaustion and admin shutdowns
// are; integrity violations and everything else are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
