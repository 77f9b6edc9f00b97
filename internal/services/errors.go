package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrValidation marks malformed input, rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to an id absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an operation the record's status forbids.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden marks an actor that is not allowed to touch the record.
	ErrForbidden = errors.New("forbidden")
	// ErrTransient marks connectivity failures. Writes surface it to the
	// caller; live views retry on it.
	ErrTransient = errors.New("temporarily unavailable")

	// ErrUserNotFound is returned by Directory adapters.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// storeError wraps a failure from a repository or the directory, tagging
// connectivity problems with ErrTransient.
func storeError(op string, err error) error {
	if IsTransient(err) && !errors.Is(err, ErrTransient) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTransient reports whether err looks like a connectivity failure that
// may succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03":
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return true
		}
	}
	return false
}
