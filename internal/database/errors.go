package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrTransient is returned when the database could not be reached.
	// Operations failing with it may be retried.
	ErrTransient = errors.New("storage unavailable")
)

const uniqueViolation = "23505"

// classify maps driver errors onto the package's sentinel errors.
// sql.ErrNoRows is passed through untouched.
func classify(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}

		switch pqErr.Code.Class() {
		// connection exception, insufficient resources, operator intervention
		case "08", "53", "57":
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	return err
}
