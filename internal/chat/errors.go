package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/npezzotti/go-chatsync/internal/database"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrTransient  = errors.New("temporarily unavailable")
)

// Error is returned by every operation of the engine. Kind is one of the
// package's sentinel errors and is matched with errors.Is.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// storageError translates a repository error. what names the entity the
// operation was looking for.
func storageError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return newError(ErrNotFound, what+" not found")
	case errors.Is(err, database.ErrConflict):
		return &Error{Kind: ErrConflict, Message: what + " already exists", Err: err}
	case errors.Is(err, database.ErrTransient):
		return &Error{Kind: ErrTransient, Message: "storage unavailable", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
