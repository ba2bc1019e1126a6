package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-chatsync/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

func NewValidationError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewServiceUnavailableError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    lower(http.StatusText(http.StatusServiceUnavailable)),
		Err:        err,
	}
}

// errorFromChat maps an engine error onto an HTTP error. Client errors
// carry the engine's message.
func errorFromChat(err error) *ApiError {
	var ce *chat.Error
	if !errors.As(err, &ce) {
		return NewInternalServerError(err)
	}

	var status int
	switch ce.Kind {
	case chat.ErrValidation:
		status = http.StatusBadRequest
	case chat.ErrNotFound:
		status = http.StatusNotFound
	case chat.ErrForbidden:
		status = http.StatusForbidden
	case chat.ErrConflict:
		status = http.StatusConflict
	case chat.ErrTransient:
		return NewServiceUnavailableError(err)
	default:
		return NewInternalServerError(err)
	}

	return &ApiError{
		StatusCode: status,
		Message:    ce.Message,
		Err:        err,
	}
}
