package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/roamchat/internal/chat"
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

func newApiError(code int, msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(code))
	}

	return &ApiError{StatusCode: code, Message: msg}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, "")
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, "")
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, "")
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, "")
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict, "")
}

func NewTooManyRequestsError() *ApiError {
	return newApiError(http.StatusTooManyRequests, "")
}

// fromChatError converts a chat service error into its HTTP form, keeping
// the service's caller-safe message.
func fromChatError(err error) *ApiError {
	var chatErr *chat.Error
	msg := ""
	if errors.As(err, &chatErr) {
		msg = chatErr.Message
	}

	switch chat.KindOf(err) {
	case chat.KindValidation:
		return newApiError(http.StatusBadRequest, msg)
	case chat.KindUnauthorized:
		return newApiError(http.StatusUnauthorized, msg)
	case chat.KindForbidden:
		return newApiError(http.StatusForbidden, msg)
	case chat.KindNotFound:
		return newApiError(http.StatusNotFound, msg)
	case chat.KindConflict:
		return newApiError(http.StatusConflict, msg)
	default:
		return NewInternalServerError(err)
	}
}
