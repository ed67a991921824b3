package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/npezzotti/roamchat/internal/chat"
	"github.com/stretchr/testify/assert"
)

func Test_fromChatError(t *testing.T) {
	tcases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{
			name: "validation",
			err:  &chat.Error{Kind: chat.KindValidation, Message: "content is required"},
			code: http.StatusBadRequest,
			msg:  "content is required",
		},
		{
			name: "unauthorized",
			err:  &chat.Error{Kind: chat.KindUnauthorized, Message: "sign in"},
			code: http.StatusUnauthorized,
			msg:  "sign in",
		},
		{
			name: "forbidden",
			err:  &chat.Error{Kind: chat.KindForbidden, Message: "not a member"},
			code: http.StatusForbidden,
			msg:  "not a member",
		},
		{
			name: "not found",
			err:  &chat.Error{Kind: chat.KindNotFound, Message: "chat room not found"},
			code: http.StatusNotFound,
			msg:  "chat room not found",
		},
		{
			name: "conflict",
			err:  &chat.Error{Kind: chat.KindConflict, Message: "already a member"},
			code: http.StatusConflict,
			msg:  "already a member",
		},
		{
			name: "internal hides the cause",
			err:  &chat.Error{Kind: chat.KindInternal, Message: "boom", Err: errors.New("pq: broken")},
			code: http.StatusInternalServerError,
			msg:  "internal server error",
		},
		{
			name: "foreign error",
			err:  errors.New("unexpected"),
			code: http.StatusInternalServerError,
			msg:  "internal server error",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := fromChatError(tc.err)
			assert.Equal(t, tc.code, apiErr.StatusCode)
			assert.Equal(t, tc.msg, apiErr.Message)
		})
	}
}

func TestApiErrorDefaults(t *testing.T) {
	assert.Equal(t, "bad request", NewBadRequestError().Message)
	assert.Equal(t, "conflict", NewConflictError().Message)
	assert.Equal(t, "too many requests", NewTooManyRequestsError().Message)

	cause := errors.New("db down")
	err := NewInternalServerError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: db down", err.Error())
}
