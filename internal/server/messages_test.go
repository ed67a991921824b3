package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoErrOk(t *testing.T) {
	result := NoErrOK(1, map[string]any{
		"testkey": "testvalue",
	})

	assert.Equal(t, 1, result.Id)
	assert.False(t, result.Timestamp.IsZero())
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusOK, result.Response.ResponseCode)
	assert.Equal(t, "testvalue", result.Response.Data["testkey"])
	assert.Empty(t, result.Response.Error)
}

func TestErrorResponses(t *testing.T) {
	tcases := []struct {
		name string
		msg  *ServerMessage
		id   int
		code int
	}{
		{"forbidden", ErrForbidden(2), 2, http.StatusForbidden},
		{"internal", ErrInternalError(3), 3, http.StatusInternalServerError},
		{"unavailable", ErrServiceUnavailable(4), 4, http.StatusServiceUnavailable},
		{"invalid", ErrInvalidMessage(5), 5, http.StatusBadRequest},
		{"invalid without id", ErrInvalidMessage(-1), 0, http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.msg.Response)
			assert.Equal(t, tc.id, tc.msg.Id)
			assert.Equal(t, tc.code, tc.msg.Response.ResponseCode)
			assert.NotEmpty(t, tc.msg.Response.Error)
			assert.Nil(t, tc.msg.Event)
		})
	}
}

func TestEventMessage(t *testing.T) {
	ev, err := fanout.NewEvent(fanout.RoomTopic(9), fanout.EventMessageDeleted, map[string]int{"message_id": 4})
	require.NoError(t, err)

	msg := EventMessage(ev)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "id", "events carry no request id")
	assert.NotContains(t, decoded, "response")

	event, ok := decoded["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "room:9", event["topic"])
	assert.Equal(t, fanout.EventMessageDeleted, event["type"])
	assert.Equal(t, map[string]any{"message_id": float64(4)}, event["data"])
}

func TestClientMessageDecode(t *testing.T) {
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"subscribe":{"room_id":12}}`), &msg))

	assert.Equal(t, 3, msg.Id)
	require.NotNil(t, msg.Subscribe)
	assert.Equal(t, 12, msg.Subscribe.RoomId)
	assert.Nil(t, msg.Unsubscribe)
}
