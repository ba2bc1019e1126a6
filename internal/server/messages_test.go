package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chat"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_serializeMessage(t *testing.T) {
	t.Run("response", func(t *testing.T) {
		message := &ServerMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Response: &Response{
				ResponseCode: 200,
				Data:         "test data",
			},
		}

		expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
			`","response":{"response_code":200,"data":"test data"}}`

		bytes, err := serializeMessage(message)
		assert.NoError(t, err, "expected no error during serialization")
		assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
	})

	t.Run("event is flattened into the frame", func(t *testing.T) {
		message := EventMessage(&types.Event{
			Name:        types.EventUpdateOnlineUsers,
			OnlineUsers: []int{1, 2},
		})

		bytes, err := serializeMessage(message)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(bytes, &decoded))
		assert.Equal(t, "updateOnlineUsers", decoded["event"])
		assert.Equal(t, []any{float64(1), float64(2)}, decoded["online_users"])
		assert.NotContains(t, decoded, "response")
	})

	t.Run("empty online set is sent", func(t *testing.T) {
		bytes, err := serializeMessage(EventMessage(&types.Event{
			Name:        types.EventUpdateOnlineUsers,
			OnlineUsers: []int{},
		}))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(bytes, &decoded))
		require.Contains(t, decoded, "online_users")
		assert.Equal(t, []any{}, decoded["online_users"])
	})
}

func TestClientMessage_Unmarshal(t *testing.T) {
	var msg ClientMessage
	err := json.Unmarshal([]byte(`{"id":7,"react":{"message_id":"m1","type":"❤️"}}`), &msg)
	require.NoError(t, err)

	assert.Equal(t, 7, msg.Id)
	require.NotNil(t, msg.React)
	assert.Equal(t, "m1", msg.React.MessageId)
	assert.Equal(t, types.ReactionHeart, msg.React.Type)
	assert.Nil(t, msg.Publish)
}

func TestErrFromChat(t *testing.T) {
	tcs := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &chat.Error{Kind: chat.ErrValidation, Message: "empty"}, http.StatusBadRequest},
		{"not found", &chat.Error{Kind: chat.ErrNotFound, Message: "gone"}, http.StatusNotFound},
		{"forbidden", &chat.Error{Kind: chat.ErrForbidden, Message: "no"}, http.StatusForbidden},
		{"conflict", &chat.Error{Kind: chat.ErrConflict, Message: "dup"}, http.StatusConflict},
		{"transient", &chat.Error{Kind: chat.ErrTransient, Message: "later"}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			msg := ErrFromChat(3, tc.err)
			assert.Equal(t, 3, msg.Id)
			assert.Equal(t, tc.code, msg.Response.ResponseCode)
			assert.NotEmpty(t, msg.Response.Error)
		})
	}
}
