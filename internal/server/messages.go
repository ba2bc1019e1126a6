package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chat"
	"github.com/npezzotti/go-chatsync/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a frame sent by a client. Exactly one op field is set.
type ClientMessage struct {
	BaseMessage
	UserOnline  *UserOnline  `json:"userOnline,omitempty"`
	UserOffline *UserOffline `json:"userOffline,omitempty"`
	JoinChat    *JoinChat    `json:"joinChat,omitempty"`
	LeaveChat   *LeaveChat   `json:"leaveChat,omitempty"`
	Publish     *Publish     `json:"publish,omitempty"`
	React       *React       `json:"react,omitempty"`
	UserId      int          `json:"-"`
	client      *Client      `json:"-"`
}

type UserOnline struct {
	UserId int `json:"user_id"`
}

type UserOffline struct{}

type JoinChat struct {
	ChatId string `json:"chat_id"`
}

type LeaveChat struct {
	ChatId string `json:"chat_id"`
}

type Publish struct {
	ChatId  string `json:"chat_id"`
	Content string `json:"content"`
}

type React struct {
	MessageId string             `json:"message_id"`
	Type      types.ReactionType `json:"type"`
}

// ServerMessage is either a response to a client frame or a pushed event.
type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	*types.Event
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func EventMessage(ev *types.Event) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: ev,
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errorResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return errorResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errorResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrTooManyRequests(id int) *ServerMessage {
	return errorResponse(id, http.StatusTooManyRequests, "too many requests")
}

func ErrForbidden(id int, msg string) *ServerMessage {
	return errorResponse(id, http.StatusForbidden, msg)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errorResponse(id, http.StatusBadRequest, "invalid message format")
}

// ErrFromChat converts an engine error into a response frame.
func ErrFromChat(id int, err error) *ServerMessage {
	var ce *chat.Error
	if !errors.As(err, &ce) {
		return ErrInternalError(id)
	}

	switch ce.Kind {
	case chat.ErrValidation:
		return errorResponse(id, http.StatusBadRequest, ce.Message)
	case chat.ErrNotFound:
		return errorResponse(id, http.StatusNotFound, ce.Message)
	case chat.ErrForbidden:
		return errorResponse(id, http.StatusForbidden, ce.Message)
	case chat.ErrConflict:
		return errorResponse(id, http.StatusConflict, ce.Message)
	case chat.ErrTransient:
		return ErrServiceUnavailable(id)
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
