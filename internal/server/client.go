package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid/v2"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/npezzotti/go-chatsync/internal/types"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 256
	sessionIdChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	sessionIdSize  = 16
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatService is the part of the engine a session talks to.
type ChatService interface {
	MarkOnline(userId int, sessionId string)
	MarkOffline(sessionId string)
	Touch(sessionId string)
	OnlineUsers() []int
	CanJoin(ctx context.Context, chatId string, userId int) error
	SendMessage(ctx context.Context, chatId string, userId int, content string) (*types.Message, error)
	React(ctx context.Context, messageId string, userId int, rt types.ReactionType) (*types.Message, error)
}

type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	chat       ChatService
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	limiter    *rate.Limiter
	ctx        context.Context
	cancel     context.CancelFunc
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, svc ChatService, l *log.Logger) (*Client, error) {
	id, err := nanoid.GenerateString(sessionIdChars, sessionIdSize)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		chat:       svc,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, sendBufferSize),
		limiter:    rate.NewLimiter(rate.Limit(cs.opts.MessageRate), cs.opts.MessageBurst),
		ctx:        ctx,
		cancel:     cancel,
		stop:       make(chan struct{}),
	}, nil
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(c.chatServer.opts.PongWait / 2)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	pongWait := c.chatServer.opts.PongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.chat.Touch(c.id)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.chat.Touch(c.id)

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(0))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.UserOnline != nil:
		c.userOnline(msg)
	case msg.UserOffline != nil:
		c.chat.MarkOffline(c.id)
		c.queueMessage(NoErrOK(msg.Id, nil))
	case msg.JoinChat != nil:
		c.joinChat(msg)
	case msg.LeaveChat != nil:
		c.chatServer.unview(c, msg.LeaveChat.ChatId)
		c.queueMessage(NoErrOK(msg.Id, nil))
	case msg.Publish != nil:
		c.publish(msg)
	case msg.React != nil:
		c.react(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// userOnline re-announces the session and answers with the online set.
// The announced id must match the authenticated user.
func (c *Client) userOnline(msg *ClientMessage) {
	if msg.UserOnline.UserId != 0 && msg.UserOnline.UserId != c.user.Id {
		c.queueMessage(ErrForbidden(msg.Id, "user id does not match the authenticated user"))
		return
	}

	c.chat.MarkOnline(c.user.Id, c.id)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"online_users": c.chat.OnlineUsers(),
	}))
}

func (c *Client) joinChat(msg *ClientMessage) {
	if err := c.chat.CanJoin(c.ctx, msg.JoinChat.ChatId, c.user.Id); err != nil {
		c.queueMessage(ErrFromChat(msg.Id, err))
		return
	}

	c.chatServer.view(c, msg.JoinChat.ChatId)
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) publish(msg *ClientMessage) {
	if !c.limiter.Allow() {
		c.queueMessage(ErrTooManyRequests(msg.Id))
		return
	}

	m, err := c.chat.SendMessage(c.ctx, msg.Publish.ChatId, c.user.Id, msg.Publish.Content)
	if err != nil {
		c.log.Printf("publish from %q: %v", c.user.Username, err)
		c.queueMessage(ErrFromChat(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"message_id": m.Id,
		"seq_id":     m.SeqId,
	}))
}

func (c *Client) react(msg *ClientMessage) {
	if !c.limiter.Allow() {
		c.queueMessage(ErrTooManyRequests(msg.Id))
		return
	}

	m, err := c.chat.React(c.ctx, msg.React.MessageId, c.user.Id, msg.React.Type)
	if err != nil {
		c.queueMessage(ErrFromChat(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, m))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for session %s, dropping message", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deregister(c)
	c.stopClient()
}
