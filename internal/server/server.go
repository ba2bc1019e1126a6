package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	defaultPongWait     = 60 * time.Second
	defaultMessageRate  = 5
	defaultMessageBurst = 10
)

type Options struct {
	// PongWait is how long a session may stay silent before its
	// connection is dropped. Pings are sent at half this interval.
	PongWait     time.Duration
	MessageRate  float64
	MessageBurst int
}

type stopReq struct {
	done chan struct{}
}

// ChatServer is the hub every websocket session registers with. It
// routes engine events to sessions and tracks which chats each session
// is viewing.
type ChatServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	opts           Options
	mu             sync.RWMutex
	clients        map[string]*Client
	userMap        map[int]map[*Client]struct{}
	viewers        map[string]map[*Client]struct{}
	registerChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, st stats.StatsProvider, opts Options) *ChatServer {
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.MessageRate <= 0 {
		opts.MessageRate = defaultMessageRate
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = defaultMessageBurst
	}

	st.RegisterMetric("NumActiveSessions")
	st.RegisterCounter("TotalSessions")
	st.RegisterCounter("DroppedEvents")

	return &ChatServer{
		log:            logger,
		stats:          st,
		opts:           opts,
		clients:        make(map[string]*Client),
		userMap:        make(map[int]map[*Client]struct{}),
		viewers:        make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	defer close(cs.done)

	for {
		select {
		case client := <-cs.registerChan:
			cs.log.Printf("adding session %s for %q", client.id, client.user.Username)
			cs.addClient(client)
			client.chat.MarkOnline(client.user.Id, client.id)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing session %s for %q", client.id, client.user.Username)
			if cs.removeClient(client) {
				client.chat.MarkOffline(client.id)
			}
		case req := <-cs.stop:
			cs.log.Println("closing client connections")
			cs.mu.RLock()
			for _, c := range cs.clients {
				c.stopClient()
			}
			cs.mu.RUnlock()

			close(req.done)
			return
		}
	}
}

// Register hands a connected client to the hub.
func (cs *ChatServer) Register(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
		c.stopClient()
	}
}

func (cs *ChatServer) deregister(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.clients[c.id] = c
	if cs.userMap[c.user.Id] == nil {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}

	cs.stats.Incr("NumActiveSessions")
	cs.stats.Incr("TotalSessions")
}

func (cs *ChatServer) removeClient(c *Client) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.clients[c.id]; !ok {
		return false
	}

	delete(cs.clients, c.id)
	if sessions, ok := cs.userMap[c.user.Id]; ok {
		delete(sessions, c)
		if len(sessions) == 0 {
			delete(cs.userMap, c.user.Id)
		}
	}
	for chatId, viewers := range cs.viewers {
		delete(viewers, c)
		if len(viewers) == 0 {
			delete(cs.viewers, chatId)
		}
	}

	cs.stats.Decr("NumActiveSessions")
	return true
}

func (cs *ChatServer) view(c *Client, chatId string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.viewers[chatId] == nil {
		cs.viewers[chatId] = make(map[*Client]struct{})
	}
	cs.viewers[chatId][c] = struct{}{}
}

func (cs *ChatServer) unview(c *Client, chatId string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if viewers, ok := cs.viewers[chatId]; ok {
		delete(viewers, c)
		if len(viewers) == 0 {
			delete(cs.viewers, chatId)
		}
	}
}

// forget drops viewing state that an event invalidates.
func (cs *ChatServer) forget(ev *types.Event) {
	switch ev.Name {
	case types.EventChatDeleted:
		cs.mu.Lock()
		delete(cs.viewers, ev.ChatId)
		cs.mu.Unlock()
	case types.EventUserLeft:
		if ev.Membership == nil {
			return
		}
		cs.mu.Lock()
		for c := range cs.viewers[ev.ChatId] {
			if c.user.Id == ev.Membership.UserId {
				delete(cs.viewers[ev.ChatId], c)
			}
		}
		cs.mu.Unlock()
	}
}

func (cs *ChatServer) SendToUsers(userIds []int, ev *types.Event) {
	cs.forget(ev)
	msg := EventMessage(ev)

	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for _, id := range userIds {
		for c := range cs.userMap[id] {
			cs.deliver(c, msg)
		}
	}
}

func (cs *ChatServer) SendToAll(ev *types.Event) {
	msg := EventMessage(ev)

	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for _, c := range cs.clients {
		cs.deliver(c, msg)
	}
}

func (cs *ChatServer) deliver(c *Client, msg *ServerMessage) {
	if !c.queueMessage(msg) {
		cs.stats.Incr("DroppedEvents")
	}
}

func (cs *ChatServer) Viewing(chatId string, userId int) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for c := range cs.viewers[chatId] {
		if c.user.Id == userId {
			return true
		}
	}
	return false
}

func (cs *ChatServer) Disconnect(sessionId string) {
	cs.mu.RLock()
	c, ok := cs.clients[sessionId]
	cs.mu.RUnlock()

	if ok {
		cs.log.Printf("disconnecting session %s", sessionId)
		c.stopClient()
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
