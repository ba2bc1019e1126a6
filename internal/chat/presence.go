package chat

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/types"
)

const DefaultHeartbeatTimeout = 60 * time.Second

// Presence answers whether a user currently has a live session.
type Presence interface {
	IsOnline(userId int) bool
}

type session struct {
	userId   int
	lastSeen time.Time
}

// Tracker maps live sessions to users. A user is online while at least
// one of their sessions is tracked.
type Tracker struct {
	log     *log.Logger
	hub     Broadcaster
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	users    map[int]int

	stop chan struct{}
	done chan struct{}
}

func NewTracker(logger *log.Logger, hub Broadcaster, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}

	return &Tracker{
		log:      logger,
		hub:      hub,
		timeout:  timeout,
		now:      time.Now,
		sessions: make(map[string]*session),
		users:    make(map[int]int),
	}
}

// Start launches the sweeper that evicts sessions whose heartbeat has
// expired.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.sweep(t.stop, t.done)
}

// Stop halts the sweeper and waits for it to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *Tracker) sweep(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.evictExpired()
		}
	}
}

// MarkOnline records that sessionId belongs to userId. A session already
// tracked for the same user only refreshes its heartbeat.
func (t *Tracker) MarkOnline(userId int, sessionId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[sessionId]; ok {
		if s.userId == userId {
			s.lastSeen = t.now()
			return
		}
		t.releaseLocked(s.userId)
	}

	t.sessions[sessionId] = &session{userId: userId, lastSeen: t.now()}
	t.users[userId]++
	t.log.Printf("session %s online for user %d", sessionId, userId)

	t.broadcastLocked()
}

// MarkOffline forgets sessionId. Unknown sessions are ignored.
func (t *Tracker) MarkOffline(sessionId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionId]
	if !ok {
		return
	}
	delete(t.sessions, sessionId)
	t.releaseLocked(s.userId)
	t.log.Printf("session %s offline for user %d", sessionId, s.userId)

	t.broadcastLocked()
}

// Touch refreshes the heartbeat of sessionId.
func (t *Tracker) Touch(sessionId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[sessionId]; ok {
		s.lastSeen = t.now()
	}
}

func (t *Tracker) ListOnline() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.listLocked()
}

func (t *Tracker) IsOnline(userId int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.users[userId] > 0
}

func (t *Tracker) evictExpired() {
	t.mu.Lock()
	now := t.now()
	var evicted []string
	for id, s := range t.sessions {
		if now.Sub(s.lastSeen) > t.timeout {
			delete(t.sessions, id)
			t.releaseLocked(s.userId)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		t.broadcastLocked()
	}
	t.mu.Unlock()

	for _, id := range evicted {
		t.log.Printf("session %s missed its heartbeat, disconnecting", id)
		t.hub.Disconnect(id)
	}
}

func (t *Tracker) releaseLocked(userId int) {
	t.users[userId]--
	if t.users[userId] <= 0 {
		delete(t.users, userId)
	}
}

func (t *Tracker) listLocked() []int {
	ids := make([]int, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Tracker) broadcastLocked() {
	t.hub.SendToAll(&types.Event{
		Name:        types.EventUpdateOnlineUsers,
		OnlineUsers: t.listLocked(),
	})
}
