package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/testutil"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/mock"
)

type sentEvent struct {
	users []int
	all   bool
	ev    *types.Event
}

type fakeHub struct {
	mu           sync.Mutex
	sent         []sentEvent
	viewing      map[string]map[int]bool
	disconnected []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{viewing: make(map[string]map[int]bool)}
}

func (h *fakeHub) SendToUsers(userIds []int, ev *types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentEvent{users: append([]int(nil), userIds...), ev: ev})
}

func (h *fakeHub) SendToAll(ev *types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentEvent{all: true, ev: ev})
}

func (h *fakeHub) Viewing(chatId string, userId int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewing[chatId][userId]
}

func (h *fakeHub) Disconnect(sessionId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, sessionId)
}

func (h *fakeHub) view(chatId string, userId int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.viewing[chatId] == nil {
		h.viewing[chatId] = make(map[int]bool)
	}
	h.viewing[chatId][userId] = true
}

func (h *fakeHub) named(name string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []sentEvent
	for _, s := range h.sent {
		if s.ev.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *database.MockGoChatRepository, *fakeHub) {
	t.Helper()

	db := new(database.MockGoChatRepository)
	svc, hub := newTestServiceWith(t, db)
	return svc, db, hub
}

// newTestServiceWith builds a service over an arbitrary repository.
func newTestServiceWith(t *testing.T, db database.GoChatRepository) (*Service, *fakeHub) {
	t.Helper()

	hub := newFakeHub()
	st := new(stats.MockStatsUpdater)
	st.On("RegisterCounter", mock.Anything).Return()
	st.On("Incr", mock.Anything).Return()

	svc := NewService(testutil.TestLogger(t), db, hub, st, Options{
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})
	return svc, hub
}

func testConversation(id string, ownerId int, memberIds ...int) *database.Conversation {
	conv := &database.Conversation{
		Id:      id,
		Name:    "test chat",
		OwnerId: ownerId,
	}
	for i, uid := range append([]int{ownerId}, memberIds...) {
		conv.Participants = append(conv.Participants, database.Participant{
			Id:             i + 1,
			ConversationId: id,
			AccountId:      uid,
			Username:       username(uid),
		})
	}
	return conv
}

func globalConversation() *database.Conversation {
	return &database.Conversation{Id: types.GlobalChatId, Name: "All chat"}
}

func username(id int) string {
	return map[int]string{1: "alice", 2: "bob", 3: "carol", 4: "dave"}[id]
}

func expectAccount(db *database.MockGoChatRepository, id int) {
	db.On("GetAccountById", mock.Anything, id).Return(database.User{Id: id, Username: username(id)}, nil)
}

func notificationFor(userId int, typ types.NotificationType) any {
	return mock.MatchedBy(func(n database.Notification) bool {
		return n.AccountId == userId && n.Type == string(typ)
	})
}
