package chat

import (
	"context"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// room is the in-memory state of one loaded conversation. Its mutex
// serializes appends and membership changes for the conversation, and
// events for the conversation are handed to the hub while it is held.
type room struct {
	mu      sync.Mutex
	id      string
	conv    *types.Conversation
	seq     int64
	lastTs  time.Time
	deleted bool
}

type roomTable struct {
	db    database.GoChatRepository
	retry retryPolicy
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomTable(db database.GoChatRepository, retry retryPolicy) *roomTable {
	return &roomTable{
		db:    db,
		retry: retry,
		rooms: make(map[string]*room),
	}
}

func (t *roomTable) get(id string) *room {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[id]
	if !ok {
		r = &room{id: id}
		t.rooms[id] = r
	}
	return r
}

// loaded returns the rooms currently in the table.
func (t *roomTable) loaded() []*room {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*room, 0, len(t.rooms))
	for _, r := range t.rooms {
		out = append(out, r)
	}
	return out
}

// remove unloads r if it is still the table's entry for its id.
func (t *roomTable) remove(r *room) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.rooms[r.id]; ok && cur == r {
		delete(t.rooms, r.id)
	}
}

// acquire returns the locked room for id, loading the conversation from
// storage on first use. The caller must unlock r.mu.
func (t *roomTable) acquire(ctx context.Context, id string) (*room, error) {
	r := t.get(id)
	r.mu.Lock()

	if r.deleted {
		r.mu.Unlock()
		return nil, newError(ErrNotFound, "conversation not found")
	}

	if r.conv != nil {
		return r, nil
	}

	var dbConv *database.Conversation
	err := t.retry.do(ctx, func() (err error) {
		dbConv, err = t.db.GetConversation(ctx, id)
		return err
	})
	if err != nil {
		r.mu.Unlock()
		if err = storageError(err, "conversation"); isKind(err, ErrNotFound) {
			t.remove(r)
		}
		return nil, err
	}

	r.conv = toConversation(dbConv)
	r.seq = dbConv.SeqId
	return r, nil
}

// unload forgets r's cached state so the next acquire reloads it from
// storage. r stays in the table and keeps serializing callers. r.mu must
// be held.
func (t *roomTable) unload(r *room) {
	r.conv = nil
	r.seq = 0
}

// drop marks r deleted and unloads it. r.mu must be held.
func (t *roomTable) drop(r *room) {
	r.deleted = true
	t.remove(r)
}
