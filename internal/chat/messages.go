package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	MaxContentLength = 2000
	DefaultPageSize  = 50
	MaxPageSize      = 200
)

// MessageStore owns the ordered message log of every conversation and
// the reactions on each message.
type MessageStore struct {
	log      *log.Logger
	db       database.GoChatRepository
	hub      Broadcaster
	rooms    *roomTable
	msgLocks *keyedMutex
	notifier *Dispatcher
	stats    stats.StatsProvider
	retry    retryPolicy
	now      func() time.Time
}

func newMessageStore(logger *log.Logger, db database.GoChatRepository, hub Broadcaster, rooms *roomTable, notifier *Dispatcher, st stats.StatsProvider, retry retryPolicy) *MessageStore {
	return &MessageStore{
		log:      logger,
		db:       db,
		hub:      hub,
		rooms:    rooms,
		msgLocks: newKeyedMutex(),
		notifier: notifier,
		stats:    st,
		retry:    retry,
		now:      time.Now,
	}
}

// Append adds a message from senderId to the end of chatId's log and
// fans it out to the conversation.
func (ms *MessageStore) Append(ctx context.Context, chatId string, senderId int, content string) (*types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(ErrValidation, "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, newError(ErrValidation, fmt.Sprintf("message content cannot exceed %d characters", MaxContentLength))
	}

	ctx = context.WithoutCancel(ctx)

	sender, err := ms.account(ctx, senderId)
	if err != nil {
		return nil, err
	}

	msg, conv, err := ms.commit(ctx, chatId, sender, content)
	if isKind(err, ErrConflict) {
		// Storage is ahead of the cached sequence; commit unloaded the
		// room so this attempt runs against the reloaded state.
		msg, conv, err = ms.commit(ctx, chatId, sender, content)
		var ce *Error
		if errors.As(err, &ce) && ce.Kind == ErrConflict {
			err = &Error{Kind: ErrTransient, Message: "conversation is busy, try again", Err: ce.Err}
		}
	}
	if err != nil {
		return nil, err
	}

	ms.stats.Incr("MessagesSent")

	if conv.Id != types.GlobalChatId {
		var targets []int
		for _, id := range conv.ParticipantIds() {
			if id != senderId && !ms.hub.Viewing(conv.Id, id) {
				targets = append(targets, id)
			}
		}
		ms.notifier.notifyAll(ctx, targets, types.NotificationMessage,
			fmt.Sprintf("%s sent you a message", sender.Username),
			types.NotificationRefs{ChatId: conv.Id, MessageId: msg.Id})
	}

	return msg, nil
}

// commit persists the message under the conversation lock and enqueues
// newMessage before releasing it.
func (ms *MessageStore) commit(ctx context.Context, chatId string, sender database.User, content string) (*types.Message, *types.Conversation, error) {
	r, err := ms.rooms.acquire(ctx, chatId)
	if err != nil {
		return nil, nil, err
	}
	defer r.mu.Unlock()

	if !r.conv.HasParticipant(sender.Id) {
		return nil, nil, newError(ErrForbidden, "you are not a participant of this conversation")
	}

	ts := ms.now().UTC().Round(time.Millisecond)
	if ts.Before(r.lastTs) {
		ts = r.lastTs
	}

	dbMsg := database.Message{
		Id:             uuid.NewString(),
		SeqId:          r.seq + 1,
		ConversationId: chatId,
		UserId:         sender.Id,
		SenderUsername: sender.Username,
		SenderPhoto:    sender.Photo,
		Content:        content,
		Reactions:      []database.Reaction{},
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	err = ms.retry.do(ctx, func() error {
		return ms.db.CreateMessage(ctx, dbMsg)
	})
	if err != nil {
		err = storageError(err, "conversation")
		switch {
		case isKind(err, ErrNotFound):
			ms.rooms.drop(r)
		case isKind(err, ErrConflict), isKind(err, ErrTransient):
			// The write may have landed or another writer took the
			// sequence number. Reload on next acquire.
			ms.rooms.unload(r)
		}
		return nil, nil, err
	}

	r.seq = dbMsg.SeqId
	r.lastTs = ts
	r.conv.SeqId = dbMsg.SeqId

	msg := toMessage(dbMsg)
	fanout(ms.hub, r.conv, &types.Event{
		Name:    types.EventNewMessage,
		ChatId:  chatId,
		Message: msg,
	})

	return msg, cloneConversation(r.conv), nil
}

// List returns up to limit messages of chatId with a sequence number
// below before (0 for the latest), oldest first.
func (ms *MessageStore) List(ctx context.Context, chatId string, userId int, before int64, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var conv *database.Conversation
	err := ms.retry.do(ctx, func() (err error) {
		conv, err = ms.db.GetConversation(ctx, chatId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "conversation")
	}

	if !toConversation(conv).HasParticipant(userId) {
		return nil, newError(ErrForbidden, "you are not a participant of this conversation")
	}

	var dbMessages []database.Message
	err = ms.retry.do(ctx, func() (err error) {
		dbMessages, err = ms.db.GetMessages(ctx, chatId, before, limit)
		return err
	})
	if err != nil {
		return nil, storageError(err, "conversation")
	}

	out := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		out = append(out, *toMessage(m))
	}
	return out, nil
}

// ApplyReaction toggles userId's reaction of type rt on messageId. An
// empty rt clears the user's reaction. Updates to one message are
// serialized; distinct messages proceed independently.
func (ms *MessageStore) ApplyReaction(ctx context.Context, messageId string, userId int, rt types.ReactionType) (*types.Message, error) {
	if rt != "" && !rt.Valid() {
		return nil, newError(ErrValidation, fmt.Sprintf("unknown reaction type %q", rt))
	}

	ctx = context.WithoutCancel(ctx)

	reactor, err := ms.account(ctx, userId)
	if err != nil {
		return nil, err
	}

	unlock := ms.msgLocks.Lock(messageId)
	defer unlock()

	var dbMsg database.Message
	err = ms.retry.do(ctx, func() (err error) {
		dbMsg, err = ms.db.GetMessage(ctx, messageId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "message")
	}

	if dbMsg.UserId == userId {
		return nil, newError(ErrForbidden, "you cannot react to your own message")
	}

	conv, err := ms.snapshot(ctx, dbMsg.ConversationId)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userId) {
		return nil, newError(ErrForbidden, "you are not a participant of this conversation")
	}

	msg := toMessage(dbMsg)
	res := Toggle(msg, userId, rt)
	if res == ReactionUnchanged {
		return msg, nil
	}

	err = ms.retry.do(ctx, func() error {
		return ms.db.UpdateMessageReactions(ctx, messageId, toDbReactions(msg.Reactions))
	})
	if err != nil {
		return nil, storageError(err, "message")
	}

	ms.stats.Incr("ReactionsApplied")

	// Events are handed to the hub under the room lock so they cannot
	// trail a chatDeleted for the same conversation.
	r, err := ms.rooms.acquire(ctx, conv.Id)
	if err != nil {
		ms.log.Printf("skipping reaction events for message %s: %v", messageId, err)
		return msg, nil
	}
	for _, name := range []string{types.EventReactionUpdated, types.EventMessageUpdated} {
		fanout(ms.hub, r.conv, &types.Event{
			Name:    name,
			ChatId:  conv.Id,
			Message: msg.Clone(),
		})
	}
	r.mu.Unlock()

	if res == ReactionAdded || res == ReactionSwitched {
		ms.notifier.notifyAll(ctx, []int{dbMsg.UserId}, types.NotificationReaction,
			fmt.Sprintf("%s reacted %s to your message", reactor.Username, rt),
			types.NotificationRefs{ChatId: conv.Id, MessageId: messageId})
	}

	return msg, nil
}

// snapshot returns a copy of the loaded conversation state.
func (ms *MessageStore) snapshot(ctx context.Context, chatId string) (*types.Conversation, error) {
	r, err := ms.rooms.acquire(ctx, chatId)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	return cloneConversation(r.conv), nil
}

func (ms *MessageStore) account(ctx context.Context, userId int) (database.User, error) {
	var u database.User
	err := ms.retry.do(ctx, func() (err error) {
		u, err = ms.db.GetAccountById(ctx, userId)
		return err
	})
	if err != nil {
		return u, storageError(err, "user")
	}
	return u, nil
}
