package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/teris-io/shortid"
)

const MaxChatNameLength = 100

// Manager controls the lifecycle and roster of conversations.
type Manager struct {
	log       *log.Logger
	db        database.GoChatRepository
	hub       Broadcaster
	rooms     *roomTable
	notifier  *Dispatcher
	retry     retryPolicy
	newChatId func() (string, error)
}

func newManager(logger *log.Logger, db database.GoChatRepository, hub Broadcaster, rooms *roomTable, notifier *Dispatcher, retry retryPolicy) *Manager {
	return &Manager{
		log:       logger,
		db:        db,
		hub:       hub,
		rooms:     rooms,
		notifier:  notifier,
		retry:     retry,
		newChatId: shortid.Generate,
	}
}

// Create starts a conversation owned by ownerId with the given
// participants. Duplicate ids are collapsed and the owner always comes
// first in the roster.
func (m *Manager) Create(ctx context.Context, ownerId int, name string, participantIds []int) (*types.Conversation, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxChatNameLength {
		return nil, newError(ErrValidation, fmt.Sprintf("conversation name cannot exceed %d characters", MaxChatNameLength))
	}

	seen := map[int]bool{ownerId: true}
	var others []int
	for _, id := range participantIds {
		if id <= 0 {
			return nil, newError(ErrValidation, fmt.Sprintf("invalid user id %d", id))
		}
		if !seen[id] {
			seen[id] = true
			others = append(others, id)
		}
	}

	ctx = context.WithoutCancel(ctx)

	id, err := m.newChatId()
	if err != nil {
		return nil, fmt.Errorf("generate conversation id: %w", err)
	}

	var dbConv *database.Conversation
	err = m.retry.do(ctx, func() (err error) {
		dbConv, err = m.db.CreateConversation(ctx, database.CreateConversationParams{
			Id:             id,
			Name:           name,
			OwnerId:        ownerId,
			ParticipantIds: others,
		})
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	conv := toConversation(dbConv)

	r := m.rooms.get(conv.Id)
	r.mu.Lock()
	r.conv = conv
	r.seq = conv.SeqId
	fanout(m.hub, conv, &types.Event{
		Name:         types.EventNewChat,
		ChatId:       conv.Id,
		Conversation: cloneConversation(conv),
	})
	snap := cloneConversation(conv)
	r.mu.Unlock()

	m.notifier.notifyAll(ctx, others, types.NotificationStartedChat,
		fmt.Sprintf("%s started a chat with you", ownerName(snap)),
		types.NotificationRefs{ChatId: snap.Id})

	return snap, nil
}

// Get returns chatId if userId is one of its participants.
func (m *Manager) Get(ctx context.Context, chatId string, userId int) (*types.Conversation, error) {
	var dbConv *database.Conversation
	err := m.retry.do(ctx, func() (err error) {
		dbConv, err = m.db.GetConversation(ctx, chatId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "conversation")
	}

	conv := toConversation(dbConv)
	if !conv.HasParticipant(userId) {
		return nil, newError(ErrForbidden, "you are not a participant of this conversation")
	}
	return conv, nil
}

// ListFor returns the conversations userId participates in. The global
// room is always first.
func (m *Manager) ListFor(ctx context.Context, userId int) ([]types.Conversation, error) {
	var dbConvs []database.Conversation
	err := m.retry.do(ctx, func() (err error) {
		dbConvs, err = m.db.ListConversations(ctx, userId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	var global *database.Conversation
	err = m.retry.do(ctx, func() (err error) {
		global, err = m.db.GetConversation(ctx, types.GlobalChatId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "conversation")
	}

	out := make([]types.Conversation, 0, len(dbConvs)+1)
	out = append(out, *toConversation(global))
	for i := range dbConvs {
		out = append(out, *toConversation(&dbConvs[i]))
	}
	return out, nil
}

// AddParticipant adds newUserId to chatId on behalf of actorId, who must
// already be a participant.
func (m *Manager) AddParticipant(ctx context.Context, chatId string, actorId, newUserId int) (*types.Conversation, error) {
	if chatId == types.GlobalChatId {
		return nil, newError(ErrForbidden, "the global chat has no roster")
	}

	ctx = context.WithoutCancel(ctx)

	conv, actor, err := m.addLocked(ctx, chatId, actorId, newUserId)
	if err != nil {
		return nil, err
	}

	m.notifier.notifyAll(ctx, []int{newUserId}, types.NotificationAddedToChat,
		fmt.Sprintf("%s added you to %s", actor, chatName(conv)),
		types.NotificationRefs{ChatId: chatId})

	return conv, nil
}

func (m *Manager) addLocked(ctx context.Context, chatId string, actorId, newUserId int) (*types.Conversation, string, error) {
	r, err := m.rooms.acquire(ctx, chatId)
	if err != nil {
		return nil, "", err
	}
	defer r.mu.Unlock()

	if !r.conv.HasParticipant(actorId) {
		return nil, "", newError(ErrForbidden, "you are not a participant of this conversation")
	}
	if r.conv.HasParticipant(newUserId) {
		return nil, "", newError(ErrConflict, "user is already a participant")
	}

	var p database.Participant
	err = m.retry.do(ctx, func() (err error) {
		p, err = m.db.AddParticipant(ctx, chatId, newUserId)
		return err
	})
	if err != nil {
		if err = storageError(err, "user"); isKind(err, ErrConflict) {
			err = newError(ErrConflict, "user is already a participant")
		}
		return nil, "", err
	}

	r.conv.Participants = append(r.conv.Participants, toParticipant(p))

	fanout(m.hub, r.conv, &types.Event{
		Name:       types.EventUserAdded,
		ChatId:     chatId,
		Membership: &types.MembershipChange{ChatId: chatId, UserId: newUserId},
	})

	return cloneConversation(r.conv), participantName(r.conv, actorId), nil
}

// RemoveSelf takes userId out of chatId. The owner cannot leave; they
// delete the conversation instead.
func (m *Manager) RemoveSelf(ctx context.Context, chatId string, userId int) error {
	if chatId == types.GlobalChatId {
		return newError(ErrForbidden, "you cannot leave the global chat")
	}

	ctx = context.WithoutCancel(ctx)

	conv, leaver, err := m.leaveLocked(ctx, chatId, userId)
	if err != nil {
		return err
	}

	m.notifier.notifyAll(ctx, []int{conv.OwnerId}, types.NotificationLeftChat,
		fmt.Sprintf("%s left %s", leaver, chatName(conv)),
		types.NotificationRefs{ChatId: chatId})

	return nil
}

func (m *Manager) leaveLocked(ctx context.Context, chatId string, userId int) (*types.Conversation, string, error) {
	r, err := m.rooms.acquire(ctx, chatId)
	if err != nil {
		return nil, "", err
	}
	defer r.mu.Unlock()

	if r.conv.OwnerId == userId {
		return nil, "", newError(ErrForbidden, "the owner cannot leave the conversation, delete it instead")
	}
	if !r.conv.HasParticipant(userId) {
		return nil, "", newError(ErrForbidden, "you are not a participant of this conversation")
	}

	err = m.retry.do(ctx, func() error {
		return m.db.DeleteParticipant(ctx, chatId, userId)
	})
	if err != nil {
		return nil, "", storageError(err, "participant")
	}

	leaver := participantName(r.conv, userId)
	kept := r.conv.Participants[:0]
	for _, p := range r.conv.Participants {
		if p.UserId != userId {
			kept = append(kept, p)
		}
	}
	r.conv.Participants = kept

	m.hub.SendToUsers(append(r.conv.ParticipantIds(), userId), &types.Event{
		Name:       types.EventUserLeft,
		ChatId:     chatId,
		Membership: &types.MembershipChange{ChatId: chatId, UserId: userId},
	})

	return cloneConversation(r.conv), leaver, nil
}

// Delete removes chatId with all of its messages and memberships. Only
// the owner may delete a conversation.
func (m *Manager) Delete(ctx context.Context, chatId string, actorId int) error {
	if chatId == types.GlobalChatId {
		return newError(ErrForbidden, "the global chat cannot be deleted")
	}

	ctx = context.WithoutCancel(ctx)

	conv, err := m.deleteLocked(ctx, chatId, actorId)
	if err != nil {
		return err
	}

	var targets []int
	for _, id := range conv.ParticipantIds() {
		if id != conv.OwnerId {
			targets = append(targets, id)
		}
	}
	m.notifier.notifyAll(ctx, targets, types.NotificationChatDeleted,
		fmt.Sprintf("%s deleted %s", ownerName(conv), chatName(conv)),
		types.NotificationRefs{ChatId: chatId})

	return nil
}

func (m *Manager) deleteLocked(ctx context.Context, chatId string, actorId int) (*types.Conversation, error) {
	r, err := m.rooms.acquire(ctx, chatId)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if r.conv.OwnerId != actorId {
		return nil, newError(ErrForbidden, "only the owner can delete the conversation")
	}

	err = m.retry.do(ctx, func() error {
		return m.db.DeleteConversation(ctx, chatId)
	})
	if err != nil {
		err = storageError(err, "conversation")
		if isKind(err, ErrNotFound) {
			m.rooms.drop(r)
		}
		return nil, err
	}

	m.rooms.drop(r)
	m.log.Printf("conversation %s deleted by user %d", chatId, actorId)

	fanout(m.hub, r.conv, &types.Event{
		Name:         types.EventChatDeleted,
		ChatId:       chatId,
		Conversation: cloneConversation(r.conv),
	})

	return cloneConversation(r.conv), nil
}

func participantName(conv *types.Conversation, userId int) string {
	for _, p := range conv.Participants {
		if p.UserId == userId {
			return p.Username
		}
	}
	return fmt.Sprintf("user %d", userId)
}

func ownerName(conv *types.Conversation) string {
	return participantName(conv, conv.OwnerId)
}

func chatName(conv *types.Conversation) string {
	if conv.Name != "" {
		return conv.Name
	}
	return "a chat"
}
