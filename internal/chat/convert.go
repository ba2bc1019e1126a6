package chat

import (
	"errors"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
)

func isKind(err, kind error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func toConversation(c *database.Conversation) *types.Conversation {
	conv := &types.Conversation{
		Id:           c.Id,
		Name:         c.Name,
		OwnerId:      c.OwnerId,
		SeqId:        c.SeqId,
		Participants: make([]types.Participant, 0, len(c.Participants)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, p := range c.Participants {
		conv.Participants = append(conv.Participants, toParticipant(p))
	}
	return conv
}

func toParticipant(p database.Participant) types.Participant {
	return types.Participant{
		UserId:   p.AccountId,
		Username: p.Username,
		Photo:    p.Photo,
	}
}

// cloneConversation copies the roster so the snapshot can leave the
// room's lock.
func cloneConversation(c *types.Conversation) *types.Conversation {
	cp := *c
	cp.Participants = append([]types.Participant(nil), c.Participants...)
	return &cp
}

func toMessage(m database.Message) *types.Message {
	msg := &types.Message{
		Id:       m.Id,
		ChatId:   m.ConversationId,
		SeqId:    m.SeqId,
		SenderId: m.UserId,
		Sender: types.Sender{
			Username: m.SenderUsername,
			Photo:    m.SenderPhoto,
		},
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		Reactions: make([]types.Reaction, 0, len(m.Reactions)),
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, types.Reaction{
			Type:  types.ReactionType(r.Type),
			Users: append([]int(nil), r.Users...),
		})
	}
	return msg
}

func toDbReactions(reactions []types.Reaction) []database.Reaction {
	out := make([]database.Reaction, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, database.Reaction{
			Type:  string(r.Type),
			Users: append([]int(nil), r.Users...),
		})
	}
	return out
}

func toNotification(n database.Notification) *types.Notification {
	return &types.Notification{
		Id:        n.Id,
		UserId:    n.AccountId,
		Type:      types.NotificationType(n.Type),
		Content:   n.Content,
		Read:      n.Read,
		ChatId:    n.ConversationId,
		MessageId: n.MessageId,
		CreatedAt: n.CreatedAt,
	}
}

func toUser(u database.User, friends []int) *types.User {
	return &types.User{
		Id:        u.Id,
		Username:  u.Username,
		Photo:     u.Photo,
		Friends:   friends,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
