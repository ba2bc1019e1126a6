package types

import (
	"time"
)

// GlobalChatId is the reserved id of the "all users" room. Every
// registered user is an implicit participant.
const GlobalChatId = "all"

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Photo     string    `json:"photo,omitempty"`
	Friends   []int     `json:"friends,omitempty"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Participant struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	Photo    string `json:"photo,omitempty"`
}

type Conversation struct {
	Id           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	OwnerId      int           `json:"owner_id"`
	SeqId        int64         `json:"seq_id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}

// HasParticipant reports whether userId is a member of the conversation.
// Every user is a member of the global room.
func (c *Conversation) HasParticipant(userId int) bool {
	if c.Id == GlobalChatId {
		return true
	}
	for _, p := range c.Participants {
		if p.UserId == userId {
			return true
		}
	}
	return false
}

// ParticipantIds returns the ids of all participants in roster order.
func (c *Conversation) ParticipantIds() []int {
	ids := make([]int, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserId)
	}
	return ids
}

type Sender struct {
	Username string `json:"username"`
	Photo    string `json:"photo,omitempty"`
}

type Message struct {
	Id        string     `json:"id"`
	ChatId    string     `json:"chat_id"`
	SeqId     int64      `json:"seq_id"`
	SenderId  int        `json:"sender_id"`
	Sender    Sender     `json:"sender"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Reactions []Reaction `json:"reactions"`
}

// Clone returns a deep copy so callers can mutate reactions without
// touching the original.
func (m *Message) Clone() *Message {
	c := *m
	c.Reactions = make([]Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		c.Reactions[i] = Reaction{
			Type:  r.Type,
			Users: append([]int(nil), r.Users...),
		}
	}
	return &c
}

type ReactionType string

const (
	ReactionHeart ReactionType = "❤️"
	ReactionLike  ReactionType = "👍"
	ReactionLaugh ReactionType = "😂"
	ReactionHands ReactionType = "🫶"
)

var ReactionTypes = []ReactionType{ReactionHeart, ReactionLike, ReactionLaugh, ReactionHands}

func (rt ReactionType) Valid() bool {
	for _, t := range ReactionTypes {
		if rt == t {
			return true
		}
	}
	return false
}

type Reaction struct {
	Type  ReactionType `json:"type"`
	Users []int        `json:"users"`
}

type NotificationType string

const (
	NotificationStartedChat    NotificationType = "startedChat"
	NotificationMessage        NotificationType = "message"
	NotificationFriendRequest  NotificationType = "friendRequest"
	NotificationFriendAccepted NotificationType = "friendRequestAccepted"
	NotificationReaction       NotificationType = "reaction"
	NotificationAddedToChat    NotificationType = "addedToChat"
	NotificationLeftChat       NotificationType = "leftChat"
	NotificationChatDeleted    NotificationType = "chatDeleted"
)

type Notification struct {
	Id        string           `json:"id"`
	UserId    int              `json:"user_id"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	Read      bool             `json:"read"`
	ChatId    string           `json:"chat_id,omitempty"`
	MessageId string           `json:"message_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationRefs links a notification to the entities it is about.
type NotificationRefs struct {
	ChatId    string
	MessageId string
}
