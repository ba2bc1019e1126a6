package database

import "time"

type User struct {
	Id           int
	Username     string
	Photo        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	Id           string
	Name         string
	OwnerId      int
	SeqId        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
}

type Participant struct {
	Id             int
	ConversationId string
	AccountId      int
	Username       string
	Photo          string
	CreatedAt      time.Time
}

type Reaction struct {
	Type  string `json:"type"`
	Users []int  `json:"users"`
}

type Message struct {
	Id             string
	SeqId          int64
	ConversationId string
	UserId         int
	SenderUsername string
	SenderPhoto    string
	Content        string
	Reactions      []Reaction
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Notification struct {
	Id             string
	AccountId      int
	Type           string
	Content        string
	Read           bool
	ConversationId string
	MessageId      string
	CreatedAt      time.Time
}

type CreateAccountParams struct {
	Username     string
	Photo        string
	PasswordHash string
}

type CreateConversationParams struct {
	Id             string
	Name           string
	OwnerId        int
	ParticipantIds []int
}
