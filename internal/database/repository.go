package database

import "context"

type GoChatRepository interface {
	Ping() error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, accountId int) (User, error)
	UpdateAccountPhoto(ctx context.Context, accountId int, photo string) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	GetAccountsByIds(ctx context.Context, accountIds []int) ([]User, error)
	ListAccounts(ctx context.Context) ([]User, error)
	ListFriendIds(ctx context.Context, accountId int) ([]int, error)
	CreateFriendRequest(ctx context.Context, fromId, toId int) error
	AcceptFriendRequest(ctx context.Context, fromId, toId int) error
	CreateConversation(ctx context.Context, params CreateConversationParams) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, accountId int) ([]Conversation, error)
	AddParticipant(ctx context.Context, conversationId string, accountId int) (Participant, error)
	DeleteParticipant(ctx context.Context, conversationId string, accountId int) error
	DeleteConversation(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, msg Message) error
	GetMessage(ctx context.Context, id string) (Message, error)
	GetMessages(ctx context.Context, conversationId string, before int64, limit int) ([]Message, error)
	UpdateMessageReactions(ctx context.Context, id string, reactions []Reaction) error
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, accountId int) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, accountId int) (int, error)
	MarkNotificationsRead(ctx context.Context, accountId int) (int64, error)
}
