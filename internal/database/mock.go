package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGoChatRepository struct {
	mock.Mock
}

func (m *MockGoChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountById(ctx context.Context, accountId int) (User, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) UpdateAccountPhoto(ctx context.Context, accountId int, photo string) (User, error) {
	args := m.Called(ctx, accountId, photo)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountsByIds(ctx context.Context, accountIds []int) ([]User, error) {
	args := m.Called(ctx, accountIds)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) ListAccounts(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) ListFriendIds(ctx context.Context, accountId int) ([]int, error) {
	args := m.Called(ctx, accountId)
	if ids, ok := args.Get(0).([]int); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) CreateFriendRequest(ctx context.Context, fromId, toId int) error {
	args := m.Called(ctx, fromId, toId)
	return args.Error(0)
}
func (m *MockGoChatRepository) AcceptFriendRequest(ctx context.Context, fromId, toId int) error {
	args := m.Called(ctx, fromId, toId)
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateConversation(ctx context.Context, params CreateConversationParams) (*Conversation, error) {
	args := m.Called(ctx, params)
	if conv, ok := args.Get(0).(*Conversation); ok {
		return conv, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	args := m.Called(ctx, id)
	if conv, ok := args.Get(0).(*Conversation); ok {
		return conv, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) ListConversations(ctx context.Context, accountId int) ([]Conversation, error) {
	args := m.Called(ctx, accountId)
	if convs, ok := args.Get(0).([]Conversation); ok {
		return convs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) AddParticipant(ctx context.Context, conversationId string, accountId int) (Participant, error) {
	args := m.Called(ctx, conversationId, accountId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockGoChatRepository) DeleteParticipant(ctx context.Context, conversationId string, accountId int) error {
	args := m.Called(ctx, conversationId, accountId)
	return args.Error(0)
}
func (m *MockGoChatRepository) DeleteConversation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateMessage(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockGoChatRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGoChatRepository) GetMessages(ctx context.Context, conversationId string, before int64, limit int) ([]Message, error) {
	args := m.Called(ctx, conversationId, before, limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) UpdateMessageReactions(ctx context.Context, id string, reactions []Reaction) error {
	args := m.Called(ctx, id, reactions)
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateNotification(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
func (m *MockGoChatRepository) ListNotifications(ctx context.Context, accountId int) ([]Notification, error) {
	args := m.Called(ctx, accountId)
	if ns, ok := args.Get(0).([]Notification); ok {
		return ns, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockGoChatRepository) CountUnreadNotifications(ctx context.Context, accountId int) (int, error) {
	args := m.Called(ctx, accountId)
	return args.Int(0), args.Error(1)
}
func (m *MockGoChatRepository) MarkNotificationsRead(ctx context.Context, accountId int) (int64, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(int64), args.Error(1)
}
