package server

import (
	"context"

	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/mock"
)

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) MarkOnline(userId int, sessionId string) {
	m.Called(userId, sessionId)
}
func (m *mockChatService) MarkOffline(sessionId string) {
	m.Called(sessionId)
}
func (m *mockChatService) Touch(sessionId string) {
	m.Called(sessionId)
}
func (m *mockChatService) OnlineUsers() []int {
	args := m.Called()
	return args.Get(0).([]int)
}
func (m *mockChatService) CanJoin(ctx context.Context, chatId string, userId int) error {
	args := m.Called(ctx, chatId, userId)
	return args.Error(0)
}
func (m *mockChatService) SendMessage(ctx context.Context, chatId string, userId int, content string) (*types.Message, error) {
	args := m.Called(ctx, chatId, userId, content)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockChatService) React(ctx context.Context, messageId string, userId int, rt types.ReactionType) (*types.Message, error) {
	args := m.Called(ctx, messageId, userId, rt)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}
