package api

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
		status  int
		body    string
	}{
		{
			name:   "successful health check",
			status: http.StatusOK,
			body:   "OK",
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
			status:  http.StatusInternalServerError,
			body:    "NOT OK",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.db.On("Ping").Return(tc.mockErr).Once()

			rr := app.do(t, http.MethodGet, "/healthz", 0, nil)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.body, rr.Body.String())
			app.db.AssertExpectations(t)
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		app := newTestApp(t)
		app.db.On("CreateAccount", mock.Anything, mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Username == "alice" &&
				bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("password123")) == nil
		})).Return(account(1, "alice"), nil).Once()

		rr := app.do(t, http.MethodPost, "/api/users/register", 0, RegisterRequest{
			Username: "alice",
			Password: "password123",
		})

		require.Equal(t, http.StatusCreated, rr.Code)
		user := decodeBody[types.User](t, rr)
		assert.Equal(t, 1, user.Id)
		assert.Equal(t, "alice", user.Username)
		app.db.AssertExpectations(t)
	})

	tcases := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "missing username", req: RegisterRequest{Password: "password123"}},
		{name: "short password", req: RegisterRequest{Username: "alice", Password: "short"}},
		{name: "non alphanumeric username", req: RegisterRequest{Username: "al ice", Password: "password123"}},
		{name: "invalid photo", req: RegisterRequest{Username: "alice", Password: "password123", Photo: "not a url"}},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)

			rr := app.do(t, http.MethodPost, "/api/users/register", 0, tc.req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			app.db.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
		})
	}

	t.Run("username taken", func(t *testing.T) {
		app := newTestApp(t)
		app.db.On("CreateAccount", mock.Anything, mock.Anything).
			Return(database.User{}, database.ErrConflict).Once()

		rr := app.do(t, http.MethodPost, "/api/users/register", 0, RegisterRequest{
			Username: "alice",
			Password: "password123",
		})

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "username already taken", decodeBody[ApiError](t, rr).Message)
	})
}

func TestUsersHandlers(t *testing.T) {
	app := newTestApp(t)
	app.db.On("ListAccounts", mock.Anything).
		Return([]database.User{account(1, "alice"), account(2, "bob")}, nil).Once()
	app.db.On("GetAccountByUsername", mock.Anything, "bob").Return(account(2, "bob"), nil).Once()
	app.db.On("GetAccountByUsername", mock.Anything, "nobody").Return(database.User{}, sql.ErrNoRows).Once()

	rr := app.do(t, http.MethodGet, "/api/users", 1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	users := decodeBody[[]types.User](t, rr)
	assert.Len(t, users, 2)

	rr = app.do(t, http.MethodGet, "/api/users/bob", 1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decodeBody[types.User](t, rr).Id)

	rr = app.do(t, http.MethodGet, "/api/users/nobody", 1, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	app.db.AssertExpectations(t)
}

func TestAccountHandler(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetAccountById", mock.Anything, 1).Return(account(1, "alice"), nil).Once()
	app.db.On("ListFriendIds", mock.Anything, 1).Return([]int{2, 3}, nil).Once()

	rr := app.do(t, http.MethodGet, "/api/account", 1, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	user := decodeBody[types.User](t, rr)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []int{2, 3}, user.Friends)
}

func TestChangePhotoHandler(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/account/photo", 1, ChangePhotoRequest{Photo: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	updated := account(1, "alice")
	updated.Photo = "https://example.com/alice.png"
	app.db.On("UpdateAccountPhoto", mock.Anything, 1, "https://example.com/alice.png").Return(updated, nil).Once()
	app.db.On("ListFriendIds", mock.Anything, 1).Return([]int{}, nil).Once()

	rr = app.do(t, http.MethodPost, "/api/account/photo", 1, ChangePhotoRequest{Photo: "https://example.com/alice.png"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://example.com/alice.png", decodeBody[types.User](t, rr).Photo)
	app.db.AssertExpectations(t)
}

func TestSendFriendRequestHandler(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/friends/requests", 1, FriendRequest{UserId: 1})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "you cannot send a friend request to yourself", decodeBody[ApiError](t, rr).Message)

	rr = app.do(t, http.MethodPost, "/api/friends/requests", 1, FriendRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetConversationHandler(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetConversation", mock.Anything, "abc").Return(conversation("abc", 1, 2), nil)
	app.db.On("GetConversation", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	rr := app.do(t, http.MethodGet, "/api/conversations/abc", 2, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	conv := decodeBody[types.Conversation](t, rr)
	assert.Equal(t, "abc", conv.Id)
	assert.Equal(t, []int{1, 2}, conv.ParticipantIds())

	rr = app.do(t, http.MethodGet, "/api/conversations/abc", 3, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/conversations/missing", 1, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateConversationHandler(t *testing.T) {
	app := newTestApp(t)
	app.db.On("CreateConversation", mock.Anything, mock.MatchedBy(func(p database.CreateConversationParams) bool {
		return p.OwnerId == 1 && p.Name == "plans" && len(p.ParticipantIds) == 1 && p.ParticipantIds[0] == 2
	})).Return(conversation("xyz", 1, 2), nil).Once()
	app.db.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n database.Notification) bool {
		return n.AccountId == 2 && n.Type == string(types.NotificationStartedChat)
	})).Return(nil).Once()

	rr := app.do(t, http.MethodPost, "/api/conversations", 1, CreateConversationRequest{
		Name:           "plans",
		ParticipantIds: []int{2, 2, 1},
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "xyz", decodeBody[types.Conversation](t, rr).Id)
	app.db.AssertExpectations(t)

	rr = app.do(t, http.MethodPost, "/api/conversations", 1, CreateConversationRequest{
		ParticipantIds: []int{-1},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteConversationHandler(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetConversation", mock.Anything, "abc").Return(conversation("abc", 1, 2), nil)

	rr := app.do(t, http.MethodDelete, "/api/conversations/abc", 2, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	app.db.On("DeleteConversation", mock.Anything, "abc").Return(nil).Once()
	app.db.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n database.Notification) bool {
		return n.AccountId == 2 && n.Type == string(types.NotificationChatDeleted)
	})).Return(nil).Once()

	rr = app.do(t, http.MethodDelete, "/api/conversations/abc", 1, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.do(t, http.MethodDelete, "/api/conversations/"+types.GlobalChatId, 1, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	app.db.AssertExpectations(t)
}

func TestMessagesHandlers(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetConversation", mock.Anything, "abc").Return(conversation("abc", 1, 2), nil)
	app.db.On("GetAccountById", mock.Anything, 1).Return(account(1, "alice"), nil)

	t.Run("send", func(t *testing.T) {
		app.db.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m database.Message) bool {
			return m.ConversationId == "abc" && m.Content == "hello" && m.SeqId == 1
		})).Return(nil).Once()
		app.db.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n database.Notification) bool {
			return n.AccountId == 2 && n.Type == string(types.NotificationMessage)
		})).Return(nil).Once()

		rr := app.do(t, http.MethodPost, "/api/conversations/abc/messages", 1, SendMessageRequest{Content: "  hello "})

		require.Equal(t, http.StatusCreated, rr.Code)
		msg := decodeBody[types.Message](t, rr)
		assert.Equal(t, int64(1), msg.SeqId)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "alice", msg.Sender.Username)
	})

	t.Run("send empty", func(t *testing.T) {
		rr := app.do(t, http.MethodPost, "/api/conversations/abc/messages", 1, SendMessageRequest{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list", func(t *testing.T) {
		app.db.On("GetMessages", mock.Anything, "abc", int64(10), 5).Return([]database.Message{
			{Id: "m1", SeqId: 1, ConversationId: "abc", UserId: 1, Content: "hello", CreatedAt: time.Now()},
		}, nil).Once()

		rr := app.do(t, http.MethodGet, "/api/conversations/abc/messages?before=10&limit=5", 2, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		msgs := decodeBody[[]types.Message](t, rr)
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].Id)
	})

	t.Run("list bad query", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/conversations/abc/messages?limit=abc", 2, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = app.do(t, http.MethodGet, "/api/conversations/abc/messages?before=-1", 2, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list as outsider", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/conversations/abc/messages", 3, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	app.db.AssertExpectations(t)
}

func TestToggleReactionHandler(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/messages/m1/reactions", 2, ReactionRequest{Type: "🙂"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	app.db.On("GetAccountById", mock.Anything, 2).Return(account(2, "bob"), nil)
	app.db.On("GetMessage", mock.Anything, "m1").Return(database.Message{
		Id:             "m1",
		SeqId:          1,
		ConversationId: "abc",
		UserId:         1,
		SenderUsername: "alice",
		Content:        "hello",
	}, nil)
	app.db.On("GetConversation", mock.Anything, "abc").Return(conversation("abc", 1, 2), nil)
	app.db.On("UpdateMessageReactions", mock.Anything, "m1", []database.Reaction{
		{Type: string(types.ReactionHeart), Users: []int{2}},
	}).Return(nil).Once()
	app.db.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n database.Notification) bool {
		return n.AccountId == 1 && n.Type == string(types.NotificationReaction)
	})).Return(nil).Once()

	rr = app.do(t, http.MethodPost, "/api/messages/m1/reactions", 2, ReactionRequest{Type: types.ReactionHeart})

	require.Equal(t, http.StatusOK, rr.Code)
	msg := decodeBody[types.Message](t, rr)
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, []int{2}, msg.Reactions[0].Users)
	app.db.AssertExpectations(t)
}

func TestNotificationsHandlers(t *testing.T) {
	app := newTestApp(t)
	app.db.On("ListNotifications", mock.Anything, 1).Return([]database.Notification{
		{Id: "n1", AccountId: 1, Type: string(types.NotificationMessage), Content: "bob sent you a message"},
		{Id: "n2", AccountId: 1, Type: string(types.NotificationReaction), Content: "bob reacted", Read: true},
	}, nil).Once()
	app.db.On("CountUnreadNotifications", mock.Anything, 1).Return(1, nil).Once()
	app.db.On("MarkNotificationsRead", mock.Anything, 1).Return(int64(1), nil).Once()

	rr := app.do(t, http.MethodGet, "/api/notifications", 1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[NotificationsResponse](t, rr)
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 1, resp.UnreadCount)

	rr = app.do(t, http.MethodPost, "/api/notifications/read", 1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int64{"updated": 1}, decodeBody[map[string]int64](t, rr))

	app.db.AssertExpectations(t)
}

func TestOnlineUsersHandler(t *testing.T) {
	app := newTestApp(t)
	app.chat.MarkOnline(2, "s2")
	app.chat.MarkOnline(1, "s1")

	rr := app.do(t, http.MethodGet, "/api/online", 1, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string][]int{"online_users": {1, 2}}, decodeBody[map[string][]int](t, rr))
}

func TestTransientStorageFailure(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetConversation", mock.Anything, "abc").Return(nil, database.ErrTransient)

	rr := app.do(t, http.MethodGet, "/api/conversations/abc", 1, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	app.db.AssertNumberOfCalls(t, "GetConversation", 2)
}
