package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-chatsync/internal/chat"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

type testApp struct {
	*GoChatApp
	db *database.MockGoChatRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := testutil.TestLogger(t)
	db := &database.MockGoChatRepository{}
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("RegisterCounter", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return()
	su.On("Decr", mock.Anything).Return()

	cs := server.NewChatServer(logger, su, server.Options{})
	svc := chat.NewService(logger, db, cs, su, chat.Options{
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	})

	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "dsn",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewGoChatApp(http.NewServeMux(), logger, cs, svc, db, cfg)
	return &testApp{GoChatApp: app, db: db}
}

func signedToken(t *testing.T, key []byte, userId int, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		"exp":       exp.Unix(),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

// do sends a request through the full handler chain as userId. A userId of
// 0 sends no credentials.
func (a *testApp) do(t *testing.T, method, target string, userId int, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userId > 0 {
		req.Header.Set("Authorization", "Bearer "+signedToken(t, testSigningKey, userId, time.Now().Add(time.Hour)))
	}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func account(id int, username string) database.User {
	return database.User{
		Id:        id,
		Username:  username,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func conversation(id string, ownerId int, memberIds ...int) *database.Conversation {
	conv := &database.Conversation{Id: id, Name: "test chat", OwnerId: ownerId}
	for _, uid := range append([]int{ownerId}, memberIds...) {
		conv.Participants = append(conv.Participants, database.Participant{
			ConversationId: id,
			AccountId:      uid,
			Username:       "user",
		})
	}
	return conv
}
