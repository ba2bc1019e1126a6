package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatsync/internal/chat"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
)

type GoChatApp struct {
	log            *log.Logger
	db             database.GoChatRepository
	srv            *http.Server
	cs             *server.ChatServer
	chat           *chat.Service
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
}

// NewGoChatApp registers the REST and websocket routes on mux. The mux may
// already carry other handlers such as /metrics.
func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, svc *chat.Service, db database.GoChatRepository, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		chat:           svc,
		validate:       validator.New(),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/users/register", s.createAccount)
	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("GET /api/users/{username}", s.authMiddleware(s.getUser))
	mux.HandleFunc("GET /api/account", s.authMiddleware(s.account))
	mux.HandleFunc("POST /api/account/photo", s.authMiddleware(s.changePhoto))
	mux.HandleFunc("POST /api/friends/requests", s.authMiddleware(s.sendFriendRequest))
	mux.HandleFunc("POST /api/friends/accept", s.authMiddleware(s.acceptFriendRequest))
	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{id}", s.authMiddleware(s.getConversation))
	mux.HandleFunc("DELETE /api/conversations/{id}", s.authMiddleware(s.deleteConversation))
	mux.HandleFunc("POST /api/conversations/{id}/participants", s.authMiddleware(s.addParticipant))
	mux.HandleFunc("DELETE /api/conversations/{id}/participants/me", s.authMiddleware(s.leaveConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.listMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("POST /api/messages/{id}/reactions", s.authMiddleware(s.toggleReaction))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/read", s.authMiddleware(s.markNotificationsRead))
	mux.HandleFunc("GET /api/online", s.authMiddleware(s.onlineUsers))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
