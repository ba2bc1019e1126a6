package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
	"github.com/npezzotti/go-chatsync/internal/types"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Photo    string `json:"photo" validate:"omitempty,url"`
}

type ChangePhotoRequest struct {
	Photo string `json:"photo" validate:"required,url"`
}

type FriendRequest struct {
	UserId int `json:"user_id" validate:"required,gt=0"`
}

type CreateConversationRequest struct {
	Name           string `json:"name" validate:"max=100"`
	ParticipantIds []int  `json:"participant_ids" validate:"dive,gt=0"`
}

type AddParticipantRequest struct {
	UserId int `json:"user_id" validate:"required,gt=0"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type ReactionRequest struct {
	Type types.ReactionType `json:"type"`
}

type NotificationsResponse struct {
	Notifications []types.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("request failed: %v", errResp)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// decodeRequest reads a JSON body into v and runs its struct validation.
func (s *GoChatApp) decodeRequest(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}

	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return NewValidationError("invalid request: " + strings.Join(fields, ", "))
		}
		return NewBadRequestError()
	}

	return nil
}

func (s *GoChatApp) currentUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
	}
	return userId, ok
}

func userFromAccount(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Username:  u.Username,
		Photo:     u.Photo,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("NOT OK"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.chat.CreateUser(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		Photo:        req.Photo,
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusCreated, newUser)
}

func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.db.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	users := make([]types.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, userFromAccount(a))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoChatApp) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetAccountByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, userFromAccount(user))
}

func (s *GoChatApp) account(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	user, err := s.chat.User(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *GoChatApp) changePhoto(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req ChangePhotoRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	user, err := s.chat.ChangePhoto(r.Context(), userId, req.Photo)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *GoChatApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req FriendRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.SendFriendRequest(r.Context(), userId, req.UserId); err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusCreated, nil)
}

func (s *GoChatApp) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req FriendRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.AcceptFriendRequest(r.Context(), userId, req.UserId); err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	convs, err := s.chat.Membership.ListFor(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, convs)
}

func (s *GoChatApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	conv, err := s.chat.Membership.Create(r.Context(), userId, req.Name, req.ParticipantIds)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusCreated, conv)
}

func (s *GoChatApp) getConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	conv, err := s.chat.Membership.Get(r.Context(), r.PathValue("id"), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, conv)
}

func (s *GoChatApp) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.chat.Membership.Delete(r.Context(), r.PathValue("id"), userId); err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) addParticipant(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req AddParticipantRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	conv, err := s.chat.Membership.AddParticipant(r.Context(), r.PathValue("id"), userId, req.UserId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, conv)
}

func (s *GoChatApp) leaveConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.chat.Membership.RemoveSelf(r.Context(), r.PathValue("id"), userId); err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	var before int64
	if v := q.Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, NewValidationError("invalid before"))
			return
		}
		before = n
	}

	var limit int
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, NewValidationError("invalid limit"))
			return
		}
		limit = n
	}

	msgs, err := s.chat.Messages.List(r.Context(), r.PathValue("id"), userId, before, limit)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *GoChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.chat.SendMessage(r.Context(), r.PathValue("id"), userId, req.Content)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *GoChatApp) toggleReaction(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req ReactionRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.chat.React(r.Context(), r.PathValue("id"), userId, req.Type)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *GoChatApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	notifications, err := s.chat.Notifications.ListFor(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	unread, err := s.chat.Notifications.UnreadCount(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, NotificationsResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

func (s *GoChatApp) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	n, err := s.chat.Notifications.MarkRead(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *GoChatApp) onlineUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string][]int{"online_users": s.chat.OnlineUsers()})
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	user, err := s.chat.User(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFromChat(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client, err := server.NewClient(*user, conn, s.cs, s.chat, s.log)
	if err != nil {
		s.log.Printf("create client: %v", err)
		conn.Close()
		return
	}

	s.cs.Register(client)
	go client.Write()
	go client.Read()
}
