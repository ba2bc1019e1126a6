package chat

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

type Options struct {
	HeartbeatTimeout time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
}

// Service wires the presence tracker, message store, notification
// dispatcher and membership manager around one repository and one
// broadcaster.
type Service struct {
	log   *log.Logger
	db    database.GoChatRepository
	hub   Broadcaster
	rooms *roomTable
	retry retryPolicy

	Presence      *Tracker
	Notifications *Dispatcher
	Messages      *MessageStore
	Membership    *Manager
}

func NewService(logger *log.Logger, db database.GoChatRepository, hub Broadcaster, st stats.StatsProvider, opts Options) *Service {
	retry := retryPolicy{attempts: opts.RetryAttempts, backoff: opts.RetryBackoff}
	if retry.attempts <= 0 {
		retry.attempts = defaultRetryAttempts
	}
	if retry.backoff <= 0 {
		retry.backoff = defaultRetryBackoff
	}

	for _, metric := range []string{"MessagesSent", "ReactionsApplied", "NotificationsSent"} {
		st.RegisterCounter(metric)
	}

	rooms := newRoomTable(db, retry)
	presence := NewTracker(logger, hub, opts.HeartbeatTimeout)
	notifier := newDispatcher(logger, db, hub, presence, st, retry)

	return &Service{
		log:           logger,
		db:            db,
		hub:           hub,
		rooms:         rooms,
		retry:         retry,
		Presence:      presence,
		Notifications: notifier,
		Messages:      newMessageStore(logger, db, hub, rooms, notifier, st, retry),
		Membership:    newManager(logger, db, hub, rooms, notifier, retry),
	}
}

func (s *Service) Start() {
	s.Presence.Start()
}

func (s *Service) Stop() {
	s.Presence.Stop()
}

func (s *Service) MarkOnline(userId int, sessionId string) {
	s.Presence.MarkOnline(userId, sessionId)
}

func (s *Service) MarkOffline(sessionId string) {
	s.Presence.MarkOffline(sessionId)
}

func (s *Service) Touch(sessionId string) {
	s.Presence.Touch(sessionId)
}

func (s *Service) OnlineUsers() []int {
	return s.Presence.ListOnline()
}

// CanJoin reports whether userId may view chatId.
func (s *Service) CanJoin(ctx context.Context, chatId string, userId int) error {
	_, err := s.Membership.Get(ctx, chatId, userId)
	return err
}

func (s *Service) SendMessage(ctx context.Context, chatId string, userId int, content string) (*types.Message, error) {
	return s.Messages.Append(ctx, chatId, userId, content)
}

func (s *Service) React(ctx context.Context, messageId string, userId int, rt types.ReactionType) (*types.Message, error) {
	return s.Messages.ApplyReaction(ctx, messageId, userId, rt)
}
