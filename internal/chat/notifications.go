package chat

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// Dispatcher persists per-user notifications and pushes them to the
// user's live sessions.
type Dispatcher struct {
	log      *log.Logger
	db       database.GoChatRepository
	hub      Broadcaster
	presence Presence
	stats    stats.StatsProvider
	retry    retryPolicy
	now      func() time.Time
}

func newDispatcher(logger *log.Logger, db database.GoChatRepository, hub Broadcaster, presence Presence, st stats.StatsProvider, retry retryPolicy) *Dispatcher {
	return &Dispatcher{
		log:      logger,
		db:       db,
		hub:      hub,
		presence: presence,
		stats:    st,
		retry:    retry,
		now:      time.Now,
	}
}

// Notify stores a notification for target and, if the target is online,
// delivers it to every one of their sessions. Delivery is at least once;
// clients de-duplicate by id.
func (d *Dispatcher) Notify(ctx context.Context, target int, typ types.NotificationType, content string, refs types.NotificationRefs) (*types.Notification, error) {
	ctx = context.WithoutCancel(ctx)

	n := database.Notification{
		Id:             uuid.NewString(),
		AccountId:      target,
		Type:           string(typ),
		Content:        content,
		ConversationId: refs.ChatId,
		MessageId:      refs.MessageId,
		CreatedAt:      d.now().UTC().Round(time.Millisecond),
	}

	err := d.retry.do(ctx, func() error {
		return d.db.CreateNotification(ctx, n)
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	d.stats.Incr("NotificationsSent")
	out := toNotification(n)

	if d.presence.IsOnline(target) {
		d.hub.SendToUsers([]int{target}, &types.Event{
			Name:         types.EventNewNotification,
			Notification: out,
		})
	}

	return out, nil
}

// notifyAll sends the same notification to each target, logging
// failures. It backs the side effects of operations that have already
// committed.
func (d *Dispatcher) notifyAll(ctx context.Context, targets []int, typ types.NotificationType, content string, refs types.NotificationRefs) {
	for _, target := range targets {
		if _, err := d.Notify(ctx, target, typ, content, refs); err != nil {
			d.log.Printf("notify user %d (%s): %v", target, typ, err)
		}
	}
}

// MarkRead marks every notification of userId that is unread at call
// time as read and returns how many changed.
func (d *Dispatcher) MarkRead(ctx context.Context, userId int) (int64, error) {
	ctx = context.WithoutCancel(ctx)

	var n int64
	err := d.retry.do(ctx, func() (err error) {
		n, err = d.db.MarkNotificationsRead(ctx, userId)
		return err
	})
	if err != nil {
		return 0, storageError(err, "user")
	}

	return n, nil
}

// ListFor returns userId's notifications, newest last.
func (d *Dispatcher) ListFor(ctx context.Context, userId int) ([]types.Notification, error) {
	var dbNotifications []database.Notification
	err := d.retry.do(ctx, func() (err error) {
		dbNotifications, err = d.db.ListNotifications(ctx, userId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	out := make([]types.Notification, 0, len(dbNotifications))
	for _, n := range dbNotifications {
		out = append(out, *toNotification(n))
	}
	return out, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userId int) (int, error) {
	var n int
	err := d.retry.do(ctx, func() (err error) {
		n, err = d.db.CountUnreadNotifications(ctx, userId)
		return err
	})
	if err != nil {
		return 0, storageError(err, "user")
	}
	return n, nil
}
