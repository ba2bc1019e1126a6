package chat

import (
	"context"
	"fmt"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// User returns the account of userId with its friend list.
func (s *Service) User(ctx context.Context, userId int) (*types.User, error) {
	var u database.User
	err := s.retry.do(ctx, func() (err error) {
		u, err = s.db.GetAccountById(ctx, userId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	friends, err := s.friendIds(ctx, userId)
	if err != nil {
		return nil, err
	}

	return toUser(u, friends), nil
}

// SendFriendRequest records a pending request from fromId to toId and
// tells toId about it.
func (s *Service) SendFriendRequest(ctx context.Context, fromId, toId int) error {
	if fromId == toId {
		return newError(ErrValidation, "you cannot send a friend request to yourself")
	}

	ctx = context.WithoutCancel(ctx)

	from, err := s.User(ctx, fromId)
	if err != nil {
		return err
	}
	if _, err := s.User(ctx, toId); err != nil {
		return err
	}

	for _, id := range from.Friends {
		if id == toId {
			return newError(ErrConflict, "you are already friends")
		}
	}

	err = s.retry.do(ctx, func() error {
		return s.db.CreateFriendRequest(ctx, fromId, toId)
	})
	if err != nil {
		if err = storageError(err, "friend request"); isKind(err, ErrConflict) {
			return newError(ErrConflict, "friend request already sent")
		}
		return err
	}

	s.hub.SendToUsers([]int{toId}, &types.Event{
		Name:   types.EventFriendRequest,
		Friend: &types.FriendChange{FromUserId: fromId, ToUserId: toId, Username: from.Username},
	})

	s.Notifications.notifyAll(ctx, []int{toId}, types.NotificationFriendRequest,
		fmt.Sprintf("%s sent you a friend request", from.Username),
		types.NotificationRefs{})

	return nil
}

// AcceptFriendRequest accepts the pending request fromId sent to userId.
func (s *Service) AcceptFriendRequest(ctx context.Context, userId, fromId int) error {
	ctx = context.WithoutCancel(ctx)

	user, err := s.User(ctx, userId)
	if err != nil {
		return err
	}

	err = s.retry.do(ctx, func() error {
		return s.db.AcceptFriendRequest(ctx, fromId, userId)
	})
	if err != nil {
		return storageError(err, "friend request")
	}

	s.hub.SendToUsers([]int{fromId, userId}, &types.Event{
		Name:   types.EventFriendRequestAccepted,
		Friend: &types.FriendChange{FromUserId: fromId, ToUserId: userId, Username: user.Username},
	})

	s.Notifications.notifyAll(ctx, []int{fromId}, types.NotificationFriendAccepted,
		fmt.Sprintf("%s accepted your friend request", user.Username),
		types.NotificationRefs{})

	return nil
}

func (s *Service) friendIds(ctx context.Context, userId int) ([]int, error) {
	var ids []int
	err := s.retry.do(ctx, func() (err error) {
		ids, err = s.db.ListFriendIds(ctx, userId)
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}
	return ids, nil
}
