package chat

import (
	"context"
	"errors"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// CreateUser registers an account and announces it to every session.
// It is not retried: a lost acknowledgement would turn into a conflict.
func (s *Service) CreateUser(ctx context.Context, params database.CreateAccountParams) (*types.User, error) {
	u, err := s.db.CreateAccount(context.WithoutCancel(ctx), params)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, &Error{Kind: ErrConflict, Message: "username already taken", Err: err}
		}
		return nil, storageError(err, "user")
	}

	user := toUser(u, nil)
	announced := *user
	s.hub.SendToAll(&types.Event{
		Name: types.EventNewUser,
		User: &announced,
	})

	return user, nil
}

// ChangePhoto replaces userId's photo, including the copies shown on
// rosters and sent messages, and tells every session about it.
func (s *Service) ChangePhoto(ctx context.Context, userId int, photo string) (*types.User, error) {
	ctx = context.WithoutCancel(ctx)

	var u database.User
	err := s.retry.do(ctx, func() (err error) {
		u, err = s.db.UpdateAccountPhoto(ctx, userId, photo)
		return err
	})
	if err != nil {
		return nil, storageError(err, "user")
	}

	for _, r := range s.rooms.loaded() {
		r.mu.Lock()
		if r.conv != nil {
			for i := range r.conv.Participants {
				if r.conv.Participants[i].UserId == userId {
					r.conv.Participants[i].Photo = u.Photo
				}
			}
		}
		r.mu.Unlock()
	}

	s.hub.SendToAll(&types.Event{
		Name:    types.EventProfilePhotoChanged,
		Profile: &types.ProfileChange{UserId: userId, Photo: u.Photo},
	})

	friends, err := s.friendIds(ctx, userId)
	if err != nil {
		return nil, err
	}
	return toUser(u, friends), nil
}
