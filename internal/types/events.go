package types

const (
	EventNewMessage            = "newMessage"
	EventMessageUpdated        = "messageUpdated"
	EventReactionUpdated       = "reactionUpdated"
	EventNewNotification       = "newNotification"
	EventUpdateOnlineUsers     = "updateOnlineUsers"
	EventNewChat               = "newChat"
	EventUserAdded             = "userAdded"
	EventUserLeft              = "userLeft"
	EventChatDeleted           = "chatDeleted"
	EventFriendRequest         = "friendRequest"
	EventFriendRequestAccepted = "friendRequestAccepted"
	EventNewUser               = "newUser"
	EventProfilePhotoChanged   = "profilePhotoChanged"
)

// Event is a server to client push. Exactly one payload field is set and
// it always carries full state, never a diff.
type Event struct {
	Name         string            `json:"event"`
	ChatId       string            `json:"chat_id,omitempty"`
	Message      *Message          `json:"message,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	OnlineUsers  []int             `json:"online_users"`
	Conversation *Conversation     `json:"conversation,omitempty"`
	Membership   *MembershipChange `json:"membership,omitempty"`
	Friend       *FriendChange     `json:"friend,omitempty"`
	User         *User             `json:"user,omitempty"`
	Profile      *ProfileChange    `json:"profile,omitempty"`
}

type MembershipChange struct {
	ChatId string `json:"chat_id"`
	UserId int    `json:"user_id"`
}

type FriendChange struct {
	FromUserId int    `json:"from_user_id"`
	ToUserId   int    `json:"to_user_id"`
	Username   string `json:"username"`
}

type ProfileChange struct {
	UserId int    `json:"user_id"`
	Photo  string `json:"photo"`
}
