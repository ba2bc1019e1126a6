package chat

import "github.com/npezzotti/go-chatsync/internal/types"

// Broadcaster delivers events to connected sessions. Implementations
// must only enqueue and never call back into the engine.
type Broadcaster interface {
	// SendToUsers enqueues ev on every session of every listed user.
	SendToUsers(userIds []int, ev *types.Event)
	// SendToAll enqueues ev on every connected session.
	SendToAll(ev *types.Event)
	// Viewing reports whether userId has a session that joined chatId.
	Viewing(chatId string, userId int) bool
	// Disconnect closes the session with the given id, if any.
	Disconnect(sessionId string)
}

// fanout sends a conversation event to the conversation's audience.
func fanout(hub Broadcaster, conv *types.Conversation, ev *types.Event) {
	if conv.Id == types.GlobalChatId {
		hub.SendToAll(ev)
		return
	}
	hub.SendToUsers(conv.ParticipantIds(), ev)
}
