package chat

import "github.com/npezzotti/go-chatsync/internal/types"

// ToggleResult describes what Toggle did to a message's reactions.
type ToggleResult int

const (
	ReactionUnchanged ToggleResult = iota
	ReactionAdded
	ReactionSwitched
	ReactionRemoved
)

// Toggle applies userId's reaction of type rt to msg in place.
//
// Reacting with the type the user already holds removes it, reacting
// with another type moves the user to that set, and an empty rt clears
// whatever the user holds. Sets left empty are dropped, so a user id is
// never in more than one set.
func Toggle(msg *types.Message, userId int, rt types.ReactionType) ToggleResult {
	prev := types.ReactionType("")
	for i := range msg.Reactions {
		if idx := indexOf(msg.Reactions[i].Users, userId); idx >= 0 {
			prev = msg.Reactions[i].Type
			msg.Reactions[i].Users = append(msg.Reactions[i].Users[:idx], msg.Reactions[i].Users[idx+1:]...)
			break
		}
	}

	var res ToggleResult
	switch {
	case rt == "" && prev == "":
		return ReactionUnchanged
	case rt == "" || rt == prev:
		res = ReactionRemoved
	case prev == "":
		res = ReactionAdded
	default:
		res = ReactionSwitched
	}

	if res != ReactionRemoved {
		added := false
		for i := range msg.Reactions {
			if msg.Reactions[i].Type == rt {
				msg.Reactions[i].Users = append(msg.Reactions[i].Users, userId)
				added = true
				break
			}
		}
		if !added {
			msg.Reactions = append(msg.Reactions, types.Reaction{Type: rt, Users: []int{userId}})
		}
	}

	kept := msg.Reactions[:0]
	for _, r := range msg.Reactions {
		if len(r.Users) > 0 {
			kept = append(kept, r)
		}
	}
	msg.Reactions = kept

	return res
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
