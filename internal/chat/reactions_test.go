package chat

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestToggle(t *testing.T) {
	tcs := []struct {
		name      string
		reactions []types.Reaction
		userId    int
		rt        types.ReactionType
		expected  []types.Reaction
		result    ToggleResult
	}{
		{
			name:     "first reaction creates set",
			userId:   2,
			rt:       types.ReactionHeart,
			expected: []types.Reaction{{Type: types.ReactionHeart, Users: []int{2}}},
			result:   ReactionAdded,
		},
		{
			name:      "joins existing set",
			reactions: []types.Reaction{{Type: types.ReactionHeart, Users: []int{3}}},
			userId:    2,
			rt:        types.ReactionHeart,
			expected:  []types.Reaction{{Type: types.ReactionHeart, Users: []int{3, 2}}},
			result:    ReactionAdded,
		},
		{
			name:      "same type removes and drops empty set",
			reactions: []types.Reaction{{Type: types.ReactionHeart, Users: []int{2}}},
			userId:    2,
			rt:        types.ReactionHeart,
			expected:  []types.Reaction{},
			result:    ReactionRemoved,
		},
		{
			name: "different type switches",
			reactions: []types.Reaction{
				{Type: types.ReactionHeart, Users: []int{2, 3}},
				{Type: types.ReactionLike, Users: []int{4}},
			},
			userId: 2,
			rt:     types.ReactionLike,
			expected: []types.Reaction{
				{Type: types.ReactionHeart, Users: []int{3}},
				{Type: types.ReactionLike, Users: []int{4, 2}},
			},
			result: ReactionSwitched,
		},
		{
			name:      "empty type clears",
			reactions: []types.Reaction{{Type: types.ReactionLaugh, Users: []int{2}}},
			userId:    2,
			rt:        "",
			expected:  []types.Reaction{},
			result:    ReactionRemoved,
		},
		{
			name:      "empty type without reaction is a no-op",
			reactions: []types.Reaction{{Type: types.ReactionLaugh, Users: []int{3}}},
			userId:    2,
			rt:        "",
			expected:  []types.Reaction{{Type: types.ReactionLaugh, Users: []int{3}}},
			result:    ReactionUnchanged,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			msg := &types.Message{Id: "m1", Reactions: tc.reactions}
			if msg.Reactions == nil {
				msg.Reactions = []types.Reaction{}
			}

			res := Toggle(msg, tc.userId, tc.rt)

			assert.Equal(t, tc.result, res)
			assert.Equal(t, tc.expected, msg.Reactions)
		})
	}
}

func TestToggle_RandomSequencesKeepOneReactionPerUser(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	choices := append([]types.ReactionType{""}, types.ReactionTypes...)
	msg := &types.Message{Id: "m1", Reactions: []types.Reaction{}}

	for i := 0; i < 2000; i++ {
		Toggle(msg, rng.Intn(6)+1, choices[rng.Intn(len(choices))])

		seen := make(map[int]bool)
		for _, r := range msg.Reactions {
			assert.NotEmpty(t, r.Users, "empty reaction set kept for %s", r.Type)
			for _, u := range r.Users {
				assert.False(t, seen[u], "user %d holds more than one reaction", u)
				seen[u] = true
			}
		}
	}
}

func TestToggle_PairRestoresState(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		msg := &types.Message{Id: "m1", Reactions: []types.Reaction{}}
		for j := 0; j < 10; j++ {
			Toggle(msg, rng.Intn(4)+1, types.ReactionTypes[rng.Intn(len(types.ReactionTypes))])
		}

		userId := rng.Intn(4) + 1
		rt := types.ReactionTypes[rng.Intn(len(types.ReactionTypes))]
		if held := heldBy(msg, userId); held != "" && held != rt {
			continue
		}

		before := reactionState(msg)
		Toggle(msg, userId, rt)
		Toggle(msg, userId, rt)

		assert.Equal(t, before, reactionState(msg))
	}
}

func heldBy(msg *types.Message, userId int) types.ReactionType {
	for _, r := range msg.Reactions {
		if indexOf(r.Users, userId) >= 0 {
			return r.Type
		}
	}
	return ""
}

func reactionState(msg *types.Message) map[types.ReactionType][]int {
	state := make(map[types.ReactionType][]int)
	for _, r := range msg.Reactions {
		users := append([]int(nil), r.Users...)
		sort.Ints(users)
		state[r.Type] = users
	}
	return state
}
