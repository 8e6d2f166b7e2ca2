// Package oracle implements the external decision functions the simulation
// core consults: the alignment check, the round dominance judgment, and the
// actor policy that picks each agent's next move.
package oracle

import (
	"context"

	"slant/internal/game"
)

// ActorView is everything an actor policy sees before choosing an action.
type ActorView struct {
	Username         string
	Group            string
	GroupDescription string
	Rules            string
	Biography        string
	Round            int
	Score            int
	Posts            []game.Post
	OtherUsers       []string
}

// Decider produces one action per actor turn. The core only consumes the
// action shape; how it is produced is the implementation's business.
type Decider interface {
	Decide(ctx context.Context, view ActorView) (game.Action, error)
}
