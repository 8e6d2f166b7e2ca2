package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// GroupLookup resolves a registered player's group.
type GroupLookup interface {
	PlayerGroup(username string) (string, error)
}

// DispatchResult describes what actually happened to an action, which is not
// always what the actor asked for: likes on missing posts are dropped and
// replies to missing posts are demoted to plain posts.
type DispatchResult struct {
	Action  ActionType `json:"action_type"`
	Outcome string     `json:"outcome"`
	Target  int64      `json:"target,omitempty"`
	Demoted bool       `json:"demoted,omitempty"`
	Dropped bool       `json:"dropped,omitempty"`
}

// Router validates one action descriptor from an actor and dispatches it to
// the moderation gate.
type Router struct {
	store   Store
	gate    *Gate
	players GroupLookup
}

func NewRouter(store Store, gate *Gate, players GroupLookup) *Router {
	return &Router{store: store, gate: gate, players: players}
}

// Dispatch applies a single action for the given round. Unresolvable like
// targets are dropped silently; unresolvable reply targets demote the action
// to a plain post with the same text. Only an unrecognized action tag is an
// error.
func (r *Router) Dispatch(ctx context.Context, username string, action Action, round int) (DispatchResult, error) {
	group, err := r.players.PlayerGroup(username)
	if err != nil {
		return DispatchResult{}, err
	}

	switch action.Type {
	case ActionPost:
		_, outcome, err := r.gate.SubmitPost(ctx, SubmitInput{
			Message:  action.Message,
			Username: username,
			Group:    group,
			Round:    round,
		})
		if err != nil {
			return DispatchResult{}, err
		}
		return DispatchResult{Action: ActionPost, Outcome: outcome.String()}, nil

	case ActionLike:
		target, ok := r.resolveTarget(ctx, action.PostID)
		if !ok {
			return DispatchResult{Action: ActionLike, Outcome: "dropped", Dropped: true}, nil
		}
		if err := r.gate.LikePost(ctx, target, username, group, round); err != nil {
			if errors.Is(err, ErrPostNotFound) {
				return DispatchResult{Action: ActionLike, Outcome: "dropped", Dropped: true}, nil
			}
			return DispatchResult{}, err
		}
		return DispatchResult{Action: ActionLike, Outcome: "liked", Target: target}, nil

	case ActionReply:
		in := SubmitInput{
			Message:  action.Message,
			Username: username,
			Group:    group,
			Round:    round,
		}
		target, ok := r.resolveTarget(ctx, action.PostID)
		if !ok {
			_, outcome, err := r.gate.SubmitPost(ctx, in)
			if err != nil {
				return DispatchResult{}, err
			}
			return DispatchResult{Action: ActionReply, Outcome: outcome.String(), Demoted: true}, nil
		}
		in.ReplyTo = &target
		_, outcome, err := r.gate.SubmitPost(ctx, in)
		if err != nil {
			return DispatchResult{}, err
		}
		return DispatchResult{Action: ActionReply, Outcome: outcome.String(), Target: target}, nil

	default:
		return DispatchResult{}, fmt.Errorf("%w from %s: %+v", ErrInvalidAction, username, action)
	}
}

// resolveTarget parses a loosely typed post id and checks it against the
// store. Null, infinities, NaN, non-integer numerics and unparseable strings
// all fail to resolve, as does an id with no matching post.
func (r *Router) resolveTarget(ctx context.Context, raw any) (int64, bool) {
	id, ok := parsePostID(raw)
	if !ok {
		return 0, false
	}
	if _, err := r.store.PostByID(ctx, id); err != nil {
		return 0, false
	}
	return id, true
}

func parsePostID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
