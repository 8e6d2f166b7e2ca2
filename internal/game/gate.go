package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AlignmentOracle judges whether a message belongs on the described network.
// Implementations are expected to be lenient with borderline content.
type AlignmentOracle interface {
	IsAligned(ctx context.Context, message, description string) (bool, error)
}

// Roster answers membership questions about the registered players.
type Roster interface {
	HasPlayer(username string) bool
}

// FailurePolicy names what the gate does when the alignment oracle fails.
type FailurePolicy int

const (
	// FailOpen treats an oracle failure as an aligned verdict.
	FailOpen FailurePolicy = iota
	// FailClosed treats an oracle failure as a misaligned verdict.
	FailClosed
)

// Outcome is the published-or-blocked result of a submission.
type Outcome int

const (
	OutcomePublished Outcome = iota
	OutcomeBlocked
)

func (o Outcome) String() string {
	if o == OutcomeBlocked {
		return "blocked"
	}
	return "published"
}

// SubmitInput carries one post or reply submission through moderation.
type SubmitInput struct {
	Message  string
	Username string
	Group    string
	Round    int
	ReplyTo  *int64
}

// Gate moderates submissions before they reach the store and routes the
// side-effect points for likes and replies. The oracle is always consulted
// before any store mutation, so a hung oracle call never holds a store or
// ledger lock.
type Gate struct {
	store       Store
	ledger      *Ledger
	roster      Roster
	aligner     AlignmentOracle
	groups      map[string]string
	description string
	policy      FailurePolicy
	log         *slog.Logger
}

type GateConfig struct {
	Store       Store
	Ledger      *Ledger
	Roster      Roster
	Aligner     AlignmentOracle
	Groups      map[string]string
	Description string
	Policy      FailurePolicy
	Logger      *slog.Logger
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		store:       cfg.Store,
		ledger:      cfg.Ledger,
		roster:      cfg.Roster,
		aligner:     cfg.Aligner,
		groups:      cfg.Groups,
		description: cfg.Description,
		policy:      cfg.Policy,
		log:         cfg.Logger,
	}
}

// SubmitPost moderates and persists one submission, returning the stored
// post. A misaligned verdict or a leaked group name blocks the post, redacts
// its stored text and charges the misalignment penalty; the post is persisted
// either way. Reply points flow to the replied-to author (and the same-group
// bonus to the replier) regardless of the new post's own outcome.
func (g *Gate) SubmitPost(ctx context.Context, in SubmitInput) (Post, Outcome, error) {
	if !g.roster.HasPlayer(in.Username) {
		return Post{}, OutcomePublished, fmt.Errorf("%w: %s", ErrUnknownUser, in.Username)
	}

	aligned, err := g.aligner.IsAligned(ctx, in.Message, g.description)
	if err != nil {
		if g.policy == FailClosed {
			aligned = false
		} else {
			aligned = true
		}
		g.log.Warn("alignment oracle failed",
			"err", err, "username", in.Username, "fail_open", g.policy == FailOpen)
	}

	blocked := !aligned
	if !blocked {
		// A post naming any configured group leaks the meta-game, whichever
		// group it names.
		for name := range g.groups {
			if strings.Contains(in.Message, name) {
				blocked = true
				break
			}
		}
	}
	var replied *Post
	if in.ReplyTo != nil {
		target, err := g.store.PostByID(ctx, *in.ReplyTo)
		if err != nil {
			return Post{}, OutcomePublished, err
		}
		replied = &target
	}

	post, err := g.store.AddPost(ctx, AddPostInput{
		Message:  in.Message,
		Username: in.Username,
		Group:    in.Group,
		Round:    in.Round,
		ReplyTo:  in.ReplyTo,
		Blocked:  blocked,
	})
	if err != nil {
		return Post{}, OutcomePublished, err
	}

	// The penalty is charged only once the post is stored, so a failed
	// submission leaves the ledger untouched.
	if blocked {
		g.ledger.MisalignmentPenalty(in.Username, in.Round)
	}

	if replied != nil {
		g.ledger.ReplyReceived(replied.Username, in.Round)
		if replied.Group == in.Group {
			g.ledger.SameGroupReply(in.Username, in.Round)
		}
	}

	if blocked {
		return post, OutcomeBlocked, nil
	}
	return post, OutcomePublished, nil
}

// LikePost records a like against an existing post. Blocked posts accept no
// likes and earn their author nothing, but the liker's same-group bonus is
// evaluated whenever the post exists, blocked or not.
func (g *Gate) LikePost(ctx context.Context, postID int64, username, likerGroup string, round int) error {
	post, err := g.store.PostByID(ctx, postID)
	if err != nil {
		return err
	}

	if !post.Blocked {
		added, err := g.store.LikePost(ctx, postID, username)
		if err != nil {
			return err
		}
		if added {
			g.ledger.LikeReceived(post.Username, round)
		}
	}

	if post.Group == likerGroup {
		g.ledger.SameGroupLike(username, round)
	}
	return nil
}
