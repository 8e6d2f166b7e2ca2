package oracle

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v6"

	"slant/internal/game"
)

// Scripted is the offline oracle rig: deterministic for a given seed, so the
// whole simulation runs without a model endpoint. It stays lenient on
// alignment, votes on dominance by keyword overlap, and fabricates plausible
// actor behavior.
type Scripted struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

func NewScripted(seed int64) *Scripted {
	return &Scripted{faker: gofakeit.New(seed)}
}

// IsAligned accepts everything; the deterministic name-leak rule in the
// moderation gate still produces blocked posts in offline runs.
func (s *Scripted) IsAligned(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

// DominantGroup votes by counting occurrences of each group name's words in
// the round's messages, falling back to a seeded pick when nothing matches.
// Group names are walked in sorted order so a tie always resolves the same
// way for the same input.
func (s *Scripted) DominantGroup(_ context.Context, messages []string, groups map[string]string) (string, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	corpus := strings.ToLower(strings.Join(messages, " "))
	best := ""
	bestCount := 0
	for _, name := range names {
		count := 0
		for _, word := range strings.Fields(strings.ToLower(name)) {
			count += strings.Count(corpus, word)
		}
		if count > bestCount {
			best = name
			bestCount = count
		}
	}
	if best != "" {
		return best, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return names[s.faker.IntRange(0, len(names)-1)], nil
}

// Decide fabricates a post, like, or reply. With no posts visible the actor
// always posts; otherwise it posts half the time and engages with an
// existing post the other half.
func (s *Scripted) Decide(_ context.Context, view ActorView) (game.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(view.Posts) == 0 {
		return game.Action{Type: game.ActionPost, Message: s.composeLocked(view)}, nil
	}

	target := view.Posts[s.faker.IntRange(0, len(view.Posts)-1)]
	switch s.faker.IntRange(0, 3) {
	case 0:
		return game.Action{Type: game.ActionLike, PostID: target.ID}, nil
	case 1:
		return game.Action{
			Type:    game.ActionReply,
			PostID:  target.ID,
			Message: "@" + target.Username + " " + s.faker.Sentence(s.faker.IntRange(4, 10)),
		}, nil
	default:
		return game.Action{Type: game.ActionPost, Message: s.composeLocked(view)}, nil
	}
}

func (s *Scripted) composeLocked(view ActorView) string {
	message := s.faker.Sentence(s.faker.IntRange(6, 14))
	if len(view.OtherUsers) > 0 && s.faker.IntRange(0, 3) == 0 {
		mention := view.OtherUsers[s.faker.IntRange(0, len(view.OtherUsers)-1)]
		message = "@" + mention + " " + message
	}
	return message
}
