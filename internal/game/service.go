package game

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"
)

// DominanceOracle judges which configured group's tone dominates a round.
// The returned name is expected to be one of the configured group names.
type DominanceOracle interface {
	DominantGroup(ctx context.Context, messages []string, groups map[string]string) (string, error)
}

// Service owns the round counter and the player roster, and runs the
// end-of-round assessments.
type Service struct {
	store  Store
	ledger *Ledger
	judge  DominanceOracle
	groups map[string]string
	log    *slog.Logger
	rand   *mathrand.Rand

	// advanceMu serializes whole round advances; mu guards roster and
	// counter reads so actors keep running while an advance is in flight.
	advanceMu sync.Mutex
	mu        sync.Mutex
	round     int
	players   []Player
}

func NewService(store Store, ledger *Ledger, judge DominanceOracle, groups map[string]string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		ledger: ledger,
		judge:  judge,
		groups: groups,
		log:    logger,
		rand:   mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		round:  FirstRound,
	}
}

// AddPlayer registers a new player and their ledger entry. Usernames are
// unique for the lifetime of the run and group labels must be configured.
func (s *Service) AddPlayer(username, group string) error {
	if _, ok := s.groups[group]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.Username == username {
			return fmt.Errorf("%w: %s", ErrDuplicateUser, username)
		}
	}
	s.players = append(s.players, Player{Username: username, Group: group})
	s.ledger.RegisterUser(username)
	return nil
}

func (s *Service) HasPlayer(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.Username == username {
			return true
		}
	}
	return false
}

func (s *Service) PlayerGroup(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.Username == username {
			return p.Group, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownUser, username)
}

func (s *Service) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Player(nil), s.players...)
}

func (s *Service) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Service) Groups() map[string]string {
	out := make(map[string]string, len(s.groups))
	for name, desc := range s.groups {
		out[name] = desc
	}
	return out
}

// LeastRepresentedGroup picks uniformly at random among the configured
// groups with the fewest current members, keeping groups balanced as
// players join.
func (s *Service) LeastRepresentedGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.groups))
	for name := range s.groups {
		counts[name] = 0
	}
	for _, p := range s.players {
		if _, ok := counts[p.Group]; ok {
			counts[p.Group]++
		}
	}

	min := -1
	for _, count := range counts {
		if min < 0 || count < min {
			min = count
		}
	}
	tied := make([]string, 0, len(counts))
	for name, count := range counts {
		if count == min {
			tied = append(tied, name)
		}
	}
	return tied[s.rand.Intn(len(tied))]
}

// ScoresForRound reports each registered user's delta for that round.
func (s *Service) ScoresForRound(round int) map[string]int {
	return s.ledger.ScoresForRound(round)
}

// AllScores returns every recorded per-round delta keyed by username.
func (s *Service) AllScores() map[string]map[int]int {
	return s.ledger.AllScores()
}

// Totals returns each user's cumulative score across all rounds.
func (s *Service) Totals() map[string]int {
	return s.ledger.Totals()
}

// AdvanceRound runs the end-of-round assessments for the current round and
// then increments the counter. The dominance and centrality bonuses both
// land on the pre-increment round number; an oracle failure aborts the
// advance. An unrecognized dominant group awards nobody but still advances,
// since failing here would wedge the counter with the next round already
// initialized.
func (s *Service) AdvanceRound(ctx context.Context) (string, error) {
	s.advanceMu.Lock()
	defer s.advanceMu.Unlock()

	s.mu.Lock()
	round := s.round
	players := append([]Player(nil), s.players...)
	s.mu.Unlock()

	s.ledger.InitializeRound(round + 1)

	posts, err := s.store.PostsByRound(ctx, round)
	if err != nil {
		return "", err
	}
	messages := make([]string, len(posts))
	for i, p := range posts {
		messages[i] = p.Message
	}

	dominant, err := s.judge.DominantGroup(ctx, messages, s.groups)
	if err != nil {
		return "", fmt.Errorf("dominance assessment: %w", err)
	}
	if _, ok := s.groups[dominant]; !ok {
		s.log.Warn("dominance oracle named an unconfigured group, awarding nobody",
			"group", dominant, "round", round)
	} else {
		for _, p := range players {
			if p.Group == dominant {
				s.ledger.DominanceBonus(p.Username, round)
			}
		}
	}

	s.ledger.CentralityBonus(posts, round)

	s.mu.Lock()
	s.round++
	s.mu.Unlock()

	s.log.Info("round advanced", "round", round, "dominant_group", dominant, "posts", len(posts))
	return dominant, nil
}
