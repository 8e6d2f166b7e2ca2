// Package sim drives autonomous actors through rounds of the influence
// game: each agent asks its decision oracle for a move and the router
// applies it.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"time"

	"github.com/sourcegraph/conc/pool"

	"slant/internal/game"
	"slant/internal/network"
	"slant/internal/oracle"
)

type Agent struct {
	Username string `json:"username"`
	Group    string `json:"group"`
}

type Config struct {
	Players        int
	Rounds         int
	ActionsPerUser int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	// Concurrent runs every agent's turns in parallel within a round,
	// leaning on the store and ledger locking instead of taking turns.
	Concurrent bool
	Seed       int64
}

type Results struct {
	Rounds      int                    `json:"rounds"`
	TotalPosts  int                    `json:"total_posts"`
	Groups      map[string]string      `json:"groups"`
	FinalScores map[string]map[int]int `json:"final_scores"`
	Totals      map[string]int         `json:"totals"`
}

// Simulator wires agents to the simulation core for a complete run.
type Simulator struct {
	svc     *game.Service
	router  *game.Router
	store   game.Store
	ledger  *game.Ledger
	decider oracle.Decider
	net     network.Network
	cfg     Config
	log     *slog.Logger
	rand    *mathrand.Rand
	agents  []Agent
}

// New registers cfg.Players agents (User1..UserN), each assigned to a least
// represented group so the roster stays balanced.
func New(svc *game.Service, router *game.Router, store game.Store, ledger *game.Ledger,
	decider oracle.Decider, net network.Network, cfg Config, logger *slog.Logger) (*Simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ActionsPerUser < 1 {
		cfg.ActionsPerUser = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		svc:     svc,
		router:  router,
		store:   store,
		ledger:  ledger,
		decider: decider,
		net:     net,
		cfg:     cfg,
		log:     logger,
		rand:    mathrand.New(mathrand.NewSource(seed)),
	}
	for i := 0; i < cfg.Players; i++ {
		username := fmt.Sprintf("User%d", i+1)
		group := svc.LeastRepresentedGroup()
		if err := svc.AddPlayer(username, group); err != nil {
			return nil, err
		}
		s.agents = append(s.agents, Agent{Username: username, Group: group})
	}
	return s, nil
}

func (s *Simulator) Agents() []Agent {
	return append([]Agent(nil), s.agents...)
}

// Run plays cfg.Rounds full rounds and returns the final results.
func (s *Simulator) Run(ctx context.Context) (Results, error) {
	for i := 0; i < s.cfg.Rounds; i++ {
		round := s.svc.Round()
		s.log.Info("round starting", "round", round)

		var err error
		if s.cfg.Concurrent {
			err = s.runRoundConcurrent(ctx, round)
		} else {
			err = s.runRoundSequential(ctx, round)
		}
		if err != nil {
			return Results{}, err
		}

		if _, err := s.svc.AdvanceRound(ctx); err != nil {
			return Results{}, err
		}
		s.log.Info("round scores", "round", round, "scores", s.svc.ScoresForRound(round))
	}
	return s.results(ctx)
}

// runRoundSequential mirrors the one-action-at-a-time loop: a random agent
// with budget left acts, then the next, with a delay between actions.
func (s *Simulator) runRoundSequential(ctx context.Context, round int) error {
	remaining := make(map[string]int, len(s.agents))
	available := append([]Agent(nil), s.agents...)
	for _, a := range available {
		remaining[a.Username] = s.cfg.ActionsPerUser
	}

	for len(available) > 0 {
		if err := s.sleep(ctx, s.delay(s.rand)); err != nil {
			return err
		}
		idx := s.rand.Intn(len(available))
		agent := available[idx]
		if err := s.processTurn(ctx, agent, round); err != nil {
			return err
		}
		remaining[agent.Username]--
		if remaining[agent.Username] == 0 {
			available = append(available[:idx], available[idx+1:]...)
		}
	}
	return nil
}

// runRoundConcurrent gives every agent its own goroutine for the round's
// turns; the store and ledger locking contract keeps the shared state sane.
func (s *Simulator) runRoundConcurrent(ctx context.Context, round int) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()
	for _, agent := range s.agents {
		agent := agent
		jitter := mathrand.New(mathrand.NewSource(s.rand.Int63()))
		p.Go(func(ctx context.Context) error {
			for i := 0; i < s.cfg.ActionsPerUser; i++ {
				if err := s.sleep(ctx, s.delay(jitter)); err != nil {
					return err
				}
				if err := s.processTurn(ctx, agent, round); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return p.Wait()
}

// processTurn plays a single action for one agent.
func (s *Simulator) processTurn(ctx context.Context, agent Agent, round int) error {
	s.ledger.InitializeRound(round)

	score := s.svc.ScoresForRound(round)[agent.Username]
	posts, err := s.store.PostsByRound(ctx, round)
	if err != nil {
		return err
	}
	others := make([]string, 0, len(s.agents)-1)
	for _, p := range s.svc.Players() {
		if p.Username != agent.Username {
			others = append(others, p.Username)
		}
	}

	action, err := s.decider.Decide(ctx, oracle.ActorView{
		Username:         agent.Username,
		Group:            agent.Group,
		GroupDescription: s.net.Groups[agent.Group],
		Rules:            network.Rules,
		Biography:        s.net.Biography,
		Round:            round,
		Score:            score,
		Posts:            posts,
		OtherUsers:       others,
	})
	if err != nil {
		return fmt.Errorf("decide for %s: %w", agent.Username, err)
	}

	result, err := s.router.Dispatch(ctx, agent.Username, action, round)
	if err != nil {
		return err
	}
	s.log.Info("action performed",
		"username", agent.Username, "round", round,
		"action", result.Action, "outcome", result.Outcome,
		"demoted", result.Demoted, "dropped", result.Dropped)
	return nil
}

func (s *Simulator) results(ctx context.Context) (Results, error) {
	total := 0
	for round := game.FirstRound; round <= s.cfg.Rounds; round++ {
		posts, err := s.store.PostsByRound(ctx, round)
		if err != nil {
			return Results{}, err
		}
		total += len(posts)
	}
	groups := make(map[string]string, len(s.agents))
	for _, a := range s.agents {
		groups[a.Username] = a.Group
	}
	return Results{
		Rounds:      s.cfg.Rounds,
		TotalPosts:  total,
		Groups:      groups,
		FinalScores: s.ledger.AllScores(),
		Totals:      s.ledger.Totals(),
	}, nil
}

func (s *Simulator) delay(r *mathrand.Rand) time.Duration {
	if s.cfg.MaxDelay <= s.cfg.MinDelay {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + time.Duration(r.Int63n(int64(s.cfg.MaxDelay-s.cfg.MinDelay)))
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
