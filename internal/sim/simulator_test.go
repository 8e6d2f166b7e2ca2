package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slant/internal/game"
	"slant/internal/network"
	"slant/internal/oracle"
)

func newTestSimulator(t *testing.T, cfg Config) (*Simulator, *game.Service) {
	t.Helper()
	net := network.Default()
	store, err := game.NewMemoryStore("")
	require.NoError(t, err)
	ledger := game.NewLedger()
	scripted := oracle.NewScripted(cfg.Seed)
	svc := game.NewService(store, ledger, scripted, net.Groups, nil)
	gate := game.NewGate(game.GateConfig{
		Store:       store,
		Ledger:      ledger,
		Roster:      svc,
		Aligner:     scripted,
		Groups:      net.Groups,
		Description: net.Biography,
	})
	router := game.NewRouter(store, gate, svc)

	simulator, err := New(svc, router, store, ledger, scripted, net, cfg, nil)
	require.NoError(t, err)
	return simulator, svc
}

func TestNewRegistersBalancedAgents(t *testing.T) {
	simulator, svc := newTestSimulator(t, Config{Players: 8, Rounds: 1, Seed: 1})

	agents := simulator.Agents()
	require.Len(t, agents, 8)
	assert.Len(t, svc.Players(), 8)

	// Four configured groups, eight players: every group ends up with two.
	counts := map[string]int{}
	for _, a := range agents {
		counts[a.Group]++
	}
	for group, count := range counts {
		assert.Equal(t, 2, count, "group %s", group)
	}
}

func TestRunSequential(t *testing.T) {
	simulator, svc := newTestSimulator(t, Config{
		Players:        4,
		Rounds:         2,
		ActionsPerUser: 3,
		Seed:           42,
	})

	results, err := simulator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, results.Rounds)
	assert.Equal(t, 3, svc.Round(), "two finished rounds leave the counter at 3")
	assert.Positive(t, results.TotalPosts)
	assert.Len(t, results.Totals, 4)
	for _, agent := range simulator.Agents() {
		assert.Contains(t, results.FinalScores, agent.Username)
	}
}

func TestRunConcurrent(t *testing.T) {
	simulator, _ := newTestSimulator(t, Config{
		Players:        6,
		Rounds:         1,
		ActionsPerUser: 2,
		Concurrent:     true,
		Seed:           7,
	})

	results, err := simulator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, results.Rounds)
	assert.Positive(t, results.TotalPosts)
}

func TestRunHonorsCancellation(t *testing.T) {
	simulator, _ := newTestSimulator(t, Config{
		Players:        4,
		Rounds:         5,
		ActionsPerUser: 3,
		MinDelay:       50 * time.Millisecond,
		MaxDelay:       100 * time.Millisecond,
		Seed:           3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := simulator.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
