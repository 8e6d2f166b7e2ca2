package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"slant/internal/config"
	"slant/internal/game"
	"slant/internal/network"
	"slant/internal/oracle"
	"slant/internal/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSimFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	net := network.Default()
	if cfg.GroupsFile != "" {
		net, err = network.Load(cfg.GroupsFile)
		if err != nil {
			logger.Error("load network file failed", "err", err, "path", cfg.GroupsFile)
			os.Exit(1)
		}
	}

	store, err := game.NewMemoryStore(cfg.PostsFile)
	if err != nil {
		logger.Error("open posts file failed", "err", err, "path", cfg.PostsFile)
		os.Exit(1)
	}

	var (
		aligner game.AlignmentOracle
		judge   game.DominanceOracle
		decider oracle.Decider
	)
	if cfg.Oracle.Mode == config.OracleModeLLM {
		llm, err := oracle.NewLLM(cfg.Oracle, logger)
		if err != nil {
			logger.Error("oracle init failed", "err", err)
			os.Exit(1)
		}
		aligner, judge, decider = llm, llm, llm
	} else {
		scripted := oracle.NewScripted(cfg.Oracle.Seed)
		aligner, judge, decider = scripted, scripted, scripted
	}

	ledger := game.NewLedger()
	svc := game.NewService(store, ledger, judge, net.Groups, logger)

	policy := game.FailOpen
	if cfg.FailClosed {
		policy = game.FailClosed
	}
	gate := game.NewGate(game.GateConfig{
		Store:       store,
		Ledger:      ledger,
		Roster:      svc,
		Aligner:     aligner,
		Groups:      net.Groups,
		Description: net.Biography,
		Policy:      policy,
		Logger:      logger,
	})
	router := game.NewRouter(store, gate, svc)

	simulator, err := sim.New(svc, router, store, ledger, decider, net, sim.Config{
		Players:        cfg.Players,
		Rounds:         cfg.Rounds,
		ActionsPerUser: cfg.ActionsPerUser,
		MinDelay:       cfg.MinDelay,
		MaxDelay:       cfg.MaxDelay,
		Concurrent:     cfg.Concurrent,
		Seed:           cfg.Oracle.Seed,
	}, logger)
	if err != nil {
		logger.Error("simulator init failed", "err", err)
		os.Exit(1)
	}

	logger.Info("simulation started",
		"players", cfg.Players,
		"rounds", cfg.Rounds,
		"actions_per_user", cfg.ActionsPerUser,
		"oracle_mode", cfg.Oracle.Mode,
		"concurrent", cfg.Concurrent,
	)
	results, err := simulator.Run(ctx)
	if err != nil {
		logger.Error("simulation failed", "err", err)
		os.Exit(1)
	}
	logger.Info("simulation complete", "rounds", results.Rounds, "total_posts", results.TotalPosts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("encode results failed", "err", err)
		os.Exit(1)
	}
}
