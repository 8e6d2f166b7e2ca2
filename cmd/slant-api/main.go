package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slant/internal/api"
	"slant/internal/config"
	"slant/internal/db"
	"slant/internal/game"
	"slant/internal/network"
	"slant/internal/oracle"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	net := network.Default()
	if cfg.GroupsFile != "" {
		net, err = network.Load(cfg.GroupsFile)
		if err != nil {
			logger.Error("load network file failed", "err", err, "path", cfg.GroupsFile)
			os.Exit(1)
		}
	}

	var store game.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := game.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		store = pg
	} else {
		mem, err := game.NewMemoryStore(cfg.PostsFile)
		if err != nil {
			logger.Error("open posts file failed", "err", err, "path", cfg.PostsFile)
			os.Exit(1)
		}
		store = mem
	}

	var (
		aligner game.AlignmentOracle
		judge   game.DominanceOracle
	)
	if cfg.Oracle.Mode == config.OracleModeLLM {
		llm, err := oracle.NewLLM(cfg.Oracle, logger)
		if err != nil {
			logger.Error("oracle init failed", "err", err)
			os.Exit(1)
		}
		aligner, judge = llm, llm
	} else {
		scripted := oracle.NewScripted(cfg.Oracle.Seed)
		aligner, judge = scripted, scripted
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

	server := api.New(logger, svc, router, gate, store)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("slant api listening", "addr", cfg.Addr, "oracle_mode", cfg.Oracle.Mode)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
