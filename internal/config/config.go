package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OracleMode selects how the external oracles are implemented.
const (
	OracleModeLLM      = "llm"
	OracleModeScripted = "scripted"
)

type OracleConfig struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
	Seed    int64
}

type APIConfig struct {
	Addr        string
	DatabaseURL string
	PostsFile   string
	GroupsFile  string
	FailClosed  bool
	Oracle      OracleConfig
}

type SimConfig struct {
	PostsFile      string
	GroupsFile     string
	Players        int
	Rounds         int
	ActionsPerUser int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	Concurrent     bool
	FailClosed     bool
	Oracle         OracleConfig
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("SLANT_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PostsFile:   envDefault("SLANT_POSTS_FILE", "simulation_posts.json"),
		GroupsFile:  strings.TrimSpace(os.Getenv("SLANT_GROUPS_FILE")),
		FailClosed:  envBoolDefault("SLANT_MODERATION_FAIL_CLOSED", false),
		Oracle:      loadOracleFromEnv(),
	}
	if cfg.Oracle.Mode == OracleModeLLM && cfg.Oracle.BaseURL == "" {
		return cfg, fmt.Errorf("SLANT_ORACLE_BASE_URL is required in llm oracle mode")
	}
	return cfg, nil
}

func LoadSimFromEnv() (SimConfig, error) {
	cfg := SimConfig{
		PostsFile:      envDefault("SLANT_POSTS_FILE", "simulation_posts.json"),
		GroupsFile:     strings.TrimSpace(os.Getenv("SLANT_GROUPS_FILE")),
		Players:        envIntDefault("SLANT_SIM_PLAYERS", 4),
		Rounds:         envIntDefault("SLANT_SIM_ROUNDS", 4),
		ActionsPerUser: envIntDefault("SLANT_SIM_ACTIONS_PER_USER", 3),
		MinDelay:       envDurationDefault("SLANT_SIM_MIN_DELAY", 500*time.Millisecond),
		MaxDelay:       envDurationDefault("SLANT_SIM_MAX_DELAY", 2*time.Second),
		Concurrent:     envBoolDefault("SLANT_SIM_CONCURRENT", false),
		FailClosed:     envBoolDefault("SLANT_MODERATION_FAIL_CLOSED", false),
		Oracle:         loadOracleFromEnv(),
	}
	if cfg.Players < 1 {
		return cfg, fmt.Errorf("SLANT_SIM_PLAYERS must be at least 1")
	}
	if cfg.Rounds < 1 {
		return cfg, fmt.Errorf("SLANT_SIM_ROUNDS must be at least 1")
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Oracle.Mode == OracleModeLLM && cfg.Oracle.BaseURL == "" {
		return cfg, fmt.Errorf("SLANT_ORACLE_BASE_URL is required in llm oracle mode")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("SLT_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func loadOracleFromEnv() OracleConfig {
	return OracleConfig{
		Mode:    envOracleModeDefault(),
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("SLANT_ORACLE_BASE_URL")), "/"),
		APIKey:  strings.TrimSpace(os.Getenv("SLANT_ORACLE_API_KEY")),
		Model:   envDefault("SLANT_ORACLE_MODEL", "mistral-7b-instruct"),
		Seed:    envInt64Default("SLANT_ORACLE_SEED", 1),
	}
}

func envOracleModeDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SLANT_ORACLE_MODE")))
	switch v {
	case OracleModeLLM, OracleModeScripted:
		return v
	default:
		return OracleModeScripted
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
