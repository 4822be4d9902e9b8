// Package config loads kernel configuration from the environment: godotenv
// populates the process environment from an optional .env file, then plain
// os.Getenv reads apply defaults for anything unset.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/orchestrator"
)

// Config is the resolved set of knobs the kernel facade needs to start.
type Config struct {
	GraphPath       string
	DuplicatePolicy graph.DuplicateLinkPolicy
	Orchestrator    orchestrator.Config
	DebugTrace      bool
	AuditLogPath    string
	AuditStatsPath  string
	TraceDirPath    string
}

// TraceDir is where per-turn JSONL trace files are written when DebugTrace
// is enabled.
func (c Config) TraceDir() string {
	return c.TraceDirPath
}

// LoadDotEnv loads a .env file if present at path; a missing file is not an
// error (mirrors godotenv's own convention for optional env files).
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: .env load failed", "path", path, "err", err)
	}
}

// FromEnv resolves a Config from the process environment, applying
// defaults for anything unset.
func FromEnv() Config {
	cfg := Config{
		GraphPath:       getenv("TUTOR_GRAPH_PATH", "./tutor-graph.db"),
		DuplicatePolicy: graph.MergeMaxWeight,
		Orchestrator:    orchestrator.TutorConfig(),
		DebugTrace:      getenvBool("TUTOR_DEBUG_TRACE", false),
		AuditLogPath:    getenv("TUTOR_AUDIT_LOG_PATH", "./tutor-audit.jsonl"),
		AuditStatsPath:  getenv("TUTOR_AUDIT_STATS_PATH", "./tutor-audit-stats.json"),
		TraceDirPath:    getenv("TUTOR_TRACE_DIR", "./tutor-traces"),
	}
	if getenv("TUTOR_DUPLICATE_LINK_POLICY", "merge") == "keep_multiple" {
		cfg.DuplicatePolicy = graph.KeepMultiple
	}
	if n, ok := getenvInt("TUTOR_MAX_TICKS_PER_TURN"); ok {
		cfg.Orchestrator.MaxTicksPerTurn = n
	}
	if n, ok := getenvInt("TUTOR_MAX_DEMONS_PER_TICK"); ok {
		cfg.Orchestrator.MaxDemonsPerTick = n
	}
	if n, ok := getenvInt("TUTOR_MAX_MEMORY_SLOTS"); ok {
		cfg.Orchestrator.MaxMemorySlots = n
	}
	if n, ok := getenvInt("TUTOR_TICK_TIMEOUT_MS"); ok {
		cfg.Orchestrator.TickTimeoutMs = n
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config: invalid bool env var, using default", "key", key, "value", v)
		return def
	}
	return b
}

func getenvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: invalid int env var, ignoring", "key", key, "value", v)
		return 0, false
	}
	return n, true
}
