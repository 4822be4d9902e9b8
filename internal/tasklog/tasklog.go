// Package tasklog provides per-turn structured logging for the tutoring
// kernel. Each turn gets one JSONL file in a configurable directory,
// recording every tick's demon firings and actions — the raw substrate a
// developer replays to see exactly how a turn's response was reached.
//
// Design constraints:
//   - All TurnLog methods are nil-safe (no-op on nil receiver) so callers
//     don't need nil checks before every log call.
//   - Registry is the sole owner of JSONL persistence; callers never open
//     files directly.
//   - Open is idempotent for a given turn id (returns the existing handle).
package tasklog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jcarlsen/socratic-kernel/internal/bus"
)

// Event is one JSONL line in a turn log: the bus event plus a timestamp.
type Event struct {
	bus.Event
	Timestamp string `json:"ts"`
}

// TurnLog is a handle for writing structured events for one turn.
type TurnLog struct {
	turnID  string
	started time.Time
	mu      sync.Mutex
	f       *os.File
	ticks   int
}

// Registry maps turn ids to open TurnLogs. It is the sole authority for
// creating and closing turn log files.
type Registry struct {
	dir  string
	mu   sync.Mutex
	logs map[string]*TurnLog
}

// NewRegistry creates a Registry that writes one JSONL file per turn under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, logs: make(map[string]*TurnLog)}
}

// Open creates a new TurnLog for turnID and registers it. If a log for
// turnID is already open it returns the existing log.
func (r *Registry) Open(turnID string) *TurnLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tl, ok := r.logs[turnID]; ok {
		return tl
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		slog.Warn("tasklog: could not create dir", "dir", r.dir, "err", err)
		return nil
	}
	path := filepath.Join(r.dir, turnID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("tasklog: could not open log file", "path", path, "err", err)
		return nil
	}
	tl := &TurnLog{turnID: turnID, started: time.Now(), f: f}
	r.logs[turnID] = tl
	return tl
}

// Get returns the TurnLog for turnID, or nil if not found. Nil is safe to
// pass to all TurnLog methods.
func (r *Registry) Get(turnID string) *TurnLog {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[turnID]
}

// Close flushes and closes the turn's file and removes it from the registry.
// Safe to call on a nil *Registry or unknown turnID.
func (r *Registry) Close(turnID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	tl, ok := r.logs[turnID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.logs, turnID)
	r.mu.Unlock()

	tl.mu.Lock()
	if tl.f != nil {
		_ = tl.f.Close()
		tl.f = nil
	}
	tl.mu.Unlock()
}

// Record writes one bus.Event as a JSONL line, stamping it with the current
// time. No-op on a nil receiver.
func (tl *TurnLog) Record(evt bus.Event) {
	if tl == nil {
		return
	}
	if evt.Kind == bus.EventTickBegin {
		tl.mu.Lock()
		tl.ticks++
		tl.mu.Unlock()
	}
	e := Event{Event: evt, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("tasklog: marshal error", "err", err)
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.f == nil {
		return
	}
	if _, err := fmt.Fprintf(tl.f, "%s\n", data); err != nil {
		slog.Warn("tasklog: write error", "err", err)
	}
}

// TickCount returns the number of tick_begin events recorded so far.
// Returns 0 on a nil receiver.
func (tl *TurnLog) TickCount() int {
	if tl == nil {
		return 0
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.ticks
}

// Elapsed returns the time since the log was opened.
func (tl *TurnLog) Elapsed() time.Duration {
	if tl == nil {
		return 0
	}
	return time.Since(tl.started)
}
