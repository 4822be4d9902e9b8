// Package audit is a read-only tap on the orchestrator's event bus. It
// accumulates window statistics over the turn/tick/demon/action vocabulary
// and flags turns that never converged on a response.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jcarlsen/socratic-kernel/internal/bus"
	"github.com/jcarlsen/socratic-kernel/internal/demon"
)

// persistedStats is the window snapshot that survives process restarts.
type persistedStats struct {
	WindowStart     time.Time      `json:"window_start"`
	TurnsObserved   int            `json:"turns_observed"`
	TotalTicks      int            `json:"total_ticks"`
	DemonFireCounts map[string]int `json:"demon_fire_counts"`
	NonConvergent   []string       `json:"non_convergent"`
	Anomalies       []string       `json:"anomalies"`
}

// turnState tracks the in-flight bookkeeping needed to decide, once a
// turn_end event arrives, whether that turn ever responded.
type turnState struct {
	ticks     int
	responded bool
}

// Auditor taps the bus read-only for passive observation and persists a
// JSONL event log plus a periodically saved JSON stats snapshot. The
// window stats accumulate for the Auditor's lifetime; nothing resets them.
type Auditor struct {
	b         *bus.Bus
	tap       <-chan bus.Event
	logPath   string
	statsPath string
	interval  time.Duration // 0 disables periodic snapshots

	mu      sync.Mutex
	logFile *os.File

	windowStart     time.Time
	turnsObserved   int
	totalTicks      int
	demonFireCounts map[string]int
	nonConvergent   []string
	anomalies       []string

	turns map[string]*turnState
}

// New creates an Auditor. tap must be a dedicated bus.NewTap(). statsPath
// is where window stats are persisted across restarts; interval sets the
// periodic snapshot cadence (0 disables it — snapshots then only happen on
// tick_begin and turn_end events).
func New(b *bus.Bus, tap <-chan bus.Event, logPath, statsPath string, interval time.Duration) *Auditor {
	a := &Auditor{
		b:               b,
		tap:             tap,
		logPath:         logPath,
		statsPath:       statsPath,
		interval:        interval,
		demonFireCounts: make(map[string]int),
		turns:           make(map[string]*turnState),
		windowStart:     time.Now().UTC(),
	}
	a.loadStats()
	return a
}

func (a *Auditor) loadStats() {
	data, err := os.ReadFile(a.statsPath)
	if err != nil {
		return
	}
	var ps persistedStats
	if err := json.Unmarshal(data, &ps); err != nil {
		slog.Warn("audit: could not load persisted stats", "err", err)
		return
	}
	a.windowStart = ps.WindowStart
	a.turnsObserved = ps.TurnsObserved
	a.totalTicks = ps.TotalTicks
	if ps.DemonFireCounts != nil {
		a.demonFireCounts = ps.DemonFireCounts
	}
	a.nonConvergent = ps.NonConvergent
	a.anomalies = ps.Anomalies
}

func (a *Auditor) saveStats() {
	a.mu.Lock()
	ps := persistedStats{
		WindowStart:     a.windowStart,
		TurnsObserved:   a.turnsObserved,
		TotalTicks:      a.totalTicks,
		DemonFireCounts: copyCounts(a.demonFireCounts),
		NonConvergent:   append([]string(nil), a.nonConvergent...),
		Anomalies:       append([]string(nil), a.anomalies...),
	}
	a.mu.Unlock()

	data, err := json.Marshal(ps)
	if err != nil {
		slog.Warn("audit: could not marshal stats", "err", err)
		return
	}
	if err := os.WriteFile(a.statsPath, data, 0o644); err != nil {
		slog.Warn("audit: could not save stats", "err", err)
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Run drains the tap until ctx is cancelled, writing one JSONL line per
// event and snapshotting stats on a schedule.
func (a *Auditor) Run(ctx context.Context) {
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o755); err != nil {
		slog.Error("audit: create log dir failed", "err", err)
		return
	}
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("audit: open log file failed", "err", err)
		return
	}
	a.logFile = f
	defer f.Close()

	var tickC <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			a.saveStats()
		case evt, ok := <-a.tap:
			if !ok {
				return
			}
			a.process(evt)
		}
	}
}

func (a *Auditor) process(evt bus.Event) {
	a.writeEvent(evt)

	mutated := false
	switch evt.Kind {
	case bus.EventTurnBegin:
		a.mu.Lock()
		a.turns[evt.TurnID] = &turnState{}
		a.mu.Unlock()

	case bus.EventTickBegin:
		a.mu.Lock()
		a.totalTicks++
		if ts, ok := a.turns[evt.TurnID]; ok {
			ts.ticks++
		}
		a.mu.Unlock()
		mutated = true

	case bus.EventDemonFired:
		a.mu.Lock()
		a.demonFireCounts[evt.Demon]++
		a.mu.Unlock()

	case bus.EventActionTaken:
		if evt.Detail == string(demon.ActionRespond) {
			a.mu.Lock()
			if ts, ok := a.turns[evt.TurnID]; ok {
				ts.responded = true
			}
			a.mu.Unlock()
		}

	case bus.EventTurnEnd:
		a.mu.Lock()
		a.turnsObserved++
		ts, ok := a.turns[evt.TurnID]
		delete(a.turns, evt.TurnID)
		if ok && !ts.responded {
			d := fmt.Sprintf("turn %s ran %d ticks without ever responding", evt.TurnID, ts.ticks)
			a.nonConvergent = append(a.nonConvergent, d)
			a.anomalies = append(a.anomalies, "non_convergent: "+d)
			slog.Warn("audit: turn never converged on a response", "turn", evt.TurnID, "ticks", ts.ticks)
		}
		a.mu.Unlock()
		mutated = true
	}

	if mutated {
		a.saveStats()
	}
}

func (a *Auditor) writeEvent(evt bus.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.logFile == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("audit: marshal event failed", "err", err)
		return
	}
	if _, err := fmt.Fprintf(a.logFile, "%s\n", data); err != nil {
		slog.Warn("audit: write event failed", "err", err)
	}
}

// Snapshot returns the current window stats without resetting them, for
// callers (e.g. the kernel facade) that want to surface audit state
// directly rather than only through the JSON file.
func (a *Auditor) Snapshot() (turnsObserved, totalTicks int, nonConvergent int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turnsObserved, a.totalTicks, len(a.nonConvergent)
}
