// Package kernel is the facade: the only public surface the core
// exposes. It owns exactly one working memory, one graph handle, and one
// orchestrator, wiring the three behind a single caller-facing entry point
// instead of a bus of cooperating goroutines.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcarlsen/socratic-kernel/internal/audit"
	"github.com/jcarlsen/socratic-kernel/internal/bus"
	"github.com/jcarlsen/socratic-kernel/internal/config"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/orchestrator"
	"github.com/jcarlsen/socratic-kernel/internal/tasklog"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// auditSnapshotInterval is how often the background auditor persists a
// window-stats snapshot to disk even absent a stat-mutating event.
const auditSnapshotInterval = 5 * time.Minute

// maxInputBytes bounds input to at most 5000 characters. Checked in bytes,
// not runes: a caller sending 5000+ bytes of multi-byte UTF-8 is already
// over any reasonable budget.
const maxInputBytes = 5000

// MemoryStats is the memory portion of Stats.
type MemoryStats struct {
	Slots      int
	Focused    int
	TotalTicks int
}

// GraphStats is the graph portion of Stats.
type GraphStats struct {
	Nouns     int
	Relations int
	Types     map[string]int
}

// DemonStats is the demon portion of Stats.
type DemonStats struct {
	Registered int
	TotalFired int
}

// Stats is the facade's stats() return shape.
type Stats struct {
	Memory MemoryStats
	Graph  GraphStats
	Demons DemonStats
}

// DemonInfo is one entry of list_demons().
type DemonInfo struct {
	ID          string
	Name        string
	Description string
}

// Result is process()'s return shape: the user-visible text, plus an
// optional tick-by-tick trace for debug callers.
type Result struct {
	Text  string
	Trace []orchestrator.TickResult
}

// Kernel is the facade type. Every field it owns is private; callers only
// ever see Result/Stats/DemonInfo and the methods below.
type Kernel struct {
	cfg    config.Config
	memory *workingmemory.Memory
	store  *graph.Store
	events *bus.Bus
	hv     *orchestrator.Hypervisor

	auditor    *audit.Auditor
	auditClose context.CancelFunc

	traceLogs  *tasklog.Registry
	traceClose context.CancelFunc

	totalFired int
}

// New constructs a Kernel from cfg but does not yet open the graph store;
// call Init before the first Process.
func New(cfg config.Config) *Kernel {
	mem := workingmemory.New()
	events := bus.New()
	return &Kernel{cfg: cfg, memory: mem, events: events}
}

// Init ensures the persistent graph store is open and the orchestrator is
// wired. Safe to call more than once; a second call is a no-op if the
// store is already open.
func (k *Kernel) Init() error {
	if k.store != nil {
		return nil
	}
	store, err := graph.Open(k.cfg.GraphPath, k.cfg.DuplicatePolicy)
	if err != nil {
		return fmt.Errorf("kernel: init: %w", err)
	}
	k.store = store
	k.hv = orchestrator.New(k.cfg.Orchestrator, k.memory, k.store, k.events)

	ctx, cancel := context.WithCancel(context.Background())
	k.auditClose = cancel
	k.auditor = audit.New(k.events, k.events.NewTap(), k.cfg.AuditLogPath, k.cfg.AuditStatsPath, auditSnapshotInterval)
	go k.auditor.Run(ctx)

	if k.cfg.DebugTrace {
		traceCtx, traceCancel := context.WithCancel(context.Background())
		k.traceClose = traceCancel
		k.traceLogs = tasklog.NewRegistry(k.cfg.TraceDir())
		go runTraceRecorder(traceCtx, k.events.NewTap(), k.traceLogs)
	}

	slog.Info("kernel: initialized", "graph_path", k.cfg.GraphPath)
	return nil
}

// runTraceRecorder dispatches every bus event into the per-turn JSONL log
// that tasklog.Registry owns, opening on turn_begin and closing on
// turn_end. Only active when DebugTrace is set — this is diagnostic output,
// not something every turn pays for.
func runTraceRecorder(ctx context.Context, tap <-chan bus.Event, logs *tasklog.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-tap:
			if !ok {
				return
			}
			if evt.Kind == bus.EventTurnBegin {
				logs.Open(evt.TurnID)
			}
			logs.Get(evt.TurnID).Record(evt)
			if evt.Kind == bus.EventTurnEnd {
				logs.Close(evt.TurnID)
			}
		}
	}
}

// Close releases the graph store handle and stops the background
// auditor/trace recorder goroutines.
func (k *Kernel) Close() error {
	if k.auditClose != nil {
		k.auditClose()
	}
	if k.traceClose != nil {
		k.traceClose()
	}
	if k.store == nil {
		return nil
	}
	return k.store.Close()
}

// Process drives one turn of conversation through the orchestrator. text
// must be non-empty and at most 5000 bytes; violations are the caller's
// bug, not a recoverable input.
func (k *Kernel) Process(text string) (Result, error) {
	if k.hv == nil {
		return Result{}, fmt.Errorf("kernel: process: not initialized, call Init first")
	}
	if text == "" {
		return Result{}, fmt.Errorf("kernel: process: text must not be empty")
	}
	if len(text) > maxInputBytes {
		return Result{}, fmt.Errorf("kernel: process: text exceeds %d bytes", maxInputBytes)
	}

	turn, err := k.hv.Process(text)
	if err != nil {
		return Result{}, err
	}
	for _, t := range turn.Trace {
		k.totalFired += len(t.DemonsFired)
	}
	return Result{Text: turn.Text, Trace: turn.Trace}, nil
}

// Stats reports the three-part memory/graph/demon snapshot.
func (k *Kernel) Stats() (Stats, error) {
	var out Stats
	out.Memory = MemoryStats{
		Slots:      k.memory.Size(),
		Focused:    len(k.memory.Focused()),
		TotalTicks: k.memory.CurrentTick(),
	}
	if k.store != nil {
		gs, err := k.store.Stats()
		if err != nil {
			return out, fmt.Errorf("kernel: stats: %w", err)
		}
		out.Graph = GraphStats{Nouns: gs.Nouns, Relations: gs.Relations, Types: gs.Types}
	}
	demons := orchestrator.ListDemons()
	out.Demons = DemonStats{Registered: len(demons), TotalFired: k.totalFired}
	return out, nil
}

// SaveState returns an opaque blob capturing working memory. The graph
// store is already durable on its own and is not part of the blob.
func (k *Kernel) SaveState() ([]byte, error) {
	blob, err := k.memory.Serialize()
	if err != nil {
		return nil, fmt.Errorf("kernel: save_state: %w", err)
	}
	return blob, nil
}

// LoadState replaces working memory's contents with what blob encodes. A
// malformed blob leaves the kernel's current working memory untouched:
// decoding happens before any mutation.
func (k *Kernel) LoadState(blob []byte) error {
	restored, err := workingmemory.Deserialize(blob)
	if err != nil {
		return fmt.Errorf("kernel: load_state: %w", err)
	}
	k.memory.Restore(restored.All(), focusIDs(restored), restored.CurrentTick())
	return nil
}

func focusIDs(m *workingmemory.Memory) []string {
	focused := m.Focused()
	ids := make([]string, 0, len(focused))
	for _, s := range focused {
		ids = append(ids, s.ID)
	}
	return ids
}

// demonDescriptions is list_demons()'s human-readable text per id.
var demonDescriptions = map[string]string{
	"parse":     "tokenizes raw input, classifies intent/subject, and seeds the per-turn chain",
	"relate":    "resolves noun phrases against the graph and loads known relations into working memory",
	"infer":     "derives transitive edges, inherited properties, contradictions, and claim assessments",
	"decompose": "breaks a concept into parts, prerequisites, examples, and knowledge gaps",
	"analogize": "finds a bootstrapped or structural analogy for a concept",
	"question":  "renders the turn's single user-visible response",
	"learn":     "persists the turn's findings back to the graph store",
}

// Tap returns a new read-only feed of every bus event the orchestrator
// publishes, for callers that want to render a live trace (e.g. a CLI
// pipeline display) alongside Process.
func (k *Kernel) Tap() <-chan bus.Event {
	return k.events.NewTap()
}

// ListDemons reports every demon's id/name/description.
func (k *Kernel) ListDemons() []DemonInfo {
	out := make([]DemonInfo, 0, len(orchestrator.ListDemons()))
	for _, d := range orchestrator.ListDemons() {
		id := string(d.ID)
		out = append(out, DemonInfo{ID: id, Name: id, Description: demonDescriptions[id]})
	}
	return out
}
