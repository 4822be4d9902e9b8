// Package orchestrator implements the Hypervisor: the per-turn
// scheduler that drives parse's chain hints to a terminal response,
// enforces the tick loop's resource bounds, and persists via learn. It is
// the sole caller of every demon and the sole mutator of working memory —
// demons themselves only describe mutations via the Plan they return.
package orchestrator

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/bus"
	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/demon/analogize"
	"github.com/jcarlsen/socratic-kernel/internal/demon/decompose"
	"github.com/jcarlsen/socratic-kernel/internal/demon/infer"
	"github.com/jcarlsen/socratic-kernel/internal/demon/learn"
	"github.com/jcarlsen/socratic-kernel/internal/demon/parse"
	"github.com/jcarlsen/socratic-kernel/internal/demon/question"
	"github.com/jcarlsen/socratic-kernel/internal/demon/relate"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// ErrBusy is returned by Process when a call is already in flight on this
// Hypervisor.
var ErrBusy = errors.New("orchestrator: process already running on this kernel instance")

// FallbackResponse is returned verbatim when no demon ever emits a respond
// action during a turn.
const FallbackResponse = "I'd love to help you learn! What would you like to explore today?"

// TickResult is one tick's trace entry, returned to the facade for
// debug/diagnostic surfacing.
type TickResult struct {
	Tick         int
	DemonsFired  []demon.ID
	SlotsWritten int
	SlotsEvicted int
	Actions      []demon.Action
	DurationMs   int64
}

// TurnResult is what Process returns: the user-visible text plus an
// optional tick-by-tick trace.
type TurnResult struct {
	Text  string
	Trace []TickResult
}

// Hypervisor owns one working memory, one graph handle, and the seven
// demon functions; Process drives exactly one turn at a time.
type Hypervisor struct {
	cfg    Config
	memory *workingmemory.Memory
	store  *graph.Store
	events *bus.Bus

	demons map[demon.ID]demon.Func
	learn  demon.LearnFunc

	mu sync.Mutex
}

// New constructs a Hypervisor wired to every demon implementation.
func New(cfg Config, mem *workingmemory.Memory, store *graph.Store, events *bus.Bus) *Hypervisor {
	return &Hypervisor{
		cfg:    cfg,
		memory: mem,
		store:  store,
		events: events,
		demons: map[demon.ID]demon.Func{
			demon.Parse:     parse.Run,
			demon.Relate:    relate.Run,
			demon.Infer:     infer.Run,
			demon.Decompose: decompose.Run,
			demon.Analogize: analogize.Run,
			demon.Question:  question.Run,
		},
		learn: learn.Run,
	}
}

// Process drives one turn from raw user text to a terminal response,
// chain-scheduling demons tick by tick, then fires learn and sweeps
// ephemeral slots.
func (h *Hypervisor) Process(text string) (TurnResult, error) {
	if !h.mu.TryLock() {
		return TurnResult{}, ErrBusy
	}
	defer h.mu.Unlock()

	turnID := uuid.NewString()
	h.events.Publish(bus.Event{Kind: bus.EventTurnBegin, TurnID: turnID, Detail: text})

	pending := []demon.ID{demon.Parse}
	var trace []TickResult
	var response string
	responded := false

	for tick := 1; tick <= h.cfg.MaxTicksPerTurn && len(pending) > 0; tick++ {
		batchLen := h.cfg.MaxDemonsPerTick
		if batchLen > len(pending) {
			batchLen = len(pending)
		}
		batch := pending[:batchLen]
		remainder := append([]demon.ID{}, pending[batchLen:]...)

		h.events.Publish(bus.Event{Kind: bus.EventTickBegin, TurnID: turnID, Tick: tick})
		tickStart := time.Now()
		timeout := time.Duration(h.cfg.TickTimeoutMs) * time.Millisecond

		fired := map[demon.ID]bool{}
		var demonsFired []demon.ID
		var chainAdds []demon.ID
		var actions []demon.Action
		slotsWritten, slotsEvicted := 0, 0

		for _, id := range batch {
			if fired[id] {
				continue
			}
			if time.Since(tickStart) > timeout {
				slog.Warn("orchestrator: tick exceeded timeout, stopping tick", "tick", tick, "timeout_ms", h.cfg.TickTimeoutMs)
				break
			}
			fired[id] = true

			fn, ok := h.demons[id]
			if !ok {
				continue
			}
			view := workingmemory.ViewOf(h.memory)
			plan, err := fn(view, h.store, h.contextFor(text))
			if err != nil {
				slog.Error("orchestrator: demon invocation failed", "demon", id, "err", err)
				continue
			}
			demonsFired = append(demonsFired, id)
			h.events.Publish(bus.Event{Kind: bus.EventDemonFired, TurnID: turnID, Tick: tick, Demon: string(id)})

			for _, s := range plan.Write {
				h.memory.Write(s)
				slotsWritten++
			}
			for _, evID := range plan.Evict {
				if h.memory.Evict(evID) {
					slotsEvicted++
				}
			}
			if plan.Focus != nil {
				h.memory.SetFocus(plan.Focus)
			}
			slotsEvicted += len(h.memory.EnforceLimit(h.cfg.MaxMemorySlots))

			for _, a := range plan.Actions {
				actions = append(actions, a)
				h.events.Publish(bus.Event{Kind: bus.EventActionTaken, TurnID: turnID, Tick: tick, Demon: string(id), Detail: string(a.Kind)})
				if a.Kind == demon.ActionRespond && !responded {
					response = a.Text
					responded = true
				}
			}
			if !responded {
				chainAdds = append(chainAdds, plan.Chain...)
			}
		}

		slotsEvicted += len(h.memory.Tick())

		trace = append(trace, TickResult{
			Tick: tick, DemonsFired: demonsFired, SlotsWritten: slotsWritten,
			SlotsEvicted: slotsEvicted, Actions: actions, DurationMs: time.Since(tickStart).Milliseconds(),
		})
		h.events.Publish(bus.Event{Kind: bus.EventTickEnd, TurnID: turnID, Tick: tick, Count: len(demonsFired)})

		pending = dedupAppend(remainder, chainAdds)
	}

	h.runLearn(text)
	evicted := h.memory.Sweep(workingmemory.EphemeralTags)
	slog.Debug("orchestrator: end-of-turn sweep", "turn", turnID, "evicted", len(evicted))

	if !responded {
		response = FallbackResponse
	}
	h.events.Publish(bus.Event{Kind: bus.EventTurnEnd, TurnID: turnID, Detail: response, Count: len(trace)})

	return TurnResult{Text: response, Trace: trace}, nil
}

// runLearn fires learn exactly once per turn, independent of the chain
// model.
func (h *Hypervisor) runLearn(text string) {
	view := workingmemory.ViewOf(h.memory)
	plan, err := h.learn(view, h.store, h.contextFor(text))
	if err != nil {
		slog.Error("orchestrator: learn failed", "err", err)
		return
	}
	for _, s := range plan.Write {
		h.memory.Write(s)
	}
	for _, evID := range plan.Evict {
		h.memory.Evict(evID)
	}
	if plan.Focus != nil {
		h.memory.SetFocus(plan.Focus)
	}
}

func (h *Hypervisor) contextFor(text string) demon.Context {
	subject := ""
	if s, ok := h.memory.LatestByTag(workingmemory.TagSubject); ok {
		if subj, ok := s.Content.(workingmemory.Subject); ok {
			subject = subj.Value
		}
	}
	return demon.Context{Subject: subject, RawInput: text}
}

func dedupAppend(existing []demon.ID, add []demon.ID) []demon.ID {
	seen := make(map[demon.ID]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	out := existing
	for _, id := range add {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DemonInfo documents one demon's id and the triggers that would enlist it
// outside the chain model.
type DemonInfo struct {
	ID       demon.ID
	Triggers []demon.Trigger
}

// ListDemons documents every demon's declared triggers. It is for
// introspection only — the tick loop never consults these.
func ListDemons() []DemonInfo {
	return []DemonInfo{
		{demon.Parse, []demon.Trigger{demon.NewInputTrigger()}},
		{demon.Relate, []demon.Trigger{demon.ChainFrom(demon.Parse), demon.TagPresent(workingmemory.TagNounPhrase)}},
		{demon.Infer, []demon.Trigger{demon.ChainFrom(demon.Relate), demon.TagPresent(workingmemory.TagRelation)}},
		{demon.Decompose, []demon.Trigger{demon.ChainFrom(demon.Infer), demon.ChainFrom(demon.Parse), demon.TagPresent(workingmemory.TagStudentConfusion)}},
		{demon.Analogize, []demon.Trigger{demon.ChainFrom(demon.Decompose), demon.ChainFrom(demon.Relate), demon.TagPresent(workingmemory.TagSimplificationNeed)}},
		{demon.Question, []demon.Trigger{demon.Always()}},
		{demon.Learn, []demon.Trigger{demon.TagPresent(workingmemory.TagResponse), demon.TickInterval(5)}},
	}
}
