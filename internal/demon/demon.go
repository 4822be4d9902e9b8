// Package demon defines the common shape every reasoner shares: a
// pure function from a read-only working-memory view to a mutation plan
// plus a chain hint. Concrete demons live in sibling packages (parse,
// relate, infer, decompose, analogize, question, learn) so each can carry
// its own rule tables without a god-package.
package demon

import (
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// ID names one of the seven demons. Values match the identifiers used in
// chain hints and in the orchestrator's ListDemons trigger table.
type ID string

const (
	Parse      ID = "parse"
	Relate     ID = "relate"
	Infer      ID = "infer"
	Decompose  ID = "decompose"
	Analogize  ID = "analogize"
	Question   ID = "question"
	Learn      ID = "learn"
)

// All lists every demon id, in pipeline order.
var All = []ID{Parse, Relate, Infer, Decompose, Analogize, Question, Learn}

// Trigger is a condition under which a demon is eligible to fire. Only
// new_input ever seeds the orchestrator's pending queue; the others
// describe a demon's intended eligibility for documentation and for
// list_demons(), but are deliberately NOT consulted mid-turn by the
// orchestrator, which schedules purely off chain hints.
type Trigger struct {
	Kind string // "new_input" | "chain_from" | "tag_present" | "tag_absent" | "tick_interval" | "always"
	Demon ID          // for chain_from
	Tag   workingmemory.Tag // for tag_present / tag_absent
	N     int         // for tick_interval
}

func NewInputTrigger() Trigger            { return Trigger{Kind: "new_input"} }
func ChainFrom(d ID) Trigger              { return Trigger{Kind: "chain_from", Demon: d} }
func TagPresent(t workingmemory.Tag) Trigger { return Trigger{Kind: "tag_present", Tag: t} }
func TagAbsent(t workingmemory.Tag) Trigger  { return Trigger{Kind: "tag_absent", Tag: t} }
func TickInterval(n int) Trigger          { return Trigger{Kind: "tick_interval", N: n} }
func Always() Trigger                     { return Trigger{Kind: "always"} }

// ActionKind closes the vocabulary of user/diagnostic-visible effects a
// demon can request.
type ActionKind string

const (
	ActionRespond ActionKind = "respond"
	ActionAsk     ActionKind = "ask" // treated as respond for user-visible purposes
	ActionStore   ActionKind = "store"
	ActionQuery   ActionKind = "query"
	ActionLog     ActionKind = "log"
)

// Action is one effect a demon asks the orchestrator to carry out or
// surface. Store actions are handled exclusively by learn; the others are
// informational/diagnostic or terminal (respond/ask).
type Action struct {
	Kind    ActionKind
	Text    string // respond / ask / log
	Store   *StoreRequest
	Pattern string // query, diagnostic only
}

// StoreRequest is learn's opaque request to persist a noun and/or a set of
// relations to the graph.
type StoreRequest struct {
	NounLabel string
	NounType  string
	Relations []StoreRelation
}

// StoreRelation is one edge learn asks the graph store to create.
type StoreRelation struct {
	FromLabel string
	Type      string
	ToLabel   string
	Weight    float64
	ContextLabel string
}

// Plan is what a demon invocation returns: the working-memory mutations to
// apply, plus the ordered chain of demon ids it asks the orchestrator to
// enlist next. The orchestrator — never the demon — applies Write/Evict/
// Focus.
type Plan struct {
	Write   []workingmemory.Slot
	Evict   []string
	Focus   []string // nil means "leave focus unchanged"
	Actions []Action
	Chain   []ID
}

// Context is optional per-turn context a demon may consult (e.g. the
// current subject, used by relate to load context_fact edges). It is
// supplied by the orchestrator, not derived by the demon itself.
type Context struct {
	Subject   string
	RawInput  string // the turn's verbatim utterance; populated for every demon; parse and relate consult it directly, learn reads the raw_input slot instead
}

// Func is the pure-function signature parse, relate, infer, decompose,
// analogize, and question implement. Only a graph.ReadStore is visible —
// none of these six may mutate the persistent graph.
type Func func(view workingmemory.View, store graph.ReadStore, ctx Context) (Plan, error)

// LearnFunc is learn's signature: it alone receives the full *graph.Store,
// since it is the sole writer of persistent graph state.
type LearnFunc func(view workingmemory.View, store *graph.Store, ctx Context) (Plan, error)
