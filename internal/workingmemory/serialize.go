package workingmemory

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireSlot is the JSON-serializable shape of a Slot. Content is flattened
// into a (kind, payload) pair so Content's interface type survives a
// round-trip through encoding/json, which cannot marshal interfaces on its
// own.
type wireSlot struct {
	ID          string          `json:"id"`
	NounID      string          `json:"noun_id,omitempty"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Tag         Tag             `json:"tag"`
	Confidence  float64         `json:"confidence"`
	SourceDemon string          `json:"source_demon"`
	TTL         int             `json:"ttl"`
	CreatedAt   time.Time       `json:"created_at"`
	Focused     bool            `json:"focused"`
}

type wireMemory struct {
	Slots []wireSlot `json:"slots"`
	Focus []string   `json:"focus"`
	Tick  int        `json:"tick"`
}

// Serialize produces the opaque blob the facade's save_state() returns.
func (m *Memory) Serialize() ([]byte, error) {
	m.mu.Lock()
	slots := make([]Slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	focus := append([]string{}, m.focus...)
	tick := m.tick
	m.mu.Unlock()

	wire := wireMemory{Focus: focus, Tick: tick}
	for _, s := range slots {
		kind, payload, err := encodeContent(s.Content)
		if err != nil {
			return nil, fmt.Errorf("workingmemory: serialize slot %s: %w", s.ID, err)
		}
		wire.Slots = append(wire.Slots, wireSlot{
			ID: s.ID, NounID: s.NounID, Kind: kind, Payload: payload,
			Tag: s.Tag, Confidence: s.Confidence, SourceDemon: s.SourceDemon,
			TTL: s.TTL, CreatedAt: s.CreatedAt, Focused: s.Focused,
		})
	}
	return json.Marshal(wire)
}

// Deserialize parses blob produced by Serialize into a fresh Memory, without
// mutating m. A serialization failure must not partially mutate working
// memory, so decoding happens entirely before any write to m.
func Deserialize(blob []byte) (*Memory, error) {
	var wire wireMemory
	if err := json.Unmarshal(blob, &wire); err != nil {
		return nil, fmt.Errorf("workingmemory: deserialize: %w", err)
	}
	slots := make([]Slot, 0, len(wire.Slots))
	for _, ws := range wire.Slots {
		content, err := decodeContent(ws.Kind, ws.Payload)
		if err != nil {
			return nil, fmt.Errorf("workingmemory: deserialize slot %s: %w", ws.ID, err)
		}
		slots = append(slots, Slot{
			ID: ws.ID, NounID: ws.NounID, Content: content, Tag: ws.Tag,
			Confidence: ws.Confidence, SourceDemon: ws.SourceDemon, TTL: ws.TTL,
			CreatedAt: ws.CreatedAt, Focused: ws.Focused,
		})
	}
	m := New()
	m.Restore(slots, wire.Focus, wire.Tick)
	return m, nil
}

func encodeContent(c Content) (string, json.RawMessage, error) {
	kind := fmt.Sprintf("%T", c)
	payload, err := json.Marshal(c)
	if err != nil {
		return "", nil, err
	}
	return kind, payload, nil
}

func decodeContent(kind string, payload json.RawMessage) (Content, error) {
	target, ok := contentPrototypes[kind]
	if !ok {
		var raw Raw
		raw.Tag = kind
		if err := json.Unmarshal(payload, &raw.Data); err != nil {
			return nil, err
		}
		return raw, nil
	}
	return target(payload)
}

// contentPrototypes maps the %T name of each concrete Content type to a
// decoder. Registered once at init so Deserialize never needs a type switch
// that could silently drop a variant added later.
var contentPrototypes = map[string]func(json.RawMessage) (Content, error){}

func register[T Content](name string) {
	contentPrototypes[name] = func(data json.RawMessage) (Content, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func init() {
	register[RawInput]("workingmemory.RawInput")
	register[Intent]("workingmemory.Intent")
	register[Subject]("workingmemory.Subject")
	register[NounPhrase]("workingmemory.NounPhrase")
	register[QuestionFocus]("workingmemory.QuestionFocus")
	register[RelationFact]("workingmemory.RelationFact")
	register[Hierarchy]("workingmemory.Hierarchy")
	register[InferredRelation]("workingmemory.InferredRelation")
	register[Contradiction]("workingmemory.Contradiction")
	register[ClaimAssessment]("workingmemory.ClaimAssessment")
	register[UnknownConcepts]("workingmemory.UnknownConcepts")
	register[Decomposition]("workingmemory.Decomposition")
	register[Prerequisites]("workingmemory.Prerequisites")
	register[KnowledgeGaps]("workingmemory.KnowledgeGaps")
	register[Examples]("workingmemory.Examples")
	register[SolutionSteps]("workingmemory.SolutionSteps")
	register[SimplificationNeeded]("workingmemory.SimplificationNeeded")
	register[Analogy]("workingmemory.Analogy")
	register[FuzzyMatch]("workingmemory.FuzzyMatch")
	register[Response]("workingmemory.Response")
	register[StudentTopic]("workingmemory.StudentTopic")
	register[StudentConfusion]("workingmemory.StudentConfusion")
	register[Raw]("workingmemory.Raw")
}
