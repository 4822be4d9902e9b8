package workingmemory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the working-memory instance. The kernel facade owns
// exactly one; the orchestrator is its only writer. Demons only ever see a
// View (view.go), never this type directly.
type Memory struct {
	mu    sync.Mutex
	slots map[string]Slot
	focus []string
	tick  int
}

// New returns an empty working memory at tick 0.
func New() *Memory {
	return &Memory{slots: make(map[string]Slot)}
}

// Write inserts or replaces a slot, assigning ID and CreatedAt if unset.
func (m *Memory) Write(s Slot) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.slots[s.ID] = s
	return s
}

// Read returns the slot with the given id, if present.
func (m *Memory) Read(id string) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return s, ok
}

// FindByTag returns every slot carrying tag, in no particular order.
func (m *Memory) FindByTag(tag Tag) []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}

// LatestByTag returns the most-recently-created slot carrying tag.
func (m *Memory) LatestByTag(tag Tag) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best Slot
	found := false
	for _, s := range m.slots {
		if s.Tag != tag {
			continue
		}
		if !found || s.CreatedAt.After(best.CreatedAt) {
			best = s
			found = true
		}
	}
	return best, found
}

// Evict removes a slot (and any reference to it in focus). Returns false if
// the slot did not exist.
func (m *Memory) Evict(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked(id)
}

func (m *Memory) evictLocked(id string) bool {
	if _, ok := m.slots[id]; !ok {
		return false
	}
	delete(m.slots, id)
	m.removeFromFocusLocked(id)
	return true
}

func (m *Memory) removeFromFocusLocked(id string) {
	out := m.focus[:0:0]
	for _, f := range m.focus {
		if f != id {
			out = append(out, f)
		}
	}
	m.focus = out
}

// SetFocus replaces the focus list with ids, silently dropping any id not
// currently present in working memory.
func (m *Memory) SetFocus(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.slots[id]; ok {
			filtered = append(filtered, id)
		}
	}
	// Clear Focused on slots leaving focus, set it on slots entering it.
	inNewFocus := make(map[string]bool, len(filtered))
	for _, id := range filtered {
		inNewFocus[id] = true
	}
	for _, id := range m.focus {
		if !inNewFocus[id] {
			if s, ok := m.slots[id]; ok {
				s.Focused = false
				m.slots[id] = s
			}
		}
	}
	for _, id := range filtered {
		if s, ok := m.slots[id]; ok {
			s.Focused = true
			m.slots[id] = s
		}
	}
	m.focus = filtered
}

// Focused returns the slots currently in the focus list, in focus order.
func (m *Memory) Focused() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Slot, 0, len(m.focus))
	for _, id := range m.focus {
		if s, ok := m.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Tick advances the working-memory clock by one: every ttl>0 slot is
// decremented, and those reaching zero are removed. ttl==0 (EndOfTurnTTL)
// slots are untouched by decay. Returns the evicted slot ids.
func (m *Memory) Tick() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	var evicted []string
	for id, s := range m.slots {
		if s.TTL <= 0 {
			continue
		}
		s.TTL--
		if s.TTL == 0 {
			delete(m.slots, id)
			m.removeFromFocusLocked(id)
			evicted = append(evicted, id)
			continue
		}
		m.slots[id] = s
	}
	return evicted
}

// CurrentTick returns the monotonically non-decreasing tick counter.
func (m *Memory) CurrentTick() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// Size returns the number of slots currently held.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// EnforceLimit evicts slots while len(slots) > max, preferring to evict
// non-focused slots of low confidence and (per the ascending age ordering
// below) the most recently created first; focused slots are evicted only
// once every non-focused candidate is gone. Returns the evicted ids.
func (m *Memory) EnforceLimit(max int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max <= 0 || len(m.slots) <= max {
		return nil
	}
	candidates := make([]Slot, 0, len(m.slots))
	for _, s := range m.slots {
		candidates = append(candidates, s)
	}
	now := time.Now().UTC()
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Focused != b.Focused {
			return !a.Focused // non-focused sorts first (evicted first)
		}
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		ageA := now.Sub(a.CreatedAt)
		ageB := now.Sub(b.CreatedAt)
		return ageA < ageB
	})
	overflow := len(m.slots) - max
	evicted := make([]string, 0, overflow)
	for i := 0; i < overflow; i++ {
		id := candidates[i].ID
		delete(m.slots, id)
		m.removeFromFocusLocked(id)
		evicted = append(evicted, id)
	}
	return evicted
}

// Sweep removes every slot whose tag is in the supplied ephemeral set.
// Used by the orchestrator's post-turn sweep.
func (m *Memory) Sweep(ephemeral map[Tag]bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []string
	for id, s := range m.slots {
		if ephemeral[s.Tag] {
			delete(m.slots, id)
			m.removeFromFocusLocked(id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// All returns every slot currently held, in no particular order. Used for
// serialization (save_state) and diagnostics.
func (m *Memory) All() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out
}

// Restore replaces the entire memory contents; used by load_state.
func (m *Memory) Restore(slots []Slot, focus []string, tick int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]Slot, len(slots))
	for _, s := range slots {
		m.slots[s.ID] = s
	}
	filtered := make([]string, 0, len(focus))
	for _, id := range focus {
		if _, ok := m.slots[id]; ok {
			filtered = append(filtered, id)
		}
	}
	m.focus = filtered
	m.tick = tick
}
