// Package graph is the persistent noun/relation multigraph. It is
// backed by LevelDB: prefix-keyed records, one writer lock (LevelDB
// itself), batched writes for atomic multi-key updates, and iterator-based
// prefix scans instead of a query planner. LevelDB's write-ahead log is
// what gives us durable writes where a crash must not corrupt the store,
// for free.
package graph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/jcarlsen/socratic-kernel/internal/domain"
)

// Key scheme — "|" separated prefixes:
//
//	n|<id>                                  -> Noun JSON           (primary record)
//	lbl|<label>                             -> noun id              (exact label index)
//	e|<id>                                  -> Relation JSON        (primary record)
//	efrom|<fromID>|<type>|<relID>           -> nil                  (outgoing index, also scanned with type omitted)
//	eto|<toID>|<type>|<relID>               -> nil                  (incoming index)
const (
	prefixNoun     = "n|"
	prefixLabel    = "lbl|"
	prefixRelation = "e|"
	prefixFrom     = "efrom|"
	prefixTo       = "eto|"
)

// DuplicateLinkPolicy controls what Link does when a caller links the same
// (from, type, to) triple more than once. The source disagreed on this (see
// SPEC_FULL/DESIGN.md); this store picks MergeMaxWeight as its default and
// exposes the alternative as a construction option.
type DuplicateLinkPolicy int

const (
	// MergeMaxWeight collapses duplicate (from,type,to) edges into one,
	// keeping the larger weight. relations_from/relations_to and idempotent
	// repeated Link calls never grow the result set past one edge.
	MergeMaxWeight DuplicateLinkPolicy = iota
	// KeepMultiple records every Link call as a distinct edge (true
	// multigraph semantics); Query and relations_from can both return more
	// than one edge for the same pair (Query orders them by weight).
	KeepMultiple
)

// ReadStore is the read-only subset of Store's API that demons other than
// learn are allowed to see. learn is the only demon that receives
// the full *Store, since it is the sole writer of persistent graph state.
type ReadStore interface {
	Find(label string) (domain.Noun, bool, error)
	NounByID(id string) (domain.Noun, bool, error)
	Search(q string, limit int) ([]domain.Noun, error)
	RelationsFrom(id string, relType domain.RelationType) ([]domain.Triple, error)
	RelationsTo(id string, relType domain.RelationType) ([]domain.Triple, error)
	Query(p domain.Pattern, limit int) ([]domain.Triple, error)
	Traverse(startID string, maxDepth int) (map[string]domain.TraversalNode, error)
	ScanKnownLabels(text string) ([]string, error)
	Stats() (Stats, error)
}

// Store is the LevelDB-backed graph store. All operations are synchronous;
// LevelDB serializes concurrent writers internally, so a single writer
// lock per store path is enough even when multiple kernel instances share
// one store.
type Store struct {
	db     *leveldb.DB
	policy DuplicateLinkPolicy

	mu          sync.Mutex // protects the cached label-scan automaton below
	labelsGen   int
	automaton   *labelAutomaton
	automatonOf int
}

// Open opens (or creates) a LevelDB database at path.
func Open(path string, policy DuplicateLinkPolicy) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: open %s: %w", path, err)
	}
	return &Store{db: db, policy: policy}, nil
}

// Close releases the underlying LevelDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureNoun performs an exact, case-insensitive lookup on label and creates
// the noun if absent. typ defaults to domain.NounUnknown when "".
func (s *Store) EnsureNoun(label string, typ domain.NounType, props map[string]any) (domain.Noun, error) {
	label = normalizeLabel(label)
	if label == "" {
		return domain.Noun{}, fmt.Errorf("graph: ensure_noun: empty label")
	}
	if n, ok, err := s.findNormalized(label); err != nil {
		return domain.Noun{}, err
	} else if ok {
		return n, nil
	}
	if typ == "" {
		typ = domain.NounUnknown
	}
	n := domain.Noun{
		ID:         uuid.New().String(),
		Label:      label,
		Type:       typ,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.putNoun(n); err != nil {
		return domain.Noun{}, err
	}
	s.bumpLabelsGeneration()
	slog.Debug("graph: noun created", "id", n.ID, "label", n.Label, "type", n.Type)
	return n, nil
}

// Find performs an exact, case-insensitive label lookup; ok is false on miss.
func (s *Store) Find(label string) (domain.Noun, bool, error) {
	return s.findNormalized(normalizeLabel(label))
}

func (s *Store) findNormalized(label string) (domain.Noun, bool, error) {
	idBytes, err := s.db.Get([]byte(prefixLabel+label), nil)
	if err == leveldb.ErrNotFound {
		return domain.Noun{}, false, nil
	}
	if err != nil {
		return domain.Noun{}, false, fmt.Errorf("graph: find %q: %w", label, err)
	}
	n, err := s.getNoun(string(idBytes))
	if err != nil {
		return domain.Noun{}, false, err
	}
	return n, true, nil
}

// NounByID resolves a noun by its graph id; ok is false on miss.
func (s *Store) NounByID(id string) (domain.Noun, bool, error) {
	data, err := s.db.Get([]byte(prefixNoun+id), nil)
	if err == leveldb.ErrNotFound {
		return domain.Noun{}, false, nil
	}
	if err != nil {
		return domain.Noun{}, false, fmt.Errorf("graph: noun_by_id %s: %w", id, err)
	}
	var n domain.Noun
	if err := json.Unmarshal(data, &n); err != nil {
		return domain.Noun{}, false, fmt.Errorf("graph: noun_by_id %s: %w", id, err)
	}
	return n, true, nil
}

// Search is a case-insensitive substring match over labels, returning at
// most limit nouns, most-recently-created first.
func (s *Store) Search(q string, limit int) ([]domain.Noun, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	var hits []domain.Noun
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixNoun)), nil)
	defer iter.Release()
	for iter.Next() {
		var n domain.Noun
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		if q == "" || strings.Contains(n.Label, q) {
			hits = append(hits, n)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("graph: search %q: %w", q, err)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].CreatedAt.After(hits[j].CreatedAt) })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Link ensures both endpoint nouns exist and creates the edge between them,
// applying the store's DuplicateLinkPolicy. props is optional (pass nothing,
// or a single map) and is merged into an existing edge's properties when the
// MergeMaxWeight policy returns that edge rather than creating a new one.
func (s *Store) Link(fromLabel string, typ domain.RelationType, toLabel string, weight float64, contextLabel string, props ...map[string]any) (domain.Relation, error) {
	if !domain.ValidRelationTypes[typ] {
		return domain.Relation{}, fmt.Errorf("graph: link: invalid relation type %q", typ)
	}
	var properties map[string]any
	if len(props) > 0 {
		properties = props[0]
	}
	from, err := s.EnsureNoun(fromLabel, "", nil)
	if err != nil {
		return domain.Relation{}, err
	}
	to, err := s.EnsureNoun(toLabel, "", nil)
	if err != nil {
		return domain.Relation{}, err
	}
	var contextID string
	if contextLabel != "" {
		ctx, err := s.EnsureNoun(contextLabel, domain.NounContext, nil)
		if err != nil {
			return domain.Relation{}, err
		}
		contextID = ctx.ID
	}

	if s.policy == MergeMaxWeight {
		if existing, ok, err := s.findEdge(from.ID, typ, to.ID); err != nil {
			return domain.Relation{}, err
		} else if ok {
			dirty := false
			if weight > existing.Weight {
				existing.Weight = weight
				dirty = true
			}
			if len(properties) > 0 {
				if existing.Properties == nil {
					existing.Properties = make(map[string]any, len(properties))
				}
				for k, v := range properties {
					existing.Properties[k] = v
				}
				dirty = true
			}
			if dirty {
				if err := s.putRelation(existing); err != nil {
					return domain.Relation{}, err
				}
			}
			return existing, nil
		}
	}

	rel := domain.Relation{
		ID:         uuid.New().String(),
		FromID:     from.ID,
		ToID:       to.ID,
		Type:       typ,
		Weight:     weight,
		ContextID:  contextID,
		Properties: properties,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.putRelation(rel); err != nil {
		return domain.Relation{}, err
	}
	slog.Debug("graph: relation created", "id", rel.ID, "from", from.Label, "type", typ, "to", to.Label, "weight", weight)
	return rel, nil
}

// CreateRelation is the low-level counterpart to Link for callers that
// already hold resolved noun IDs. No demon calls it; learn writes through
// Link.
func (s *Store) CreateRelation(fromID string, typ domain.RelationType, toID string, weight float64, contextID string) (domain.Relation, error) {
	if !domain.ValidRelationTypes[typ] {
		return domain.Relation{}, fmt.Errorf("graph: create_relation: invalid relation type %q", typ)
	}
	if s.policy == MergeMaxWeight {
		if existing, ok, err := s.findEdge(fromID, typ, toID); err != nil {
			return domain.Relation{}, err
		} else if ok {
			if weight > existing.Weight {
				existing.Weight = weight
				if err := s.putRelation(existing); err != nil {
					return domain.Relation{}, err
				}
			}
			return existing, nil
		}
	}
	rel := domain.Relation{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Type:      typ,
		Weight:    weight,
		ContextID: contextID,
		CreatedAt: time.Now().UTC(),
	}
	return rel, s.putRelation(rel)
}

func (s *Store) findEdge(fromID string, typ domain.RelationType, toID string) (domain.Relation, bool, error) {
	prefix := prefixFrom + fromID + "|" + string(typ) + "|"
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		relID := string(iter.Key())[len(prefix):]
		rel, err := s.getRelation(relID)
		if err != nil {
			continue
		}
		if rel.ToID == toID {
			return rel, true, nil
		}
	}
	return domain.Relation{}, false, iter.Error()
}

// RelationsFrom returns every outgoing edge of noun id (optionally filtered
// by relType), paired with the resolved to-noun, in no particular order.
func (s *Store) RelationsFrom(id string, relType domain.RelationType) ([]domain.Triple, error) {
	prefix := prefixFrom + id + "|"
	if relType != "" {
		prefix += string(relType) + "|"
	}
	return s.triplesFromIndex(prefix, true)
}

// RelationsTo returns every incoming edge of noun id (optionally filtered by
// relType), paired with the resolved from-noun.
func (s *Store) RelationsTo(id string, relType domain.RelationType) ([]domain.Triple, error) {
	prefix := prefixTo + id + "|"
	if relType != "" {
		prefix += string(relType) + "|"
	}
	return s.triplesFromIndex(prefix, false)
}

func (s *Store) triplesFromIndex(prefix string, outgoing bool) ([]domain.Triple, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var out []domain.Triple
	for iter.Next() {
		relID := string(iter.Key())[len(prefix):]
		rel, err := s.getRelation(relID)
		if err != nil {
			continue
		}
		otherID := rel.ToID
		if !outgoing {
			otherID = rel.FromID
		}
		other, err := s.getNoun(otherID)
		if err != nil {
			continue
		}
		anchorID := rel.FromID
		if !outgoing {
			anchorID = rel.ToID
		}
		anchor, err := s.getNoun(anchorID)
		if err != nil {
			continue
		}
		if outgoing {
			out = append(out, domain.Triple{From: anchor, Relation: rel, To: other})
		} else {
			out = append(out, domain.Triple{From: other, Relation: rel, To: anchor})
		}
	}
	return out, iter.Error()
}

// Query runs a pattern match over every relation, filtering on the optional
// from/relation/to constraints and returning results ordered by descending
// weight, bounded by limit (limit<=0 means unbounded).
func (s *Store) Query(p domain.Pattern, limit int) ([]domain.Triple, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixRelation)), nil)
	defer iter.Release()
	var out []domain.Triple
	for iter.Next() {
		var rel domain.Relation
		if err := json.Unmarshal(iter.Value(), &rel); err != nil {
			continue
		}
		if p.Relation != "" && rel.Type != p.Relation {
			continue
		}
		from, err := s.getNoun(rel.FromID)
		if err != nil {
			continue
		}
		to, err := s.getNoun(rel.ToID)
		if err != nil {
			continue
		}
		if p.From != nil && !matchesNode(from, *p.From) {
			continue
		}
		if p.To != nil && !matchesNode(to, *p.To) {
			continue
		}
		out = append(out, domain.Triple{From: from, Relation: rel, To: to})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("graph: query: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relation.Weight > out[j].Relation.Weight })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesNode(n domain.Noun, p domain.NodePattern) bool {
	if p.Label != "" && n.Label != normalizeLabel(p.Label) {
		return false
	}
	if p.Type != "" && n.Type != p.Type {
		return false
	}
	return true
}

// Traverse runs a breadth-first search over outgoing edges only, starting at
// startID and bounded by maxDepth (0 returns only the start node).
func (s *Store) Traverse(startID string, maxDepth int) (map[string]domain.TraversalNode, error) {
	start, err := s.getNoun(startID)
	if err != nil {
		return nil, fmt.Errorf("graph: traverse: start node: %w", err)
	}
	visited := map[string]domain.TraversalNode{
		startID: {Noun: start, Depth: 0, Path: []string{startID}},
	}
	frontier := []string{startID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			triples, err := s.RelationsFrom(id, "")
			if err != nil {
				return nil, err
			}
			for _, t := range triples {
				if _, seen := visited[t.To.ID]; seen {
					continue
				}
				path := append(append([]string{}, visited[id].Path...), t.To.ID)
				visited[t.To.ID] = domain.TraversalNode{Noun: t.To, Depth: depth, Path: path}
				next = append(next, t.To.ID)
			}
		}
		frontier = next
	}
	return visited, nil
}

// DeleteNoun removes a noun and cascades to every relation incident to it.
func (s *Store) DeleteNoun(id string) error {
	n, err := s.getNoun(id)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(prefixNoun + id))
	batch.Delete([]byte(prefixLabel + n.Label))

	for _, prefix := range []string{prefixFrom + id + "|", prefixTo + id + "|"} {
		iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for iter.Next() {
			relID := lastSegment(string(iter.Key()))
			if rel, err := s.getRelation(relID); err == nil {
				deleteRelationKeys(batch, rel)
			}
		}
		iter.Release()
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("graph: delete_noun %s: %w", id, err)
	}
	s.bumpLabelsGeneration()
	return nil
}

// Stats reports the counts the facade's stats() surfaces.
type Stats struct {
	Nouns     int
	Relations int
	Types     map[string]int // relation type -> count
}

func (s *Store) Stats() (Stats, error) {
	st := Stats{Types: map[string]int{}}
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixNoun)), nil)
	for iter.Next() {
		st.Nouns++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return st, err
	}

	iter = s.db.NewIterator(util.BytesPrefix([]byte(prefixRelation)), nil)
	for iter.Next() {
		var rel domain.Relation
		if err := json.Unmarshal(iter.Value(), &rel); err != nil {
			continue
		}
		st.Relations++
		st.Types[string(rel.Type)]++
	}
	iter.Release()
	return st, iter.Error()
}

// ---------------------------------------------------------------------------
// internal record access
// ---------------------------------------------------------------------------

func (s *Store) putNoun(n domain.Noun) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("graph: marshal noun: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(prefixNoun+n.ID), data)
	batch.Put([]byte(prefixLabel+n.Label), []byte(n.ID))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("graph: put noun %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) getNoun(id string) (domain.Noun, error) {
	data, err := s.db.Get([]byte(prefixNoun+id), nil)
	if err != nil {
		return domain.Noun{}, fmt.Errorf("graph: get noun %s: %w", id, err)
	}
	var n domain.Noun
	return n, json.Unmarshal(data, &n)
}

func (s *Store) putRelation(rel domain.Relation) error {
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("graph: marshal relation: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(prefixRelation+rel.ID), data)
	batch.Put([]byte(prefixFrom+rel.FromID+"|"+string(rel.Type)+"|"+rel.ID), nil)
	batch.Put([]byte(prefixTo+rel.ToID+"|"+string(rel.Type)+"|"+rel.ID), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("graph: put relation %s: %w", rel.ID, err)
	}
	return nil
}

func (s *Store) getRelation(id string) (domain.Relation, error) {
	data, err := s.db.Get([]byte(prefixRelation+id), nil)
	if err != nil {
		return domain.Relation{}, fmt.Errorf("graph: get relation %s: %w", id, err)
	}
	var rel domain.Relation
	return rel, json.Unmarshal(data, &rel)
}

func deleteRelationKeys(batch *leveldb.Batch, rel domain.Relation) {
	batch.Delete([]byte(prefixRelation + rel.ID))
	batch.Delete([]byte(prefixFrom + rel.FromID + "|" + string(rel.Type) + "|" + rel.ID))
	batch.Delete([]byte(prefixTo + rel.ToID + "|" + string(rel.Type) + "|" + rel.ID))
}

func lastSegment(key string) string {
	idx := strings.LastIndex(key, "|")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Store) bumpLabelsGeneration() {
	s.mu.Lock()
	s.labelsGen++
	s.mu.Unlock()
}
