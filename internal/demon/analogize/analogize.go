// Package analogize implements the analogize demon: a small
// bootstrapped table of canned analogies for well-known concepts, plus a
// structural analogy finder that scores candidates by Jaccard similarity of
// their relation-type neighborhoods.
package analogize

import (
	"sort"

	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

type bootstrap struct {
	analog, explanation string
}

var bootstrapTable = map[string]bootstrap{
	"electricity": {"water flowing through pipes", "Electricity flows through wires like water flows through pipes: voltage is the pressure pushing it, current is the flow rate, and resistance is a narrow section of pipe slowing things down"},
	"atom":        {"a solar system", "electrons orbit the nucleus the way planets orbit the sun, though the real picture is stranger"},
	"cell":        {"a factory", "organelles are departments that each do one job, with the mitochondria as the power plant and the nucleus as the head office"},
	"dna":         {"an instruction manual", "it is a long coded sequence of instructions for building and running an organism"},
	"variable":    {"a labeled box", "it holds a value you can look up or replace by name without caring what's physically inside"},
	"function":    {"a vending machine", "inputs go in, fixed internal work happens, and a predictable output comes out"},
	"evolution":   {"a slow river carving a canyon", "tiny changes accumulate generation after generation until the shape is unrecognizable from where it started"},
	"gravity":     {"a stretched sheet with a heavy ball on it", "mass curves the space around it, and nearby objects roll toward that curve"},
}

const (
	maxPerConcept  = 2
	minScore       = 0.3
	outWeight      = 0.6
	inWeight       = 0.4
	bootstrapScore = 0.85
)

// Run implements demon.Func.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	var plan demon.Plan
	for _, concept := range candidateConcepts(view) {
		if bt, ok := bootstrapTable[concept]; ok {
			plan.Write = append(plan.Write, workingmemory.Slot{
				ID: uuid.NewString(), Tag: workingmemory.TagAnalogy, Confidence: bootstrapScore,
				SourceDemon: string(demon.Analogize), TTL: workingmemory.EndOfTurnTTL,
				Content: workingmemory.Analogy{
					Concept: concept, Analog: bt.analog, Explanation: bt.explanation,
					Similarity: bootstrapScore, Bootstrapped: true,
				},
			})
		}

		structural, err := structuralAnalogies(store, concept)
		if err != nil {
			return demon.Plan{}, err
		}
		plan.Write = append(plan.Write, structural...)
	}
	plan.Chain = []demon.ID{demon.Question}
	return plan, nil
}

func candidateConcepts(view workingmemory.View) []string {
	var out []string
	seen := map[string]bool{}
	if s, ok := view.LatestByTag(workingmemory.TagQuestionFocus); ok {
		if qf, ok := s.Content.(workingmemory.QuestionFocus); ok && qf.Text != "" && !seen[qf.Text] {
			out = append(out, qf.Text)
			seen[qf.Text] = true
		}
	}
	for _, s := range view.FindByTag(workingmemory.TagNounPhrase) {
		if np, ok := s.Content.(workingmemory.NounPhrase); ok && !seen[np.Text] {
			out = append(out, np.Text)
			seen[np.Text] = true
		}
	}
	return out
}

// neighborhood is a concept's relation-type pattern: type -> ordered list of
// neighbor labels, one map for outgoing edges and one for incoming.
type neighborhood struct {
	out map[domain.RelationType][]string
	in  map[domain.RelationType][]string
}

func neighborhoodOf(store graph.ReadStore, id string) (neighborhood, error) {
	n := neighborhood{out: map[domain.RelationType][]string{}, in: map[domain.RelationType][]string{}}
	outTriples, err := store.RelationsFrom(id, "")
	if err != nil {
		return n, err
	}
	for _, t := range outTriples {
		n.out[t.Relation.Type] = append(n.out[t.Relation.Type], t.To.Label)
	}
	inTriples, err := store.RelationsTo(id, "")
	if err != nil {
		return n, err
	}
	for _, t := range inTriples {
		n.in[t.Relation.Type] = append(n.in[t.Relation.Type], t.From.Label)
	}
	return n, nil
}

func typeSet(m map[domain.RelationType][]string) map[domain.RelationType]bool {
	s := make(map[domain.RelationType]bool, len(m))
	for t := range m {
		s[t] = true
	}
	return s
}

func jaccard(a, b map[domain.RelationType]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter, union := 0, 0
	seen := map[domain.RelationType]bool{}
	for t := range a {
		seen[t] = true
		if b[t] {
			inter++
		}
	}
	for t := range b {
		if !seen[t] {
			seen[t] = true
		}
	}
	union = len(seen)
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func sharedTypes(a, b map[domain.RelationType]bool) []string {
	var out []string
	for t := range a {
		if b[t] {
			out = append(out, string(t))
		}
	}
	sort.Strings(out)
	return out
}

// structuralAnalogies scores candidate concepts by relation-neighborhood overlap.
func structuralAnalogies(store graph.ReadStore, concept string) ([]workingmemory.Slot, error) {
	noun, ok, err := store.Find(concept)
	if err != nil || !ok {
		return nil, err
	}
	nb, err := neighborhoodOf(store, noun.ID)
	if err != nil {
		return nil, err
	}
	if len(nb.out) == 0 {
		return nil, nil
	}
	outTypesA := typeSet(nb.out)
	inTypesA := typeSet(nb.in)

	candidateIDs := map[string]bool{}
	for t := range nb.out {
		triples, err := store.Query(domain.Pattern{Relation: t}, 0)
		if err != nil {
			return nil, err
		}
		for _, tr := range triples {
			if tr.From.ID != noun.ID {
				candidateIDs[tr.From.ID] = true
			}
		}
	}

	type scored struct {
		label       string
		score       float64
		shared      []string
		mapping     map[string]string
	}
	var results []scored
	for candID := range candidateIDs {
		candNb, err := neighborhoodOf(store, candID)
		if err != nil {
			return nil, err
		}
		outTypesB := typeSet(candNb.out)
		inTypesB := typeSet(candNb.in)
		score := outWeight*jaccard(outTypesA, outTypesB) + inWeight*jaccard(inTypesA, inTypesB)
		if score < minScore {
			continue
		}
		outShared := map[domain.RelationType]bool{}
		for t := range outTypesA {
			if outTypesB[t] {
				outShared[t] = true
			}
		}
		inShared := map[domain.RelationType]bool{}
		for t := range inTypesA {
			if inTypesB[t] {
				inShared[t] = true
			}
		}
		shared := append(sharedTypes(outTypesA, outTypesB), sharedTypes(inTypesA, inTypesB)...)
		mapping := map[string]string{}
		for t := range outShared {
			if len(nb.out[t]) > 0 && len(candNb.out[t]) > 0 {
				mapping[nb.out[t][0]] = candNb.out[t][0]
			}
		}

		candNoun, ok, err := store.NounByID(candID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		label := candNoun.Label
		results = append(results, scored{label: label, score: score, shared: shared, mapping: mapping})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > maxPerConcept {
		results = results[:maxPerConcept]
	}

	out := make([]workingmemory.Slot, 0, len(results))
	for _, r := range results {
		out = append(out, workingmemory.Slot{
			ID: uuid.NewString(), Tag: workingmemory.TagAnalogy, Confidence: r.score,
			SourceDemon: string(demon.Analogize), TTL: workingmemory.EndOfTurnTTL,
			Content: workingmemory.Analogy{
				Concept: concept, Analog: r.label, Similarity: r.score,
				SharedTypes: r.shared, Mapping: r.mapping, Bootstrapped: false,
			},
		})
	}
	return out, nil
}
