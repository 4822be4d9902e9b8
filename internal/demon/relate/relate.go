// Package relate implements the relate demon: resolves noun
// phrases against the graph, surfaces existing edges and ancestry between
// resolved concepts, and loads low-confidence context from the current
// subject.
package relate

import (
	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

const contextFactLimit = 10

// resolved is one noun phrase that resolved to a graph noun, exactly or by
// fuzzy search.
type resolved struct {
	query string
	noun  domain.Noun
}

// Run implements demon.Func.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	phrases := view.FindByTag(workingmemory.TagNounPhrase)

	var plan demon.Plan
	var resolvedNouns []resolved
	var unknown []string
	seen := map[string]bool{}

	for _, slot := range phrases {
		np, ok := slot.Content.(workingmemory.NounPhrase)
		if !ok || seen[np.Text] {
			continue
		}
		seen[np.Text] = true

		n, ok, err := store.Find(np.Text)
		if err != nil {
			return demon.Plan{}, err
		}
		if !ok {
			hits, err := store.Search(np.Text, 1)
			if err != nil {
				return demon.Plan{}, err
			}
			if len(hits) == 0 {
				unknown = append(unknown, np.Text)
				continue
			}
			n = hits[0]
			if n.Label != np.Text {
				plan.Write = append(plan.Write, workingmemory.Slot{
					ID: uuid.NewString(), Tag: workingmemory.TagFuzzyMatch, Confidence: 0.6,
					SourceDemon: string(demon.Relate), TTL: workingmemory.EndOfTurnTTL,
					Content: workingmemory.FuzzyMatch{Query: np.Text, Resolved: n.Label},
				})
			}
		}
		resolvedNouns = append(resolvedNouns, resolved{query: np.Text, noun: n})
	}

	// Aho-Corasick scan over the raw utterance catches known labels that
	// noun-phrase extraction's stopword-run heuristic can miss entirely
	// (e.g. a known multi-word label broken up by an intervening stopword).
	if ctx.RawInput != "" {
		scanned, err := store.ScanKnownLabels(ctx.RawInput)
		if err != nil {
			return demon.Plan{}, err
		}
		for _, label := range scanned {
			if seen[label] {
				continue
			}
			seen[label] = true
			n, ok, err := store.Find(label)
			if err != nil {
				return demon.Plan{}, err
			}
			if ok {
				resolvedNouns = append(resolvedNouns, resolved{query: label, noun: n})
			}
		}
	}

	if len(unknown) > 0 {
		plan.Write = append(plan.Write, workingmemory.Slot{
			ID: uuid.NewString(), Tag: workingmemory.TagUnknownConcepts, Confidence: 1,
			SourceDemon: string(demon.Relate), TTL: workingmemory.EndOfTurnTTL,
			Content: workingmemory.UnknownConcepts{Labels: unknown},
		})
	}

	relationsFound := false
	for _, a := range resolvedNouns {
		for _, b := range resolvedNouns {
			if a.noun.ID == b.noun.ID {
				continue
			}
			triples, err := store.Query(domain.Pattern{
				From: &domain.NodePattern{Label: a.noun.Label},
				To:   &domain.NodePattern{Label: b.noun.Label},
			}, 0)
			if err != nil {
				return demon.Plan{}, err
			}
			for _, t := range triples {
				relationsFound = true
				plan.Write = append(plan.Write, workingmemory.Slot{
					ID: uuid.NewString(), Tag: workingmemory.TagRelation, Confidence: t.Relation.Weight,
					SourceDemon: string(demon.Relate), TTL: workingmemory.EndOfTurnTTL,
					Content: workingmemory.RelationFact{
						FromLabel: a.noun.Label, Type: t.Relation.Type, ToLabel: b.noun.Label,
						Weight: t.Relation.Weight, FromGraph: true,
					},
				})
			}
		}
	}

	for _, r := range resolvedNouns {
		ancestors, err := store.RelationsFrom(r.noun.ID, domain.RelIsA)
		if err != nil {
			return demon.Plan{}, err
		}
		for _, t := range ancestors {
			plan.Write = append(plan.Write, workingmemory.Slot{
				ID: uuid.NewString(), Tag: workingmemory.TagHierarchy, Confidence: t.Relation.Weight,
				SourceDemon: string(demon.Relate), TTL: workingmemory.EndOfTurnTTL,
				Content: workingmemory.Hierarchy{Child: r.noun.Label, Parent: t.To.Label},
			})
		}
	}

	if ctx.Subject != "" {
		if subjectNoun, ok, err := store.Find(ctx.Subject); err != nil {
			return demon.Plan{}, err
		} else if ok {
			triples, err := store.RelationsFrom(subjectNoun.ID, "")
			if err != nil {
				return demon.Plan{}, err
			}
			if len(triples) > contextFactLimit {
				triples = triples[:contextFactLimit]
			}
			for _, t := range triples {
				plan.Write = append(plan.Write, workingmemory.Slot{
					ID: uuid.NewString(), Tag: workingmemory.TagContextFact, Confidence: t.Relation.Weight * 0.5,
					SourceDemon: string(demon.Relate), TTL: workingmemory.EndOfTurnTTL,
					Content: workingmemory.RelationFact{
						FromLabel: subjectNoun.Label, Type: t.Relation.Type, ToLabel: t.To.Label,
						Weight: t.Relation.Weight, FromGraph: true,
					},
				})
			}
		}
	}

	if relationsFound {
		plan.Chain = append(plan.Chain, demon.Infer)
	}
	if len(unknown) > 0 {
		plan.Chain = append(plan.Chain, demon.Question)
	}
	if len(resolvedNouns) > 0 && !relationsFound {
		plan.Chain = append(plan.Chain, demon.Analogize)
	}
	return plan, nil
}
