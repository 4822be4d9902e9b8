// Package infer implements the infer demon: transitive closure,
// property inheritance, contradiction detection, and claim assessment over
// the relation/context_fact/hierarchy slots relate (or a prior infer) left
// in working memory.
package infer

import (
	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

type edge struct {
	from, to string
	typ      domain.RelationType
	weight   float64
}

// Run implements demon.Func.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	edges := collectEdges(view)

	var plan demon.Plan
	transitive := transitiveClosure(edges)
	plan.Write = append(plan.Write, transitive...)

	inherited := propertyInheritance(edges)
	plan.Write = append(plan.Write, inherited...)

	contradictions := detectContradictions(edges)
	plan.Write = append(plan.Write, contradictions...)

	if intentSlot, ok := view.LatestByTag(workingmemory.TagIntent); ok {
		if intent, ok := intentSlot.Content.(workingmemory.Intent); ok && intent.Value == "claim" {
			plan.Write = append(plan.Write, assessClaim(edges, view))
		}
	}

	if len(contradictions) > 0 {
		plan.Chain = append(plan.Chain, demon.Question)
	}
	if len(transitive) > 0 || len(inherited) > 0 {
		plan.Chain = append(plan.Chain, demon.Decompose)
	}
	plan.Chain = append(plan.Chain, demon.Question)
	return plan, nil
}

func collectEdges(view workingmemory.View) []edge {
	var edges []edge
	for _, slot := range view.FindByTag(workingmemory.TagRelation) {
		if rf, ok := slot.Content.(workingmemory.RelationFact); ok {
			edges = append(edges, edge{from: rf.FromLabel, to: rf.ToLabel, typ: rf.Type, weight: rf.Weight})
		}
	}
	for _, slot := range view.FindByTag(workingmemory.TagContextFact) {
		if rf, ok := slot.Content.(workingmemory.RelationFact); ok {
			edges = append(edges, edge{from: rf.FromLabel, to: rf.ToLabel, typ: rf.Type, weight: rf.Weight})
		}
	}
	for _, slot := range view.FindByTag(workingmemory.TagHierarchy) {
		if h, ok := slot.Content.(workingmemory.Hierarchy); ok {
			edges = append(edges, edge{from: h.Child, to: h.Parent, typ: domain.RelIsA, weight: slot.Confidence})
		}
	}
	return edges
}

func hasEdge(edges []edge, from string, typ domain.RelationType, to string) bool {
	for _, e := range edges {
		if e.from == from && e.typ == typ && e.to == to {
			return true
		}
	}
	return false
}

// transitiveClosure applies rule 1: a single pass over {is_a, causes,
// requires, part_of, precedes} producing A->C edges from A->B, B->C chains.
func transitiveClosure(edges []edge) []workingmemory.Slot {
	var out []workingmemory.Slot
	for _, e1 := range edges {
		if !domain.TransitiveTypes[e1.typ] {
			continue
		}
		for _, e2 := range edges {
			if e2.typ != e1.typ || e2.from != e1.to {
				continue
			}
			if e1.from == e2.to || hasEdge(edges, e1.from, e1.typ, e2.to) {
				continue
			}
			w := e1.weight
			if e2.weight < w {
				w = e2.weight
			}
			w *= 0.9
			out = append(out, workingmemory.Slot{
				ID: uuid.NewString(), Tag: workingmemory.TagInferredRelation, Confidence: w,
				SourceDemon: string(demon.Infer), TTL: workingmemory.EndOfTurnTTL,
				Content: workingmemory.InferredRelation{
					FromLabel: e1.from, Type: e1.typ, ToLabel: e2.to, Weight: w, Rule: "transitive",
				},
			})
		}
	}
	return out
}

// propertyInheritance applies rule 2: A is_a B plus B has/requires P yields
// A has/requires P.
func propertyInheritance(edges []edge) []workingmemory.Slot {
	var out []workingmemory.Slot
	for _, isa := range edges {
		if isa.typ != domain.RelIsA {
			continue
		}
		for _, prop := range edges {
			if prop.from != isa.to {
				continue
			}
			if prop.typ != domain.RelHas && prop.typ != domain.RelRequires {
				continue
			}
			if hasEdge(edges, isa.from, prop.typ, prop.to) {
				continue
			}
			w := isa.weight
			if prop.weight < w {
				w = prop.weight
			}
			w *= 0.85
			out = append(out, workingmemory.Slot{
				ID: uuid.NewString(), Tag: workingmemory.TagInferredRelation, Confidence: w,
				SourceDemon: string(demon.Infer), TTL: workingmemory.EndOfTurnTTL,
				Content: workingmemory.InferredRelation{
					FromLabel: isa.from, Type: prop.typ, ToLabel: prop.to, Weight: w, Rule: "inheritance",
				},
			})
		}
	}
	return out
}

// detectContradictions applies rule 3's two contradiction shapes.
func detectContradictions(edges []edge) []workingmemory.Slot {
	var out []workingmemory.Slot
	reported := map[string]bool{}

	equalsByFrom := map[string][]edge{}
	for _, e := range edges {
		if e.typ == domain.RelEquals {
			equalsByFrom[e.from] = append(equalsByFrom[e.from], e)
		}
	}

	emit := func(concept, claim1, claim2, reason string) {
		key := concept + "|" + claim1 + "|" + claim2
		if reported[key] {
			return
		}
		reported[key] = true
		out = append(out, workingmemory.Slot{
			ID: uuid.NewString(), Tag: workingmemory.TagContradiction, Confidence: 0.9,
			SourceDemon: string(demon.Infer), TTL: workingmemory.EndOfTurnTTL,
			Content: workingmemory.Contradiction{Concept: concept, Claim1: claim1, Claim2: claim2, Reason: reason},
		})
	}

	for from, es := range equalsByFrom {
		for i := 0; i < len(es); i++ {
			for j := i + 1; j < len(es); j++ {
				if es[i].to == es[j].to {
					continue
				}
				emit(from, from+" equals "+es[i].to, from+" equals "+es[j].to,
					from+" cannot equal both "+es[i].to+" and "+es[j].to)
			}
		}
	}

	for from, es := range equalsByFrom {
		for i := 0; i < len(es); i++ {
			for j := i + 1; j < len(es); j++ {
				a, b := es[i].to, es[j].to
				if hasEdge(edges, a, domain.RelOpposes, b) || hasEdge(edges, b, domain.RelOpposes, a) {
					emit(from, from+" equals "+a, from+" equals "+b,
						a+" and "+b+" oppose each other, so "+from+" cannot equal both")
				}
			}
		}
	}
	return out
}

// assessClaim applies rule 4.
func assessClaim(edges []edge, view workingmemory.View) workingmemory.Slot {
	var supported, weak, unsupported []string
	allConcepts := map[string]bool{}
	hierarchyConcepts := map[string]bool{}
	for _, slot := range view.FindByTag(workingmemory.TagHierarchy) {
		if h, ok := slot.Content.(workingmemory.Hierarchy); ok {
			hierarchyConcepts[h.Child] = true
			hierarchyConcepts[h.Parent] = true
		}
	}

	seenSupported := map[string]bool{}
	seenWeak := map[string]bool{}
	for _, e := range edges {
		allConcepts[e.from] = true
		allConcepts[e.to] = true
		switch {
		case e.weight > 0.5:
			if !seenSupported[e.from] {
				supported = append(supported, e.from)
				seenSupported[e.from] = true
			}
		case e.weight > 0.3:
			if !seenWeak[e.from] {
				weak = append(weak, e.from)
				seenWeak[e.from] = true
			}
		}
	}
	for concept := range allConcepts {
		if seenSupported[concept] || seenWeak[concept] || hierarchyConcepts[concept] {
			continue
		}
		unsupported = append(unsupported, concept)
	}

	var confidence float64
	if len(allConcepts) > 0 {
		confidence = float64(len(supported)) / float64(len(allConcepts))
	}

	return workingmemory.Slot{
		ID: uuid.NewString(), Tag: workingmemory.TagClaimAssessment, Confidence: confidence,
		SourceDemon: string(demon.Infer), TTL: workingmemory.EndOfTurnTTL,
		Content: workingmemory.ClaimAssessment{
			Supported: supported, Weak: weak, Unsupported: unsupported, Confidence: confidence,
		},
	}
}
