// Package decompose implements the decompose demon: breaks a
// concept into graph-derived parts/prerequisites/examples, layers in a
// subject-keyed heuristic step list, and flags knowledge gaps.
package decompose

import (
	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// heuristicSteps is the canonical, graph-independent step list per subject
// bucket.
var heuristicSteps = map[string][]string{
	"mathematics": {
		"identify what is given and what is being asked",
		"recall the relevant definition or formula",
		"substitute the known values",
		"solve step by step, checking each operation",
		"verify the answer makes sense",
	},
	"physics": {
		"identify the physical quantities involved",
		"choose the governing law or equation",
		"draw or imagine the system and its forces/energies",
		"solve for the unknown quantity",
		"check units and magnitude for plausibility",
	},
	"biology": {
		"name the structures or processes involved",
		"describe their normal function",
		"trace the sequence of events or interactions",
		"connect the process to its broader purpose",
	},
	"history": {
		"establish the time and place",
		"identify the key actors and their motives",
		"trace the sequence of events",
		"consider the consequences and how they echo forward",
	},
	"language": {
		"identify the part of speech or grammatical role",
		"find a clear example in a sentence",
		"note the rule governing its use",
		"try forming a new sentence with it",
	},
	"computer_science": {
		"state the problem and its inputs/outputs",
		"sketch the approach before writing code",
		"work through a small example by hand",
		"implement it, then trace through the example again",
	},
	"general": {
		"break the idea into its main parts",
		"explain each part in your own words",
		"connect the parts back into the whole",
	},
}

// Run implements demon.Func.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	concept := targetConcept(view)
	if concept == "" {
		var plan demon.Plan
		plan.Chain = []demon.ID{demon.Question}
		return plan, nil
	}

	var plan demon.Plan
	var parts, prerequisites, examples []string

	if n, ok, err := store.Find(concept); err != nil {
		return demon.Plan{}, err
	} else if ok {
		parts = append(parts, labelsFrom(store, n.ID, domain.RelPartOf)...)
		parts = append(parts, labelsFrom(store, n.ID, domain.RelHas)...)
		parts = append(parts, labelsFrom(store, n.ID, domain.RelContains)...)
		parts = append(parts, labelsTo(store, n.ID, domain.RelPartOf)...)

		prerequisites = labelsFrom(store, n.ID, domain.RelRequires)

		examples = append(examples, labelsFrom(store, n.ID, domain.RelExampleOf)...)
		examples = append(examples, labelsTo(store, n.ID, domain.RelExampleOf)...)
	}

	known := knownConcepts(view)
	var gaps []string
	for _, p := range prerequisites {
		if !known[p] {
			gaps = append(gaps, p)
		}
	}

	subject := currentSubject(view)
	steps, ok := heuristicSteps[subject]
	if !ok {
		steps = heuristicSteps["general"]
	}

	plan.Write = append(plan.Write,
		slot(workingmemory.TagDecomposition, workingmemory.Decomposition{Concept: concept, Parts: parts}),
		slot(workingmemory.TagPrerequisites, workingmemory.Prerequisites{Concept: concept, Items: prerequisites, Gaps: gaps}),
		slot(workingmemory.TagKnowledgeGaps, workingmemory.KnowledgeGaps{Concept: concept, Gaps: gaps}),
		slot(workingmemory.TagExamples, workingmemory.Examples{Concept: concept, Items: examples}),
		slot(workingmemory.TagSolutionSteps, workingmemory.SolutionSteps{Concept: concept, Steps: steps}),
	)

	confused := false
	if intentSlot, ok := view.LatestByTag(workingmemory.TagIntent); ok {
		if intent, ok := intentSlot.Content.(workingmemory.Intent); ok && intent.Value == "confusion" {
			confused = true
		}
	}
	if confused {
		plan.Write = append(plan.Write, slot(workingmemory.TagSimplificationNeed, workingmemory.SimplificationNeeded{Concept: concept}))
		plan.Chain = append(plan.Chain, demon.Analogize)
	}
	plan.Chain = append(plan.Chain, demon.Question)
	return plan, nil
}

func slot(tag workingmemory.Tag, content workingmemory.Content) workingmemory.Slot {
	return workingmemory.Slot{
		ID: uuid.NewString(), Tag: tag, Confidence: 1,
		SourceDemon: string(demon.Decompose), TTL: workingmemory.EndOfTurnTTL, Content: content,
	}
}

func targetConcept(view workingmemory.View) string {
	if s, ok := view.LatestByTag(workingmemory.TagQuestionFocus); ok {
		if qf, ok := s.Content.(workingmemory.QuestionFocus); ok && qf.Text != "" {
			return qf.Text
		}
	}
	if s, ok := view.LatestByTag(workingmemory.TagNounPhrase); ok {
		if np, ok := s.Content.(workingmemory.NounPhrase); ok {
			return np.Text
		}
	}
	return ""
}

func currentSubject(view workingmemory.View) string {
	if s, ok := view.LatestByTag(workingmemory.TagSubject); ok {
		if subj, ok := s.Content.(workingmemory.Subject); ok {
			return subj.Value
		}
	}
	return "general"
}

func knownConcepts(view workingmemory.View) map[string]bool {
	known := map[string]bool{}
	for _, s := range view.FindByTag(workingmemory.TagNounPhrase) {
		if np, ok := s.Content.(workingmemory.NounPhrase); ok {
			known[np.Text] = true
		}
	}
	for _, s := range view.FindByTag(workingmemory.TagHierarchy) {
		if h, ok := s.Content.(workingmemory.Hierarchy); ok {
			known[h.Child] = true
			known[h.Parent] = true
		}
	}
	return known
}

func labelsFrom(store graph.ReadStore, id string, typ domain.RelationType) []string {
	triples, err := store.RelationsFrom(id, typ)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(triples))
	for _, t := range triples {
		out = append(out, t.To.Label)
	}
	return out
}

func labelsTo(store graph.ReadStore, id string, typ domain.RelationType) []string {
	triples, err := store.RelationsTo(id, typ)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(triples))
	for _, t := range triples {
		out = append(out, t.From.Label)
	}
	return out
}
