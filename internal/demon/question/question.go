// Package question implements the question demon: the terminal
// demon. It never chains; it produces exactly one response action, built
// by a strict first-match dispatch over the state of working memory.
package question

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// Run implements demon.Func.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	text := respond(view)
	slot := workingmemory.Slot{
		ID: uuid.NewString(), Tag: workingmemory.TagResponse, Confidence: 1,
		SourceDemon: string(demon.Question), TTL: 20,
		Content: workingmemory.Response{Text: text},
	}
	return demon.Plan{
		Write:   []workingmemory.Slot{slot},
		Actions: []demon.Action{{Kind: demon.ActionRespond, Text: text}},
	}, nil
}

func respond(view workingmemory.View) string {
	intent := intentValue(view)
	subject := subjectValue(view)

	if intent == "greeting" {
		return greeting(subject)
	}
	if c, ok := firstContradiction(view); ok {
		return fmt.Sprintf("Hold on — %s. Which one do you think is correct?", c.Reason)
	}
	if intent == "confusion" || hasSimplificationNeeded(view) {
		return confusionResponse(view)
	}
	if intent == "claim" {
		if ca, ok := claimAssessment(view); ok {
			return claimResponse(view, ca)
		}
	}
	if intent == "question" || intent == "request" {
		return questionOrRequestResponse(view)
	}
	if intent == "correction" {
		return "Thanks for the correction — what did I get wrong, and why?"
	}
	return fmt.Sprintf("Let's explore %s…", focusOrFallback(view))
}

func greeting(subject string) string {
	if subject == "" || subject == "general" {
		variants := []string{
			"Hi! What would you like to learn about today?",
			"Hello! What's on your mind?",
			"Hey there — what are you curious about?",
			"Hi, glad you're here. What should we dig into?",
		}
		return variants[rand.Intn(len(variants))]
	}
	return fmt.Sprintf("Hi! Ready to dig into some %s?", subject)
}

func confusionResponse(view workingmemory.View) string {
	var b strings.Builder
	b.WriteString("Let's break this down. ")
	if a, ok := view.LatestByTag(workingmemory.TagAnalogy); ok {
		if an, ok := a.Content.(workingmemory.Analogy); ok && an.Explanation != "" {
			fmt.Fprintf(&b, "Think of it like %s: %s. ", an.Analog, an.Explanation)
		}
	}
	if d, ok := view.LatestByTag(workingmemory.TagDecomposition); ok {
		if dec, ok := d.Content.(workingmemory.Decomposition); ok && len(dec.Parts) > 0 {
			fmt.Fprintf(&b, "Let's start with %s — what do you already know about it?", dec.Parts[0])
			return b.String()
		}
	}
	b.WriteString("What part is tripping you up?")
	return b.String()
}

func claimResponse(view workingmemory.View, ca workingmemory.ClaimAssessment) string {
	switch {
	case ca.Confidence > 0.7:
		if inf, ok := view.LatestByTag(workingmemory.TagInferredRelation); ok {
			if ir, ok := inf.Content.(workingmemory.InferredRelation); ok {
				return fmt.Sprintf("That tracks well. Since %s %s %s, what do you think follows from that?", ir.FromLabel, humanType(ir.Type), ir.ToLabel)
			}
		}
		return "That tracks well. What do you think follows from that?"
	case ca.Confidence < 0.3:
		if len(ca.Unsupported) > 0 {
			return fmt.Sprintf("I'm not sure that holds up — what makes you confident about %s?", ca.Unsupported[0])
		}
		return "I'm not sure that holds up — what's your evidence?"
	default:
		return "Interesting claim. Can you give me a concrete example that supports it?"
	}
}

func questionOrRequestResponse(view workingmemory.View) string {
	if gaps, ok := view.LatestByTag(workingmemory.TagKnowledgeGaps); ok {
		if kg, ok := gaps.Content.(workingmemory.KnowledgeGaps); ok && len(kg.Gaps) > 0 {
			return fmt.Sprintf("Before we go further — do you know what %s means?", kg.Gaps[0])
		}
	}

	focus := focusOrFallback(view)
	if isUnknown(view, focus) {
		var b strings.Builder
		fmt.Fprintf(&b, "I don't have %s in my notes yet — tell me a bit about it. ", focus)
		if a, ok := view.LatestByTag(workingmemory.TagAnalogy); ok {
			if an, ok := a.Content.(workingmemory.Analogy); ok && an.Explanation != "" {
				fmt.Fprintf(&b, "It might be something like %s. ", an.Explanation)
			}
		}
		if s, ok := view.LatestByTag(workingmemory.TagSolutionSteps); ok {
			if ss, ok := s.Content.(workingmemory.SolutionSteps); ok && len(ss.Steps) > 0 {
				fmt.Fprintf(&b, "One way to approach it: %s.", ss.Steps[0])
			}
		}
		return b.String()
	}

	if rel, ok := view.LatestByTag(workingmemory.TagRelation); ok {
		if rf, ok := rel.Content.(workingmemory.RelationFact); ok {
			q := relationQuestion(rf)
			if d, ok := view.LatestByTag(workingmemory.TagDecomposition); ok {
				if dec, ok := d.Content.(workingmemory.Decomposition); ok && len(dec.Parts) > 0 {
					q += " (" + hintParts(dec.Parts) + ")"
				}
			}
			return q
		}
	}

	if a, ok := view.LatestByTag(workingmemory.TagAnalogy); ok {
		if an, ok := a.Content.(workingmemory.Analogy); ok {
			if an.Explanation != "" {
				return fmt.Sprintf("Think of %s like %s — %s. Does that help?", focus, an.Analog, an.Explanation)
			}
			return fmt.Sprintf("%s has something in common with %s. Want to dig into how?", focus, an.Analog)
		}
	}

	if ex, ok := view.LatestByTag(workingmemory.TagExamples); ok {
		if exs, ok := ex.Content.(workingmemory.Examples); ok && len(exs.Items) > 0 {
			return fmt.Sprintf("For example, %s. Does that match what you had in mind?", exs.Items[0])
		}
	}

	return fmt.Sprintf("What's your best guess about %s?", focus)
}

func relationQuestion(rf workingmemory.RelationFact) string {
	switch rf.Type {
	case domain.RelCauses:
		return fmt.Sprintf("What effects do you think %s has, given it causes %s?", rf.FromLabel, rf.ToLabel)
	case domain.RelIsA:
		return fmt.Sprintf("%s is a kind of %s — what category do you think that puts it in?", rf.FromLabel, rf.ToLabel)
	case domain.RelHas, domain.RelContains:
		return fmt.Sprintf("%s has %s — what other components do you think it might have?", rf.FromLabel, rf.ToLabel)
	case domain.RelRequires:
		return fmt.Sprintf("%s requires %s — what do you think happens if that's missing?", rf.FromLabel, rf.ToLabel)
	case domain.RelOpposes:
		return fmt.Sprintf("%s opposes %s — what do you think makes them opposites?", rf.FromLabel, rf.ToLabel)
	default:
		return fmt.Sprintf("What do you think the relationship between %s and %s is?", rf.FromLabel, rf.ToLabel)
	}
}

func hintParts(parts []string) string {
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return "it relates to " + strings.Join(parts, ", ")
}

func humanType(t domain.RelationType) string {
	switch t {
	case domain.RelIsA:
		return "is a"
	case domain.RelCauses:
		return "causes"
	case domain.RelRequires:
		return "requires"
	default:
		return string(t)
	}
}

func focusOrFallback(view workingmemory.View) string {
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
	return "this"
}

func isUnknown(view workingmemory.View, focus string) bool {
	if s, ok := view.LatestByTag(workingmemory.TagUnknownConcepts); ok {
		if uc, ok := s.Content.(workingmemory.UnknownConcepts); ok {
			for _, l := range uc.Labels {
				if l == focus {
					return true
				}
			}
		}
	}
	return false
}

func hasSimplificationNeeded(view workingmemory.View) bool {
	_, ok := view.LatestByTag(workingmemory.TagSimplificationNeed)
	return ok
}

func firstContradiction(view workingmemory.View) (workingmemory.Contradiction, bool) {
	for _, s := range view.FindByTag(workingmemory.TagContradiction) {
		if c, ok := s.Content.(workingmemory.Contradiction); ok {
			return c, true
		}
	}
	return workingmemory.Contradiction{}, false
}

func claimAssessment(view workingmemory.View) (workingmemory.ClaimAssessment, bool) {
	if s, ok := view.LatestByTag(workingmemory.TagClaimAssessment); ok {
		if ca, ok := s.Content.(workingmemory.ClaimAssessment); ok {
			return ca, true
		}
	}
	return workingmemory.ClaimAssessment{}, false
}

func intentValue(view workingmemory.View) string {
	if s, ok := view.LatestByTag(workingmemory.TagIntent); ok {
		if i, ok := s.Content.(workingmemory.Intent); ok {
			return i.Value
		}
	}
	return "unknown"
}

func subjectValue(view workingmemory.View) string {
	if s, ok := view.LatestByTag(workingmemory.TagSubject); ok {
		if subj, ok := s.Content.(workingmemory.Subject); ok {
			return subj.Value
		}
	}
	return "general"
}
