// Package parse implements the parse demon: the only demon whose
// trigger is new_input. It derives intent, subject, noun phrases, and
// question focus from the turn's raw utterance and seeds the chain.
package parse

import (
	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/nlp"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

// chainTable maps intent to the demon chain that intent should seed.
var chainTable = map[string][]demon.ID{
	nlp.IntentQuestion:  {demon.Relate, demon.Infer, demon.Question},
	nlp.IntentRequest:   {demon.Relate, demon.Infer, demon.Question},
	nlp.IntentClaim:     {demon.Relate, demon.Infer, demon.Decompose},
	nlp.IntentConfusion: {demon.Decompose, demon.Analogize, demon.Question},
	nlp.IntentCorrection: {demon.Relate, demon.Infer},
	nlp.IntentGreeting:  {demon.Question},
}

var defaultChain = []demon.ID{demon.Relate, demon.Question}

// Run implements demon.Func. It reads the turn's utterance out of
// ctx.RawInput — parse is the one demon that needs the text itself rather
// than a slot already in memory, since it is what produces the raw_input
// slot in the first place.
func Run(view workingmemory.View, store graph.ReadStore, ctx demon.Context) (demon.Plan, error) {
	rawInput := ctx.RawInput
	intent := nlp.ClassifyIntent(rawInput)
	subject := nlp.ClassifySubject(rawInput)
	phrases := nlp.NounPhrases(rawInput)

	var plan demon.Plan
	now := newID
	plan.Write = append(plan.Write, workingmemory.Slot{
		ID: now(), Content: workingmemory.RawInput{Text: rawInput}, Tag: workingmemory.TagRawInput,
		Confidence: 1, SourceDemon: string(demon.Parse), TTL: workingmemory.EndOfTurnTTL,
	})
	plan.Write = append(plan.Write, workingmemory.Slot{
		ID: now(), Content: workingmemory.Intent{Value: intent}, Tag: workingmemory.TagIntent,
		Confidence: 1, SourceDemon: string(demon.Parse), TTL: workingmemory.EndOfTurnTTL,
	})
	plan.Write = append(plan.Write, workingmemory.Slot{
		ID: now(), Content: workingmemory.Subject{Value: subject}, Tag: workingmemory.TagSubject,
		Confidence: 1, SourceDemon: string(demon.Parse), TTL: workingmemory.EndOfTurnTTL,
	})
	for _, p := range phrases {
		plan.Write = append(plan.Write, workingmemory.Slot{
			ID: now(), Content: workingmemory.NounPhrase{Text: p}, Tag: workingmemory.TagNounPhrase,
			Confidence: 1, SourceDemon: string(demon.Parse), TTL: 10,
		})
	}

	if intent == nlp.IntentQuestion || intent == nlp.IntentRequest {
		focus := nlp.QuestionFocus(rawInput)
		plan.Write = append(plan.Write, workingmemory.Slot{
			ID: now(), Content: workingmemory.QuestionFocus{Text: focus}, Tag: workingmemory.TagQuestionFocus,
			Confidence: 1, SourceDemon: string(demon.Parse), TTL: workingmemory.EndOfTurnTTL,
		})
	}

	if chain, ok := chainTable[intent]; ok {
		plan.Chain = chain
	} else {
		plan.Chain = defaultChain
	}
	return plan, nil
}

func newID() string { return uuid.NewString() }
