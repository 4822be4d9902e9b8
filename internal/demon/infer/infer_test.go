package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

func writeRelation(m *workingmemory.Memory, from string, typ domain.RelationType, to string, weight float64) {
	m.Write(workingmemory.Slot{
		Content: workingmemory.RelationFact{FromLabel: from, Type: typ, ToLabel: to, Weight: weight, FromGraph: true},
		Tag:     workingmemory.TagRelation, Confidence: weight, SourceDemon: "relate", TTL: workingmemory.EndOfTurnTTL,
	})
}

func writeIntent(m *workingmemory.Memory, value string) {
	m.Write(workingmemory.Slot{
		Content: workingmemory.Intent{Value: value}, Tag: workingmemory.TagIntent,
		Confidence: 1, SourceDemon: "parse", TTL: workingmemory.EndOfTurnTTL,
	})
}

func slotsByTag(plan demon.Plan, tag workingmemory.Tag) []workingmemory.Slot {
	var out []workingmemory.Slot
	for _, s := range plan.Write {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}

func TestRunDerivesTransitiveClosure(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "poodle", domain.RelIsA, "dog", 1)
	writeRelation(mem, "dog", domain.RelIsA, "mammal", 0.9)

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)

	inferred := slotsByTag(plan, workingmemory.TagInferredRelation)
	require.Len(t, inferred, 1)
	ir := inferred[0].Content.(workingmemory.InferredRelation)
	assert.Equal(t, "poodle", ir.FromLabel)
	assert.Equal(t, domain.RelIsA, ir.Type)
	assert.Equal(t, "mammal", ir.ToLabel)
	assert.Equal(t, "transitive", ir.Rule)
	assert.InDelta(t, 0.81, ir.Weight, 1e-9)
	assert.Contains(t, plan.Chain, demon.Decompose)
}

func TestRunDoesNotDuplicateAlreadyExistingTransitiveEdge(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "poodle", domain.RelIsA, "dog", 1)
	writeRelation(mem, "dog", domain.RelIsA, "mammal", 0.9)
	writeRelation(mem, "poodle", domain.RelIsA, "mammal", 0.95)

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)
	assert.Empty(t, slotsByTag(plan, workingmemory.TagInferredRelation))
}

func TestRunDerivesPropertyInheritance(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "dog", domain.RelIsA, "mammal", 1)
	writeRelation(mem, "mammal", domain.RelHas, "fur", 0.8)

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)

	inferred := slotsByTag(plan, workingmemory.TagInferredRelation)
	require.Len(t, inferred, 1)
	ir := inferred[0].Content.(workingmemory.InferredRelation)
	assert.Equal(t, "dog", ir.FromLabel)
	assert.Equal(t, domain.RelHas, ir.Type)
	assert.Equal(t, "fur", ir.ToLabel)
	assert.Equal(t, "inheritance", ir.Rule)
	assert.InDelta(t, 0.68, ir.Weight, 1e-9)
}

func TestRunDetectsEqualsContradiction(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "x", domain.RelEquals, "5", 1)
	writeRelation(mem, "x", domain.RelEquals, "10", 1)

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)

	contra := slotsByTag(plan, workingmemory.TagContradiction)
	require.Len(t, contra, 1)
	c := contra[0].Content.(workingmemory.Contradiction)
	assert.Equal(t, "x", c.Concept)
	assert.Contains(t, plan.Chain, demon.Question)
}

func TestRunDetectsOpposingEqualsContradiction(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "hot", domain.RelOpposes, "cold", 1)
	writeRelation(mem, "temperature", domain.RelEquals, "hot", 1)
	writeRelation(mem, "temperature", domain.RelEquals, "cold", 1)

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)

	contra := slotsByTag(plan, workingmemory.TagContradiction)
	require.Len(t, contra, 1)
}

func TestRunAssessesClaimOnlyWhenIntentIsClaim(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "sun", domain.RelIsA, "star", 0.9)
	writeIntent(mem, "claim")

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)

	assessment := slotsByTag(plan, workingmemory.TagClaimAssessment)
	require.Len(t, assessment, 1)
	ca := assessment[0].Content.(workingmemory.ClaimAssessment)
	assert.Contains(t, ca.Supported, "sun")
}

func TestRunSkipsClaimAssessmentForNonClaimIntent(t *testing.T) {
	mem := workingmemory.New()
	writeRelation(mem, "sun", domain.RelIsA, "star", 0.9)
	writeIntent(mem, "question")

	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)
	assert.Empty(t, slotsByTag(plan, workingmemory.TagClaimAssessment))
}

func TestRunAlwaysChainsQuestion(t *testing.T) {
	mem := workingmemory.New()
	plan, err := Run(workingmemory.ViewOf(mem), nil, demon.Context{})
	require.NoError(t, err)
	assert.Contains(t, plan.Chain, demon.Question)
}
