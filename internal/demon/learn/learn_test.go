package learn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

func newStore(t *testing.T) *graph.Store {
	t.Helper()
	store, err := graph.Open(t.TempDir(), graph.MergeMaxWeight)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func write(m *workingmemory.Memory, tag workingmemory.Tag, content workingmemory.Content) {
	m.Write(workingmemory.Slot{Content: content, Tag: tag, Confidence: 1, SourceDemon: "test", TTL: workingmemory.EndOfTurnTTL})
}

func TestRunEnsuresNounsForEveryNounPhrase(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagNounPhrase, workingmemory.NounPhrase{Text: "photosynthesis"})
	write(mem, workingmemory.TagNounPhrase, workingmemory.NounPhrase{Text: "chlorophyll"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	n, ok, err := store.Find("photosynthesis")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.NounProcess, n.Type) // "...sis" suffix

	_, ok, err = store.Find("chlorophyll")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunEnsuresSubjectAsContextNoun(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagSubject, workingmemory.Subject{Value: "physics"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	n, ok, err := store.Find("physics")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.NounContext, n.Type)
}

func TestRunRescansRawInputForIsARelation(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagRawInput, workingmemory.RawInput{Text: "a whale is a mammal."})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	triples, err := store.Query(domain.Pattern{
		From: &domain.NodePattern{Label: "a whale"},
		To:   &domain.NodePattern{Label: "mammal"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, domain.RelIsA, triples[0].Relation.Type)
	assert.Equal(t, rescanWeight, triples[0].Relation.Weight)
}

func TestRunRescansRawInputForProducesRelation(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagRawInput, workingmemory.RawInput{Text: "photosynthesis produces oxygen"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	triples, err := store.Query(domain.Pattern{
		From:     &domain.NodePattern{Label: "photosynthesis"},
		Relation: domain.RelProduces,
		To:       &domain.NodePattern{Label: "oxygen"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, rescanWeight, triples[0].Relation.Weight)
}

func TestRunPersistsHighConfidenceRelationSlotsOnly(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagNounPhrase, workingmemory.NounPhrase{Text: "sun"})
	mem.Write(workingmemory.Slot{
		Content: workingmemory.RelationFact{FromLabel: "sun", Type: domain.RelIsA, ToLabel: "star", Weight: 0.9, FromGraph: true},
		Tag:     workingmemory.TagRelation, Confidence: 0.9, SourceDemon: "relate", TTL: workingmemory.EndOfTurnTTL,
	})
	mem.Write(workingmemory.Slot{
		Content: workingmemory.RelationFact{FromLabel: "sun", Type: domain.RelHas, ToLabel: "heat", Weight: 0.2, FromGraph: true},
		Tag:     workingmemory.TagRelation, Confidence: 0.2, SourceDemon: "relate", TTL: workingmemory.EndOfTurnTTL,
	})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	sunStar, err := store.Query(domain.Pattern{From: &domain.NodePattern{Label: "sun"}, To: &domain.NodePattern{Label: "star"}}, 0)
	require.NoError(t, err)
	assert.Len(t, sunStar, 1)

	sunHeat, err := store.Query(domain.Pattern{From: &domain.NodePattern{Label: "sun"}, To: &domain.NodePattern{Label: "heat"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, sunHeat)
}

func TestRunWritesStudentTopicAndConfusionSlots(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagQuestionFocus, workingmemory.QuestionFocus{Text: "gravity"})
	write(mem, workingmemory.TagIntent, workingmemory.Intent{Value: "confusion"})

	plan, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	var sawTopic, sawConfusion bool
	for _, s := range plan.Write {
		switch s.Tag {
		case workingmemory.TagStudentTopic:
			sawTopic = true
			assert.Equal(t, "gravity", s.Content.(workingmemory.StudentTopic).Topic)
			assert.Equal(t, 30, s.TTL)
		case workingmemory.TagStudentConfusion:
			sawConfusion = true
			assert.Equal(t, "gravity", s.Content.(workingmemory.StudentConfusion).Topic)
			assert.Equal(t, 50, s.TTL)
		}
	}
	assert.True(t, sawTopic)
	assert.True(t, sawConfusion)

	triples, err := store.Query(domain.Pattern{
		From: &domain.NodePattern{Label: "student"},
		To:   &domain.NodePattern{Label: "gravity"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, domain.RelatesTo, triples[0].Relation.Type)
}

func TestRunDoesNotLinkStudentTopicAgainWhenAlreadyTracked(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagQuestionFocus, workingmemory.QuestionFocus{Text: "gravity"})
	write(mem, workingmemory.TagStudentTopic, workingmemory.StudentTopic{Topic: "gravity"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	triples, err := store.Query(domain.Pattern{
		From: &domain.NodePattern{Label: "student"},
		To:   &domain.NodePattern{Label: "gravity"},
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, triples)
}

func TestRunNoTopicWritesNoSlots(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()

	plan, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)
	assert.Empty(t, plan.Write)
}

func TestRunSkipsGeneralSubjectNounWhenTurnHasNoOtherContent(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagRawInput, workingmemory.RawInput{Text: "hi"})
	write(mem, workingmemory.TagSubject, workingmemory.Subject{Value: "general"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	_, ok, err := store.Find("general")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Nouns)
}

func TestRunPersistsGeneralSubjectWhenNounPhrasesPresent(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagSubject, workingmemory.Subject{Value: "general"})
	write(mem, workingmemory.TagNounPhrase, workingmemory.NounPhrase{Text: "photosynthesis"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	_, ok, err := store.Find("general")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunTagsStudentTopicLinkAsCurrentlyStudying(t *testing.T) {
	store := newStore(t)
	mem := workingmemory.New()
	write(mem, workingmemory.TagQuestionFocus, workingmemory.QuestionFocus{Text: "gravity"})

	_, err := Run(workingmemory.ViewOf(mem), store, demon.Context{})
	require.NoError(t, err)

	triples, err := store.Query(domain.Pattern{
		From: &domain.NodePattern{Label: "student"},
		To:   &domain.NodePattern{Label: "gravity"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, true, triples[0].Relation.Properties["currently_studying"])
}
