package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarlsen/socratic-kernel/internal/domain"
)

func openStore(t *testing.T, policy DuplicateLinkPolicy) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), policy)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureNounIsIdempotentByNormalizedLabel(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	a, err := s.EnsureNoun("  Gravity ", domain.NounConcept, nil)
	require.NoError(t, err)
	b, err := s.EnsureNoun("gravity", domain.NounProcess, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, domain.NounConcept, b.Type) // second call is a no-op, type unchanged
}

func TestFindIsCaseInsensitive(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.EnsureNoun("Photosynthesis", domain.NounProcess, nil)
	require.NoError(t, err)

	n, ok, err := s.Find("PHOTOSYNTHESIS")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "photosynthesis", n.Label)
}

func TestSearchSubstringMostRecentFirst(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.EnsureNoun("photosynthesis", domain.NounProcess, nil)
	require.NoError(t, err)
	_, err = s.EnsureNoun("photosynthetic rate", domain.NounConcept, nil)
	require.NoError(t, err)
	_, err = s.EnsureNoun("gravity", domain.NounConcept, nil)
	require.NoError(t, err)

	hits, err := s.Search("photo", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "photosynthetic rate", hits[0].Label)
	assert.Equal(t, "photosynthesis", hits[1].Label)
}

func TestLinkMergeMaxWeightKeepsSingleEdgeWithHigherWeight(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("sun", domain.RelIsA, "star", 0.5, "")
	require.NoError(t, err)
	_, err = s.Link("sun", domain.RelIsA, "star", 0.9, "")
	require.NoError(t, err)
	_, err = s.Link("sun", domain.RelIsA, "star", 0.2, "")
	require.NoError(t, err)

	sun, _, err := s.Find("sun")
	require.NoError(t, err)
	triples, err := s.RelationsFrom(sun.ID, domain.RelIsA)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, 0.9, triples[0].Relation.Weight)
}

func TestLinkKeepMultipleRecordsEveryEdge(t *testing.T) {
	s := openStore(t, KeepMultiple)
	_, err := s.Link("sun", domain.RelIsA, "star", 0.5, "")
	require.NoError(t, err)
	_, err = s.Link("sun", domain.RelIsA, "star", 0.9, "")
	require.NoError(t, err)

	sun, _, err := s.Find("sun")
	require.NoError(t, err)
	triples, err := s.RelationsFrom(sun.ID, domain.RelIsA)
	require.NoError(t, err)
	assert.Len(t, triples, 2)
}

func TestLinkRejectsInvalidRelationType(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("a", domain.RelationType("made_up"), "b", 1, "")
	assert.Error(t, err)
}

func TestRelationsFromAndToAreSymmetric(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("dog", domain.RelIsA, "animal", 1, "")
	require.NoError(t, err)

	dog, _, err := s.Find("dog")
	require.NoError(t, err)
	animal, _, err := s.Find("animal")
	require.NoError(t, err)

	from, err := s.RelationsFrom(dog.ID, "")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "animal", from[0].To.Label)

	to, err := s.RelationsTo(animal.ID, "")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "dog", to[0].From.Label)
}

func TestQueryFiltersByPatternAndOrdersByDescendingWeight(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("dog", domain.RelIsA, "animal", 0.3, "")
	require.NoError(t, err)
	_, err = s.Link("cat", domain.RelIsA, "animal", 0.9, "")
	require.NoError(t, err)
	_, err = s.Link("dog", domain.RelHas, "tail", 1, "")
	require.NoError(t, err)

	triples, err := s.Query(domain.Pattern{To: &domain.NodePattern{Label: "animal"}}, 0)
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "cat", triples[0].From.Label)
	assert.Equal(t, "dog", triples[1].From.Label)
}

func TestTraverseBoundsByDepthAndRecordsPath(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("a", domain.RelCauses, "b", 1, "")
	require.NoError(t, err)
	_, err = s.Link("b", domain.RelCauses, "c", 1, "")
	require.NoError(t, err)

	a, _, err := s.Find("a")
	require.NoError(t, err)

	visited, err := s.Traverse(a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, visited, 2) // a and b only, c is depth 2

	visited, err = s.Traverse(a.ID, 2)
	require.NoError(t, err)
	assert.Len(t, visited, 3)
	c, _, err := s.Find("c")
	require.NoError(t, err)
	assert.Equal(t, 2, visited[c.ID].Depth)
}

func TestDeleteNounCascadesRelations(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("dog", domain.RelIsA, "animal", 1, "")
	require.NoError(t, err)
	dog, _, err := s.Find("dog")
	require.NoError(t, err)

	require.NoError(t, s.DeleteNoun(dog.ID))

	_, ok, err := s.Find("dog")
	require.NoError(t, err)
	assert.False(t, ok)

	animal, _, err := s.Find("animal")
	require.NoError(t, err)
	triples, err := s.RelationsTo(animal.ID, "")
	require.NoError(t, err)
	assert.Empty(t, triples)
}

func TestStatsCountsNounsAndRelationsByType(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.Link("dog", domain.RelIsA, "animal", 1, "")
	require.NoError(t, err)
	_, err = s.Link("cat", domain.RelIsA, "animal", 1, "")
	require.NoError(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Nouns)
	assert.Equal(t, 2, st.Relations)
	assert.Equal(t, 2, st.Types[string(domain.RelIsA)])
}

func TestScanKnownLabelsFindsLiteralSubstringsAndRebuildsOnChange(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	_, err := s.EnsureNoun("photosynthesis", domain.NounProcess, nil)
	require.NoError(t, err)

	found, err := s.ScanKnownLabels("Tell me about photosynthesis please")
	require.NoError(t, err)
	assert.Contains(t, found, "photosynthesis")

	_, err = s.EnsureNoun("chlorophyll", domain.NounConcept, nil)
	require.NoError(t, err)

	found, err = s.ScanKnownLabels("chlorophyll and photosynthesis are related")
	require.NoError(t, err)
	assert.Contains(t, found, "photosynthesis")
	assert.Contains(t, found, "chlorophyll")
}

func TestScanKnownLabelsEmptyStoreReturnsNoMatches(t *testing.T) {
	s := openStore(t, MergeMaxWeight)
	found, err := s.ScanKnownLabels("anything at all")
	require.NoError(t, err)
	assert.Empty(t, found)
}
