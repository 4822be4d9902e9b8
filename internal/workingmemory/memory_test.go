package workingmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAssignsIDAndCreatedAt(t *testing.T) {
	m := New()
	s := m.Write(Slot{Content: RawInput{Text: "hi"}, Tag: TagRawInput})
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.CreatedAt.IsZero())

	got, ok := m.Read(s.ID)
	require.True(t, ok)
	assert.Equal(t, "hi", got.Content.(RawInput).Text)
}

func TestFindByTagAndLatestByTag(t *testing.T) {
	m := New()
	m.Write(Slot{Content: NounPhrase{Text: "a"}, Tag: TagNounPhrase})
	m.Write(Slot{Content: NounPhrase{Text: "b"}, Tag: TagNounPhrase})

	all := m.FindByTag(TagNounPhrase)
	assert.Len(t, all, 2)

	_, ok := m.LatestByTag(TagIntent)
	assert.False(t, ok)
}

func TestEvictRemovesSlotAndFocus(t *testing.T) {
	m := New()
	s := m.Write(Slot{Content: RawInput{Text: "hi"}, Tag: TagRawInput})
	m.SetFocus([]string{s.ID})
	require.Len(t, m.Focused(), 1)

	assert.True(t, m.Evict(s.ID))
	assert.False(t, m.Evict(s.ID))
	assert.Empty(t, m.Focused())
	_, ok := m.Read(s.ID)
	assert.False(t, ok)
}

func TestSetFocusDropsUnknownIDsAndTracksFocusedFlag(t *testing.T) {
	m := New()
	s1 := m.Write(Slot{Content: RawInput{Text: "a"}, Tag: TagRawInput})
	s2 := m.Write(Slot{Content: RawInput{Text: "b"}, Tag: TagRawInput})

	m.SetFocus([]string{s1.ID, "nonexistent"})
	focused := m.Focused()
	require.Len(t, focused, 1)
	assert.Equal(t, s1.ID, focused[0].ID)

	got1, _ := m.Read(s1.ID)
	assert.True(t, got1.Focused)
	got2, _ := m.Read(s2.ID)
	assert.False(t, got2.Focused)

	m.SetFocus(nil)
	got1again, _ := m.Read(s1.ID)
	assert.False(t, got1again.Focused)
}

func TestTickDecaysTTLAndLeavesEndOfTurnSlotsAlone(t *testing.T) {
	m := New()
	decaying := m.Write(Slot{Content: NounPhrase{Text: "a"}, Tag: TagNounPhrase, TTL: 2})
	persistent := m.Write(Slot{Content: RawInput{Text: "b"}, Tag: TagRawInput, TTL: EndOfTurnTTL})

	evicted := m.Tick()
	assert.Empty(t, evicted)
	got, ok := m.Read(decaying.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.TTL)

	evicted = m.Tick()
	assert.Equal(t, []string{decaying.ID}, evicted)
	_, ok = m.Read(decaying.ID)
	assert.False(t, ok)

	_, ok = m.Read(persistent.ID)
	assert.True(t, ok)
	assert.Equal(t, 2, m.CurrentTick())
}

func TestEnforceLimitPrefersEvictingNonFocusedLowConfidenceFirst(t *testing.T) {
	m := New()
	low := m.Write(Slot{Content: RawInput{Text: "low"}, Tag: TagRawInput, Confidence: 0.1})
	high := m.Write(Slot{Content: RawInput{Text: "high"}, Tag: TagRawInput, Confidence: 0.9})
	focused := m.Write(Slot{Content: RawInput{Text: "focused"}, Tag: TagRawInput, Confidence: 0.05})
	m.SetFocus([]string{focused.ID})

	evicted := m.EnforceLimit(2)
	require.Len(t, evicted, 1)
	assert.Equal(t, low.ID, evicted[0])

	_, ok := m.Read(high.ID)
	assert.True(t, ok)
	_, ok = m.Read(focused.ID)
	assert.True(t, ok)
}

func TestEnforceLimitNoOpWhenUnderLimit(t *testing.T) {
	m := New()
	m.Write(Slot{Content: RawInput{Text: "a"}, Tag: TagRawInput})
	assert.Empty(t, m.EnforceLimit(10))
	assert.Empty(t, m.EnforceLimit(0))
}

func TestSweepRemovesOnlyEphemeralTags(t *testing.T) {
	m := New()
	eph := m.Write(Slot{Content: RawInput{Text: "a"}, Tag: TagRawInput})
	resp := m.Write(Slot{Content: Response{Text: "hi"}, Tag: TagResponse})

	evicted := m.Sweep(EphemeralTags)
	assert.Equal(t, []string{eph.ID}, evicted)

	_, ok := m.Read(eph.ID)
	assert.False(t, ok)
	_, ok = m.Read(resp.ID)
	assert.True(t, ok)
}

func TestRestoreReplacesContents(t *testing.T) {
	m := New()
	m.Write(Slot{Content: RawInput{Text: "old"}, Tag: TagRawInput})

	newSlot := Slot{ID: "s1", Content: RawInput{Text: "new"}, Tag: TagRawInput}
	m.Restore([]Slot{newSlot}, []string{"s1"}, 7)

	assert.Equal(t, 1, m.Size())
	assert.Equal(t, 7, m.CurrentTick())
	got, ok := m.Read("s1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Content.(RawInput).Text)
	assert.Len(t, m.Focused(), 1)
}

func TestViewOfExposesReadOnlyOperations(t *testing.T) {
	m := New()
	m.Write(Slot{Content: Intent{Value: "question"}, Tag: TagIntent})

	var view View = ViewOf(m)
	s, ok := view.LatestByTag(TagIntent)
	require.True(t, ok)
	assert.Equal(t, "question", s.Content.(Intent).Value)
}
