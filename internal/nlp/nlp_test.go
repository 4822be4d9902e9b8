package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeLowercasesStripsPunctuationKeepsContractions(t *testing.T) {
	got := Tokenize("Don't Panic! It's Fine.")
	assert.Equal(t, []string{"don't", "panic", "it's", "fine"}, got)
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("and"))
	assert.False(t, IsStopWord("gravity"))
}

func TestNounPhrasesDropsStopWordsAndSingleChars(t *testing.T) {
	phrases := NounPhrases("the dog chases a ball")
	for _, p := range phrases {
		for _, w := range Tokenize(p) {
			assert.False(t, IsStopWord(w), "phrase %q contains stop word %q", p, w)
			assert.Greater(t, len(w), 1)
		}
	}
	assert.Contains(t, phrases, "dog")
	assert.Contains(t, phrases, "ball")
}

func TestNounPhrasesYieldsContiguousRunAndIndividualWords(t *testing.T) {
	phrases := NounPhrases("chemical bond energy")
	assert.Contains(t, phrases, "chemical bond energy")
	assert.Contains(t, phrases, "chemical")
	assert.Contains(t, phrases, "bond")
	assert.Contains(t, phrases, "energy")
}

func TestNounPhrasesDeduplicatesPreservingOrder(t *testing.T) {
	phrases := NounPhrases("dog dog cat")
	count := 0
	for _, p := range phrases {
		if p == "dog" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassifyIntentOrderedTable(t *testing.T) {
	cases := map[string]string{
		"hello there":                   IntentGreeting,
		"what is gravity?":              IntentQuestion,
		"how does it work":              IntentQuestion,
		"i don't understand this":       IntentConfusion,
		"that's wrong, actually":        IntentCorrection,
		"explain photosynthesis":        IntentRequest,
		"gravity pulls objects downward": IntentClaim,
		"ok":                            IntentUnknown,
	}
	for input, want := range cases {
		assert.Equal(t, want, ClassifyIntent(input), "input=%q", input)
	}
}

func TestClassifyIntentGreetingTakesPriorityOverQuestion(t *testing.T) {
	// Starts with a greeting lead, which the ordered table checks first.
	assert.Equal(t, IntentGreeting, ClassifyIntent("hi, what is gravity?"))
}

func TestClassifySubjectFirstMatchingBucketWins(t *testing.T) {
	assert.Equal(t, "physics", ClassifySubject("What is gravity and momentum?"))
	assert.Equal(t, "biology", ClassifySubject("Explain photosynthesis in cells"))
	assert.Equal(t, "general", ClassifySubject("tell me a story"))
}

func TestQuestionFocusExtractsConceptFromPatterns(t *testing.T) {
	cases := map[string]string{
		"what is gravity?":            "gravity",
		"what are atoms?":             "atoms",
		"how does photosynthesis work?": "photosynthesis",
		"why is the sky blue?":        "the sky blue",
		"explain electricity":         "electricity",
		"tell me about black holes":   "black holes",
	}
	for input, want := range cases {
		assert.Equal(t, want, QuestionFocus(input), "input=%q", input)
	}
}

func TestQuestionFocusFallsBackToWholeInput(t *testing.T) {
	assert.Equal(t, "gravity", QuestionFocus("gravity?"))
}
