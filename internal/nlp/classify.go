package nlp

import (
	"regexp"
	"strings"
)

// Intent closes the vocabulary parse's intent classification produces.
// Kept as plain strings here (rather than importing workingmemory) so nlp
// stays a leaf package with no dependency on the demon/memory layers above
// it.
const (
	IntentGreeting  = "greeting"
	IntentQuestion  = "question"
	IntentConfusion = "confusion"
	IntentCorrection = "correction"
	IntentRequest   = "request"
	IntentClaim     = "claim"
	IntentUnknown   = "unknown"
)

var greetingRe = regexp.MustCompile(`^(hi|hello|hey|greetings|yo|sup)\b`)
var questionLeadRe = regexp.MustCompile(`^(what|why|how|when|where|who|which|is|are|can|could|do|does|did|should|would|will)\b`)
var confusionRe = regexp.MustCompile(`don'?t (get|understand)|i'?m (lost|confused)|confus(ing|ed)|makes? no sense`)
var correctionRe = regexp.MustCompile(`^(no,|actually|that'?s (wrong|incorrect|not right)|you'?re wrong)`)
var requestRe = regexp.MustCompile(`^(explain|describe|define|tell me|show me|walk me through|please explain)\b`)

// ClassifyIntent applies an ordered table: greeting, question, confusion,
// correction, request, claim (more than two tokens), unknown. The first
// matching rule wins.
func ClassifyIntent(text string) string {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	switch {
	case greetingRe.MatchString(trimmed):
		return IntentGreeting
	case strings.Contains(trimmed, "?") || questionLeadRe.MatchString(trimmed):
		return IntentQuestion
	case confusionRe.MatchString(trimmed):
		return IntentConfusion
	case correctionRe.MatchString(trimmed):
		return IntentCorrection
	case requestRe.MatchString(trimmed):
		return IntentRequest
	case len(Tokenize(trimmed)) > 2:
		return IntentClaim
	default:
		return IntentUnknown
	}
}

// subjectBucket is one row of the subject-classification table: the first
// bucket whose keyword appears anywhere in the (lower-cased) input wins.
type subjectBucket struct {
	name     string
	keywords []string
}

var subjectTable = []subjectBucket{
	{"mathematics", []string{"math", "algebra", "geometry", "calculus", "equation", "arithmetic", "theorem", "fraction", "derivative", "integral"}},
	{"physics", []string{"physics", "gravity", "force", "velocity", "momentum", "electricity", "quantum", "acceleration", "friction"}},
	{"chemistry", []string{"chemistry", "atom", "molecule", "reaction", "element", "compound", "acid", "chemical bond", "chemical"}},
	{"biology", []string{"biology", "cell", "dna", "organism", "evolution", "photosynthesis", "gene", "species", "ecosystem", "protein"}},
	{"history", []string{"history", "war", "revolution", "empire", "century", "ancient", "president", "dynasty"}},
	{"language", []string{"grammar", "verb", "noun", "sentence", "vocabulary", "pronunciation", "linguistics", "syntax"}},
	{"computer_science", []string{"computer", "algorithm", "programming", "software", "variable", "database", "function", "compiler"}},
	{"geography", []string{"geography", "continent", "country", "climate", "ocean", "mountain", "river", "capital"}},
	{"economics", []string{"economics", "economy", "market", "supply", "demand", "inflation", "trade", "gdp", "currency"}},
}

// ClassifySubject returns the first subject bucket whose keyword appears in
// text, or "general" if none match.
func ClassifySubject(text string) string {
	lower := strings.ToLower(text)
	for _, b := range subjectTable {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.name
			}
		}
	}
	return "general"
}

var focusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^what\s+is\s+(?:an?\s+)?(.+?)\??$`),
	regexp.MustCompile(`(?i)^what\s+are\s+(.+?)\??$`),
	regexp.MustCompile(`(?i)^how\s+does\s+(.+?)\s+work\??$`),
	regexp.MustCompile(`(?i)^how\s+do\s+(.+?)\s+work\??$`),
	regexp.MustCompile(`(?i)^why\s+(?:is|does|do)\s+(.+?)\??$`),
	regexp.MustCompile(`(?i)^(?:explain|describe|define|tell me about|show me)\s+(.+?)\??$`),
}

// QuestionFocus extracts the concept a question or request is about, using
// an ordered pattern table; falls back to the whole input.
func QuestionFocus(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, re := range focusPatterns {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			focus := strings.TrimSpace(m[1])
			focus = strings.TrimSuffix(focus, "?")
			if focus != "" {
				return focus
			}
		}
	}
	return strings.TrimSuffix(trimmed, "?")
}
