// Package learn implements the learn demon: the sole writer of
// persistent graph state. It runs once per turn, independent of the chain
// model, persisting noun phrases, re-scanned raw-input relations, the
// turn's resolved relation slots, and student-topic tracking.
package learn

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jcarlsen/socratic-kernel/internal/demon"
	"github.com/jcarlsen/socratic-kernel/internal/domain"
	"github.com/jcarlsen/socratic-kernel/internal/graph"
	"github.com/jcarlsen/socratic-kernel/internal/workingmemory"
)

var subjectBuckets = map[string]bool{
	"mathematics": true, "physics": true, "chemistry": true, "biology": true,
	"history": true, "language": true, "computer_science": true,
	"geography": true, "economics": true,
}

var (
	numberRe  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	booleanRe = regexp.MustCompile(`^(true|false|yes|no)$`)
	processRe = regexp.MustCompile(`(ing|tion|sis|ment)$`)
	propertyRe = regexp.MustCompile(`(ness|ity|ful|ous|ive|able)$`)
)

// inferNounType applies label-shape heuristics to guess a noun's type.
func inferNounType(label string) domain.NounType {
	switch {
	case numberRe.MatchString(label), booleanRe.MatchString(label):
		return domain.NounValue
	case processRe.MatchString(label):
		return domain.NounProcess
	case propertyRe.MatchString(label):
		return domain.NounProperty
	case subjectBuckets[label]:
		return domain.NounContext
	default:
		return domain.NounConcept
	}
}

type rescanPattern struct {
	re  *regexp.Regexp
	typ domain.RelationType
}

var rescanPatterns = []rescanPattern{
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+an?\s+(.+?)[.!?]*$`), domain.RelIsA},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:causes|leads to|results in)\s+(.+?)[.!?]*$`), domain.RelCauses},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:has|contains)\s+(.+?)[.!?]*$`), domain.RelHas},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+part\s+of\s+(.+?)[.!?]*$`), domain.RelPartOf},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:requires|needs)\s+(.+?)[.!?]*$`), domain.RelRequires},
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:equals|is equal to|=)\s+(.+?)[.!?]*$`), domain.RelEquals},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+used\s+(?:for|to)\s+(.+?)[.!?]*$`), domain.RelUsedFor},
	{regexp.MustCompile(`(?i)^(.+?)\s+produces\s+(.+?)[.!?]*$`), domain.RelProduces},
}

const rescanWeight = 0.6

// Run implements demon.LearnFunc. The orchestrator invokes this exactly
// once per turn, after the tick loop ends, whether or not a demon responded.
func Run(view workingmemory.View, store *graph.Store, ctx demon.Context) (demon.Plan, error) {
	subject := currentSubject(view)
	phrases := view.FindByTag(workingmemory.TagNounPhrase)
	relations := view.FindByTag(workingmemory.TagRelation)

	for _, s := range phrases {
		np, ok := s.Content.(workingmemory.NounPhrase)
		if !ok {
			continue
		}
		if _, err := store.EnsureNoun(np.Text, inferNounType(np.Text), nil); err != nil {
			slog.Warn("learn: ensure_noun failed", "label", np.Text, "err", err)
		}
	}

	// A bare "general" classification means ClassifySubject matched no real
	// subject keyword, not that the turn is actually about "general"; only
	// persist it as a noun when the turn also produced other learnable
	// content (a noun phrase or a resolved relation), so a content-free turn
	// like a greeting leaves the graph untouched.
	if subject != "" && (subject != "general" || len(phrases) > 0 || len(relations) > 0) {
		if _, err := store.EnsureNoun(subject, domain.NounContext, nil); err != nil {
			slog.Warn("learn: ensure_noun(subject) failed", "subject", subject, "err", err)
		}
	}

	if raw, ok := view.LatestByTag(workingmemory.TagRawInput); ok {
		if ri, ok := raw.Content.(workingmemory.RawInput); ok {
			rescan(store, ri.Text, subject)
		}
	}

	for _, s := range relations {
		rf, ok := s.Content.(workingmemory.RelationFact)
		if !ok || s.Confidence < 0.5 {
			continue
		}
		if _, err := store.Link(rf.FromLabel, rf.Type, rf.ToLabel, rf.Weight, ""); err != nil {
			slog.Warn("learn: link failed", "from", rf.FromLabel, "type", rf.Type, "to", rf.ToLabel, "err", err)
		}
	}

	var plan demon.Plan
	topic := currentTopic(view)
	if topic != "" {
		plan.Write = append(plan.Write, workingmemory.Slot{
			ID: uuid.NewString(), Tag: workingmemory.TagStudentTopic, Confidence: 1,
			SourceDemon: string(demon.Learn), TTL: 30,
			Content: workingmemory.StudentTopic{Topic: topic},
		})

		if isConfused(view) {
			plan.Write = append(plan.Write, workingmemory.Slot{
				ID: uuid.NewString(), Tag: workingmemory.TagStudentConfusion, Confidence: 1,
				SourceDemon: string(demon.Learn), TTL: 50,
				Content: workingmemory.StudentConfusion{Topic: topic},
			})
		}

		if _, alreadyTracked := view.LatestByTag(workingmemory.TagStudentTopic); !alreadyTracked {
			props := map[string]any{"currently_studying": true}
			if _, err := store.Link("student", domain.RelatesTo, topic, 1.0, "", props); err != nil {
				slog.Warn("learn: currently_studying link failed", "topic", topic, "err", err)
			}
		}
	}

	return plan, nil
}

// rescan re-derives relations directly from the turn's raw utterance,
// independent of noun-phrase resolution, and persists each match under the
// current subject as context.
func rescan(store *graph.Store, text string, subject string) {
	trimmed := strings.TrimSpace(text)
	for _, p := range rescanPatterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		from := strings.TrimSpace(m[1])
		to := strings.TrimSpace(m[2])
		if from == "" || to == "" {
			continue
		}
		if _, err := store.Link(from, p.typ, to, rescanWeight, subject); err != nil {
			slog.Warn("learn: rescan link failed", "from", from, "type", p.typ, "to", to, "err", err)
		}
	}
}

func currentSubject(view workingmemory.View) string {
	if s, ok := view.LatestByTag(workingmemory.TagSubject); ok {
		if subj, ok := s.Content.(workingmemory.Subject); ok {
			return subj.Value
		}
	}
	return ""
}

func currentTopic(view workingmemory.View) string {
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

func isConfused(view workingmemory.View) bool {
	if s, ok := view.LatestByTag(workingmemory.TagIntent); ok {
		if i, ok := s.Content.(workingmemory.Intent); ok {
			return i.Value == "confusion"
		}
	}
	return false
}
