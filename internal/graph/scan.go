package graph

import (
	"strings"

	"github.com/coregx/ahocorasick"
)

// labelAutomaton wraps a compiled Aho-Corasick automaton over every noun
// label currently in the store: build once, scan many times. One automaton
// serves every scan until the label set changes.
type labelAutomaton struct {
	ac     *ahocorasick.Automaton
	labels []string
}

// ScanKnownLabels finds every already-known noun label that occurs literally
// in text, in one linear pass. relate runs it after its per-phrase
// find/search pass and adds the labels that pass did not resolve. The automaton
// is rebuilt lazily whenever EnsureNoun/DeleteNoun changed the label set
// since the last scan.
func (s *Store) ScanKnownLabels(text string) ([]string, error) {
	auto, err := s.labelAutomatonFor()
	if err != nil {
		return nil, err
	}
	if auto == nil || auto.ac == nil {
		return nil, nil
	}
	haystack := []byte(strings.ToLower(text))
	matches := auto.ac.FindAllOverlapping(haystack)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if m.PatternID < 0 || m.PatternID >= len(auto.labels) {
			continue
		}
		label := auto.labels[m.PatternID]
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out, nil
}

func (s *Store) labelAutomatonFor() (*labelAutomaton, error) {
	s.mu.Lock()
	if s.automaton != nil && s.automatonOf == s.labelsGen {
		auto := s.automaton
		s.mu.Unlock()
		return auto, nil
	}
	gen := s.labelsGen
	s.mu.Unlock()

	labels, err := allLabels(s)
	if err != nil {
		return nil, err
	}
	auto := &labelAutomaton{labels: labels}
	if len(labels) > 0 {
		built, err := ahocorasick.NewBuilder().
			AddStrings(labels).
			SetMatchKind(ahocorasick.LeftmostLongest).
			SetPrefilter(true).
			Build()
		if err != nil {
			return nil, err
		}
		auto.ac = built
	}

	s.mu.Lock()
	s.automaton = auto
	s.automatonOf = gen
	s.mu.Unlock()
	return auto, nil
}

func allLabels(s *Store) ([]string, error) {
	nouns, err := s.Search("", 0)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(nouns))
	for i, n := range nouns {
		labels[i] = n.Label
	}
	return labels, nil
}
