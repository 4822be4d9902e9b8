package nlp

import "strings"

// NounPhrases extracts candidate noun phrases from s.
//
// "Contiguous" is computed against the original token order, before
// dropping: a run of adjacent kept tokens contributes both the joined
// multi-word phrase and each of its individual words, so a single-word
// graph label and a longer candidate phrase both get a lookup chance.
func NounPhrases(s string) []string {
	tokens := Tokenize(s)
	keep := make([]bool, len(tokens))
	for i, t := range tokens {
		keep[i] = len(t) > 1 && !IsStopWord(t)
	}

	var out []string
	seen := map[string]bool{}
	add := func(phrase string) {
		if phrase == "" || seen[phrase] {
			return
		}
		seen[phrase] = true
		out = append(out, phrase)
	}

	i := 0
	for i < len(tokens) {
		if !keep[i] {
			i++
			continue
		}
		j := i
		for j < len(tokens) && keep[j] {
			j++
		}
		run := tokens[i:j]
		if len(run) > 1 {
			add(strings.Join(run, " "))
		}
		for _, w := range run {
			add(w)
		}
		i = j
	}
	return out
}
