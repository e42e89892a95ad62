// Package relevance renders the retrieved context attached to assistant
// replies: it ranks excerpts by score, extracts the sentences most relevant
// to the question, highlights question keywords and tracks per-excerpt
// progressive disclosure.
package relevance

import "strings"

// stopWords are articles, conjunctions and question words (the corpus is
// French-first, English is served too). Tokens this short or common carry
// no signal for sentence scoring.
var stopWords = map[string]struct{}{
	// French
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {},
	"de": {}, "du": {}, "au": {}, "aux": {}, "ce": {}, "ces": {},
	"cette": {}, "mon": {}, "ton": {}, "son": {}, "mes": {}, "tes": {}, "ses": {},
	"et": {}, "ou": {}, "mais": {}, "donc": {}, "car": {}, "ni": {}, "or": {},
	"que": {}, "qui": {}, "quoi": {}, "dont": {},
	"quel": {}, "quelle": {}, "quels": {}, "quelles": {},
	"comment": {}, "pourquoi": {}, "quand": {}, "combien": {},
	"est": {}, "sont": {}, "etait": {}, "était": {},
	"dans": {}, "pour": {}, "sur": {}, "avec": {}, "sans": {}, "sous": {},
	"par": {}, "vers": {}, "chez": {},
	// English
	"the": {}, "an": {},
	"and": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "whose": {},
	"how": {}, "when": {}, "where": {}, "why": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "does": {}, "do": {}, "did": {},
}

func isWordRune(r rune) bool {
	return !strings.ContainsRune(" \t\n\r.,;:!?\"'()[]{}«»-–—/\\", r)
}

// Keywords tokenizes a question and keeps only the discriminating tokens:
// stop-words are dropped, as is anything of length <= minDrop runes.
func Keywords(question string, minDrop int) []string {
	fields := strings.FieldsFunc(question, func(r rune) bool { return !isWordRune(r) })

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(f)
		if len([]rune(w)) <= minDrop {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
