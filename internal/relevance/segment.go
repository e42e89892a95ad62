package relevance

import (
	"sort"
	"strings"
	"unicode"
)

const (
	maxSegmentSentences = 3
	fallbackSentences   = 2
)

// SplitSentences cuts content at `.`, `!` or `?` followed by whitespace.
// The trailing chunk counts as a sentence even without closing punctuation.
func SplitSentences(content string) []string {
	rs := []rune(content)
	var out []string
	start := 0
	for i := 0; i < len(rs)-1; i++ {
		if (rs[i] == '.' || rs[i] == '!' || rs[i] == '?') && unicode.IsSpace(rs[i+1]) {
			if s := strings.TrimSpace(string(rs[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// sentenceScore counts how many question keywords the sentence contains,
// case-insensitive substring match.
func sentenceScore(sentence string, keywords []string) int {
	low := strings.ToLower(sentence)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(low, kw) {
			n++
		}
	}
	return n
}

// ExtractRelevantSegment picks the up-to-3 sentences of content that best
// match the question's keywords, concatenated in descending-score order.
// The selection is deliberately not re-sorted back to source order, the
// strongest hit leads. When no sentence matches at all, the first two
// sentences stand in.
func ExtractRelevantSegment(content, question string) string {
	sentences := SplitSentences(content)
	if len(sentences) == 0 {
		return ""
	}

	keywords := Keywords(question, 2)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		if sc := sentenceScore(s, keywords); sc > 0 {
			ranked = append(ranked, scored{idx: i, score: sc})
		}
	}

	if len(ranked) == 0 {
		n := fallbackSentences
		if n > len(sentences) {
			n = len(sentences)
		}
		return strings.Join(sentences[:n], " ")
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxSegmentSentences {
		ranked = ranked[:maxSegmentSentences]
	}

	parts := make([]string, 0, len(ranked))
	for _, r := range ranked {
		parts = append(parts, sentences[r.idx])
	}
	return strings.Join(parts, " ")
}
