package relevance

import (
	"regexp"
	"strings"
)

// HighlightKeywords wraps every occurrence of the question's keywords
// (length > 3, stop-words removed) in a highlight span. One combined
// case-insensitive alternation keeps it a single pass. With no keywords
// left the text comes back untouched.
func HighlightKeywords(text, question string) string {
	keywords := Keywords(question, 3)
	if len(keywords) == 0 {
		return text
	}

	escaped := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		escaped = append(escaped, regexp.QuoteMeta(kw))
	}

	re, err := regexp.Compile("(?i)(" + strings.Join(escaped, "|") + ")")
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, "<mark>$1</mark>")
}
