package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightKeywords(t *testing.T) {
	got := HighlightKeywords("La météo est belle, la Météo change vite", "Quelle est la météo")
	assert.Equal(t, "La <mark>météo</mark> est belle, la <mark>Météo</mark> change vite", got)
}

func TestHighlightKeywords_NoKeywords(t *testing.T) {
	// stop-words only: the text must come back untouched
	text := "rien à surligner ici"
	assert.Equal(t, text, HighlightKeywords(text, "qui est le"))
	assert.Equal(t, text, HighlightKeywords(text, ""))
}

func TestHighlightKeywords_RegexMetacharsEscaped(t *testing.T) {
	got := HighlightKeywords("coût total: c++11", "c++11 coût")
	assert.Contains(t, got, "<mark>c++11</mark>")
	assert.Contains(t, got, "<mark>coût</mark>")
}
