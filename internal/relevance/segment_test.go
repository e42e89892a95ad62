package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "periods exclamation question",
			content: "Première phrase. Deuxième phrase! Troisième phrase? Quatrième",
			want:    []string{"Première phrase.", "Deuxième phrase!", "Troisième phrase?", "Quatrième"},
		},
		{
			name:    "no terminal punctuation",
			content: "un seul fragment sans ponctuation",
			want:    []string{"un seul fragment sans ponctuation"},
		},
		{
			name:    "abbreviation-like dot without space stays joined",
			content: "La version 1.2 est sortie. Elle corrige un bug.",
			want:    []string{"La version 1.2 est sortie.", "Elle corrige un bug."},
		},
		{
			name:    "empty",
			content: "",
			want:    nil,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SplitSentences(c.content))
		})
	}
}

func TestKeywords(t *testing.T) {
	// stop-words and short tokens drop, duplicates collapse
	got := Keywords("Quelle est la météo météo aujourd'hui", 2)
	assert.Equal(t, []string{"météo", "aujourd", "hui"}, got)

	// a higher drop threshold removes the three-rune token too
	got = Keywords("Quelle est la météo aujourd'hui", 3)
	assert.Equal(t, []string{"météo", "aujourd"}, got)

	assert.Empty(t, Keywords("qui est le la", 2))
}

func TestExtractRelevantSegment_RanksDescending(t *testing.T) {
	content := "Un chat dort ici. Le chat noir mange sa gamelle. Le chien aboie."
	got := ExtractRelevantSegment(content, "où est le chat noir")

	// two keyword hits beat one; the stronger sentence leads even though
	// it comes later in the source
	assert.Equal(t, "Le chat noir mange sa gamelle. Un chat dort ici.", got)
}

func TestExtractRelevantSegment_CapsAtThree(t *testing.T) {
	content := "chat un. chat deux. chat trois. chat quatre."
	got := ExtractRelevantSegment(content, "le chat")
	assert.Equal(t, "chat un. chat deux. chat trois.", got)
}

func TestExtractRelevantSegment_FallbackFirstTwo(t *testing.T) {
	content := "Première phrase sans rapport. Deuxième phrase sans rapport. Troisième phrase."
	got := ExtractRelevantSegment(content, "volcan islandais")
	assert.Equal(t, "Première phrase sans rapport. Deuxième phrase sans rapport.", got)
}

func TestExtractRelevantSegment_Empty(t *testing.T) {
	assert.Equal(t, "", ExtractRelevantSegment("", "question"))
}
