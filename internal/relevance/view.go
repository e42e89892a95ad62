package relevance

import (
	"sort"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/rag"
)

// Tier buckets a relevance score for badge coloring. Purely presentational.
type Tier string

const (
	TierHigh     Tier = "high"
	TierRelevant Tier = "relevant"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
)

func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierHigh
	case score >= 60:
		return TierRelevant
	case score >= 40:
		return TierModerate
	default:
		return TierLow
	}
}

const blobSegmentRunes = 200

// Normalize converts whatever the backend returned into a uniform item list.
// A single opaque blob (older backends without native scoring) becomes one
// item scored 100 whose segment is the first 200 characters, so the rest of
// the pipeline never branches on response shape.
func Normalize(items []rag.ContextItem, blob string) conversation.ContextItems {
	if len(items) > 0 {
		out := make(conversation.ContextItems, 0, len(items))
		for _, it := range items {
			out = append(out, conversation.ContextItem{
				Content: it.Content,
				Score:   it.Score,
			})
		}
		return out
	}

	if blob == "" {
		return nil
	}

	segment := blob
	if rs := []rune(blob); len(rs) > blobSegmentRunes {
		segment = string(rs[:blobSegmentRunes])
	}
	return conversation.ContextItems{{
		Content:         blob,
		Score:           100,
		RelevantSegment: segment,
	}}
}

// Excerpt is one context item prepared for display: both the condensed
// segment view and the full view, keywords already highlighted.
type Excerpt struct {
	Index       int    `json:"index"`
	Score       int    `json:"score"`
	Tier        Tier   `json:"tier"`
	Segment     string `json:"segment"`
	SegmentHTML string `json:"segmentHtml"`
	FullHTML    string `json:"fullHtml"`
	Expanded    bool   `json:"expanded"`
}

// View is a message's rendered context: the top-scored excerpt shown
// expanded by default, the rest behind a "show N more excerpts" toggle.
type View struct {
	MessageID   string    `json:"messageId"`
	Primary     *Excerpt  `json:"primary,omitempty"`
	Others      []Excerpt `json:"others,omitempty"`
	HiddenCount int       `json:"hiddenCount"`
}

// BuildView ranks items descending by score and renders each one. It also
// fills in missing RelevantSegments on the returned items so callers can
// persist them; segment extraction runs at most once per item.
func BuildView(messageID, question string, items conversation.ContextItems) (View, conversation.ContextItems) {
	ranked := make(conversation.ContextItems, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	excerpts := make([]Excerpt, 0, len(ranked))
	for i := range ranked {
		if ranked[i].RelevantSegment == "" {
			ranked[i].RelevantSegment = ExtractRelevantSegment(ranked[i].Content, question)
		}
		excerpts = append(excerpts, Excerpt{
			Index:       i,
			Score:       ranked[i].Score,
			Tier:        TierFor(ranked[i].Score),
			Segment:     ranked[i].RelevantSegment,
			SegmentHTML: HighlightKeywords(ranked[i].RelevantSegment, question),
			FullHTML:    HighlightKeywords(ranked[i].Content, question),
		})
	}

	v := View{MessageID: messageID}
	if len(excerpts) > 0 {
		v.Primary = &excerpts[0]
		v.Others = excerpts[1:]
		v.HiddenCount = len(excerpts) - 1
	}
	return v, ranked
}
