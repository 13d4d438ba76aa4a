package tokenizer

import "strings"

// Heuristic approximates token count at ~4 characters per token, the
// same ratio the teacher's chunker.EstimateTokens uses. It never reads
// an actual vocabulary, so Encode/Decode are lossy placeholders: Encode
// returns one synthetic id per estimated token, Decode cannot recover
// original text and returns the empty string for decoded ranges it does
// not recognize.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return "heuristic-4cpt" }

func (h *Heuristic) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func (h *Heuristic) Encode(text string) []int {
	n := h.CountTokens(text)
	ids := make([]int, n)
	for i := range ids {
		i64 := i
		ids[i] = i64
	}
	return ids
}

func (h *Heuristic) Decode(ids []int) string {
	// The heuristic has no vocabulary to invert; callers that need
	// round-trip text should retain the original alongside token ids.
	return ""
}

// TruncateToTokenLimit trims text so CountTokens(result) <= max,
// preferring a whitespace boundary near the cut point.
func (h *Heuristic) TruncateToTokenLimit(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if h.CountTokens(text) <= max {
		return text
	}
	limitChars := max * 4
	if limitChars >= len(text) {
		return text
	}
	cut := limitChars
	if idx := strings.LastIndexAny(text[:cut], " \n\t"); idx > 0 {
		cut = idx
	}
	out := text[:cut]
	for h.CountTokens(out) > max && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}
