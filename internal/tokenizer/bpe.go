package tokenizer

import (
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// splitPattern approximates the word/number/punctuation/whitespace
// segmentation used by production BPE tokenizers (a simplified
// cl100k-style split), good enough to give deterministic, stable token
// counts without embedding a real merge-rank table.
var splitPattern = regexp.MustCompile(`[A-Za-z]+|[0-9]+|\s+|[^\sA-Za-z0-9]`)

// BPE is the "accurate" tokenizer variant: it segments text into
// word/number/punctuation/whitespace pieces and assigns each distinct
// piece a stable vocabulary id, built up as pieces are seen. Encode
// results for repeated substrings are served from an LRU cache.
type BPE struct {
	mu    sync.Mutex
	vocab map[string]int
	rev   []string
	cache *lru.Cache[string, []int]
}

func NewBPE() *BPE {
	c, _ := lru.New[string, []int](4096)
	return &BPE{
		vocab: make(map[string]int),
		cache: c,
	}
}

func (b *BPE) Name() string { return "bpe-approx" }

func (b *BPE) segments(text string) []string {
	return splitPattern.FindAllString(text, -1)
}

func (b *BPE) Encode(text string) []int {
	if cached, ok := b.cache.Get(text); ok {
		return cached
	}
	segs := b.segments(text)
	ids := make([]int, 0, len(segs))
	b.mu.Lock()
	for _, s := range segs {
		id, ok := b.vocab[s]
		if !ok {
			id = len(b.rev)
			b.vocab[s] = id
			b.rev = append(b.rev, s)
		}
		ids = append(ids, id)
	}
	b.mu.Unlock()
	b.cache.Add(text, ids)
	return ids
}

func (b *BPE) Decode(ids []int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(b.rev) {
			continue
		}
		sb.WriteString(b.rev[id])
	}
	return sb.String()
}

func (b *BPE) CountTokens(text string) int {
	return len(b.Encode(text))
}

// TruncateToTokenLimit trims text to at most max tokens, re-joining the
// surviving segments so CountTokens(result) <= max holds exactly.
func (b *BPE) TruncateToTokenLimit(text string, max int) string {
	if max <= 0 {
		return ""
	}
	segs := b.segments(text)
	if len(segs) <= max {
		return text
	}
	return strings.Join(segs[:max], "")
}
