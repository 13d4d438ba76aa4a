package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/models"
)

func testFactory(maxTokens, overlap, minTokens int, semantic bool) *Factory {
	cfg := ChunkingConfig{
		MinTokens:        minTokens,
		IdealTokens:      maxTokens / 2,
		MaxTokens:        maxTokens,
		OverlapTokens:    overlap,
		MergeSmallChunks: true,
	}
	return &Factory{
		goChunker:         NewGoChunker(cfg),
		markdownChunker:   NewMarkdownChunker(cfg),
		genericChunker:    NewGenericChunker(cfg),
		phpChunker:        NewPHPChunker(cfg),
		typescriptChunker: NewTypeScriptChunker(cfg),
		useSemantic:       semantic,
	}
}

func TestEngineSkipsEmptyFile(t *testing.T) {
	eng := NewEngine(testFactory(800, 200, 50, true))
	chunks, err := eng.ChunkFile("empty.go", "   \n  ", Options{ProjectID: "p1", MaxChunkTokens: 800})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEngineDeterministicHashes(t *testing.T) {
	eng := NewEngine(testFactory(800, 200, 10, true))
	content := "package main\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n"
	opts := Options{ProjectID: "p1", MaxChunkTokens: 800, OverlapTokens: 200, MinChunkTokens: 10, UseSemanticSplitting: true, StoreChunkText: true}

	first, err := eng.ChunkFile("main.go", content, opts)
	require.NoError(t, err)
	second, err := eng.ChunkFile("main.go", content, opts)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkHash, second[i].ChunkHash)
		assert.LessOrEqual(t, first[i].StartLine, first[i].EndLine)
	}
}

func TestEngineSplitsOversizedUnit(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\nfunc Big() {\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "\t_ = %d\n", i)
	}
	b.WriteString("}\n")

	eng := NewEngine(testFactory(50, 10, 5, true))
	chunks, err := eng.ChunkFile("big.go", b.String(), Options{
		ProjectID: "p1", MaxChunkTokens: 50, OverlapTokens: 10, MinChunkTokens: 5,
		UseSemanticSplitting: true,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, 60) // max + small tolerance
		assert.Equal(t, "Big", c.SemanticName)
	}
}

func TestEngineChunkStrategyOverridesExtensionDetection(t *testing.T) {
	// a .txt file has no registered extension mapping, so auto-detection
	// falls back to the generic chunker; an explicit ChunkStrategy must
	// still route it through the named strategy's chunker.
	eng := NewEngine(testFactory(800, 200, 1, true))
	content := "package main\nfunc F() {}\n"

	chunks, err := eng.ChunkFile("snippet.txt", content, Options{
		ProjectID: "p1", MaxChunkTokens: 800, MinChunkTokens: 1,
		ChunkStrategy: "function",
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, models.SemanticMethod, chunks[0].SemanticType)
	assert.Equal(t, "F", chunks[0].SemanticName)
}

func TestEngineStoreChunkTextToggle(t *testing.T) {
	eng := NewEngine(testFactory(800, 200, 1, true))
	content := "package main\nfunc F() {}\n"
	chunks, err := eng.ChunkFile("f.go", content, Options{ProjectID: "p1", MaxChunkTokens: 800, MinChunkTokens: 1, UseSemanticSplitting: true, StoreChunkText: false})
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Empty(t, c.Content)
		assert.NotEmpty(t, c.TextHash)
	}
}
