// Package chunker provides generic fixed-size chunking for unsupported file types.
package chunker

import (
	"path/filepath"
	"strings"
)

// GenericChunker implements sliding-window chunking, with overlap, for
// any text file lacking a language-specific splitter.
type GenericChunker struct {
	config  ChunkingConfig
	overlap int
}

// NewGenericChunker creates a new generic chunker.
func NewGenericChunker(cfg ChunkingConfig) *GenericChunker {
	return &GenericChunker{config: cfg, overlap: cfg.OverlapTokens}
}

// Name returns the chunker strategy name.
func (g *GenericChunker) Name() string {
	return "fixed"
}

// Chunk splits content into overlapping, token-bounded windows.
func (g *GenericChunker) Chunk(content []byte, metadata FileMetadata) ([]Chunk, error) {
	contentStr := string(content)
	totalTokens := EstimateTokens(contentStr)

	// If content fits in one chunk, return as-is
	if totalTokens <= g.config.MaxTokens {
		return g.singleChunk(contentStr, metadata), nil
	}

	lines := strings.Split(contentStr, "\n")
	windows := slidingWindowLines(lines, g.config.MaxTokens, g.overlap, EstimateTokens)

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, g.createChunk(strings.Split(w.Content, "\n"), w.Start, w.End, metadata))
	}
	return chunks, nil
}

// singleChunk creates a single chunk from the entire content.
func (g *GenericChunker) singleChunk(content string, metadata FileMetadata) []Chunk {
	contentHash := HashContent(content)
	symbol := filepath.Base(metadata.FilePath)

	return []Chunk{{
		ID:          GenerateChunkID(metadata.ProjectID, metadata.FilePath, symbol, contentHash),
		Content:     content,
		Symbol:      symbol,
		SymbolType:  "file",
		StartLine:   1,
		EndLine:     strings.Count(content, "\n") + 1,
		TokenCount:  EstimateTokens(content),
		ContentHash: contentHash,
		FilePath:    metadata.FilePath,
		Language:    metadata.Language,
		Module:      metadata.Module,
		ProjectID:   metadata.ProjectID,
	}}
}

// createChunk creates a chunk from a slice of lines.
func (g *GenericChunker) createChunk(lines []string, startLine, endLine int, metadata FileMetadata) Chunk {
	content := strings.Join(lines, "\n")
	contentHash := HashContent(content)

	// Create symbol name based on line range
	symbol := filepath.Base(metadata.FilePath)
	if startLine > 1 || endLine < strings.Count(content, "\n")+1 {
		symbol = strings.TrimSuffix(symbol, filepath.Ext(symbol))
		symbol = strings.ReplaceAll(symbol, ".", "_")
	}

	return Chunk{
		ID:          GenerateChunkID(metadata.ProjectID, metadata.FilePath, symbol, contentHash),
		Content:     content,
		Symbol:      symbol,
		SymbolType:  "fragment",
		StartLine:   startLine,
		EndLine:     endLine,
		TokenCount:  EstimateTokens(content),
		ContentHash: contentHash,
		FilePath:    metadata.FilePath,
		Language:    metadata.Language,
		Module:      metadata.Module,
		ProjectID:   metadata.ProjectID,
	}
}
