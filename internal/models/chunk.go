package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SemanticType enumerates the kind of language unit a chunk was cut from.
type SemanticType string

const (
	SemanticNamespace SemanticType = "namespace"
	SemanticClass     SemanticType = "class"
	SemanticInterface SemanticType = "interface"
	SemanticRecord    SemanticType = "record"
	SemanticStruct    SemanticType = "struct"
	SemanticEnum      SemanticType = "enum"
	SemanticMethod    SemanticType = "method"
	SemanticOther     SemanticType = "other"
)

// Chunk is a semantically meaningful, deterministically hashed slice of
// one file.
type Chunk struct {
	ChunkHash    string
	ProjectID    string
	FilePath     string
	StartLine    int
	EndLine      int
	TokenCount   int
	Language     string
	TextHash     string
	Content      string // optional; empty when StoreChunkText is false
	SemanticType SemanticType
	SemanticName string
	ChunkIndex   int
	TotalChunks  int
}

// HashContent returns a stable hex-encoded sha256 digest of content,
// used both as TextHash and as an ingredient of ChunkHash.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ComputeChunkHash computes the deterministic ChunkHash over
// (ProjectId, FilePath, chunk content, StartLine, EndLine), satisfying
// the invariant that identical inputs yield identical hashes.
func ComputeChunkHash(projectID, filePath, content string, startLine, endLine int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00", projectID, filePath, startLine, endLine)
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the Chunk invariants from the data model: StartLine <=
// EndLine and TokenCount within maxTokens plus a small tolerance.
func (c *Chunk) Validate(maxTokens int, tolerance float64) error {
	if c.StartLine > c.EndLine {
		return fmt.Errorf("chunk %s: StartLine %d > EndLine %d", c.ChunkHash, c.StartLine, c.EndLine)
	}
	limit := float64(maxTokens) * (1 + tolerance)
	if float64(c.TokenCount) > limit {
		return fmt.Errorf("chunk %s: TokenCount %d exceeds limit %.0f", c.ChunkHash, c.TokenCount, limit)
	}
	return nil
}
