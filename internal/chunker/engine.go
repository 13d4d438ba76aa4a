package chunker

import (
	"strings"

	"github.com/iasik/orchestrator/internal/models"
)

// Options is the spec-facing chunking configuration: a project id, the
// token bounds, and the semantic/storage toggles.
type Options struct {
	ProjectID            string
	MaxChunkTokens       int
	OverlapTokens        int
	MinChunkTokens       int
	UseSemanticSplitting bool
	StoreChunkText       bool

	// ChunkStrategy, when set, names an explicit strategy
	// ("function"|"heading"|"php"|"typescript"|"fixed"|"file") to use for
	// this file instead of auto-detecting by extension — the per-project
	// override from a project's configs/projects/<id>.yaml
	// chunking.code.strategy / chunking.markdown.strategy fields.
	ChunkStrategy string
}

// Engine wraps the per-language Factory and converts its output into
// models.Chunk, enforcing the token-bound and hashing invariants that
// the teacher's chunkers don't know about on their own: oversized
// semantic units are split into an overlapping sliding window within
// the unit, and chunks below MinChunkTokens are dropped.
type Engine struct {
	factory *Factory
}

// NewEngine builds an Engine over factory, used purely to select
// chunkers by extension or strategy; per-call Options carry the
// spec-facing bounds.
func NewEngine(factory *Factory) *Engine {
	return &Engine{factory: factory}
}

// ChunkFile splits one file's content into models.Chunk values honoring
// opts. Returns nil, nil for empty content (skip empty files).
func (e *Engine) ChunkFile(path, content string, opts Options) ([]models.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	meta := FileMetadata{
		FilePath:  path,
		Language:  DetectLanguage(path),
		Module:    ExtractModule(path),
		ProjectID: opts.ProjectID,
	}

	var raw []Chunk
	var err error
	switch {
	case opts.ChunkStrategy != "":
		raw, err = e.factory.GetChunkerByStrategy(opts.ChunkStrategy).Chunk([]byte(content), meta)
	case opts.UseSemanticSplitting:
		raw, err = e.factory.GetChunker(path).Chunk([]byte(content), meta)
	default:
		raw, err = e.factory.genericChunker.Chunk([]byte(content), meta)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Chunk, 0, len(raw))
	for _, c := range raw {
		out = append(out, e.materialize(c, opts)...)
	}
	return dropSmall(out, opts.MinChunkTokens), nil
}

// materialize converts one teacher Chunk into one or more models.Chunk,
// splitting within the unit (preserving SemanticType/SemanticName) when
// it exceeds MaxChunkTokens.
func (e *Engine) materialize(c Chunk, opts Options) []models.Chunk {
	semType, semName := classify(c)

	if c.TokenCount <= opts.MaxChunkTokens || opts.MaxChunkTokens <= 0 {
		return []models.Chunk{e.build(c.FilePath, c.Content, c.StartLine, c.EndLine, c.Language,
			semType, semName, 0, 1, opts)}
	}

	lines := strings.Split(c.Content, "\n")
	windows := slidingWindowLines(lines, opts.MaxChunkTokens, opts.OverlapTokens, EstimateTokens)
	result := make([]models.Chunk, 0, len(windows))
	for i, w := range windows {
		startLine := c.StartLine + w.Start - 1
		endLine := c.StartLine + w.End - 1
		result = append(result, e.build(c.FilePath, w.Content, startLine, endLine, c.Language,
			semType, semName, i, len(windows), opts))
	}
	return result
}

func (e *Engine) build(path, content string, startLine, endLine int, language string,
	semType models.SemanticType, semName string, idx, total int, opts Options) models.Chunk {
	hash := models.ComputeChunkHash(opts.ProjectID, path, content, startLine, endLine)
	mc := models.Chunk{
		ChunkHash:    hash,
		ProjectID:    opts.ProjectID,
		FilePath:     path,
		StartLine:    startLine,
		EndLine:      endLine,
		TokenCount:   EstimateTokens(content),
		Language:     language,
		TextHash:     models.HashContent(content),
		SemanticType: semType,
		SemanticName: semName,
		ChunkIndex:   idx,
		TotalChunks:  total,
	}
	if opts.StoreChunkText {
		mc.Content = content
	}
	return mc
}

// classify maps a teacher SymbolType onto the spec's SemanticType enum.
func classify(c Chunk) (models.SemanticType, string) {
	switch c.SymbolType {
	case "namespace":
		return models.SemanticNamespace, c.Symbol
	case "class":
		return models.SemanticClass, c.Symbol
	case "interface":
		return models.SemanticInterface, c.Symbol
	case "record":
		return models.SemanticRecord, c.Symbol
	case "struct":
		return models.SemanticStruct, c.Symbol
	case "enum":
		return models.SemanticEnum, c.Symbol
	case "method", "function":
		return models.SemanticMethod, c.Symbol
	default:
		return models.SemanticOther, c.Symbol
	}
}

func dropSmall(chunks []models.Chunk, minTokens int) []models.Chunk {
	if minTokens <= 0 {
		return chunks
	}
	out := chunks[:0]
	for _, c := range chunks {
		if c.TokenCount >= minTokens || c.TotalChunks == 1 {
			out = append(out, c)
		}
	}
	return out
}
