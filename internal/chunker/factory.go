// Package chunker provides a factory for creating appropriate chunkers.
package chunker

import (
	"path/filepath"
	"strings"

	"github.com/iasik/orchestrator/internal/config"
)

// Factory creates chunkers based on file type and configuration.
type Factory struct {
	goChunker         *GoChunker
	markdownChunker   *MarkdownChunker
	genericChunker    *GenericChunker
	phpChunker        *PHPChunker
	typescriptChunker *TypeScriptChunker
	useSemantic       bool
}

// NewFactory creates a new chunker factory.
func NewFactory(cfg config.ChunkingConfig) *Factory {
	chunkCfg := ChunkingConfig{
		MinTokens:        cfg.MinTokens,
		IdealTokens:      cfg.IdealTokens,
		MaxTokens:        cfg.MaxTokens,
		OverlapTokens:    cfg.OverlapTokens,
		MergeSmallChunks: cfg.MergeSmallChunks,
	}

	return &Factory{
		goChunker:         NewGoChunker(chunkCfg),
		markdownChunker:   NewMarkdownChunker(chunkCfg),
		genericChunker:    NewGenericChunker(chunkCfg),
		phpChunker:        NewPHPChunker(chunkCfg),
		typescriptChunker: NewTypeScriptChunker(chunkCfg),
		useSemantic:       cfg.UseSemanticSplitting,
	}
}

// GetChunker returns the appropriate chunker for a file based on
// extension. When semantic splitting is disabled, every file goes
// through the generic sliding-window chunker regardless of language.
func (f *Factory) GetChunker(filePath string) Chunker {
	if !f.useSemantic {
		return f.genericChunker
	}
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".go":
		return f.goChunker
	case ".md", ".markdown":
		return f.markdownChunker
	case ".php":
		return f.phpChunker
	case ".ts", ".tsx", ".js", ".jsx":
		return f.typescriptChunker
	default:
		return f.genericChunker
	}
}

// GetChunkerByStrategy returns a chunker by strategy name.
func (f *Factory) GetChunkerByStrategy(strategy string) Chunker {
	switch strategy {
	case "function":
		return f.goChunker
	case "heading":
		return f.markdownChunker
	case "php":
		return f.phpChunker
	case "typescript":
		return f.typescriptChunker
	case "fixed", "file":
		return f.genericChunker
	default:
		return f.genericChunker
	}
}

// DetectLanguage detects the programming language from file extension.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))

	languages := map[string]string{
		".go":       "go",
		".md":       "markdown",
		".markdown": "markdown",
		".py":       "python",
		".js":       "javascript",
		".ts":       "typescript",
		".jsx":      "javascript",
		".tsx":      "typescript",
		".java":     "java",
		".rs":       "rust",
		".rb":       "ruby",
		".php":      "php",
		".c":        "c",
		".cpp":      "cpp",
		".h":        "c",
		".hpp":      "cpp",
		".cs":       "csharp",
		".swift":    "swift",
		".kt":       "kotlin",
		".scala":    "scala",
		".sql":      "sql",
		".sh":       "shell",
		".bash":     "shell",
		".zsh":      "shell",
		".yaml":     "yaml",
		".yml":      "yaml",
		".json":     "json",
		".xml":      "xml",
		".html":     "html",
		".css":      "css",
		".scss":     "scss",
		".less":     "less",
		".vue":      "vue",
		".svelte":   "svelte",
	}

	if lang, ok := languages[ext]; ok {
		return lang
	}
	return "text"
}

// ExtractModule extracts module/package name from file path.
func ExtractModule(filePath string) string {
	dir := filepath.Dir(filePath)
	if dir == "." {
		return ""
	}

	// Use the parent directory as module name
	parts := strings.Split(dir, string(filepath.Separator))
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}
