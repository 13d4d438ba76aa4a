package router

import (
	"path/filepath"
	"strings"
)

// isExcludedPath reports whether path matches one of cfg's exclude
// patterns, generalizing the project-level ShouldExcludePath check to
// the router's global exclude rules.
func isExcludedPath(path string, cfg Config) bool {
	for _, pattern := range cfg.ExcludePaths {
		if strings.HasPrefix(path, pattern) {
			return true
		}
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
		if strings.HasSuffix(pattern, "/") && strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// isAllowedExtension reports whether path's extension is in cfg's
// AllowedExtensions allow-list. An empty allow-list permits everything.
func isAllowedExtension(path string, cfg Config) bool {
	if len(cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// isBinaryExtension reports whether path's extension is a known binary
// format that the router should never attempt to send to an LLM or chunk.
func isBinaryExtension(path string, cfg Config) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, b := range cfg.BinaryExtensions {
		if ext == b {
			return true
		}
	}
	return false
}

// looksBinaryContent is a cheap NUL-byte heuristic for content that
// slipped past extension-based detection (e.g. an extensionless binary).
func looksBinaryContent(sample []byte) bool {
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}
