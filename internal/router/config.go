// Package router classifies project files into direct-send, RAG-chunked,
// or skipped, and produces the preflight estimate that gates approval.
package router

// Config mirrors the Configuration Surface's Rag block (spec.md §6).
type Config struct {
	DirectSendThresholdBytes int64
	RagChunkThresholdBytes   int64
	AllowLargeFiles          bool
	RiskTopK                 int
	RiskThreshold            float64
	ApprovalThresholdTokens  int

	ExcludePaths      []string
	BinaryExtensions  []string

	// AllowedExtensions, when non-empty, restricts routing to files with
	// one of these extensions (lowercase, with leading dot); every other
	// file is skipped. Empty means no restriction. Per-project overrides
	// apply this from the project's own include_extensions list.
	AllowedExtensions []string
}

// DefaultConfig returns the Configuration Surface's documented defaults.
func DefaultConfig() Config {
	return Config{
		DirectSendThresholdBytes: 10240,
		RagChunkThresholdBytes:   204800,
		AllowLargeFiles:          false,
		RiskTopK:                 20,
		RiskThreshold:            0.7,
		ApprovalThresholdTokens:  50000,
		ExcludePaths: []string{
			".git/",
			"vendor/",
			"node_modules/",
			"dist/",
			"build/",
			"bin/",
			"obj/",
		},
		BinaryExtensions: []string{
			".exe", ".dll", ".so", ".dylib", ".bin", ".o", ".a",
			".png", ".jpg", ".jpeg", ".gif", ".ico", ".bmp",
			".zip", ".tar", ".gz", ".7z", ".rar",
			".pdf", ".woff", ".woff2", ".ttf", ".eot",
			".class", ".jar", ".pyc",
		},
	}
}
