package router

import "github.com/iasik/orchestrator/internal/models"

// Reason codes attached to a FileDecision.
const (
	ReasonDirectSendEmpty   = "direct_send_empty"
	ReasonDirectSendSmall   = "direct_send_small"
	ReasonRagChunksMedium   = "rag_chunks_medium"
	ReasonRagChunksOverride = "rag_chunks_large_override"
	ReasonSkippedLargeFile  = "skipped_large_file"
	ReasonSkippedExcluded   = "skipped_excluded_path"
	ReasonSkippedBinary     = "skipped_binary"
	ReasonSkippedReadError  = "skipped_read_error"
	ReasonSkippedEncoding   = "skipped_encoding_error"
	ReasonSkippedNotAllowed = "skipped_extension_not_allowed"
)

// DecideBySize is the File Router's core decision function: deterministic
// and total over every non-negative file size, per spec.md §8 invariant 1.
// Boundary convention: size == DirectSendThresholdBytes classifies as
// RagChunks (the inclusive lower bound of the RAG range), and
// size == RagChunkThresholdBytes also classifies as RagChunks (the
// inclusive upper bound before the skip cliff).
func DecideBySize(size int64, cfg Config) (models.Decision, string) {
	switch {
	case size == 0:
		return models.DecisionDirectSend, ReasonDirectSendEmpty
	case size < cfg.DirectSendThresholdBytes:
		return models.DecisionDirectSend, ReasonDirectSendSmall
	case size <= cfg.RagChunkThresholdBytes:
		return models.DecisionRagChunks, ReasonRagChunksMedium
	case cfg.AllowLargeFiles:
		return models.DecisionRagChunks, ReasonRagChunksOverride
	default:
		return models.DecisionSkipped, ReasonSkippedLargeFile
	}
}
