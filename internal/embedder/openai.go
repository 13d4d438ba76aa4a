// Package embedder provides the OpenAI embedding implementation, on the
// same go-openai SDK internal/llm uses for chat completions rather than
// a hand-rolled HTTP client against the embeddings endpoint.
package embedder

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iasik/orchestrator/internal/errs"
)

// OpenAIEmbedder implements the Provider interface for OpenAI.
type OpenAIEmbedder struct {
	api        *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// NewOpenAIEmbedder creates a new OpenAI embedding provider.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &OpenAIEmbedder{
		api:        openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    timeout,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return results[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts in one call.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w: %w", err, errs.ErrExternalUnavailable)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	// CreateEmbeddings documents data as returned in input order, but
	// sort by Index defensively rather than trusting that.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

// ModelInfo returns information about the current model.
func (o *OpenAIEmbedder) ModelInfo() ModelInfo {
	return ModelInfo{
		Provider:   "openai",
		Model:      o.model,
		Dimensions: o.dimensions,
	}
}

// Health checks if the OpenAI API is accessible.
func (o *OpenAIEmbedder) Health(ctx context.Context) error {
	_, err := o.Embed(ctx, "test")
	if err != nil {
		return fmt.Errorf("OpenAI health check failed: %w", err)
	}
	return nil
}

// Close releases resources (no-op for OpenAI).
func (o *OpenAIEmbedder) Close() error {
	return nil
}
