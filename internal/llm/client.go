package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/resilience"
)

// FinishReason mirrors spec.md §4.4's three outcomes.
type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Request is one completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Response is one completion response.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	FinishReason     FinishReason
}

func (r Request) withDefaults() Request {
	if r.Temperature == 0 {
		r.Temperature = 0.3
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = 4096
	}
	return r
}

// Option configures a Client, following the functional-options idiom
// the corpus uses for its semantic providers.
type Option func(*Client)

// WithTimeoutStrategy overrides the default adaptive timeout strategy.
func WithTimeoutStrategy(t TimeoutStrategy) Option {
	return func(c *Client) { c.timeouts = t }
}

// WithPipeline overrides the resilience pipeline the client calls through.
func WithPipeline(p *resilience.Pipeline) Option {
	return func(c *Client) { c.pipeline = p }
}

// Client is the LLM provider: Analyze / AnalyzeStreaming over an
// OpenAI-shaped chat completion API, matching the corpus's only
// concrete LLM integration (leefowlercu-agentic-memorizer's
// OpenAISemanticProvider) generalized to the orchestrator's contract.
type Client struct {
	api      *openai.Client
	model    string
	timeouts TimeoutStrategy
	pipeline *resilience.Pipeline
}

// New builds a Client for apiKey/model, applying opts.
func New(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		api:      openai.NewClient(apiKey),
		model:    model,
		timeouts: DefaultTimeoutStrategy(),
		pipeline: resilience.DefaultRegistry().LLM,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsAvailable reports whether the client has the configuration needed to call out.
func (c *Client) IsAvailable() bool {
	return c.api != nil
}

// Analyze performs one non-streaming completion under the adaptive
// timeout and the LLM resilience pipeline.
func (c *Client) Analyze(ctx context.Context, req Request) (Response, error) {
	req = req.withDefaults()

	var resp Response
	err := c.pipeline.Do(ctx, func(pctx context.Context, attempt int) error {
		timeout := c.timeouts.AdaptiveTimeout(req.MaxTokens, false, attempt)
		callCtx, cancel := context.WithTimeout(pctx, timeout)
		defer cancel()

		start := time.Now()
		out, callErr := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: float32(req.Temperature),
			MaxTokens:   req.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
		})
		elapsed := time.Since(start)

		if callErr != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("llm analyze after %s (requested %s, tokens %d): %w",
					elapsed, timeout, req.MaxTokens, errs.ErrNonStreamingTimeout)
			}
			return callErr
		}
		if len(out.Choices) == 0 {
			return fmt.Errorf("llm analyze: empty choices: %w", errs.ErrFatal)
		}
		choice := out.Choices[0]
		resp = Response{
			Content:          choice.Message.Content,
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			Duration:         elapsed,
			FinishReason:     mapFinishReason(string(choice.FinishReason)),
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// AnalyzeStreaming performs a streaming completion, invoking onChunk
// for each incremental piece of content. On a streaming timeout, if
// EnableGracefulDegradation is set, the partial content accumulated so
// far is returned with FinishReason=length instead of an error.
func (c *Client) AnalyzeStreaming(ctx context.Context, req Request, onChunk func(string)) (Response, error) {
	req = req.withDefaults()

	var resp Response
	err := c.pipeline.Do(ctx, func(pctx context.Context, attempt int) error {
		timeout := c.timeouts.AdaptiveTimeout(req.MaxTokens, true, attempt)
		callCtx, cancel := context.WithTimeout(pctx, timeout)
		defer cancel()

		start := time.Now()
		stream, streamErr := c.api.CreateChatCompletionStream(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: float32(req.Temperature),
			MaxTokens:   req.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
		})
		if streamErr != nil {
			return streamErr
		}
		defer stream.Close()

		var content string
		finish := FinishCompleted
		for {
			chunk, recvErr := stream.Recv()
			if recvErr != nil {
				if isStreamDone(recvErr) {
					break
				}
				if callCtx.Err() == context.DeadlineExceeded {
					if c.timeouts.EnableGracefulDegradation {
						finish = FinishLength
						break
					}
					return fmt.Errorf("llm stream after %s (requested %s, tokens %d): %w",
						time.Since(start), timeout, req.MaxTokens, errs.ErrStreamingTimeoutPartial)
				}
				return recvErr
			}
			if len(chunk.Choices) > 0 {
				delta := chunk.Choices[0].Delta.Content
				if delta != "" {
					content += delta
					if onChunk != nil {
						onChunk(delta)
					}
				}
				if fr := string(chunk.Choices[0].FinishReason); fr != "" {
					finish = mapFinishReason(fr)
				}
			}
		}

		resp = Response{
			Content:      content,
			Duration:     time.Since(start),
			FinishReason: finish,
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func mapFinishReason(s string) FinishReason {
	switch s {
	case "stop", "":
		return FinishCompleted
	case "length":
		return FinishLength
	default:
		return FinishError
	}
}

// isStreamDone reports whether a Recv error is the sentinel end-of-stream.
func isStreamDone(err error) bool {
	return err != nil && err.Error() == "EOF"
}
