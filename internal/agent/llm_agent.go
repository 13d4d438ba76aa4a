package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/llm"
	"github.com/iasik/orchestrator/internal/models"
)

// defaultMaxSchemaRetries mirrors spec.md §7's SchemaInvalid handling:
// a corrective prompt is attempted up to MaxRetries (default 3) before
// the agent's contribution is given up on for this run.
const defaultMaxSchemaRetries = 3

// LLMAgent is an Analysis Agent backed by an llm.Client: it prompts the
// model with the working directory's source files and a category-
// specific system prompt, then parses the model's JSON findings.
type LLMAgent struct {
	name              string
	agentType         string
	systemPrompt      string
	minConfidence     float64
	allowedCategories []string
	maxFindings       int
	maxFilesScanned   int
	maxFileBytes      int64
	maxSchemaRetries  int

	client     *llm.Client
	readSource func(workingDirectory string, maxFiles int, maxBytes int64) (map[string]string, error)
}

// LLMAgentOption configures an LLMAgent.
type LLMAgentOption func(*LLMAgent)

// WithMinConfidence sets the guardrail confidence floor.
func WithMinConfidence(c float64) LLMAgentOption {
	return func(a *LLMAgent) { a.minConfidence = c }
}

// WithAllowedCategories restricts findings to the given categories.
func WithAllowedCategories(categories ...string) LLMAgentOption {
	return func(a *LLMAgent) { a.allowedCategories = categories }
}

// WithMaxFindings caps how many findings the guardrail layer keeps.
func WithMaxFindings(n int) LLMAgentOption {
	return func(a *LLMAgent) { a.maxFindings = n }
}

// WithScanLimits bounds how much source the agent reads per run, so one
// agent invocation can't itself exceed the memory budget.
func WithScanLimits(maxFiles int, maxBytes int64) LLMAgentOption {
	return func(a *LLMAgent) { a.maxFilesScanned = maxFiles; a.maxFileBytes = maxBytes }
}

// WithMaxSchemaRetries overrides how many corrective-prompt retries the
// agent attempts after a response fails schema validation.
func WithMaxSchemaRetries(n int) LLMAgentOption {
	return func(a *LLMAgent) { a.maxSchemaRetries = n }
}

// NewLLMAgent builds a named Analysis Agent. systemPrompt establishes
// the agent's lens (security, performance, style, ...); the agent
// always asks the model to respond as a JSON findings array.
func NewLLMAgent(name, agentType, systemPrompt string, client *llm.Client, opts ...LLMAgentOption) *LLMAgent {
	a := &LLMAgent{
		name: name, agentType: agentType, systemPrompt: systemPrompt,
		minConfidence: 0.5, maxFindings: 20,
		maxFilesScanned: 40, maxFileBytes: 32 * 1024,
		maxSchemaRetries: defaultMaxSchemaRetries,
		client:           client,
		readSource:       readSourceFiles,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LLMAgent) Name() string               { return a.name }
func (a *LLMAgent) Type() string                { return a.agentType }
func (a *LLMAgent) MinConfidence() float64      { return a.minConfidence }
func (a *LLMAgent) AllowedCategories() []string { return a.allowedCategories }
func (a *LLMAgent) MaxFindings() int            { return a.maxFindings }

// Analyze reads a bounded sample of source under workingDirectory,
// prompts the model, and parses its JSON findings array. A response
// that fails schema validation is retried with a corrective prompt up
// to maxSchemaRetries times before giving up as ErrSchemaInvalid.
func (a *LLMAgent) Analyze(ctx context.Context, projectID, workingDirectory string) ([]models.ReviewFinding, []string, error) {
	files, err := a.readSource(workingDirectory, a.maxFilesScanned, a.maxFileBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("agent %s: read source: %w", a.name, err)
	}
	if len(files) == 0 {
		return nil, nil, nil
	}

	prompt := buildUserPrompt(files)
	var lastParseErr error
	for attempt := 0; attempt <= a.maxSchemaRetries; attempt++ {
		resp, err := a.client.Analyze(ctx, llm.Request{
			SystemPrompt: a.systemPrompt,
			UserPrompt:   prompt,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("agent %s: analyze: %w", a.name, err)
		}

		findings, recs, parseErr := parseFindings(projectID, a.agentType, resp.Content)
		if parseErr == nil {
			return findings, recs, nil
		}
		lastParseErr = parseErr
		prompt = correctivePrompt(files, resp.Content, parseErr)
	}

	return nil, nil, fmt.Errorf("agent %s: %w: %v", a.name, errs.ErrSchemaInvalid, lastParseErr)
}

// correctivePrompt re-states the request, quoting the model's invalid
// response and the validation error, asking it to return strictly
// conforming JSON on the retry.
func correctivePrompt(files map[string]string, badResponse string, parseErr error) string {
	var b strings.Builder
	b.WriteString("Your previous response did not satisfy the required JSON schema ")
	fmt.Fprintf(&b, "(%v). Respond again with ONLY the JSON object, no prose.\n\n", parseErr)
	b.WriteString("Previous response:\n")
	b.WriteString(badResponse)
	b.WriteString("\n\n")
	b.WriteString(buildUserPrompt(files))
	return b.String()
}

func buildUserPrompt(files map[string]string) string {
	var b strings.Builder
	b.WriteString("Review the following files and report findings as a JSON object ")
	b.WriteString(`{"findings":[{"file_path":"","symbol":"","line_start":0,"line_end":0,"category":"","severity":"Low|Medium|High|Critical|Info","description":"","explanation":"","confidence":0.0,"suggested_fix":""}],"recommendations":[""]}`)
	b.WriteString("\n\n")
	for path, content := range files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", path, content)
	}
	return b.String()
}

type llmFinding struct {
	FilePath     string  `json:"file_path"`
	Symbol       string  `json:"symbol"`
	LineStart    int     `json:"line_start"`
	LineEnd      int     `json:"line_end"`
	Category     string  `json:"category"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description"`
	Explanation  string  `json:"explanation"`
	Confidence   float64 `json:"confidence"`
	SuggestedFix string  `json:"suggested_fix"`
}

type llmResponse struct {
	Findings        []llmFinding `json:"findings"`
	Recommendations []string     `json:"recommendations"`
}

// parseFindings decodes the model's JSON response. A malformed response
// is not fatal to the run: Analyze retries it with a corrective prompt
// and, once retries are exhausted, returns ErrSchemaInvalid, which the
// orchestrator records in the summary as skipped due to invalid schema.
func parseFindings(projectID, agentType, content string) ([]models.ReviewFinding, []string, error) {
	content = extractJSONObject(content)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, nil, fmt.Errorf("parse model response: %w", err)
	}

	findings := make([]models.ReviewFinding, 0, len(parsed.Findings))
	for _, f := range parsed.Findings {
		rf := models.ReviewFinding{
			ProjectID:    projectID,
			Category:     f.Category,
			Severity:     severityFrom(f.Severity),
			AgentType:    agentType,
			Description:  f.Description,
			Explanation:  f.Explanation,
			FilePath:     f.FilePath,
			Symbol:       f.Symbol,
			SuggestedFix: f.SuggestedFix,
			Confidence:   f.Confidence,
		}
		if f.LineStart > 0 {
			rf.LineRange = &models.LineRange{Start: f.LineStart, End: f.LineEnd}
		}
		findings = append(findings, rf)
	}
	return findings, parsed.Recommendations, nil
}

func severityFrom(s string) models.Severity {
	switch strings.ToLower(s) {
	case "critical":
		return models.SeverityCritical
	case "high":
		return models.SeverityHigh
	case "medium":
		return models.SeverityMedium
	case "low":
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

// extractJSONObject trims any prose a chat model wraps around its JSON,
// returning the substring from the first '{' to the last '}'.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

var sourceExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".php": true, ".py": true, ".java": true, ".rb": true, ".md": true,
}

// readSourceFiles walks workingDirectory, returning up to maxFiles text
// files (each truncated to maxBytes) keyed by their relative path.
func readSourceFiles(workingDirectory string, maxFiles int, maxBytes int64) (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.Walk(workingDirectory, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || len(out) >= maxFiles {
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if int64(len(data)) > maxBytes {
			data = data[:maxBytes]
		}
		rel, relErr := filepath.Rel(workingDirectory, path)
		if relErr != nil {
			rel = path
		}
		out[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
