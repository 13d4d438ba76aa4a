package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/models"
)

func TestParseFindingsDecodesJSONResponse(t *testing.T) {
	content := `Here is my review:
{"findings":[{"file_path":"main.go","symbol":"run","line_start":10,"line_end":12,"category":"security","severity":"High","description":"unsanitized input","explanation":"user input flows into exec","confidence":0.8,"suggested_fix":"validate input"}],"recommendations":["sanitize all external input"]}
Thanks.`

	findings, recs, err := parseFindings("proj-1", "security", content)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "main.go", findings[0].FilePath)
	assert.Equal(t, 10, findings[0].LineRange.Start)
	assert.Equal(t, []string{"sanitize all external input"}, recs)
}

func TestParseFindingsErrorsOnMalformedJSON(t *testing.T) {
	_, _, err := parseFindings("proj-1", "security", "not json at all")
	assert.Error(t, err)
}

func TestSeverityFromUnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, models.SeverityInfo, severityFrom("unexpected"))
	assert.Equal(t, models.SeverityCritical, severityFrom("critical"))
}

func TestCorrectivePromptQuotesPriorResponseAndParseError(t *testing.T) {
	files := map[string]string{"main.go": "package main"}
	badResponse := "sure, here are my thoughts but no JSON"
	parseErr := errors.New("unexpected end of JSON input")

	prompt := correctivePrompt(files, badResponse, parseErr)

	assert.Contains(t, prompt, "did not satisfy the required JSON schema")
	assert.Contains(t, prompt, parseErr.Error())
	assert.Contains(t, prompt, badResponse)
	assert.Contains(t, prompt, "ONLY the JSON object")
	assert.Contains(t, prompt, "main.go", "corrective prompt must re-state the original file set")
}

func TestCorrectivePromptRepeatedCallsIncludeLatestBadResponse(t *testing.T) {
	files := map[string]string{"a.go": "package a"}
	first := correctivePrompt(files, "not json", errors.New("invalid character 'n'"))
	second := correctivePrompt(files, first, errors.New("invalid character 'Y'"))

	assert.Contains(t, second, "invalid character 'Y'")
	assert.Contains(t, second, first, "each retry must quote the immediately preceding response, not the original")
}
