package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultReviewModel is used when no model is configured
const DefaultReviewModel = "claude-sonnet-4-5"

// AnthropicReviewer asks Claude whether two test case titles describe the
// same test. It is consulted only for scores inside the ambiguous band,
// so call volume stays low even on large imports.
type AnthropicReviewer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicReviewer creates a reviewer backed by the Anthropic API
func NewAnthropicReviewer(apiKey, model string) *AnthropicReviewer {
	if model == "" {
		model = DefaultReviewModel
	}
	return &AnthropicReviewer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

type reviewVerdict struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Reasoning   string `json:"reasoning"`
}

// Review returns whether the candidate title duplicates the existing one
func (r *AnthropicReviewer) Review(ctx context.Context, candidate, existing string) (bool, string, error) {
	prompt := fmt.Sprintf(`You are reviewing a QA test case catalog for duplicates.

Two titles scored as near-duplicates by string similarity. Decide whether they describe the SAME test (same feature, same scenario, same expected behavior) or merely similar-sounding but distinct tests.

Title A (imported candidate): %q
Title B (existing case): %q

Distinct tests often differ in: the input variant (valid vs invalid), the user role, the platform, or the boundary being probed. Treat those as NOT duplicates.

Respond with JSON only:
{"is_duplicate": true/false, "reasoning": "one sentence"}`, candidate, existing)

	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: 500,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return false, "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		return false, "", err
	}
	return verdict.IsDuplicate, verdict.Reasoning, nil
}

// parseVerdict extracts the JSON object from the response text, tolerating
// surrounding prose or markdown fences
func parseVerdict(text string) (*reviewVerdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in review response: %s", truncate(text, 200))
	}

	var verdict reviewVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}
	return &verdict, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
