package decision

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// Anthropic is a Provider backed by the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
}

// AnthropicConfig contains settings for the Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, ANTHROPIC_API_KEY is used.
	APIKey string
	// Model is the model to use; defaults to Claude Sonnet 4.
	Model string
}

// NewAnthropic creates an Anthropic-backed provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// call sends one prompt and returns the concatenated text reply plus usage.
func (a *Anthropic) call(ctx context.Context, prompt string) (string, Usage, error) {
	start := time.Now()

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: "You are a JSON-only response agent. Always respond with valid JSON."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", Usage{Model: string(a.model)}, fmt.Errorf("messages API: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	usage := Usage{
		Model:     string(a.model),
		Tokens:    resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Cost:      EstimateCost(string(a.model), resp.Usage.InputTokens, resp.Usage.OutputTokens),
		LatencyMS: time.Since(start).Milliseconds(),
	}
	return text.String(), usage, nil
}

// Decide sends the reasoning prompt and parses the structured decision.
// Transport failures return an error for the caller to substitute with
// Fallback; malformed replies degrade inside ParseDecision.
func (a *Anthropic) Decide(ctx context.Context, prompt string) (Decision, Usage, error) {
	text, usage, err := a.call(ctx, prompt)
	if err != nil {
		return Decision{}, usage, err
	}
	return ParseDecision(text), usage, nil
}

// Decompose classifies a task against the available agents.
func (a *Anthropic) Decompose(ctx context.Context, task string, agents []string) (Decomposition, Usage, error) {
	text, usage, err := a.call(ctx, decomposePrompt(task, agents))
	if err != nil {
		return Decomposition{}, usage, err
	}
	return ParseDecomposition(text), usage, nil
}

// Summarize condenses sub-task outcomes into one answer.
func (a *Anthropic) Summarize(ctx context.Context, task string, outcomes []models.SubTaskResult) (string, Usage, error) {
	text, usage, err := a.call(ctx, summarizePrompt(task, outcomes))
	if err != nil {
		return "", usage, err
	}
	return ParseSummary(text), usage, nil
}
