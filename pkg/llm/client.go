// Package llm implements the plan synthesizer and plan validator (spec.md
// §4.6, §4.7): turning a natural-language intent plus database schemas into
// a QueryPlan, and reviewing a single query for safety before execution.
// It is grounded on the original Python implementation's core/gemini.py,
// carried into Go against github.com/anthropics/anthropic-sdk-go since the
// teacher repo has no model-integration code of its own to imitate and
// kubernaut (the only example repo whose go.mod lists the SDK) never
// reaches it from real source either — this package is this module's first
// concrete user of the dependency.
package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dbrevel/queryplane/internal/apperrors"
)

// Client is the minimal surface the synthesizer and validator need from a
// model backend, kept narrow so a fake can stand in for tests.
type Client interface {
	// Generate sends a single-turn prompt under the given model ID and
	// returns the concatenated text of the response.
	Generate(ctx context.Context, modelID string, prompt string, params GenerationParams) (string, error)
}

// GenerationParams mirrors gemini.py's
// GenerateContentConfig(temperature=0.1, top_p=0.95, top_k=40, max_output_tokens=8192).
type GenerationParams struct {
	Temperature float64
	TopP        float64
	TopK        int64
	MaxTokens   int64
}

// DefaultGenerationParams matches the fixed generation parameters the
// original implementation uses for every plan-synthesis and validation call.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{Temperature: 0.1, TopP: 0.95, TopK: 40, MaxTokens: 8192}
}

// AnthropicClient adapts anthropic-sdk-go to the Client interface.
type AnthropicClient struct {
	api anthropic.Client
}

// NewAnthropicClient constructs a Client backed by the Anthropic API. apiKey
// may be empty, in which case the SDK falls back to the ANTHROPIC_API_KEY
// environment variable, the same env-first convention the teacher's
// getEnv-family config helpers use throughout server/config.go.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicClient{api: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Generate(ctx context.Context, modelID string, prompt string, params GenerationParams) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   params.MaxTokens,
		Temperature: anthropic.Float(params.Temperature),
		TopP:        anthropic.Float(params.TopP),
		TopK:        anthropic.Int(params.TopK),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperrors.New(apperrors.ModelTransport, "llm.AnthropicClient.Generate", err)
	}

	if len(msg.Content) == 0 {
		return "", apperrors.New(apperrors.ModelTransport, "llm.AnthropicClient.Generate", errors.New("response has no candidates"))
	}

	text := ""
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", apperrors.New(apperrors.ModelTransport, "llm.AnthropicClient.Generate", errors.New("response has no text content"))
	}
	return text, nil
}
