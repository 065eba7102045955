package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// ModelConfig contains the generation parameters for a call.
type ModelConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Client is the narrow interface the orchestrators program against.
type Client interface {
	Generate(ctx context.Context, cfg ModelConfig, prompt string) (string, error)
}

// AnthropicClient talks to the Anthropic API through langchaingo. A
// fresh model handle is created per call so the model id can vary
// between calls (profile overrides, fallback substitution).
type AnthropicClient struct {
	apiKey string
}

// NewAnthropicClient reads the API key from the environment.
func NewAnthropicClient() (*AnthropicClient, error) {
	key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not configured")
	}
	return &AnthropicClient{apiKey: key}, nil
}

// Generate runs a single prompt against the configured model.
func (c *AnthropicClient) Generate(ctx context.Context, cfg ModelConfig, prompt string) (string, error) {
	log.Debug().
		Str("model", cfg.Model).
		Int("max_tokens", cfg.MaxTokens).
		Int("prompt_chars", len(prompt)).
		Msg("Creating model handle")

	model, err := anthropic.New(
		anthropic.WithToken(c.apiKey),
		anthropic.WithModel(cfg.Model),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create model handle for %s: %w", cfg.Model, err)
	}

	callOptions := []llms.CallOption{
		llms.WithModel(cfg.Model),
		llms.WithTemperature(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(cfg.MaxTokens))
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, callOptions...)
	if err != nil {
		return "", fmt.Errorf("generation failed for %s: %w", cfg.Model, err)
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("empty response from %s", cfg.Model)
	}
	return response, nil
}

// IsModelResolutionError reports whether the provider rejected the
// model id itself (as opposed to a transient or auth failure). Those
// errors are worth re-trying with a fallback model; nothing else is.
func IsModelResolutionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "400") && !strings.Contains(errStr, "404") {
		return false
	}
	for _, sig := range []string{"model", "not found", "invalid", "unsupported"} {
		if strings.Contains(errStr, sig) {
			return true
		}
	}
	return false
}
