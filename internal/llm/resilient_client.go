package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/logging"
	"github.com/acqboard/internal/retry"
)

// ResilientClient wraps a Client with transient-error retry and
// fallback-model substitution. Model-resolution failures walk the
// fallback list in order; transient 429/5xx failures retry the same
// model with linear backoff; everything else returns immediately so
// the caller can degrade.
type ResilientClient struct {
	client         Client
	retryConfig    retry.RetryConfig
	fallbackModels []string
}

// NewResilientClient creates a resilient wrapper around a provider client.
func NewResilientClient(client Client, fallbackModels []string) *ResilientClient {
	return &ResilientClient{
		client:         client,
		retryConfig:    retry.ProviderRetryConfig(),
		fallbackModels: fallbackModels,
	}
}

// GenerateResult carries the response plus what it took to get it.
type GenerateResult struct {
	Response      string
	ModelUsed     string
	Attempts      int
	FellBack      bool
	TotalDuration time.Duration
}

// Generate runs the prompt with retry and model fallback. The
// requested model is tried first; each candidate gets the full
// transient-retry budget before the next one is considered.
func (rc *ResilientClient) Generate(ctx context.Context, cfg ModelConfig, prompt string) (*GenerateResult, error) {
	start := time.Now()
	runLog := logging.GetCurrentLogger()

	candidates := append([]string{cfg.Model}, rc.fallbackModels...)

	result := &GenerateResult{}
	var lastErr error

	for i, model := range candidates {
		attempt := cfg
		attempt.Model = model

		runLog.LogRequest(model, prompt)

		// Returning nil from the operation ends the retry loop, so a
		// non-retryable error is stashed and reported as terminal.
		var hardErr error
		retryResult := retry.RetryWithBackoffAndReason(ctx, rc.retryConfig, func() (error, string) {
			response, err := rc.client.Generate(ctx, attempt, prompt)
			if err != nil {
				if retry.IsRetryableError(err) {
					return err, err.Error()
				}
				hardErr = err
				return nil, "non_retryable"
			}
			result.Response = response
			return nil, "success"
		}, runLog)

		result.Attempts += retryResult.Attempts

		if hardErr != nil {
			lastErr = hardErr
			runLog.LogError("provider_call", lastErr)
			if !IsModelResolutionError(lastErr) {
				break
			}
			log.Warn().Err(lastErr).Str("model", model).Msg("Model not resolvable, trying next fallback")
			continue
		}

		if retryResult.Success {
			result.ModelUsed = model
			result.FellBack = i > 0
			result.TotalDuration = time.Since(start)
			runLog.LogResponse(model, result.Response)
			if result.FellBack {
				log.Warn().Str("requested", cfg.Model).Str("used", model).Msg("Model fallback substitution applied")
			}
			return result, nil
		}

		lastErr = retryResult.LastError
		runLog.LogError("provider_call", lastErr)

		// Transient budget exhausted; fallback models only help when
		// the model id itself was rejected.
		if !IsModelResolutionError(lastErr) {
			break
		}
		log.Warn().Err(lastErr).Str("model", model).Msg("Model not resolvable, trying next fallback")
	}

	result.TotalDuration = time.Since(start)
	return nil, lastErr
}
