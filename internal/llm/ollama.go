package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// OllamaClient talks to a local Ollama server. Every call goes through a
// circuit breaker.
type OllamaClient struct {
	http    *resty.Client
	breaker *CircuitBreaker
	model   string

	maxRetries    int
	retryInterval time.Duration
}

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL defaults to http://localhost:11434.
	BaseURL string

	// Model is used for both completion and embedding calls made by this client.
	Model string

	// Timeout defaults to 30s; generation on CPU is slow.
	Timeout time.Duration

	// MaxRetries bounds retries of transient failures. Zero means 2;
	// negative disables retries.
	MaxRetries int

	// RetryInterval is the first backoff wait, 100ms by default.
	RetryInterval time.Duration
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse carries one embedding per input; we always send one input.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaClient creates a client, applying defaults for empty fields.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 100 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")

	return &OllamaClient{
		http:    client,
		breaker: NewCircuitBreaker("ollama:" + config.Model),
		model:   config.Model,

		maxRetries:    config.MaxRetries,
		retryInterval: config.RetryInterval,
	}
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}

// Complete sends a non-streaming generate request and returns the text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var out generateResponse
		if err := c.post(ctx, "generate", "/api/generate", generateRequest{Model: c.model, Prompt: prompt, Stream: false}, &out); err != nil {
			return nil, err
		}
		return out.Response, nil
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("ollama unavailable: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

// Embed returns the embedding vector for text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		var out embedResponse
		if err := c.post(ctx, "embed", "/api/embed", embedRequest{Model: c.model, Input: text}, &out); err != nil {
			return nil, err
		}
		if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
			return nil, errors.New("ollama embed: empty embedding")
		}
		return out.Embeddings[0], nil
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("ollama unavailable: %w", err)
		}
		return nil, err
	}
	return result.([]float64), nil
}

// post sends body to path and decodes a 2xx reply into out. Transport errors
// and overload replies are retried with exponential backoff; anything else
// fails on the first attempt.
func (c *OllamaClient) post(ctx context.Context, op, path string, body, out any) error {
	attempt := func() error {
		var apiErr ollamaError
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(out).
			SetError(&apiErr).
			Post(path)
		if err != nil {
			err = fmt.Errorf("ollama %s: %w", op, err)
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if resp.IsError() {
			err := fmt.Errorf("ollama %s: status %d: %s", op, resp.StatusCode(), apiErr.Error)
			if !retryableStatus(resp.StatusCode()) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	exp.MaxInterval = 2 * time.Second
	exp.Reset()

	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxRetries > 0 {
		b = backoff.WithMaxRetries(exp, uint64(c.maxRetries))
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Debug().Err(err).Dur("wait", wait).Str("model", c.model).Msg("ollama retry")
	})
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
