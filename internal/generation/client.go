// Package generation produces explanatory and creative text, calling a
// remote chat completions API when one is configured and falling back to
// deterministic templates otherwise.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cupid-chocolate/giftlab/internal/cache"
	"github.com/cupid-chocolate/giftlab/internal/observability"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 20 * time.Second

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// chatResponse is the subset of the completions payload we read.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	detail := fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		detail += " | " + e.Body
	}
	return detail
}

// Client performs chat completions against the configured provider.
type Client struct {
	httpClient *http.Client
	provider   Provider
	cache      cache.Client
	cacheTTL   time.Duration
	logger     *observability.Logger
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	Provider Provider
	Timeout  time.Duration
	// Cache stores successful completions. Nil disables caching.
	Cache    cache.Client
	CacheTTL time.Duration
	Logger   *observability.Logger
}

// NewClient creates a new chat client. A nil provider behaves like NoProvider.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Provider == nil {
		cfg.Provider = NoProvider{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		provider:   cfg.Provider,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}
}

// Provider returns the provider the client calls.
func (c *Client) Provider() Provider {
	return c.provider
}

// Validator rejects a completion the caller cannot use.
type Validator func(content string) error

// Complete returns the first choice's content. It never contacts the network
// when no provider is configured.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	return c.CompleteValid(ctx, messages, temperature, maxTokens, nil)
}

// CompleteValid is Complete with valid applied to the reply before it is
// cached. Rejected replies are returned as errors and never cached, and a
// cached reply that fails valid counts as a miss.
func (c *Client) CompleteValid(ctx context.Context, messages []Message, temperature float64, maxTokens int, valid Validator) (string, error) {
	if !Configured(c.provider) {
		return "", ErrNoProvider
	}
	if valid == nil {
		valid = func(string) error { return nil }
	}

	req := chatRequest{Messages: messages, Temperature: temperature, MaxTokens: maxTokens}
	key := c.cacheKey(req)
	if c.cache != nil {
		var cached string
		err := cache.GetJSON(ctx, c.cache, key, &cached)
		if err == nil && valid(cached) == nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Generation cache read failed")
		}
	}

	content, err := c.do(ctx, req)
	if err == nil {
		err = valid(content)
	}
	if err != nil {
		c.logger.WithContext(ctx).Debug().
			Str("provider", string(c.provider.Source())).
			Err(err).
			Msg("Remote generation failed")
		return "", err
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, content, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Generation cache write failed")
		}
	}
	return content, nil
}

func (c *Client) do(ctx context.Context, req chatRequest) (string, error) {
	httpReq, err := c.provider.newRequest(ctx, req)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	content := chat.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("response has empty content")
	}
	return content, nil
}

func (c *Client) cacheKey(req chatRequest) string {
	parts := []string{
		c.provider.scope(),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
	}
	for _, m := range req.Messages {
		parts = append(parts, m.Role, m.Content)
	}
	return cache.HashKey("generation", parts...)
}

// trimmed is Complete with surrounding whitespace removed.
func (c *Client) trimmed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	content, err := c.Complete(ctx, messages, temperature, maxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
