package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cupid-chocolate/giftlab/internal/config"
)

// Defaults applied when a provider is built from partial configuration.
const (
	DefaultAzureAPIVersion = "2024-02-15-preview"
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-4o-mini"
)

// ErrNoProvider is returned when no remote credentials are configured.
var ErrNoProvider = errors.New("no API key configured")

// Provider selects how chat completions are requested. It is one of
// NoProvider, AzureProvider or OpenAIProvider.
type Provider interface {
	// Source is the tag reported for text produced by this provider.
	Source() Source
	// scope identifies the model for response caching.
	scope() string
	newRequest(ctx context.Context, req chatRequest) (*http.Request, error)
}

// NoProvider disables remote generation.
type NoProvider struct{}

// AzureProvider calls an Azure OpenAI deployment.
type AzureProvider struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// OpenAIProvider calls an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewProvider builds the provider selected by cfg. Complete Azure
// credentials win over an OpenAI key.
func NewProvider(cfg config.GenerationConfig) Provider {
	if cfg.AzureConfigured() {
		return AzureProvider{
			Endpoint:   cfg.Azure.Endpoint,
			APIKey:     cfg.Azure.APIKey,
			Deployment: cfg.Azure.Deployment,
			APIVersion: cfg.Azure.APIVersion,
		}
	}
	if cfg.OpenAIConfigured() {
		return OpenAIProvider{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}
	}
	return NoProvider{}
}

// Configured reports whether p can make remote calls.
func Configured(p Provider) bool {
	if p == nil {
		return false
	}
	_, none := p.(NoProvider)
	return !none
}

func (NoProvider) Source() Source { return SourceNone }

func (NoProvider) scope() string { return "none" }

func (NoProvider) newRequest(context.Context, chatRequest) (*http.Request, error) {
	return nil, ErrNoProvider
}

func (p AzureProvider) Source() Source { return SourceAzure }

func (p AzureProvider) scope() string { return "azure:" + p.Deployment }

func (p AzureProvider) newRequest(ctx context.Context, req chatRequest) (*http.Request, error) {
	version := p.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(p.Endpoint, "/"), url.PathEscape(p.Deployment), url.QueryEscape(version))

	body := azureBody{
		Messages:            req.Messages,
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
	}
	httpReq, err := newJSONRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("api-key", p.APIKey)
	return httpReq, nil
}

func (p OpenAIProvider) Source() Source { return SourceOpenAI }

func (p OpenAIProvider) scope() string { return "openai:" + p.model() }

func (p OpenAIProvider) model() string {
	if p.Model == "" {
		return DefaultOpenAIModel
	}
	return p.Model
}

func (p OpenAIProvider) newRequest(ctx context.Context, req chatRequest) (*http.Request, error) {
	base := p.BaseURL
	if base == "" {
		base = DefaultOpenAIBaseURL
	}

	body := openAIBody{
		Model:       p.model(),
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	httpReq, err := newJSONRequest(ctx, strings.TrimRight(base, "/")+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	return httpReq, nil
}

type azureBody struct {
	Messages            []Message `json:"messages"`
	Temperature         float64   `json:"temperature"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
}

type openAIBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

func newJSONRequest(ctx context.Context, endpoint string, body interface{}) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
