package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/cache"
	"github.com/cupid-chocolate/giftlab/internal/config"
)

// fakeChat serves chat completions and records the last request.
type fakeChat struct {
	server *httptest.Server
	calls  atomic.Int32

	mu       sync.Mutex
	status   int
	content  string
	raw      string
	delay    time.Duration
	lastPath string
	lastHdr  http.Header
	lastBody map[string]interface{}
}

// respond replaces the canned response.
func (f *fakeChat) respond(status int, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.raw = status, raw
}

// last returns the most recent request.
func (f *fakeChat) last() (string, http.Header, map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastHdr, f.lastBody
}

func newFakeChat(t *testing.T, content string) *fakeChat {
	t.Helper()
	f := &fakeChat{status: http.StatusOK, content: content}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		decoded := map[string]interface{}{}
		_ = json.Unmarshal(body, &decoded)

		f.mu.Lock()
		f.lastPath = r.URL.RequestURI()
		f.lastHdr = r.Header.Clone()
		f.lastBody = decoded
		status, raw, content, delay := f.status, f.raw, f.content, f.delay
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status)
		if raw != "" || status != http.StatusOK {
			_, _ = w.Write([]byte(raw))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func openAIClient(f *fakeChat, opts ...func(*ClientConfig)) *Client {
	cfg := ClientConfig{Provider: OpenAIProvider{APIKey: "sk-test", BaseURL: f.server.URL + "/v1/", Model: "gpt-test"}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig().Generation
	assert.IsType(t, NoProvider{}, NewProvider(cfg))
	assert.False(t, Configured(NewProvider(cfg)))
	assert.False(t, Configured(nil))

	cfg.OpenAI.APIKey = "sk-test"
	p := NewProvider(cfg)
	require.IsType(t, OpenAIProvider{}, p)
	assert.Equal(t, "gpt-4o-mini", p.(OpenAIProvider).Model)
	assert.Equal(t, SourceOpenAI, p.Source())

	// Partial Azure credentials do not count.
	cfg.Azure.Endpoint = "https://example.openai.azure.com"
	cfg.Azure.APIKey = "az-key"
	assert.IsType(t, OpenAIProvider{}, NewProvider(cfg))

	cfg.Azure.Deployment = "gpt4"
	p = NewProvider(cfg)
	require.IsType(t, AzureProvider{}, p)
	assert.Equal(t, "2024-02-15-preview", p.(AzureProvider).APIVersion)
	assert.Equal(t, SourceAzure, p.Source())
}

func TestClient_OpenAIEncoding(t *testing.T) {
	f := newFakeChat(t, "hello")
	c := openAIClient(f)

	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.2, 400)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	path, hdr, body := f.last()
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", hdr.Get("Authorization"))
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, "gpt-test", body["model"])
	assert.Equal(t, 0.2, body["temperature"])
	assert.Equal(t, float64(400), body["max_tokens"])
	assert.NotContains(t, body, "max_completion_tokens")
}

func TestClient_AzureEncoding(t *testing.T) {
	f := newFakeChat(t, "hello")
	c := NewClient(ClientConfig{Provider: AzureProvider{
		Endpoint:   f.server.URL + "/",
		APIKey:     "az-key",
		Deployment: "gift-writer",
	}})

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.6, 260)
	require.NoError(t, err)

	path, hdr, body := f.last()
	assert.Equal(t, "/openai/deployments/gift-writer/chat/completions?api-version=2024-02-15-preview", path)
	assert.Equal(t, "az-key", hdr.Get("api-key"))
	assert.Empty(t, hdr.Get("Authorization"))
	assert.Equal(t, float64(260), body["max_completion_tokens"])
	assert.NotContains(t, body, "model")
	assert.NotContains(t, body, "max_tokens")
}

func TestClient_Failures(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "hi"}}

	t.Run("non-2xx with body", func(t *testing.T) {
		f := newFakeChat(t, "")
		f.respond(http.StatusTooManyRequests, `{"error":"slow down"}`)
		_, err := openAIClient(f).Complete(context.Background(), msgs, 0.2, 10)
		require.Error(t, err)
		assert.Equal(t, `HTTP 429: Too Many Requests | {"error":"slow down"}`, err.Error())
		var httpErr *HTTPError
		assert.ErrorAs(t, err, &httpErr)
	})

	t.Run("non-2xx without body", func(t *testing.T) {
		assert.Equal(t, "HTTP 500: Internal Server Error", (&HTTPError{StatusCode: 500}).Error())
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFakeChat(t, "")
		f.respond(http.StatusOK, "not json")
		_, err := openAIClient(f).Complete(context.Background(), msgs, 0.2, 10)
		assert.ErrorContains(t, err, "unmarshal response")
	})

	t.Run("no choices", func(t *testing.T) {
		f := newFakeChat(t, "")
		f.respond(http.StatusOK, `{"choices":[]}`)
		_, err := openAIClient(f).Complete(context.Background(), msgs, 0.2, 10)
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFakeChat(t, "late")
		f.mu.Lock()
		f.delay = 200 * time.Millisecond
		f.mu.Unlock()
		c := openAIClient(f, func(cfg *ClientConfig) { cfg.Timeout = 20 * time.Millisecond })
		_, err := c.Complete(context.Background(), msgs, 0.2, 10)
		assert.ErrorContains(t, err, "send request")
	})

	t.Run("connection refused", func(t *testing.T) {
		f := newFakeChat(t, "")
		f.server.Close()
		_, err := openAIClient(f).Complete(context.Background(), msgs, 0.2, 10)
		assert.Error(t, err)
	})
}

func TestClient_NoProviderNeverCallsOut(t *testing.T) {
	c := NewClient(ClientConfig{})
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.2, 10)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestClient_CachesSuccessfulCompletions(t *testing.T) {
	f := newFakeChat(t, "cached answer")
	mem := cache.NewMemoryClient(10)
	t.Cleanup(func() { _ = mem.Close() })
	c := openAIClient(f, func(cfg *ClientConfig) {
		cfg.Cache = mem
		cfg.CacheTTL = time.Minute
	})
	ctx := context.Background()
	msgs := []Message{{Role: "user", Content: "same question"}}

	for i := 0; i < 3; i++ {
		out, err := c.Complete(ctx, msgs, 0.2, 10)
		require.NoError(t, err)
		assert.Equal(t, "cached answer", out)
	}
	assert.Equal(t, int32(1), f.calls.Load())

	_, err := c.Complete(ctx, []Message{{Role: "user", Content: "other question"}}, 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())

	t.Run("failures are not cached", func(t *testing.T) {
		f.respond(http.StatusBadGateway, "down")
		msgs := []Message{{Role: "user", Content: "fails"}}
		_, err := c.Complete(ctx, msgs, 0.2, 10)
		require.Error(t, err)
		_, err = c.Complete(ctx, msgs, 0.2, 10)
		require.Error(t, err)
		assert.Equal(t, int32(4), f.calls.Load())
	})
}

func TestClient_CompleteValid(t *testing.T) {
	f := newFakeChat(t, "draft")
	mem := cache.NewMemoryClient(10)
	t.Cleanup(func() { _ = mem.Close() })
	c := openAIClient(f, func(cfg *ClientConfig) {
		cfg.Cache = mem
		cfg.CacheTTL = time.Minute
	})
	ctx := context.Background()
	msgs := []Message{{Role: "user", Content: "q"}}
	rejectDraft := func(content string) error {
		if content == "draft" {
			return errors.New("draft rejected")
		}
		return nil
	}

	_, err := c.CompleteValid(ctx, msgs, 0.2, 10, rejectDraft)
	assert.EqualError(t, err, "draft rejected")
	assert.Zero(t, mem.Len())

	// Accepted without a check, so it is cached.
	out, err := c.Complete(ctx, msgs, 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, "draft", out)
	assert.Equal(t, 1, mem.Len())

	// A cached reply that fails the check is a miss.
	f.mu.Lock()
	f.content = "final"
	f.mu.Unlock()
	out, err = c.CompleteValid(ctx, msgs, 0.2, 10, rejectDraft)
	require.NoError(t, err)
	assert.Equal(t, "final", out)
	assert.Equal(t, int32(3), f.calls.Load())
}
