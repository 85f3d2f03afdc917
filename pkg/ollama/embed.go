// Package ollama provides an Ollama-backed embedder for the search engine.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yokharian/ia-sales-agent/pkg/resilience"
)

// EmbedClient calls Ollama's HTTP embeddings API. Requests are rate limited
// so a full catalog rebuild cannot starve the model server of interactive
// traffic.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *resilience.Limiter
}

// Options configures the client. Zero values fall back to defaults.
type Options struct {
	// RequestsPerSecond throttles embedding calls. Defaults to 20.
	RequestsPerSecond float64
	// Burst is the rate limiter burst. Defaults to 5.
	Burst int
	// Timeout bounds one HTTP request. Defaults to 30s.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 20
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// NewEmbedClient creates an Ollama embedding client for the given model.
func NewEmbedClient(baseURL, model string, opts Options) *EmbedClient {
	opts = opts.withDefaults()
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: resilience.NewLimiter(resilience.LimiterOpts{
			Rate:  opts.RequestsPerSecond,
			Burst: opts.Burst,
		}),
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for one text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.limiter.CallWait(ctx, func(ctx context.Context) error {
		var inner error
		out, inner = c.embed(ctx, text)
		return inner
	})
	return out, err
}

// EmbedBatch embeds texts one by one; Ollama has no batch endpoint.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *EmbedClient) embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
