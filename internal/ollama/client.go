package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	// DefaultModel is the recommended generation model
	DefaultModel = "qwen2.5-coder:7b"
	// DefaultEmbeddingModel is the recommended embedding model
	DefaultEmbeddingModel = "nomic-embed-text"
	// DefaultURL is the default Ollama API endpoint
	DefaultURL = "http://localhost:11434"
	// DefaultTimeout bounds a single request
	DefaultTimeout = 5 * time.Minute
)

// Usage reports token counts for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client wraps the Ollama API client for a single model
type Client struct {
	client *api.Client
	model  string
	url    string
}

// NewClient creates a new Ollama client
func NewClient(rawURL, model string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("failed to create ollama client: invalid url %q", rawURL)
	}

	return &Client{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  model,
		url:    rawURL,
	}, nil
}

// IsAvailable checks if Ollama is running and accessible
func IsAvailable(url string) bool {
	if url == "" {
		url = DefaultURL
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Generate runs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, Usage, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", Usage{}, fmt.Errorf("prompt cannot be empty")
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: prompt,
		Stream: &stream,
	}

	var (
		out   strings.Builder
		usage Usage
	)
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to generate with %s: %w", c.model, err)
	}

	return strings.TrimSpace(out.String()), usage, nil
}

// GenerateEmbedding generates an embedding vector for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	req := &api.EmbedRequest{
		Model: c.model,
		Input: text,
	}

	resp, err := c.client.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	embedding32 := resp.Embeddings[0]
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}

	return embedding64, nil
}

// CheckModel checks if the specified model is available
func (c *Client) CheckModel(ctx context.Context) error {
	listResp, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range listResp.Models {
		if model.Name == c.model || strings.TrimSuffix(model.Name, ":latest") == c.model {
			return nil
		}
	}

	return fmt.Errorf("model '%s' not found - run: ollama pull %s", c.model, c.model)
}

// GetModel returns the model being used
func (c *Client) GetModel() string {
	return c.model
}

// GetURL returns the endpoint the client talks to
func (c *Client) GetURL() string {
	return c.url
}
