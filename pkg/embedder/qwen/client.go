// Package qwen implements embedder.Provider on the DashScope text embedding API.
//
// The native endpoint is used rather than the OpenAI-compatible one, since the
// OpenAI SDK only accepts the embedding models it enumerates.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

const (
	defaultBaseURL    = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel      = "text-embedding-v4"
	defaultDimensions = 1536
	embeddingPath     = "/services/embeddings/text-embedding/text-embedding"
)

// Client is a DashScope embedding client.
type Client struct {
	client     *http.Client
	apiKey     string
	model      string
	endpoint   string
	dimensions int
}

// Config contains configuration for creating a Qwen embedding client.
type Config struct {
	// APIKey is the DashScope API key (required).
	APIKey string

	// Model is the model name (default: "text-embedding-v4").
	Model string

	// BaseURL is the API base URL (default: the DashScope endpoint).
	BaseURL string

	// Dimensions is the vector dimension requested from the API (default: 1536).
	Dimensions int

	// HTTPClient is a custom HTTP client (uses a 30s timeout client if nil).
	HTTPClient *http.Client
}

// NewClient creates a new Qwen embedding client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("qwen embedder: nil config")
	}
	if cfg.APIKey == "" {
		return nil, core.NewSimError("NewClient", fmt.Errorf("%w: qwen embedder api key is required", core.ErrInvalidConfig))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = defaultDimensions
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		client:     client,
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   strings.TrimRight(baseURL, "/") + embeddingPath,
		dimensions: dimensions,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input struct {
		Texts []string `json:"texts"`
	} `json:"input"`
	Parameters struct {
		Dimension int `json:"dimension"`
	} `json:"parameters"`
	TextType string `json:"text_type"`
}

type embeddingResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to vectors, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty input", core.ErrEmbeddingFailed)
	}

	var reqBody embeddingRequest
	reqBody.Model = c.model
	reqBody.Input.Texts = texts
	reqBody.Parameters.Dimension = c.dimensions
	reqBody.TextType = "document"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrEmbeddingFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", core.ErrEmbeddingFailed, err)
	}
	if len(out.Output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: unexpected number of results (got %d, expected %d)", core.ErrEmbeddingFailed, len(out.Output.Embeddings), len(texts))
	}

	// Results carry their input position and may arrive out of order.
	embeddings := make([][]float64, len(texts))
	for _, e := range out.Output.Embeddings {
		if e.TextIndex < 0 || e.TextIndex >= len(texts) || embeddings[e.TextIndex] != nil {
			return nil, fmt.Errorf("%w: bad text_index %d", core.ErrEmbeddingFailed, e.TextIndex)
		}
		embeddings[e.TextIndex] = e.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; net/http clients hold no resources to release.
func (c *Client) Close() error {
	return nil
}
