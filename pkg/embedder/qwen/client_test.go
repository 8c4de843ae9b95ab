package qwen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/embedder/qwen"
)

type captured struct {
	Model string `json:"model"`
	Input struct {
		Texts []string `json:"texts"`
	} `json:"input"`
	Parameters struct {
		Dimension int `json:"dimension"`
	} `json:"parameters"`
	TextType string `json:"text_type"`
}

func server(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/services/embeddings/text-embedding/text-embedding", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := qwen.NewClient(&qwen.Config{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = qwen.NewClient(nil)
	assert.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	var got captured
	// Results come back out of input order.
	srv := server(t, http.StatusOK, `{"output":{"embeddings":[{"text_index":1,"embedding":[0,1]},{"text_index":0,"embedding":[1,0]}]}}`, &got)

	c, err := qwen.NewClient(&qwen.Config{APIKey: "test-key", BaseURL: srv.URL + "/api/v1/", Dimensions: 2})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"tea", "coffee"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)

	assert.Equal(t, "text-embedding-v4", got.Model)
	assert.Equal(t, []string{"tea", "coffee"}, got.Input.Texts)
	assert.Equal(t, 2, got.Parameters.Dimension)
	assert.Equal(t, "document", got.TextType)
	assert.Equal(t, 2, c.Dimensions())
}

func TestEmbed(t *testing.T) {
	srv := server(t, http.StatusOK, `{"output":{"embeddings":[{"text_index":0,"embedding":[0.5,0.25]}]}}`, nil)
	c, err := qwen.NewClient(&qwen.Config{APIKey: "test-key", BaseURL: srv.URL + "/api/v1"})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "Alice pours tea.")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, vec)
}

func TestEmbedBatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{name: "api error", status: http.StatusUnauthorized, reply: `{"code":"InvalidApiKey"}`},
		{name: "missing results", status: http.StatusOK, reply: `{"output":{"embeddings":[]}}`},
		{name: "duplicate index", status: http.StatusOK, reply: `{"output":{"embeddings":[{"text_index":0,"embedding":[1]},{"text_index":0,"embedding":[2]}]}}`},
		{name: "bad json", status: http.StatusOK, reply: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := server(t, tt.status, tt.reply, nil)
			c, err := qwen.NewClient(&qwen.Config{APIKey: "test-key", BaseURL: srv.URL + "/api/v1"})
			require.NoError(t, err)
			_, err = c.EmbedBatch(context.Background(), []string{"tea", "coffee"})
			assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
		})
	}
}
