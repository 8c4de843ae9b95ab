package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/embedder/openai"
)

func TestNewClient_Models(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		wantErr bool
	}{
		{name: "default", model: ""},
		{name: "ada", model: "text-embedding-ada-002"},
		{name: "unsupported", model: "text-embedding-v4", wantErr: true},
		{name: "typo", model: "text-embeding-ada-002", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := openai.NewClient(&openai.Config{APIKey: "test-key", Model: tt.model})
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.model)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1536, c.Dimensions())
		})
	}
}

func TestEmbed(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.5,0.25],"index":0}],"model":"text-embedding-ada-002"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := openai.NewClient(&openai.Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "Alice pours tea.")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, vec)
	assert.Equal(t, "text-embedding-ada-002", got.Model)
	assert.Equal(t, []string{"Alice pours tea."}, got.Input)
	assert.Equal(t, 2, c.Dimensions())
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	c, err := openai.NewClient(&openai.Config{APIKey: "test-key"})
	require.NoError(t, err)
	_, err = c.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
}
