package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		envVars      map[string]string
		wantStore    string
		wantLLMModel string
		wantBaseURL  string
		wantEmbedURL string
	}{
		{
			name: "sqlite with OpenAI",
			envVars: map[string]string{
				"DATABASE_PROVIDER":  "sqlite",
				"SQLITE_PATH":        "./test.db",
				"LLM_PROVIDER":       "openai",
				"LLM_API_KEY":        "test-key",
				"LLM_MODEL":          "gpt-4",
				"EMBEDDING_PROVIDER": "openai",
				"EMBEDDING_API_KEY":  "test-key",
				"EMBEDDING_MODEL":    "text-embedding-3-small",
			},
			wantStore:    "sqlite",
			wantLLMModel: "gpt-4",
		},
		{
			name: "postgres with Qwen defaults",
			envVars: map[string]string{
				"DATABASE_PROVIDER":  "postgres",
				"POSTGRES_PORT":      "6543",
				"LLM_PROVIDER":       "qwen",
				"LLM_API_KEY":        "test-key",
				"EMBEDDING_PROVIDER": "qwen",
				"EMBEDDING_API_KEY":  "test-key",
			},
			wantStore:    "postgres",
			wantLLMModel: "qwen-plus",
			wantBaseURL:  "https://dashscope.aliyuncs.com/compatible-mode/v1",
			wantEmbedURL: "https://dashscope.aliyuncs.com/api/v1",
		},
		{
			name: "oceanbase with DeepSeek defaults",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "oceanbase",
				"LLM_PROVIDER":      "deepseek",
				"LLM_API_KEY":       "test-key",
			},
			wantStore:    "oceanbase",
			wantLLMModel: "deepseek-chat",
			wantBaseURL:  "https://api.deepseek.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOCIOMIND_CONFIG", "")
			t.Setenv("LLM_BASE_URL", "")
			t.Setenv("LLM_MODEL", "")
			t.Setenv("EMBEDDING_BASE_URL", "")
			t.Setenv("EMBEDDING_MODEL", "")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := core.LoadConfigFromEnv()
			require.NoError(t, err)
			assert.Equal(t, tt.wantStore, config.Store.Provider)
			assert.Equal(t, tt.envVars["LLM_PROVIDER"], config.LLM.Provider)
			assert.Equal(t, tt.wantLLMModel, config.LLM.Model)
			assert.Equal(t, tt.wantBaseURL, config.LLM.BaseURL)
			assert.Equal(t, tt.wantEmbedURL, config.Embedder.BaseURL)
			assert.Nil(t, config.Simulation)
			assert.Positive(t, config.Oracle.EmbedRetries)
		})
	}
}

func TestLoadConfigFromEnv_StoreSettings(t *testing.T) {
	t.Setenv("SOCIOMIND_CONFIG", "")
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_SSLMODE", "require")
	t.Setenv("ORACLE_CALL_TIMEOUT", "15")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 6543, config.Store.Config["port"])
	assert.Equal(t, "require", config.Store.Config["ssl_mode"])
	assert.Equal(t, 15*time.Second, config.Oracle.CallTimeout)
}

func TestLoadConfigFromEnv_BadTemperature(t *testing.T) {
	t.Setenv("SOCIOMIND_CONFIG", "")
	t.Setenv("LLM_TEMPERATURE", "warm")

	_, err := core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLoadConfigFromEnv_LoadsSimulationProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalProfile), 0o644))
	t.Setenv("SOCIOMIND_CONFIG", path)

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)
	require.NotNil(t, config.Simulation)
	assert.Equal(t, []string{"Alice", "Bob"}, config.Simulation.CharacterNames())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *core.Config {
		return &core.Config{
			LLM:      core.LLMConfig{Provider: "openai", APIKey: "test-key"},
			Embedder: core.EmbedderConfig{Provider: "openai", APIKey: "test-key"},
			Store:    core.StoreConfig{Provider: "sqlite", Config: map[string]interface{}{"db_path": "./test.db"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*core.Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*core.Config) {}},
		{name: "missing LLM provider", mutate: func(c *core.Config) { c.LLM.Provider = "" }, wantErr: true},
		{name: "missing Embedder provider", mutate: func(c *core.Config) { c.Embedder.Provider = "" }, wantErr: true},
		{name: "missing store provider", mutate: func(c *core.Config) { c.Store.Provider = "" }, wantErr: true},
		{name: "invalid simulation", mutate: func(c *core.Config) { c.Simulation = &core.SimulationConfig{Mode: "chaos"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"llm": {"provider": "anthropic", "api_key": "k"},
		"embedder": {"provider": "openai", "api_key": "k", "dimensions": 8},
		"store": {"provider": "sqlite", "config": {"db_path": "./x.db"}},
		"simulation": {"characters_info": {"Alice": {}, "Bob": {}}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	config, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, 8, config.Embedder.Dimensions)
	require.NotNil(t, config.Simulation)
	assert.Equal(t, core.ModeAutonomous, config.Simulation.Mode)
	assert.Equal(t, 12, config.Simulation.MaxRoundPerPlot)
	assert.NoError(t, config.Validate())
}
