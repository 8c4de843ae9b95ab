package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a SocioMind society.
//
// It includes settings for:
//   - LLM provider (structured-judgment oracle)
//   - Embedding provider (embedding oracle)
//   - Snapshot store (plot-boundary persistence)
//   - Oracle call budget
//   - Simulation profile (characters, places, knobs)
//
// Example:
//
//	config := &core.Config{
//	    LLM: core.LLMConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "gpt-4o",
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-ada-002",
//	        Dimensions: 1536,
//	    },
//	    Store: core.StoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./sociomind.db",
//	        },
//	    },
//	}
type Config struct {
	// LLM contains LLM provider configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Store contains snapshot store configuration.
	Store StoreConfig `json:"store"`

	// Oracle contains retry and timeout settings for oracle calls.
	Oracle OracleConfig `json:"oracle"`

	// Simulation is the character and world profile (optional until a society is built).
	Simulation *SimulationConfig `json:"simulation,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: anthropic, and openai, deepseek, qwen, ollama (served
// through the OpenAI-compatible API).
type LLMConfig struct {
	// Provider is the LLM provider name (anthropic, openai, deepseek, qwen, ollama).
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o", "deepseek-chat").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Temperature is the sampling temperature used for judgments.
	Temperature float64 `json:"temperature,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen.
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name.
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 1024).
	Dimensions int `json:"dimensions,omitempty"`
}

// StoreConfig contains configuration for the snapshot store.
//
// Supported providers: sqlite, postgres, oceanbase
type StoreConfig struct {
	// Provider is the store provider name (sqlite, postgres, oceanbase).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, collection_name
	// For OceanBase: host, port, user, password, db_name, collection_name
	// For PostgreSQL: host, port, user, password, db_name, collection_name, ssl_mode
	Config map[string]interface{} `json:"config"`
}

// OracleConfig bounds every oracle call.
type OracleConfig struct {
	// CallTimeout is the per-call deadline; a timeout counts as a failed attempt.
	CallTimeout time.Duration `json:"call_timeout"`

	// EmbedRetries is the attempt budget for one embedding request.
	EmbedRetries int `json:"embed_retries"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//  4. Loads the simulation profile named by SOCIOMIND_CONFIG, if set
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, oceanbase, postgres)
//   - SQLITE_PATH, SQLITE_COLLECTION
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE, OCEANBASE_COLLECTION
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_COLLECTION, POSTGRES_SSLMODE
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL, LLM_TEMPERATURE
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - ORACLE_CALL_TIMEOUT (seconds), ORACLE_EMBED_RETRIES
//   - SOCIOMIND_CONFIG (path to the YAML simulation profile)
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	storeConfig := make(map[string]interface{})

	switch provider {
	case "oceanbase":
		port, _ := strconv.Atoi(getEnvOrDefault("OCEANBASE_PORT", "2881"))
		storeConfig = map[string]interface{}{
			"host":            getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":            port,
			"user":            getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password":        os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":         getEnvOrDefault("OCEANBASE_DATABASE", "sociomind"),
			"collection_name": getEnvOrDefault("OCEANBASE_COLLECTION", "snapshots"),
		}
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path":         getEnvOrDefault("SQLITE_PATH", "./sociomind.db"),
			"collection_name": getEnvOrDefault("SQLITE_COLLECTION", "snapshots"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		storeConfig = map[string]interface{}{
			"host":            getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":            port,
			"user":            getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":        os.Getenv("POSTGRES_PASSWORD"),
			"db_name":         getEnvOrDefault("POSTGRES_DATABASE", "sociomind"),
			"collection_name": getEnvOrDefault("POSTGRES_COLLECTION", "snapshots"),
			"ssl_mode":        getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	var defaultModel string
	switch llmProvider {
	case "deepseek":
		if llmBaseURL == "" {
			llmBaseURL = "https://api.deepseek.com"
		}
		defaultModel = "deepseek-chat"
	case "qwen":
		if llmBaseURL == "" {
			llmBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		}
		defaultModel = "qwen-plus"
	case "anthropic":
		defaultModel = "claude-3-5-sonnet-20240620"
	case "ollama":
		defaultModel = "llama3.1"
	default:
		defaultModel = "gpt-4o"
	}
	temperature, err := strconv.ParseFloat(getEnvOrDefault("LLM_TEMPERATURE", "1.0"), 64)
	if err != nil {
		return nil, NewSimError("LoadConfigFromEnv", fmt.Errorf("%w: LLM_TEMPERATURE: %v", ErrInvalidConfig, err))
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderBaseURL := os.Getenv("EMBEDDING_BASE_URL")
	embedderModel := os.Getenv("EMBEDDING_MODEL")
	switch embedderProvider {
	case "qwen":
		if embedderBaseURL == "" {
			embedderBaseURL = "https://dashscope.aliyuncs.com/api/v1"
		}
		if embedderModel == "" {
			embedderModel = "text-embedding-v4"
		}
	default:
		if embedderModel == "" {
			embedderModel = "text-embedding-ada-002"
		}
	}
	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMS", "1536"))

	timeoutSeconds, _ := strconv.Atoi(getEnvOrDefault("ORACLE_CALL_TIMEOUT", "60"))
	embedRetries, _ := strconv.Atoi(getEnvOrDefault("ORACLE_EMBED_RETRIES", "5"))

	config := &Config{
		LLM: LLMConfig{
			Provider:    llmProvider,
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       getEnvOrDefault("LLM_MODEL", defaultModel),
			BaseURL:     llmBaseURL,
			Temperature: temperature,
		},
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    embedderBaseURL,
			Dimensions: dims,
		},
		Store: StoreConfig{
			Provider: provider,
			Config:   storeConfig,
		},
		Oracle: OracleConfig{
			CallTimeout:  time.Duration(timeoutSeconds) * time.Second,
			EmbedRetries: embedRetries,
		},
	}

	if path := os.Getenv("SOCIOMIND_CONFIG"); path != "" {
		sim, err := LoadSimulationConfig(path)
		if err != nil {
			return nil, err
		}
		config.Simulation = sim
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// A simulation profile embedded in the JSON gets the same defaults as a YAML one.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSimError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewSimError("LoadConfigFromJSON", err)
	}
	if config.Simulation != nil {
		config.Simulation.ApplyDefaults()
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that all required fields are set:
//   - LLM provider must be specified
//   - Embedder provider must be specified
//   - Store provider must be specified
//   - Simulation profile, when present, must be valid
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return NewSimError("Validate", fmt.Errorf("%w: llm provider is required", ErrInvalidConfig))
	}
	if c.Embedder.Provider == "" {
		return NewSimError("Validate", fmt.Errorf("%w: embedder provider is required", ErrInvalidConfig))
	}
	if c.Store.Provider == "" {
		return NewSimError("Validate", fmt.Errorf("%w: store provider is required", ErrInvalidConfig))
	}
	if c.Simulation != nil {
		return c.Simulation.Validate()
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search checks the current directory first, then walks up to 5 parent
// directories and returns the first .env or .env.example file found.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
