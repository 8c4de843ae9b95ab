package sociomind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/snowflake"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/embedder"
	openaiEmbedder "github.com/oceanbase/sociomind-go/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/sociomind-go/pkg/embedder/qwen"
	"github.com/oceanbase/sociomind-go/pkg/llm"
	"github.com/oceanbase/sociomind-go/pkg/llm/anthropic"
	openaiLLM "github.com/oceanbase/sociomind-go/pkg/llm/openai"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
	"github.com/oceanbase/sociomind-go/pkg/storage"
	"github.com/oceanbase/sociomind-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/sociomind-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/sociomind-go/pkg/storage/sqlite"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// Society is a pair of characters sharing one oracle and one snapshot store.
//
// A Society is driven by one goroutine at a time: Run, RunStream and Replay
// must not overlap.
type Society struct {
	sim        *core.SimulationConfig
	oracle     *oracle.Oracle
	store      storage.SnapshotStore
	ownsStore  bool
	characters []*Character
	runID      string
	logger     *slog.Logger
}

// TickResult reports one character reaction of a streamed run.
type TickResult struct {
	// Tick is the 0-based tick index.
	Tick int

	// Character is the name of the character that reacted.
	Character string

	// PlotID is the plot the character is in after the reaction.
	PlotID int

	// State is the lifecycle state after the reaction.
	State psycho.PlotState

	// Error is set when the reaction failed. It is the last result sent.
	Error error
}

// NewSociety builds the society described by cfg.Simulation.
//
// The society is initialized with:
//   - Snapshot store (SQLite, OceanBase, or PostgreSQL)
//   - LLM provider (Anthropic, or OpenAI, DeepSeek, Qwen and Ollama through the OpenAI-compatible API)
//   - Embedding provider (OpenAI, Qwen)
//   - Persona instructions from the profile's persona table, if any
//
// Providers passed with WithStore, WithLLM or WithEmbedder replace the
// configured ones. Characters are created in name order and the first two
// are paired.
//
// Example:
//
//	cfg, _ := core.LoadConfigFromEnv()
//	society, err := sociomind.NewSociety(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer society.Close()
//	err = society.Run(ctx)
func NewSociety(ctx context.Context, cfg *core.Config, opts ...Option) (*Society, error) {
	if cfg == nil || cfg.Simulation == nil {
		return nil, core.NewSimError("NewSociety", fmt.Errorf("%w: simulation profile is required", core.ErrInvalidConfig))
	}
	sim := cfg.Simulation
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	s := &Society{sim: sim, logger: o.logger}

	s.store = o.store
	if s.store == nil && cfg.Store.Provider != "" {
		store, err := OpenStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.ownsStore = true
	}

	llmProvider := o.llm
	if llmProvider == nil {
		p, err := initLLM(cfg.LLM)
		if err != nil {
			s.closeStore()
			return nil, err
		}
		llmProvider = p
	}
	embedProvider := o.embedder
	if embedProvider == nil {
		p, err := initEmbedder(cfg.Embedder)
		if err != nil {
			s.closeStore()
			_ = llmProvider.Close()
			return nil, err
		}
		embedProvider = p
	}

	oracleOpts := []oracle.Option{
		oracle.WithLogger(o.logger),
		oracle.WithEmbedRetries(cfg.Oracle.EmbedRetries),
		oracle.WithVerbose(sim.Verbose),
	}
	if cfg.Oracle.CallTimeout > 0 {
		oracleOpts = append(oracleOpts, oracle.WithCallTimeout(cfg.Oracle.CallTimeout))
	}
	if cfg.LLM.Temperature > 0 {
		oracleOpts = append(oracleOpts, oracle.WithGenerateOptions(llm.WithTemperature(cfg.LLM.Temperature)))
	}
	s.oracle = oracle.New(llmProvider, embedProvider, oracleOpts...)

	ids, err := snowflake.NewNode(1)
	if err != nil {
		_ = s.Close()
		return nil, core.NewSimError("NewSociety", err)
	}
	s.runID = o.runID
	if s.runID == "" {
		s.runID = ids.Generate().String()
	}

	persona := o.persona
	if persona == nil && sim.PersonaTable != "" {
		items, err := psycho.LoadPersonaTable(sim.PersonaTable)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		persona = psycho.NewPersonaDB(ctx, items, s.oracle.EmbedFunc())
	}

	names := sim.CharacterNames()
	if len(names) > 2 {
		s.logger.Warn("only the first two characters take part", "characters", names[:2], "ignored", names[2:])
	}
	pair := [2]string{names[0], names[1]}
	charOpts := append(append([]Option(nil), opts...),
		WithStore(s.store),
		WithPersonaDB(persona),
		WithRunID(s.runID),
		withIDNode(ids),
	)
	for i, name := range pair {
		c, err := NewCharacter(ctx, name, pair[1-i], sim, s.oracle, charOpts...)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.characters = append(s.characters, c)
	}
	if err := s.characters[0].SetPartner(s.characters[1]); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.characters[1].SetPartner(s.characters[0]); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.logger.Info("society created",
		"run_id", s.runID,
		"mode", sim.Mode,
		"characters", pair[:],
		"persona_items", persona.Len(),
	)
	return s, nil
}

// RunID returns the run id snapshots are saved under.
func (s *Society) RunID() string { return s.runID }

// Characters returns the characters in name order.
func (s *Society) Characters() []*Character {
	return append([]*Character(nil), s.characters...)
}

// Character returns the named character.
func (s *Society) Character(name string) (*Character, bool) {
	for _, c := range s.characters {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Done reports whether every character reached the end state.
func (s *Society) Done() bool {
	for _, c := range s.characters {
		if c.PlotState() != psycho.StateEnd {
			return false
		}
	}
	return true
}

// Tick lets every character react once, in name order.
func (s *Society) Tick(ctx context.Context) error {
	for _, c := range s.characters {
		if err := c.Reaction(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks the society the configured number of times, stopping early once
// every character has ended.
func (s *Society) Run(ctx context.Context) error {
	for tick := 0; tick < s.sim.Ticks; tick++ {
		if s.Done() {
			s.logger.Info("all characters ended", "tick", tick)
			return nil
		}
		if err := s.Tick(ctx); err != nil {
			return err
		}
		s.logger.Debug("tick done", "tick", tick)
	}
	return nil
}

// RunStream runs the society in a goroutine and reports every reaction.
//
// The channel is closed when the run completes, fails, or ctx is cancelled.
//
// Example:
//
//	for r := range society.RunStream(ctx) {
//	    if r.Error != nil {
//	        log.Fatal(r.Error)
//	    }
//	    fmt.Println(r.Tick, r.Character, r.State)
//	}
func (s *Society) RunStream(ctx context.Context) <-chan TickResult {
	out := make(chan TickResult, len(s.characters))

	go func() {
		defer close(out)

		send := func(r TickResult) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for tick := 0; tick < s.sim.Ticks && !s.Done(); tick++ {
			for _, c := range s.characters {
				err := c.Reaction(ctx)
				r := TickResult{Tick: tick, Character: c.name, PlotID: c.PlotID(), State: c.PlotState(), Error: err}
				if !send(r) || err != nil {
					return
				}
			}
		}
	}()

	return out
}

// Replay restores every character from its latest snapshot in runID.
// Further snapshots are saved under runID.
func (s *Society) Replay(ctx context.Context, runID string) error {
	for _, c := range s.characters {
		if err := c.Restore(ctx, runID); err != nil {
			return err
		}
	}
	s.runID = runID
	return nil
}

// Close releases the providers and the store. A store passed with
// WithStore is left open.
func (s *Society) Close() error {
	var errs []error
	if s.oracle != nil {
		if err := s.oracle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Society) closeStore() error {
	if !s.ownsStore || s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// OpenStore opens the snapshot store described by cfg.
func OpenStore(cfg core.StoreConfig) (storage.SnapshotStore, error) {
	switch cfg.Provider {
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:           configString(cfg.Config, "host", "127.0.0.1"),
			Port:           configInt(cfg.Config, "port", 2881),
			User:           configString(cfg.Config, "user", "root@sys"),
			Password:       configString(cfg.Config, "password", ""),
			DBName:         configString(cfg.Config, "db_name", "sociomind"),
			CollectionName: configString(cfg.Config, "collection_name", "snapshots"),
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:         configString(cfg.Config, "db_path", "./sociomind.db"),
			CollectionName: configString(cfg.Config, "collection_name", "snapshots"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:           configString(cfg.Config, "host", "localhost"),
			Port:           configInt(cfg.Config, "port", 5432),
			User:           configString(cfg.Config, "user", "postgres"),
			Password:       configString(cfg.Config, "password", ""),
			DBName:         configString(cfg.Config, "db_name", "sociomind"),
			CollectionName: configString(cfg.Config, "collection_name", "snapshots"),
			SSLMode:        configString(cfg.Config, "ssl_mode", "disable"),
		})
	default:
		return nil, core.NewSimError("OpenStore", fmt.Errorf("%w: unknown store provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// initLLM initializes the LLM provider. Except for Anthropic every supported
// provider speaks the OpenAI chat API.
func initLLM(cfg core.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(&anthropic.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "openai", "deepseek", "qwen":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: baseURL,
		})
	default:
		return nil, core.NewSimError("initLLM", fmt.Errorf("%w: unknown llm provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider.
func initEmbedder(cfg core.EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "qwen":
		return qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, core.NewSimError("initEmbedder", fmt.Errorf("%w: unknown embedder provider %q", core.ErrInvalidConfig, cfg.Provider))
	}
}

// configString reads a string from a provider config map.
func configString(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

// configInt reads an integer from a provider config map. JSON configs
// decode numbers as float64.
func configInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
