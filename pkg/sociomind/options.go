package sociomind

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/oceanbase/sociomind-go/pkg/embedder"
	"github.com/oceanbase/sociomind-go/pkg/llm"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// Option configures a Society or a Character.
//
// Options are applied using the functional options pattern. Options that do
// not apply to the value being built are ignored.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	now      func() time.Time
	store    storage.SnapshotStore
	llm      llm.Provider
	embedder embedder.Provider
	persona  *psycho.PersonaDB
	runID    string
	ids      *snowflake.Node
}

// WithLogger sets the logger. Defaults to slog.Default().
//
// Example:
//
//	society, _ := sociomind.NewSociety(cfg, sociomind.WithLogger(slog.New(handler)))
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used to stamp memories.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStore sets the snapshot store. It overrides the store named in the
// configuration. A character without a store does not persist snapshots.
func WithStore(store storage.SnapshotStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLLM sets the chat-completion provider, overriding the configured one.
func WithLLM(provider llm.Provider) Option {
	return func(o *options) {
		o.llm = provider
	}
}

// WithEmbedder sets the embedding provider, overriding the configured one.
func WithEmbedder(provider embedder.Provider) Option {
	return func(o *options) {
		o.embedder = provider
	}
}

// WithPersonaDB sets the persona instruction database. It overrides the
// table named by the simulation profile.
func WithPersonaDB(db *psycho.PersonaDB) Option {
	return func(o *options) {
		o.persona = db
	}
}

// WithRunID sets the run id snapshots are saved under. A new snowflake id
// is generated when unset.
func WithRunID(runID string) Option {
	return func(o *options) {
		o.runID = runID
	}
}

// withIDNode shares one snowflake node between the characters of a society.
func withIDNode(node *snowflake.Node) Option {
	return func(o *options) {
		o.ids = node
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
