// Package oracle turns an LLM and an embedding model into the structured
// judgments the simulation needs. Every call is bounded: responses are
// validated, retried, reformatted once per attempt, and replaced by a
// fail-safe value when the retry budget runs out. Callers never see an
// oracle error.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/embedder"
	"github.com/oceanbase/sociomind-go/pkg/llm"
)

const (
	defaultCallTimeout  = 60 * time.Second
	defaultEmbedRetries = 5
	blankText           = "this is blank"
)

// Oracle wraps the model providers used by the characters.
//
// An Oracle is safe for concurrent use.
type Oracle struct {
	llm      llm.Provider
	embedder embedder.Provider
	logger   *slog.Logger

	callTimeout  time.Duration
	embedRetries int
	verbose      bool
	genOpts      []llm.GenerateOption

	mu    sync.RWMutex
	cache map[string][]float64
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the logger. Retries log at debug level, fail-safes at warn.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCallTimeout bounds every single model call. A timeout counts as a
// failed attempt. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		o.callTimeout = d
	}
}

// WithEmbedRetries sets how many times an embedding is attempted.
func WithEmbedRetries(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.embedRetries = n
		}
	}
}

// WithVerbose logs full prompts and responses at debug level.
func WithVerbose(v bool) Option {
	return func(o *Oracle) {
		o.verbose = v
	}
}

// WithGenerateOptions sets options passed to every LLM call.
func WithGenerateOptions(opts ...llm.GenerateOption) Option {
	return func(o *Oracle) {
		o.genOpts = append(o.genOpts, opts...)
	}
}

// New creates an Oracle. Either provider may be nil: judgments then return
// their fail-safe values and embeddings are zero vectors.
func New(llmProvider llm.Provider, embedProvider embedder.Provider, opts ...Option) *Oracle {
	o := &Oracle{
		llm:          llmProvider,
		embedder:     embedProvider,
		logger:       slog.Default(),
		callTimeout:  defaultCallTimeout,
		embedRetries: defaultEmbedRetries,
		cache:        make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Close closes both providers.
func (o *Oracle) Close() error {
	var firstErr error
	if o.llm != nil {
		if err := o.llm.Close(); err != nil {
			firstErr = err
		}
	}
	if o.embedder != nil {
		if err := o.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *Oracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

// generate performs one bounded LLM call.
func (o *Oracle) generate(ctx context.Context, messages []llm.Message, jsonResponse bool) (string, error) {
	if o.llm == nil {
		return "", errNoProvider
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	opts := append([]llm.GenerateOption(nil), o.genOpts...)
	if jsonResponse {
		opts = append(opts, llm.WithJSONResponse())
	}
	out, err := o.llm.GenerateWithMessages(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrLLMOperation, err)
	}
	return out, nil
}

// Embed returns the embedding of text. Newlines are flattened and empty text
// is embedded as a placeholder. Results are cached. After the retry budget a
// zero vector is returned.
func (o *Oracle) Embed(ctx context.Context, text string) []float64 {
	text = strings.ReplaceAll(text, "\n", " ")
	if text == "" {
		text = blankText
	}

	o.mu.RLock()
	cached, ok := o.cache[text]
	o.mu.RUnlock()
	if ok {
		return cached
	}

	if o.embedder != nil {
		for attempt := 1; attempt <= o.embedRetries; attempt++ {
			if ctx.Err() != nil {
				break
			}
			callCtx, cancel := o.withTimeout(ctx)
			vec, err := o.embedder.Embed(callCtx, text)
			cancel()
			if err == nil && len(vec) > 0 {
				o.mu.Lock()
				o.cache[text] = vec
				o.mu.Unlock()
				return vec
			}
			o.logger.Debug("embedding attempt failed", "attempt", attempt, "error", err)
		}
	}

	o.logger.Warn("embedding failed, using zero vector", "text", truncate(text, 80))
	return make([]float64, o.dimensions())
}

// EmbedFunc adapts Embed to the signature used by the memory package.
func (o *Oracle) EmbedFunc() func(context.Context, string) []float64 {
	return o.Embed
}

func (o *Oracle) dimensions() int {
	if o.embedder == nil {
		return 0
	}
	return o.embedder.Dimensions()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
