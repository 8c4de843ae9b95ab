// Package simtest provides deterministic model and embedding fakes for
// simulation tests.
package simtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/oceanbase/sociomind-go/pkg/llm"
)

// ErrUnrouted is returned when no rule matches and no default is set.
var ErrUnrouted = errors.New("simtest: no rule matches prompt")

type rule struct {
	contains  string
	responses []string
	served    int
}

// LLM answers prompts by substring rules, checked in registration order
// against the last message. A rule replays its responses in order and then
// repeats the last one.
type LLM struct {
	mu       sync.Mutex
	rules    []*rule
	fallback *string
	calls    int
	prompts  []string
}

// NewLLM returns an LLM with no rules.
func NewLLM() *LLM {
	return &LLM{}
}

// On registers responses for prompts containing substr.
func (l *LLM) On(substr string, responses ...string) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, &rule{contains: substr, responses: responses})
	return l
}

// Default sets the response for unmatched prompts.
func (l *LLM) Default(response string) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback = &response
	return l
}

// Generate implements llm.Provider.
func (l *LLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return l.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// GenerateWithMessages implements llm.Provider.
func (l *LLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, _ ...llm.GenerateOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	prompt := messages[len(messages)-1].Content
	l.prompts = append(l.prompts, prompt)

	for _, r := range l.rules {
		if !strings.Contains(prompt, r.contains) || len(r.responses) == 0 {
			continue
		}
		i := min(r.served, len(r.responses)-1)
		r.served++
		return r.responses[i], nil
	}
	if l.fallback != nil {
		return *l.fallback, nil
	}
	return "", ErrUnrouted
}

// Close implements llm.Provider.
func (l *LLM) Close() error { return nil }

// Calls returns the number of model calls.
func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Prompts returns every prompt seen, in order.
func (l *LLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}

// Embedder hashes text into a unit vector. Equal texts embed equally.
type Embedder struct {
	Dim int

	mu    sync.Mutex
	calls int
}

// Embed implements embedder.Provider.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	dim := e.Dimensions()
	v := make([]float64, dim)
	for i, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%uint32(dim)] += 1 + float64(i%3)*0.1
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}

// EmbedBatch implements embedder.Provider.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Dimensions implements embedder.Provider.
func (e *Embedder) Dimensions() int {
	if e.Dim <= 0 {
		return 16
	}
	return e.Dim
}

// Close implements embedder.Provider.
func (e *Embedder) Close() error { return nil }

// Calls returns the number of embedding calls.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
