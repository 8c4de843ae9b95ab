package psycho

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
)

// PersonaItem is one row of the persona instruction table: how people high
// (Key 1) or low (any other key) in a trait tend to behave.
type PersonaItem struct {
	Trait    string `yaml:"trait" json:"trait"`
	Behavior string `yaml:"behavior" json:"behavior"`
	Key      int    `yaml:"key" json:"key"`

	traitEmbedding    []float64
	behaviorEmbedding []float64
}

// Instruction renders the item for prompts.
func (p *PersonaItem) Instruction() string {
	extent := "low"
	if p.Key == 1 {
		extent = "high"
	}
	return fmt.Sprintf("[People with %s %s tend to think/behave as: %s]\n", extent, p.Trait, p.Behavior)
}

// PersonaDB retrieves persona instructions relevant to a character's traits.
type PersonaDB struct {
	items []*PersonaItem
}

// LoadPersonaTable reads a YAML list of persona items.
//
// Example table:
//
//	- trait: Friendliness
//	  behavior: Make friends easily.
//	  key: 1
func LoadPersonaTable(path string) ([]PersonaItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewSimError("LoadPersonaTable", err)
	}
	var items []PersonaItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, core.NewSimError("LoadPersonaTable", fmt.Errorf("%w: %v", core.ErrInvalidConfig, err))
	}
	return items, nil
}

// NewPersonaDB embeds the trait and behavior of every item. Identical texts
// are embedded once.
func NewPersonaDB(ctx context.Context, items []PersonaItem, embed memory.EmbedFunc) *PersonaDB {
	cache := make(map[string][]float64)
	lookup := func(text string) []float64 {
		if v, ok := cache[text]; ok {
			return v
		}
		v := embed(ctx, text)
		cache[text] = v
		return v
	}
	db := &PersonaDB{items: make([]*PersonaItem, 0, len(items))}
	for i := range items {
		item := items[i]
		item.traitEmbedding = lookup(item.Trait)
		item.behaviorEmbedding = lookup(item.Behavior)
		db.items = append(db.items, &item)
	}
	return db
}

// Len returns the number of items.
func (db *PersonaDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.items)
}

// Retrieve returns up to topKAll instructions. Each query embedding selects
// its topKEach items by the sum of trait and behavior similarity; an item
// chosen by several queries keeps its best score.
func (db *PersonaDB) Retrieve(queries [][]float64, topKEach, topKAll int) []string {
	if db.Len() == 0 || topKEach <= 0 || topKAll <= 0 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	best := make(map[int]float64)
	ranked := make([]scored, len(db.items))
	for _, q := range queries {
		for i, item := range db.items {
			ranked[i] = scored{i, dot(item.traitEmbedding, q) + dot(item.behaviorEmbedding, q)}
		}
		sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
		for _, s := range ranked[:min(topKEach, len(ranked))] {
			if prev, ok := best[s.idx]; !ok || s.score > prev {
				best[s.idx] = s.score
			}
		}
	}

	selected := make([]scored, 0, len(best))
	for idx, score := range best {
		selected = append(selected, scored{idx, score})
	}
	sort.Slice(selected, func(a, b int) bool {
		if selected[a].score != selected[b].score {
			return selected[a].score > selected[b].score
		}
		return selected[a].idx < selected[b].idx
	})

	out := make([]string, 0, min(topKAll, len(selected)))
	for _, s := range selected[:min(topKAll, len(selected))] {
		out = append(out, db.items[s.idx].Instruction())
	}
	return out
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
