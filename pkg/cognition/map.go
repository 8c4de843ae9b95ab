// Package cognition provides the cognition map: a static tree of named places
// characters use to ground where their behaviors happen.
package cognition

import (
	"fmt"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

// NoParent is the parent id of root places.
const NoParent = -1

// Place is one node of the cognition map.
type Place struct {
	ID          int
	Name        string
	ParentID    int
	ChildrenIDs []int
	NeighborIDs []int
	Description string
}

// Map is a read-only place hierarchy. It is safe for concurrent use once built.
type Map struct {
	places []*Place
	byName map[string]int
	roots  []int
}

// New builds the map from an ordered place tree. Ids are assigned depth-first
// in configuration order. A name that appears twice keeps its first position.
// Lookups by name ignore case.
func New(tree core.PlaceTree) *Map {
	m := &Map{byName: make(map[string]int)}
	m.roots = m.build(tree, NoParent)
	return m
}

// build registers the places of one level and returns their ids in order.
func (m *Map) build(level core.PlaceTree, parent int) []int {
	ids := make([]int, 0, len(level))
	for _, entry := range level {
		if id, ok := m.byName[key(entry.Name)]; ok {
			ids = appendUnique(ids, id)
			continue
		}
		p := &Place{
			ID:          len(m.places),
			Name:        entry.Name,
			ParentID:    parent,
			Description: entry.Description,
		}
		m.places = append(m.places, p)
		m.byName[key(p.Name)] = p.ID
		ids = appendUnique(ids, p.ID)
		p.ChildrenIDs = m.build(entry.Children, p.ID)
	}
	for _, id := range ids {
		p := m.places[id]
		if p.ParentID != parent {
			continue
		}
		for _, sibling := range ids {
			if sibling != id {
				p.NeighborIDs = append(p.NeighborIDs, sibling)
			}
		}
	}
	return ids
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// CheckPlace reports whether name is a known place.
func (m *Map) CheckPlace(name string) bool {
	_, ok := m.byName[key(name)]
	return ok
}

// PlaceID returns the id of the named place.
func (m *Map) PlaceID(name string) (int, bool) {
	id, ok := m.byName[key(name)]
	return id, ok
}

// PlaceNode returns the named place.
func (m *Map) PlaceNode(name string) (*Place, bool) {
	id, ok := m.byName[key(name)]
	if !ok {
		return nil, false
	}
	return m.places[id], true
}

// Place returns the place with the given id.
func (m *Map) Place(id int) (*Place, bool) {
	if id < 0 || id >= len(m.places) {
		return nil, false
	}
	return m.places[id], true
}

// Places returns every place name in id order.
func (m *Map) Places() []string {
	out := make([]string, 0, len(m.places))
	for _, p := range m.places {
		out = append(out, p.Name)
	}
	return out
}

// Roots returns the names of the top-level places.
func (m *Map) Roots() []string {
	out := make([]string, 0, len(m.roots))
	for _, id := range m.roots {
		out = append(out, m.places[id].Name)
	}
	return out
}

// Len returns the number of places.
func (m *Map) Len() int {
	return len(m.places)
}

// ProposalPrompt describes place and its sub-places down to level more
// levels, for grounding location names in generated behavior. Unknown places
// and negative levels yield "".
func (m *Map) ProposalPrompt(place string, level int) string {
	var b strings.Builder
	m.writeProposal(&b, place, level)
	return b.String()
}

func (m *Map) writeProposal(b *strings.Builder, place string, level int) {
	if level < 0 {
		return
	}
	p, ok := m.PlaceNode(place)
	if !ok {
		return
	}
	if p.Description != "" {
		fmt.Fprintf(b, "%s is a place described as: %s.\n", p.Name, p.Description)
	}
	if len(p.ChildrenIDs) == 0 {
		return
	}
	fmt.Fprintf(b, "%s has %d sub-places: ", p.Name, len(p.ChildrenIDs))
	for _, id := range p.ChildrenIDs {
		fmt.Fprintf(b, "%s, ", m.places[id].Name)
	}
	b.WriteString("\n")
	for _, id := range p.ChildrenIDs {
		m.writeProposal(b, m.places[id].Name, level-1)
	}
}
