package memory

import (
	"fmt"
	"sort"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

// Node returns the node with the given id.
func (m *Memory) Node(id int) (*Node, bool) {
	if id < 1 || id > len(m.nodes) {
		return nil, false
	}
	return m.nodes[id-1], true
}

// Plot returns the plot node for plotID.
func (m *Memory) Plot(plotID int) (*Node, bool) {
	id, ok := m.plotIndex[plotID]
	if !ok {
		return nil, false
	}
	return m.nodes[id-1], true
}

func (m *Memory) resolve(ids []int) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.nodes[id-1])
	}
	return out
}

// Plots returns all plots, newest first.
func (m *Memory) Plots() []*Node { return m.resolve(m.plots) }

// Events returns all plot events, newest first.
func (m *Memory) Events() []*Node { return m.resolve(m.events) }

// ManualEvents returns all injected events, newest first.
func (m *Memory) ManualEvents() []*Node { return m.resolve(m.manualEvents) }

// Thoughts returns all thoughts, newest first.
func (m *Memory) Thoughts() []*Node { return m.resolve(m.thoughts) }

// Behaviors returns all behaviors, newest first.
func (m *Memory) Behaviors() []*Node { return m.resolve(m.behaviors) }

// Emotions returns all listed emotions, newest first.
func (m *Memory) Emotions() []*Node { return m.resolve(m.emotions) }

// CoreSelves returns all core selves, newest first.
func (m *Memory) CoreSelves() []*Node { return m.resolve(m.coreSelves) }

// Motivations returns all listed motivations, newest first.
func (m *Memory) Motivations() []*Node { return m.resolve(m.motivations) }

// Topics returns all used topics, newest first.
func (m *Memory) Topics() []*Node { return m.resolve(m.topics) }

// Relationships returns the relationships with partner, newest first.
func (m *Memory) Relationships(partner string) []*Node {
	return m.resolve(m.relationships[partner])
}

// RelationshipByPartner returns the newest relationship with partner, or nil.
func (m *Memory) RelationshipByPartner(partner string) *Relationship {
	ids := m.relationships[partner]
	if len(ids) == 0 {
		return nil
	}
	return m.nodes[ids[0]-1].Relationship
}

// Partners returns every partner with a recorded relationship, in name order.
func (m *Memory) Partners() []string {
	out := make([]string, 0, len(m.relationships))
	for p := range m.relationships {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// EventsFromPlot returns the events of a plot. With manual set, the events
// injected before the plot started (manual events of plotID-1) come first.
// For plotID -1 only those manual events are returned.
func (m *Memory) EventsFromPlot(plotID int, manual bool) ([]*Node, error) {
	var out []*Node
	if manual {
		out = append(out, m.ManualEventsFromPlot(plotID-1)...)
		if plotID == -1 {
			return out, nil
		}
	}
	plot, ok := m.Plot(plotID)
	if !ok {
		return nil, core.NewSimError("EventsFromPlot", fmt.Errorf("plot %d: %w", plotID, core.ErrPlotNotFound))
	}
	return append(out, m.resolve(plot.Children.EventIDs)...), nil
}

// ManualEventsFromPlot returns manual events stamped with plotID.
func (m *Memory) ManualEventsFromPlot(plotID int) []*Node {
	var out []*Node
	for _, id := range m.manualEvents {
		n := m.nodes[id-1]
		if n.Event.PlotID == plotID {
			out = append(out, n)
		}
	}
	return out
}

// ThoughtsFromPlot returns the thoughts of a plot, newest first.
func (m *Memory) ThoughtsFromPlot(plotID int) ([]*Node, error) {
	plot, ok := m.Plot(plotID)
	if !ok {
		return nil, core.NewSimError("ThoughtsFromPlot", fmt.Errorf("plot %d: %w", plotID, core.ErrPlotNotFound))
	}
	return m.resolve(plot.Children.ThoughtIDs), nil
}

// LatestBehaviors returns up to retention of the newest behaviors, stopping
// at the first one that belongs to a different plot than the newest.
func (m *Memory) LatestBehaviors(retention int) []*Node {
	if len(m.behaviors) == 0 || retention <= 0 {
		return nil
	}
	plotID := m.nodes[m.behaviors[0]-1].PlotID
	var out []*Node
	for i := 0; i < len(m.behaviors) && i < retention; i++ {
		n := m.nodes[m.behaviors[i]-1]
		if n.PlotID != plotID {
			break
		}
		out = append(out, n)
	}
	return out
}

// ContextBehaviors returns the dialog leading to the newest behavior of
// plotID, oldest first, by walking the behavior chain backwards.
func (m *Memory) ContextBehaviors(plotID, retention int) []*Node {
	if len(m.behaviors) == 0 || retention <= 0 {
		return nil
	}
	cur := m.nodes[m.behaviors[0]-1]
	if cur.PlotID != plotID {
		return nil
	}
	out := []*Node{cur}
	seen := map[int]bool{cur.ID: true}
	add := func(ns ...*Node) {
		for _, n := range ns {
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n)
			}
		}
	}
	for len(out) < retention {
		lastSelf, lastPartner := cur.Chain.LastSelf, cur.Chain.LastPartner
		switch {
		case lastSelf != NoNode && lastPartner != NoNode:
			selfNode, partnerNode := m.nodes[lastSelf-1], m.nodes[lastPartner-1]
			if partnerNode.Behavior.Time.After(selfNode.Behavior.Time) {
				add(partnerNode, selfNode)
			} else {
				add(selfNode, partnerNode)
			}
			cur = selfNode
			continue
		case lastSelf != NoNode:
			add(m.nodes[lastSelf-1])
		case lastPartner != NoNode:
			add(m.nodes[lastPartner-1])
		}
		break
	}
	if len(out) > retention {
		out = out[:retention]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
