package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

// Snapshot is the serializable form of a Memory: the arena plus every view
// and cursor needed to restore it exactly.
type Snapshot struct {
	Name              string           `json:"name"`
	Nodes             []*Node          `json:"nodes"`
	Plots             []int            `json:"plot_list"`
	Events            []int            `json:"event_list"`
	ManualEvents      []int            `json:"manual_event_list"`
	Thoughts          []int            `json:"thought_list"`
	Behaviors         []int            `json:"behavior_list"`
	Emotions          []int            `json:"emotion_list"`
	CoreSelves        []int            `json:"core_self_list"`
	Motivations       []int            `json:"motivation_list"`
	Topics            []int            `json:"topic_list"`
	Relationships     map[string][]int `json:"relationship_dict"`
	RelationshipCount int              `json:"relationship_count"`
	CurrentPlotID     int              `json:"current_plot_id"`
}

// Export returns a snapshot of the memory. The snapshot shares no slices
// with the memory but does share node pointers; marshal it before mutating
// the memory further.
func (m *Memory) Export() *Snapshot {
	rel := make(map[string][]int, len(m.relationships))
	for k, v := range m.relationships {
		rel[k] = append([]int(nil), v...)
	}
	return &Snapshot{
		Name:              m.name,
		Nodes:             append([]*Node(nil), m.nodes...),
		Plots:             append([]int(nil), m.plots...),
		Events:            append([]int(nil), m.events...),
		ManualEvents:      append([]int(nil), m.manualEvents...),
		Thoughts:          append([]int(nil), m.thoughts...),
		Behaviors:         append([]int(nil), m.behaviors...),
		Emotions:          append([]int(nil), m.emotions...),
		CoreSelves:        append([]int(nil), m.coreSelves...),
		Motivations:       append([]int(nil), m.motivations...),
		Topics:            append([]int(nil), m.topics...),
		Relationships:     rel,
		RelationshipCount: m.relationshipCount,
		CurrentPlotID:     m.currentPlotID,
	}
}

// MarshalJSON encodes the memory as its snapshot.
func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Export())
}

// Import replaces the content of m with the snapshot. The snapshot is
// validated first; m is left unchanged on error.
func (m *Memory) Import(s *Snapshot) error {
	if s == nil {
		return core.NewSimError("Import", core.ErrInvalidInput)
	}
	plotIndex := make(map[int]int)
	for i, n := range s.Nodes {
		if n == nil || n.ID != i+1 {
			return core.NewSimError("Import", fmt.Errorf("node at %d has id mismatch: %w", i, core.ErrInvalidInput))
		}
		if n.Kind == KindPlot {
			if n.Plot == nil {
				return core.NewSimError("Import", fmt.Errorf("plot node %d has no payload: %w", n.ID, core.ErrInvalidInput))
			}
			if n.Children == nil {
				n.Children = &PlotChildren{}
			}
			plotIndex[n.Plot.PlotID] = n.ID
		}
	}
	views := [][]int{s.Plots, s.Events, s.ManualEvents, s.Thoughts, s.Behaviors, s.Emotions, s.CoreSelves, s.Motivations, s.Topics}
	for _, ids := range s.Relationships {
		views = append(views, ids)
	}
	for _, ids := range views {
		for _, id := range ids {
			if id < 1 || id > len(s.Nodes) {
				return core.NewSimError("Import", fmt.Errorf("dangling node id %d: %w", id, core.ErrInvalidInput))
			}
		}
	}

	rel := make(map[string][]int, len(s.Relationships))
	for k, v := range s.Relationships {
		rel[k] = append([]int(nil), v...)
	}
	m.name = s.Name
	m.nodes = append([]*Node(nil), s.Nodes...)
	m.plotIndex = plotIndex
	m.plots = append([]int(nil), s.Plots...)
	m.events = append([]int(nil), s.Events...)
	m.manualEvents = append([]int(nil), s.ManualEvents...)
	m.thoughts = append([]int(nil), s.Thoughts...)
	m.behaviors = append([]int(nil), s.Behaviors...)
	m.emotions = append([]int(nil), s.Emotions...)
	m.coreSelves = append([]int(nil), s.CoreSelves...)
	m.motivations = append([]int(nil), s.Motivations...)
	m.topics = append([]int(nil), s.Topics...)
	m.relationships = rel
	m.relationshipCount = s.RelationshipCount
	m.currentPlotID = s.CurrentPlotID
	return nil
}

// UnmarshalJSON decodes a snapshot produced by MarshalJSON.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return core.NewSimError("UnmarshalJSON", err)
	}
	if m.now == nil {
		fresh, _ := New(context.Background(), s.Name, nil, nil)
		*m = *fresh
	}
	return m.Import(&s)
}

// Restore builds a Memory from a JSON snapshot.
func Restore(data []byte, embed EmbedFunc, opts ...Option) (*Memory, error) {
	m, err := New(context.Background(), "", nil, embed, opts...)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, core.NewSimError("Restore", err)
	}
	if err := m.Import(&s); err != nil {
		return nil, err
	}
	return m, nil
}
