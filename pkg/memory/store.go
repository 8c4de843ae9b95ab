// Package memory implements the per-character memory graph: an append-only
// arena of typed nodes with per-type views, plot backlinks, the behavior
// chain, and forgetting-curve retrieval over events and thoughts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

// EmbedFunc turns text into an embedding vector.
type EmbedFunc func(ctx context.Context, text string) []float64

// Option configures a Memory.
type Option func(*Memory)

// WithClock overrides the time source used for node timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// Memory is the memory graph of one character.
//
// Memory is not safe for concurrent use. The owning character serializes access.
type Memory struct {
	name  string
	now   func() time.Time
	embed EmbedFunc

	nodes     []*Node
	plotIndex map[int]int

	plots         []int
	events        []int
	manualEvents  []int
	thoughts      []int
	behaviors     []int
	emotions      []int
	coreSelves    []int
	motivations   []int
	topics        []int
	relationships map[string][]int

	relationshipCount int
	currentPlotID     int
}

// New creates the memory of the named character and seeds one relationship
// per configured partner, in partner-name order.
func New(ctx context.Context, name string, relationships map[string]core.RelationshipProfile, embed EmbedFunc, opts ...Option) (*Memory, error) {
	m := &Memory{
		name:          name,
		now:           time.Now,
		embed:         embed,
		plotIndex:     make(map[int]int),
		relationships: make(map[string][]int),
		currentPlotID: -1,
	}
	for _, opt := range opts {
		opt(m)
	}

	partners := make([]string, 0, len(relationships))
	for partner := range relationships {
		partners = append(partners, partner)
	}
	sort.Strings(partners)

	for _, partner := range partners {
		cfg := relationships[partner]
		r := &Relationship{
			SelfName:       name,
			PartnerName:    partner,
			Intimacy:       Likert(cfg.Intimacy),
			Trust:          Likert(cfg.Trust),
			Supportiveness: Likert(cfg.Supportiveness),
			Description:    cfg.Description,
			Attitude:       cfg.Attitude,
			PlotID:         -1,
			Round:          -1,
		}
		if m.embed != nil {
			r.Embedding = m.embed(ctx, r.EmbeddingText())
		}
		if _, err := m.AddRelationship(r, nil, nil, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name returns the owner of this memory.
func (m *Memory) Name() string {
	return m.name
}

// CurrentPlotID returns the id of the most recently added plot, or -1.
func (m *Memory) CurrentPlotID() int {
	return m.currentPlotID
}

// Len returns the number of nodes in the arena.
func (m *Memory) Len() int {
	return len(m.nodes)
}

func (m *Memory) newNode(kind Kind, plotID, typeCount int) *Node {
	now := m.now()
	id := len(m.nodes) + 1
	return &Node{
		ID:           id,
		Count:        id,
		TypeCount:    typeCount,
		Kind:         kind,
		PlotID:       plotID,
		Created:      now,
		LastAccessed: now,
	}
}

func (m *Memory) register(n *Node) {
	m.nodes = append(m.nodes, n)
}

// ownerPlot returns the plot node for plotID or a wrapped ErrPlotNotFound.
func (m *Memory) ownerPlot(op string, plotID int) (*Node, error) {
	id, ok := m.plotIndex[plotID]
	if !ok {
		return nil, core.NewSimError(op, fmt.Errorf("plot %d: %w", plotID, core.ErrPlotNotFound))
	}
	return m.nodes[id-1], nil
}

func prepend(ids []int, id int) []int {
	ids = append(ids, 0)
	copy(ids[1:], ids)
	ids[0] = id
	return ids
}

func (m *Memory) stampTime(t *time.Time) {
	if t.IsZero() {
		*t = m.now()
	}
}

// AddPlot registers a plot and makes it current.
func (m *Memory) AddPlot(p *Plot) (*Node, error) {
	if p == nil {
		return nil, core.NewSimError("AddPlot", core.ErrInvalidInput)
	}
	if _, ok := m.plotIndex[p.PlotID]; ok {
		return nil, core.NewSimError("AddPlot", fmt.Errorf("plot %d already exists: %w", p.PlotID, core.ErrInvalidInput))
	}
	m.stampTime(&p.Time)
	n := m.newNode(KindPlot, p.PlotID, len(m.plots)+1)
	n.Plot = p
	n.Children = &PlotChildren{}
	m.register(n)
	m.plotIndex[p.PlotID] = n.ID
	m.plots = prepend(m.plots, n.ID)
	m.currentPlotID = p.PlotID
	return n, nil
}

// AddEvent stores an event summarized from the given behaviors.
func (m *Memory) AddEvent(e *Event, behaviorIDs []int) (*Node, error) {
	if e == nil {
		return nil, core.NewSimError("AddEvent", core.ErrInvalidInput)
	}
	plot, err := m.ownerPlot("AddEvent", e.PlotID)
	if err != nil {
		return nil, err
	}
	normalizeAccess(&e.AccessTimes)
	m.stampTime(&e.Time)
	n := m.newNode(KindEvent, e.PlotID, len(m.events)+1)
	n.Event = e
	n.BehaviorIDs = append([]int(nil), behaviorIDs...)
	m.register(n)
	m.events = prepend(m.events, n.ID)
	plot.Children.EventIDs = prepend(plot.Children.EventIDs, n.ID)
	return n, nil
}

// AddManualEvent stores an event injected before a plot starts. Manual
// events are not linked to any plot node.
func (m *Memory) AddManualEvent(e *Event) (*Node, error) {
	if e == nil {
		return nil, core.NewSimError("AddManualEvent", core.ErrInvalidInput)
	}
	normalizeAccess(&e.AccessTimes)
	m.stampTime(&e.Time)
	n := m.newNode(KindEvent, e.PlotID, len(m.manualEvents)+1)
	n.Event = e
	m.register(n)
	m.manualEvents = prepend(m.manualEvents, n.ID)
	return n, nil
}

// AddThought stores a thought derived from the given events.
func (m *Memory) AddThought(t *Thought, eventIDs []int) (*Node, error) {
	if t == nil {
		return nil, core.NewSimError("AddThought", core.ErrInvalidInput)
	}
	plot, err := m.ownerPlot("AddThought", t.PlotID)
	if err != nil {
		return nil, err
	}
	normalizeAccess(&t.AccessTimes)
	m.stampTime(&t.Time)
	n := m.newNode(KindThought, t.PlotID, len(m.thoughts)+1)
	n.Thought = t
	n.EventIDs = append([]int(nil), eventIDs...)
	m.register(n)
	m.thoughts = prepend(m.thoughts, n.ID)
	plot.Children.ThoughtIDs = prepend(plot.Children.ThoughtIDs, n.ID)
	return n, nil
}

// AddBehavior stores a behavior and links it into the plot's behavior chain:
// the newest behavior of the same speaker becomes LastSelf, the newest of the
// other speaker becomes LastPartner, and both get their forward pointer set.
func (m *Memory) AddBehavior(b *Behavior) (*Node, error) {
	if b == nil {
		return nil, core.NewSimError("AddBehavior", core.ErrInvalidInput)
	}
	plot, err := m.ownerPlot("AddBehavior", b.PlotID)
	if err != nil {
		return nil, err
	}
	m.stampTime(&b.Time)
	n := m.newNode(KindBehavior, b.PlotID, len(m.behaviors)+1)
	n.Behavior = b
	n.Chain = newBehaviorLinks()

	for _, id := range plot.Children.BehaviorIDs {
		prev := m.nodes[id-1]
		if prev.Behavior.SelfName == b.SelfName {
			if n.Chain.LastSelf == NoNode {
				n.Chain.LastSelf = id
			}
		} else if n.Chain.LastPartner == NoNode {
			n.Chain.LastPartner = id
		}
		if n.Chain.LastSelf != NoNode && n.Chain.LastPartner != NoNode {
			break
		}
	}
	if n.Chain.LastSelf != NoNode {
		m.nodes[n.Chain.LastSelf-1].Chain.NextSelf = n.ID
	}
	if n.Chain.LastPartner != NoNode {
		m.nodes[n.Chain.LastPartner-1].Chain.NextPartner = n.ID
	}

	m.register(n)
	m.behaviors = prepend(m.behaviors, n.ID)
	plot.Children.BehaviorIDs = prepend(plot.Children.BehaviorIDs, n.ID)
	return n, nil
}

// AddRelationship stores a relationship with the evidence it was derived
// from. Relationships at plot -1 are initial and have no plot link.
func (m *Memory) AddRelationship(r *Relationship, behaviorIDs, eventIDs, thoughtIDs []int) (*Node, error) {
	if r == nil {
		return nil, core.NewSimError("AddRelationship", core.ErrInvalidInput)
	}
	var plot *Node
	if r.PlotID != -1 {
		var err error
		if plot, err = m.ownerPlot("AddRelationship", r.PlotID); err != nil {
			return nil, err
		}
	}
	m.stampTime(&r.Time)
	n := m.newNode(KindRelationship, r.PlotID, m.relationshipCount+1)
	n.Relationship = r
	n.BehaviorIDs = append([]int(nil), behaviorIDs...)
	n.EventIDs = append([]int(nil), eventIDs...)
	n.ThoughtIDs = append([]int(nil), thoughtIDs...)
	m.register(n)
	m.relationshipCount++
	m.relationships[r.PartnerName] = prepend(m.relationships[r.PartnerName], n.ID)
	if plot != nil {
		plot.Children.RelationshipIDs = prepend(plot.Children.RelationshipIDs, n.ID)
	}
	return n, nil
}

// AddEmotion stores an emotion. Emotions at plot -1 are registered but not listed.
func (m *Memory) AddEmotion(e *Emotion) (*Node, error) {
	if e == nil {
		return nil, core.NewSimError("AddEmotion", core.ErrInvalidInput)
	}
	if e.PlotID == -1 {
		m.stampTime(&e.Time)
		n := m.newNode(KindEmotion, e.PlotID, len(m.emotions)+1)
		n.Emotion = e
		m.register(n)
		return n, nil
	}
	plot, err := m.ownerPlot("AddEmotion", e.PlotID)
	if err != nil {
		return nil, err
	}
	m.stampTime(&e.Time)
	n := m.newNode(KindEmotion, e.PlotID, len(m.emotions)+1)
	n.Emotion = e
	m.register(n)
	m.emotions = prepend(m.emotions, n.ID)
	plot.Children.EmotionIDs = prepend(plot.Children.EmotionIDs, n.ID)
	return n, nil
}

// AddCoreSelf stores a core self. It is always listed; the plot link is
// skipped at plot -1.
func (m *Memory) AddCoreSelf(c *CoreSelf) (*Node, error) {
	if c == nil {
		return nil, core.NewSimError("AddCoreSelf", core.ErrInvalidInput)
	}
	var plot *Node
	if c.PlotID != -1 {
		var err error
		if plot, err = m.ownerPlot("AddCoreSelf", c.PlotID); err != nil {
			return nil, err
		}
	}
	m.stampTime(&c.Time)
	n := m.newNode(KindCoreSelf, c.PlotID, len(m.coreSelves)+1)
	n.CoreSelf = c
	m.register(n)
	m.coreSelves = prepend(m.coreSelves, n.ID)
	if plot != nil {
		plot.Children.CoreSelfIDs = prepend(plot.Children.CoreSelfIDs, n.ID)
	}
	return n, nil
}

// AddMotivation stores a motivation. Motivations at plot -1 are registered but not listed.
func (m *Memory) AddMotivation(mo *Motivation) (*Node, error) {
	if mo == nil {
		return nil, core.NewSimError("AddMotivation", core.ErrInvalidInput)
	}
	var plot *Node
	if mo.PlotID != -1 {
		var err error
		if plot, err = m.ownerPlot("AddMotivation", mo.PlotID); err != nil {
			return nil, err
		}
	}
	m.stampTime(&mo.Time)
	n := m.newNode(KindMotivation, mo.PlotID, len(m.motivations)+1)
	n.Motivation = mo
	m.register(n)
	if plot != nil {
		m.motivations = prepend(m.motivations, n.ID)
		plot.Children.MotivationIDs = prepend(plot.Children.MotivationIDs, n.ID)
	}
	return n, nil
}

// AddTopic stores a topic under the plot it was used in.
func (m *Memory) AddTopic(t *Topic) (*Node, error) {
	if t == nil {
		return nil, core.NewSimError("AddTopic", core.ErrInvalidInput)
	}
	var plot *Node
	if t.UsedPlotID != -1 {
		var err error
		if plot, err = m.ownerPlot("AddTopic", t.UsedPlotID); err != nil {
			return nil, err
		}
	}
	m.stampTime(&t.Time)
	n := m.newNode(KindTopic, t.UsedPlotID, len(m.topics)+1)
	n.Topic = t
	m.register(n)
	m.topics = prepend(m.topics, n.ID)
	if plot != nil {
		plot.Children.TopicIDs = prepend(plot.Children.TopicIDs, n.ID)
	}
	return n, nil
}

func normalizeAccess(n *int) {
	if *n < 1 {
		*n = 1
	}
}
