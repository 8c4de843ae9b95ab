package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newMemory(t *testing.T) *memory.Memory {
	t.Helper()
	rels := map[string]core.RelationshipProfile{
		"Zhixu": {Description: "classmates", Attitude: "curious", Intimacy: 5, Trust: 6, Supportiveness: 12},
	}
	embed := func(_ context.Context, text string) []float64 { return []float64{float64(len(text)), 1} }
	m, err := memory.New(context.Background(), "Mia", rels, embed, memory.WithClock(tickingClock()))
	require.NoError(t, err)
	return m
}

func addPlot(t *testing.T, m *memory.Memory, id int) {
	t.Helper()
	_, err := m.AddPlot(&memory.Plot{SelfName: m.Name(), PlotID: id, PlotBackground: "a rainy afternoon"})
	require.NoError(t, err)
}

func TestNew_SeedsRelationships(t *testing.T) {
	m := newMemory(t)

	rel := m.RelationshipByPartner("Zhixu")
	require.NotNil(t, rel)
	assert.Equal(t, 5, rel.Intimacy)
	assert.Equal(t, 6, rel.Trust)
	assert.Equal(t, memory.Unknown, rel.Supportiveness, "out of range scores become unknown")
	assert.Equal(t, -1, rel.PlotID)
	assert.NotEmpty(t, rel.Embedding)
	assert.Equal(t, -1, m.CurrentPlotID())
	assert.Nil(t, m.RelationshipByPartner("nobody"))
}

func TestAdd_IDsAreUniqueAndIncreasing(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	var ids []int
	collect := func(n *memory.Node, err error) {
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	collect(m.AddEvent(memory.NewEvent("Mia", "met Zhixu", 0, 1, time.Time{}), nil))
	collect(m.AddThought(memory.NewThought("Mia", "Zhixu is kind", 0, time.Time{}), []int{1}))
	collect(m.AddBehavior(&memory.Behavior{SelfName: "Mia", PartnerName: "Zhixu", Speech: "hi", PlotID: 0}))
	collect(m.AddEmotion(&memory.Emotion{SelfName: "Mia", Pleasure: 7, PlotID: 0}))
	collect(m.AddMotivation(&memory.Motivation{SelfName: "Mia", LongTerm: "graduate", PlotID: 0}))
	collect(m.AddCoreSelf(&memory.CoreSelf{SelfName: "Mia", CentralBelief: "be honest", PlotID: 0}))
	collect(m.AddTopic(&memory.Topic{SelfName: "Mia", Description: "exam", UsedPlotID: 0}))
	collect(m.AddManualEvent(memory.NewEvent("Mia", "it rains", -1, 0, time.Time{})))

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
	assert.Equal(t, ids[len(ids)-1], m.Len())
}

func TestAdd_NewestFirst(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	first, err := m.AddEvent(memory.NewEvent("Mia", "first", 0, 0, time.Time{}), nil)
	require.NoError(t, err)
	second, err := m.AddEvent(memory.NewEvent("Mia", "second", 0, 1, time.Time{}), nil)
	require.NoError(t, err)

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID)
	assert.Equal(t, first.ID, events[1].ID)
	assert.Equal(t, 2, second.TypeCount)

	plot, ok := m.Plot(0)
	require.True(t, ok)
	assert.Equal(t, []int{second.ID, first.ID}, plot.Children.EventIDs)
}

func TestAdd_MissingPlotIsRejected(t *testing.T) {
	m := newMemory(t)
	before := m.Len()

	_, err := m.AddEvent(memory.NewEvent("Mia", "orphan", 3, 0, time.Time{}), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPlotNotFound))

	_, err = m.AddBehavior(&memory.Behavior{SelfName: "Mia", PlotID: 3})
	assert.True(t, errors.Is(err, core.ErrPlotNotFound))

	assert.Equal(t, before, m.Len(), "failed adds must not mutate the store")
}

func TestAddPlot_Duplicate(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	_, err := m.AddPlot(&memory.Plot{PlotID: 0})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.Equal(t, 0, m.CurrentPlotID())
}

func TestAddBehavior_Chain(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	b1, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PartnerName: "Zhixu", Speech: "hello", PlotID: 0})
	require.NoError(t, err)
	b2, err := m.AddBehavior(&memory.Behavior{SelfName: "Zhixu", PartnerName: "Mia", Speech: "hey", PlotID: 0})
	require.NoError(t, err)
	b3, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PartnerName: "Zhixu", Speech: "how are you", PlotID: 0})
	require.NoError(t, err)

	assert.Equal(t, b1.ID, b3.Chain.LastSelf)
	assert.Equal(t, b2.ID, b3.Chain.LastPartner)
	assert.Equal(t, b3.ID, b1.Chain.NextSelf)
	assert.Equal(t, b3.ID, b2.Chain.NextPartner)
	assert.Equal(t, b1.ID, b2.Chain.LastPartner)
	assert.Equal(t, memory.NoNode, b2.Chain.LastSelf)
	assert.Equal(t, memory.NoNode, b3.Chain.NextSelf)
}

func TestAddBehavior_ChainStaysInPlot(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)
	_, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PlotID: 0})
	require.NoError(t, err)

	addPlot(t, m, 1)
	b, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PlotID: 1})
	require.NoError(t, err)
	assert.Equal(t, memory.NoNode, b.Chain.LastSelf)
	assert.Equal(t, memory.NoNode, b.Chain.LastPartner)
}

func TestAddRelationship_PerPartner(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	n, err := m.AddRelationship(&memory.Relationship{SelfName: "Mia", PartnerName: "Zhixu", Intimacy: 7, PlotID: 0}, []int{1}, []int{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n.TypeCount)
	assert.Equal(t, 7, m.RelationshipByPartner("Zhixu").Intimacy)
	assert.Len(t, m.Relationships("Zhixu"), 2)

	plot, _ := m.Plot(0)
	assert.Equal(t, []int{n.ID}, plot.Children.RelationshipIDs)
}

func TestAddEmotion_InitialIsNotListed(t *testing.T) {
	m := newMemory(t)
	_, err := m.AddEmotion(&memory.Emotion{SelfName: "Mia", PlotID: -1})
	require.NoError(t, err)
	assert.Empty(t, m.Emotions())

	_, err = m.AddCoreSelf(&memory.CoreSelf{SelfName: "Mia", PlotID: -1})
	require.NoError(t, err)
	assert.Len(t, m.CoreSelves(), 1)
}

func TestEventsFromPlot(t *testing.T) {
	m := newMemory(t)
	manual, err := m.AddManualEvent(memory.NewEvent("Mia", "the exam is tomorrow", -1, 0, time.Time{}))
	require.NoError(t, err)
	addPlot(t, m, 0)
	ev, err := m.AddEvent(memory.NewEvent("Mia", "talked about exam", 0, 1, time.Time{}), nil)
	require.NoError(t, err)

	events, err := m.EventsFromPlot(0, true)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, manual.ID, events[0].ID)
	assert.Equal(t, ev.ID, events[1].ID)

	events, err = m.EventsFromPlot(0, false)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = m.EventsFromPlot(5, false)
	assert.True(t, errors.Is(err, core.ErrPlotNotFound))

	assert.Len(t, m.ManualEventsFromPlot(-1), 1)
}

func TestLatestBehaviors_StopsAtPlotBoundary(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)
	for i := 0; i < 3; i++ {
		_, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PlotID: 0})
		require.NoError(t, err)
	}
	addPlot(t, m, 1)
	_, err := m.AddBehavior(&memory.Behavior{SelfName: "Zhixu", PlotID: 1})
	require.NoError(t, err)

	assert.Len(t, m.LatestBehaviors(6), 1)
	assert.Empty(t, m.LatestBehaviors(0))
}

func TestContextBehaviors(t *testing.T) {
	m := newMemory(t)
	addPlot(t, m, 0)

	speakers := []string{"Mia", "Zhixu", "Mia", "Zhixu", "Mia"}
	var ids []int
	for i, s := range speakers {
		n, err := m.AddBehavior(&memory.Behavior{SelfName: s, Round: i, PlotID: 0})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	ctx := m.ContextBehaviors(0, 12)
	got := make([]int, 0, len(ctx))
	for _, n := range ctx {
		got = append(got, n.ID)
	}
	assert.Equal(t, ids, got, "context is the dialog in order, oldest first")

	ctx = m.ContextBehaviors(0, 3)
	require.Len(t, ctx, 3)
	assert.Equal(t, ids[4], ctx[2].ID)

	assert.Empty(t, m.ContextBehaviors(1, 12))
}
