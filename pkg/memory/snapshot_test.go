package memory_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
)

func populated(t *testing.T) *memory.Memory {
	t.Helper()
	m := newMemory(t)
	_, err := m.AddManualEvent(memory.NewEvent("Mia", "the exam is tomorrow", -1, 0, time.Time{}))
	require.NoError(t, err)
	addPlot(t, m, 0)

	b1, err := m.AddBehavior(&memory.Behavior{SelfName: "Mia", PartnerName: "Zhixu", Speech: "hi", Place: "classroom", PlotID: 0, Embedding: []float64{0.25, 0.5}})
	require.NoError(t, err)
	b2, err := m.AddBehavior(&memory.Behavior{SelfName: "Zhixu", PartnerName: "Mia", Speech: "hello", Place: "classroom", Round: 1, PlotID: 0})
	require.NoError(t, err)
	ev, err := m.AddEvent(memory.NewEvent("Mia", "greeted Zhixu", 0, 1, time.Time{}), []int{b1.ID, b2.ID})
	require.NoError(t, err)
	th, err := m.AddThought(memory.NewThought("Mia", "Zhixu is polite", 0, time.Time{}), []int{ev.ID})
	require.NoError(t, err)
	_, err = m.AddRelationship(&memory.Relationship{SelfName: "Mia", PartnerName: "Zhixu", Intimacy: 6, PlotID: 0},
		[]int{b1.ID, b2.ID}, []int{ev.ID}, []int{th.ID})
	require.NoError(t, err)
	_, err = m.AddTopic(&memory.Topic{SelfName: "Mia", PartnerName: "Zhixu", Description: "exam", Used: true, UsedPlotID: 0})
	require.NoError(t, err)
	_, err = m.AddEmotion(&memory.Emotion{SelfName: "Mia", Pleasure: 7, Arousal: 5, Dominance: 4, PlotID: 0})
	require.NoError(t, err)
	return m
}

func TestSnapshot_RoundTrip(t *testing.T) {
	m := populated(t)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	restored, err := memory.Restore(data, nil)
	require.NoError(t, err)

	again, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	assert.Equal(t, m.Len(), restored.Len())
	assert.Equal(t, m.CurrentPlotID(), restored.CurrentPlotID())
	assert.Equal(t, "Mia", restored.Name())

	behaviors := restored.Behaviors()
	require.Len(t, behaviors, 2)
	assert.Equal(t, behaviors[1].ID, behaviors[0].Chain.LastPartner)
	assert.Equal(t, behaviors[0].ID, behaviors[1].Chain.NextPartner)
	assert.Equal(t, 6, restored.RelationshipByPartner("Zhixu").Intimacy)
}

func TestSnapshot_RestoredMemoryKeepsGrowing(t *testing.T) {
	m := populated(t)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	restored, err := memory.Restore(data, nil)
	require.NoError(t, err)

	n, err := restored.AddBehavior(&memory.Behavior{SelfName: "Mia", PartnerName: "Zhixu", Speech: "bye", PlotID: 0})
	require.NoError(t, err)
	assert.Equal(t, m.Len()+1, n.ID)
	assert.Equal(t, restored.Behaviors()[2].ID, n.Chain.LastSelf)

	_, err = restored.AddPlot(&memory.Plot{PlotID: 0})
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "plot index is rebuilt on import")
}

func TestImport_RejectsDanglingIDs(t *testing.T) {
	m := populated(t)
	snap := m.Export()
	snap.Events = append(snap.Events, 999)

	fresh := newMemory(t)
	before := fresh.Len()
	err := fresh.Import(snap)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.Equal(t, before, fresh.Len())
}

func TestWriteLog(t *testing.T) {
	m := populated(t)

	var text, table bytes.Buffer
	cw := csv.NewWriter(&table)
	require.NoError(t, m.WriteLog(&text, cw, true))

	out := text.String()
	for _, want := range []string{
		"Manual Events",
		"Manual Event: <self_name>Mia<description>the exam is tomorrow",
		"Plot 0",
		"Plot background: a rainy afternoon",
		"Topic: <self_name>Mia<description>exam",
		"Behavior: <self_name>Mia<speech>hi",
		"Event: <self_name>Mia<description>greeted Zhixu",
		"Thought: <self_name>Mia<description>Zhixu is polite",
		"Emotion: <self_name>Mia<pleasure>7<arousal>5<dominance>4",
		"Relationship: <self_name>Mia<intimacy>6",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "<speech>hi<"), strings.Index(out, "<speech>hello<"), "behaviors are written oldest first")

	assert.Contains(t, table.String(), "Behaviors")

	r := csv.NewReader(&table)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Manual Events"}, rows[0])
}
