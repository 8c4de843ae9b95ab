package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/memory"
)

func TestBehavior_InteractiveRoundTrip(t *testing.T) {
	b := &memory.Behavior{
		SelfName:    "Mia",
		PartnerName: "Zhixu",
		Speech:      "Shall we study together?",
		Expression:  "smiling",
		Motion:      "waves her hand",
		Place:       "library",
	}
	desc := b.InteractiveDescription()
	assert.Equal(t, "<self_name>Mia<speech>Shall we study together?<expression>smiling<motion>waves her hand<place>library<partner_name>Zhixu", desc)

	parsed, err := memory.ParseBehavior(desc)
	require.NoError(t, err)
	assert.True(t, parsed.SameAs(b))
	assert.Equal(t, -1, parsed.PlotID)

	_, err = memory.ParseBehavior("<speech")
	assert.Error(t, err)
}

func TestTopic_Score(t *testing.T) {
	topic := &memory.Topic{Description: "exam", Poignancy: 6, Emergency: 4}
	assert.Equal(t, 14, topic.Score())
	assert.Empty(t, topic.UsedInfo())

	topic.Used = true
	topic.UsedPlotID = 2
	topic.PartnerName = "Zhixu"
	assert.Equal(t, 0, topic.Score())
	assert.Equal(t, "Topic: [exam] in plot [2] with partner [Zhixu]].\n", topic.UsedInfo())
	assert.Equal(t, "{'description': 'exam', 'poignancy': 6, 'emergency': 4}", topic.Prompt())
}

func TestRelationship_Prompt(t *testing.T) {
	r := &memory.Relationship{SelfName: "Mia", PartnerName: "Zhixu", Description: "friends", Attitude: "warm",
		Intimacy: 7, Trust: memory.Unknown, Supportiveness: 6}
	assert.Equal(t, "The relationship between Mia and Zhixu is [friends].Mia's attitude towards Zhixu is [warm].", r.EmbeddingText())
	assert.Contains(t, r.Prompt(), "the intimacy is 7, the trust is unknown, and the supportiveness is 6.")
}

func TestEmotion_Prompt(t *testing.T) {
	e := &memory.Emotion{SelfName: "Mia", Description: "calm", Pleasure: 6, Arousal: 3, Dominance: memory.Unknown}
	assert.Equal(t, "The emotion of Mia is described as [calm].According to PAD theory in a Likert scale with range (1-9), "+
		"Mia's emotion is 6 pleasure, 3 arousal, unknown dominance.", e.Prompt())
}

func TestCoreSelf_FeaturePrompt(t *testing.T) {
	c := &memory.CoreSelf{
		SelfName:      "Mia",
		CentralBelief: "knowledge matters",
		Features:      []string{"studious", "shy"},
		FeatureEmbeddings: map[string][]float64{
			"studious": {1, 0},
			"shy":      {0, 1},
		},
	}
	prompt, embs := c.FeaturePrompt(nil, 4, 0.9)
	assert.Equal(t, "Mia's central belief is: [knowledge matters].Mia's personal features are: [studious, shy].", prompt)
	assert.Len(t, embs, 2)

	prompt, embs = c.FeaturePrompt([][]float64{{1, 0.01}}, 4, 0.9)
	assert.Equal(t, "Mia's central belief is: [knowledge matters].Mia's personal features are: [studious].", prompt)
	assert.Len(t, embs, 1)

	prompt, _ = c.FeaturePrompt([][]float64{{-1, -1}}, 4, 0.9)
	assert.Equal(t, c.Prompt(), prompt)

	clone := c.Clone()
	clone.Features[0] = "changed"
	assert.Equal(t, "studious", c.Features[0])
}

func TestLikert(t *testing.T) {
	assert.Equal(t, 1, memory.Likert(1))
	assert.Equal(t, 9, memory.Likert(9))
	assert.Equal(t, memory.Unknown, memory.Likert(0))
	assert.Equal(t, memory.Unknown, memory.Likert(10))
}
