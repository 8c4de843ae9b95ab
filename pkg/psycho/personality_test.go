package psycho_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
)

func TestMarkerPhrase(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{1, "extremely messy"},
		{2, "very messy"},
		{3, "messy"},
		{4, "a bit messy"},
		{5, "neither messy nor orderly"},
		{6, "a bit orderly"},
		{7, "orderly"},
		{8, "very orderly"},
		{9, "extremely orderly"},
		{0, "neutral"},
		{-1, "neutral"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, psycho.MarkerPhrase(tt.score, "messy", "orderly"), "score %d", tt.score)
	}
}

func TestBigFiveDescription(t *testing.T) {
	p := &psycho.Personality{SelfName: "Zhixu", Openness: 9, Conscientiousness: 5, Extraversion: 1, Agreeableness: 5, Neuroticism: 7}

	desc := p.BigFiveDescription()

	assert.True(t, strings.HasPrefix(desc, "Zhixu is a person described as [ extremely imaginative, extremely creative,"))
	assert.True(t, strings.HasSuffix(desc, "emotionally unstable]."))
	assert.Contains(t, desc, "extremely introverted")
	assert.Contains(t, desc, "neither messy nor orderly")
	assert.Equal(t, 12+10+9+11+6, strings.Count(desc, ",")+1)
	assert.Equal(t, desc, p.EmbeddingText(), "an undescribed personality embeds its markers")
}

func TestPersonality_PromptMarksUnknownScores(t *testing.T) {
	p := &psycho.Personality{SelfName: "Xiaotao", Description: "shy", Openness: 7, Conscientiousness: 0, Extraversion: 2, Agreeableness: 6, Neuroticism: 10}

	assert.False(t, p.Valid())
	assert.Contains(t, p.Prompt(), "7 openness, unknown conscientiousness, 2 extraversion, 6 agreeableness, unknown neuroticism")
	assert.Equal(t, "Xiaotao is a person described as shy.", p.PersonaPrompt())
	assert.Equal(t, "shy", p.EmbeddingText())
}

func TestLoadPersonaTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- trait: Friendliness
  behavior: Make friends easily.
  key: 1
- trait: Friendliness
  behavior: Keep others at a distance.
  key: -1
`), 0o600))

	items, err := psycho.LoadPersonaTable(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "[People with high Friendliness tend to think/behave as: Make friends easily.]\n", items[0].Instruction())
	assert.Equal(t, "[People with low Friendliness tend to think/behave as: Keep others at a distance.]\n", items[1].Instruction())

	require.NoError(t, os.WriteFile(path, []byte("trait: [unclosed"), 0o600))
	_, err = psycho.LoadPersonaTable(path)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestPersonaDB_Retrieve(t *testing.T) {
	vectors := map[string][]float64{
		"Friendliness":               {1, 0, 0},
		"Make friends easily.":       {1, 0, 0},
		"Orderliness":                {0, 1, 0},
		"Like order.":                {0, 1, 0},
		"Anxiety":                    {0, 0, 1},
		"Worry about things.":        {0, 0, 1},
		"Keep others at a distance.": {0.5, 0, 0},
	}
	calls := 0
	embed := func(_ context.Context, text string) []float64 {
		calls++
		return vectors[text]
	}
	db := psycho.NewPersonaDB(context.Background(), []psycho.PersonaItem{
		{Trait: "Friendliness", Behavior: "Make friends easily.", Key: 1},
		{Trait: "Orderliness", Behavior: "Like order.", Key: 1},
		{Trait: "Anxiety", Behavior: "Worry about things.", Key: 1},
		{Trait: "Friendliness", Behavior: "Keep others at a distance.", Key: -1},
	}, embed)
	require.Equal(t, 4, db.Len())
	assert.Equal(t, 7, calls, "repeated texts embed once")

	got := db.Retrieve([][]float64{{1, 0, 0}, {0, 0.5, 0}}, 2, 3)

	require.Len(t, got, 3)
	assert.Contains(t, got[0], "high Friendliness")
	assert.Contains(t, got[1], "low Friendliness")
	assert.Contains(t, got[2], "Orderliness")

	assert.Nil(t, db.Retrieve([][]float64{{1, 0, 0}}, 0, 3))
	var empty *psycho.PersonaDB
	assert.Nil(t, empty.Retrieve([][]float64{{1, 0, 0}}, 1, 1))
}
