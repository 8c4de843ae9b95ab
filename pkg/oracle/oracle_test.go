package oracle_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"

	"github.com/oceanbase/sociomind-go/pkg/cognition"
	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/llm"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
)

// scriptedLLM replays canned responses in order and fails once they run out.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	jsonCalls int
	prompts   []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return s.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (s *scriptedLLM) GenerateWithMessages(_ context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if llm.ApplyGenerateOptions(opts).JSONResponse {
		s.jsonCalls++
	}
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	if len(s.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func (s *scriptedLLM) Close() error { return nil }

type countingEmbedder struct {
	calls int
	fail  bool
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	return []float64{float64(len(text)), 1, 0}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
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

func (e *countingEmbedder) Dimensions() int { return 3 }
func (e *countingEmbedder) Close() error    { return nil }

func newOracle(responses ...string) (*oracle.Oracle, *scriptedLLM) {
	fake := &scriptedLLM{responses: responses}
	return oracle.New(fake, &countingEmbedder{}), fake
}

func TestQuantitativeEmotion_FirstResponseValid(t *testing.T) {
	o, fake := newOracle(`{"pleasure": 7, "arousal": 3, "dominance": 6}`)

	pad := o.QuantitativeEmotion(context.Background(), "calm and content")
	assert.Equal(t, oracle.PAD{Pleasure: 7, Arousal: 3, Dominance: 6}, pad)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 1, fake.jsonCalls)
	assert.Contains(t, fake.prompts[0], "calm and content")
	assert.Contains(t, fake.prompts[0], "Example output json:")
}

func TestQuantitativeEmotion_UnwrapsSingleKeyObject(t *testing.T) {
	o, _ := newOracle("```json\n{\"result\": {\"pleasure\": 2, \"arousal\": 8, \"dominance\": 1}}\n```")

	pad := o.QuantitativeEmotion(context.Background(), "terrified")
	assert.Equal(t, oracle.PAD{Pleasure: 2, Arousal: 8, Dominance: 1}, pad)
}

func TestQuantitativeEmotion_EmptyDescriptionSkipsModel(t *testing.T) {
	o, fake := newOracle()

	pad := o.QuantitativeEmotion(context.Background(), "")
	assert.Equal(t, oracle.PAD{Pleasure: -1, Arousal: -1, Dominance: -1}, pad)
	assert.Zero(t, fake.calls)
}

func TestJudge_ReformatRescuesAttempt(t *testing.T) {
	o, fake := newOracle(
		"pleasure 6, arousal 4, dominance 5",
		`{"pleasure": 6, "arousal": 4, "dominance": 5}`,
	)

	pad := o.QuantitativeEmotion(context.Background(), "fine")
	assert.Equal(t, oracle.PAD{Pleasure: 6, Arousal: 4, Dominance: 5}, pad)
	assert.Equal(t, 2, fake.calls)
	assert.Contains(t, fake.prompts[1], "Modify the format of the input string")
}

func TestJudge_FailSafeAfterRetries(t *testing.T) {
	bad := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		bad = append(bad, `{"pleasure": 12, "arousal": 4, "dominance": 5}`)
	}
	o, fake := newOracle(bad...)

	pad := o.QuantitativeEmotion(context.Background(), "ecstatic")
	assert.Equal(t, oracle.PAD{Pleasure: -1, Arousal: -1, Dominance: -1}, pad)
	assert.Equal(t, 10, fake.calls, "each of 5 attempts makes one call and one reformat call")
}

func TestJudge_RejectsUnknownKeys(t *testing.T) {
	o, _ := newOracle(
		`{"intimacy": 3, "trust": 4, "supportiveness": 5, "mood": "ok"}`,
		`{"intimacy": 3, "trust": 4, "supportiveness": 5, "mood": "ok"}`,
		`{"intimacy": 3, "trust": 4, "supportiveness": 5}`,
	)

	r := o.QuantitativeRelationship(context.Background(), "old friends", "warm")
	assert.Equal(t, oracle.RelationshipScores{Intimacy: 3, Trust: 4, Supportiveness: 5}, r)
}

func TestJudge_NoProviderReturnsFailSafe(t *testing.T) {
	o := oracle.New(nil, nil)

	k := o.EventKeywords(context.Background(), "they met", "a dorm")
	assert.Equal(t, oracle.Keywords{Poignancy: 0, Emergency: 5, Keywords: []string{"meeting"}}, k)
}

func TestJudge_CancelledContextReturnsFailSafe(t *testing.T) {
	o, fake := newOracle(`{"intimacy": 3, "trust": 4, "supportiveness": 5}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := o.QuantitativeRelationship(ctx, "old friends", "warm")
	assert.Equal(t, oracle.RelationshipScores{Intimacy: 5, Trust: 5, Supportiveness: 5}, r)
	assert.Zero(t, fake.calls)
}

func TestDescribePersonality_WordLimit(t *testing.T) {
	long := `"` + strings.Repeat("very ", 16) + `kind"`
	o, _ := newOracle(long, long, `"warm, curious and talkative"`)

	desc := o.DescribePersonality(context.Background(), oracle.BigFive{Openness: 8, Conscientiousness: 5, Extraversion: 7, Agreeableness: 6, Neuroticism: 3})
	assert.Equal(t, "warm, curious and talkative", desc)
}

func TestDescribeEmotion_FailSafe(t *testing.T) {
	o, _ := newOracle()
	assert.Equal(t, "happy, excited, and confident", o.DescribeEmotion(context.Background(), oracle.PAD{Pleasure: 5, Arousal: 5, Dominance: 5}))
}

func TestTopics_ResummarizesLongSummaries(t *testing.T) {
	o, fake := newOracle(
		`{"topics": [{"description": "Xiaotao wants to ask Zhixu about the strange dream she had.", "summary": "the strange dream she had last night again", "poignancy": 6, "emergency": 4, "partner_name": "Zhixu"}]}`,
		`"strange dream"`,
	)

	topics := o.Topics(context.Background(), "I am Xiaotao.", "", "Zhixu")
	require.Len(t, topics, 1)
	assert.Equal(t, "strange dream", topics[0].Summary)
	assert.Equal(t, "Zhixu", topics[0].PartnerName)
	assert.Equal(t, 2, fake.calls)
}

func TestTopics_FailSafeNamesPartner(t *testing.T) {
	o, _ := newOracle()

	topics := o.Topics(context.Background(), "", "", "Zhixu")
	assert.Equal(t, []oracle.TopicProposal{{Poignancy: 1, Emergency: 1, PartnerName: "Zhixu"}}, topics)
}

func TestDedupTopics(t *testing.T) {
	o, _ := newOracle(`[0, 5]`, `[0, 5]`, `{"kept": [2, 0]}`)
	assert.Equal(t, []int{2, 0}, o.DedupTopics(context.Background(), "topics: ...", 3))

	o, _ = newOracle()
	assert.Equal(t, []int{0, 1, 2}, o.DedupTopics(context.Background(), "topics: ...", 3))
}

func TestPlotProposals_RejectsOutOfRangeTopics(t *testing.T) {
	bad := `[{"topic_ids": [4], "poignancy": 5, "emergency": 5, "plot_background": "b", "summary": "s"}]`
	good := `[{"topic_ids": [0, 1], "poignancy": 7, "emergency": 2, "plot_background": "They plan a trip.", "summary": "trip plan"}]`
	o, _ := newOracle(bad, bad, good)

	plots := o.PlotProposals(context.Background(), "", "", "", 2)
	require.Len(t, plots, 1)
	assert.Equal(t, []int{0, 1}, plots[0].TopicIDs)
	assert.Equal(t, 9, plots[0].Score())
}

func TestPlotSetup(t *testing.T) {
	o, _ := newOracle(`{"Xiaotao": {"emotion": "nervous", "behavior": {"place": "desk", "motion": "tap the desk"}}, "Zhixu": {"emotion": "calm", "behavior": {"place": "sofa", "motion": "lean back"}}}`)

	setup := o.PlotSetup(context.Background(), "", "", [2]string{"Xiaotao", "Zhixu"})
	assert.Equal(t, "nervous", setup["Xiaotao"].Emotion)
	assert.Equal(t, "sofa", setup["Zhixu"].Behavior.Place)

	o, _ = newOracle()
	setup = o.PlotSetup(context.Background(), "", "", [2]string{"Xiaotao", "Zhixu"})
	assert.Equal(t, "chair", setup["Xiaotao"].Behavior.Place)
	assert.Equal(t, "desk", setup["Zhixu"].Behavior.Place)
}

func checkPlace(p string) bool {
	return p == "sofa" || p == "desk"
}

func TestDecide_End(t *testing.T) {
	o, _ := newOracle(`"END"`)

	d := o.Decide(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "your turn"}}, [2]string{"Xiaotao", "Zhixu"}, checkPlace)
	assert.True(t, d.End)
}

func TestDecide_PlaceMustExist(t *testing.T) {
	o, fake := newOracle(
		"<self_name>Xiaotao<speech>Hi<expression>smile<motion>wave<place>Kitchen<partner_name>Zhixu",
		"<self_name>Xiaotao<speech>Hi<expression>smile<motion>wave<place>Kitchen<partner_name>Zhixu",
		"<self_name>Xiaotao<speech>Hi there<expression>smile<motion>wave hands<place> Sofa <partner_name>Zhixu",
	)
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: "You are Xiaotao."}, {Role: llm.RoleUser, Content: "your turn"}}

	d := o.Decide(context.Background(), msgs, [2]string{"Xiaotao", "Zhixu"}, checkPlace)
	require.False(t, d.End)
	assert.Equal(t, oracle.BehaviorProposal{
		SelfName: "Xiaotao", Speech: "Hi there", Expression: "smile", Motion: "wave hands", Place: "sofa", PartnerName: "Zhixu",
	}, d.Behavior)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "your turn", msgs[1].Content, "caller messages are not modified")
	assert.Contains(t, fake.prompts[0], "body language weigh 30%")
}

func TestDecide_MixedCasePlaceNames(t *testing.T) {
	var tree core.PlaceTree
	require.NoError(t, yaml.Unmarshal([]byte("Dining Room:\n  Dining Table: {}\n"), &tree))
	places := cognition.New(tree)
	o, fake := newOracle("<self_name>Xiaotao<speech>Dinner?<expression>smile<motion>pulls a chair<place>Dining Table<partner_name>Zhixu")

	d := o.Decide(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "your turn"}}, [2]string{"Xiaotao", "Zhixu"}, places.CheckPlace)
	require.False(t, d.End)
	assert.Equal(t, "dining table", d.Behavior.Place)
	assert.Equal(t, 1, fake.calls)
}

func TestDecide_FailSafeKeepsNames(t *testing.T) {
	o, _ := newOracle()

	d := o.Decide(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "go"}}, [2]string{"Xiaotao", "Zhixu"}, nil)
	assert.False(t, d.End)
	assert.Equal(t, oracle.BehaviorProposal{SelfName: "Xiaotao", PartnerName: "Zhixu"}, d.Behavior)
}

func TestRefineBehavior(t *testing.T) {
	longMotion := "slowly walk over to the desk and sit down"
	o, fake := newOracle(`"walk to the desk"`)

	b := o.RefineBehavior(context.Background(), oracle.BehaviorProposal{Speech: "Hi", Expression: "smile", Motion: longMotion, Place: "desk"})
	assert.Equal(t, "walk to the desk", b.Motion)
	assert.Equal(t, "Hi", b.Speech)
	assert.Equal(t, 1, fake.calls)
}

func TestRefineBehavior_KeepsValueWhenSimplifyFails(t *testing.T) {
	longExpr := "a very wide and bright smile"
	o, _ := newOracle()

	b := o.RefineBehavior(context.Background(), oracle.BehaviorProposal{Expression: longExpr})
	assert.Equal(t, longExpr, b.Expression)
}

func TestSummarizeEvents(t *testing.T) {
	o, _ := newOracle(`[{"description": "They argued about movies.", "keywords": ["argue", "movie"], "poignancy": 6, "emergency": 3}]`)

	events := o.SummarizeEvents(context.Background(), "I am Zhixu.", "dialog")
	require.Len(t, events, 1)
	assert.Equal(t, []string{"argue", "movie"}, events[0].Keywords)

	o, _ = newOracle()
	assert.Empty(t, o.SummarizeEvents(context.Background(), "", ""))
}

func TestUpdateCoreSelf_RequiresYesNo(t *testing.T) {
	o, _ := newOracle(
		`{"conflict": "maybe", "belief": "x"}`,
		`{"conflict": "maybe", "belief": "x"}`,
		`{"conflict": "Y", "belief": "I want to be free."}`,
	)

	c := o.UpdateCoreSelf(context.Background(), "", "")
	assert.True(t, c.Changed())
	assert.Equal(t, "I want to be free.", c.Belief)
}

func TestUpdateMotivation_FailSafeChangesNothing(t *testing.T) {
	o, _ := newOracle()

	m := o.UpdateMotivation(context.Background(), "", "")
	assert.Equal(t, "N", m.LongTerm.Changed)
	assert.Equal(t, "N", m.ShortTerm.Changed)
}

func TestUpdateRelationship(t *testing.T) {
	o, _ := newOracle(`{"intimacy": 6, "trust": 7, "supportiveness": 5, "description": "close friends", "attitude": "fond"}`)

	r := o.UpdateRelationship(context.Background(), "", "")
	assert.Equal(t, oracle.RelationshipUpdate{Intimacy: 6, Trust: 7, Supportiveness: 5, Description: "close friends", Attitude: "fond"}, r)
}

func TestEmbed_CachesAndFlattens(t *testing.T) {
	emb := &countingEmbedder{}
	o := oracle.New(nil, emb)
	ctx := context.Background()

	v1 := o.Embed(ctx, "a\nb")
	v2 := o.Embed(ctx, "a b")
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, emb.calls)

	blank := o.Embed(ctx, "")
	assert.Equal(t, []float64{float64(len("this is blank")), 1, 0}, blank)
}

func TestEmbed_ZeroVectorOnFailure(t *testing.T) {
	emb := &countingEmbedder{fail: true}
	o := oracle.New(nil, emb, oracle.WithEmbedRetries(2))

	v := o.Embed(context.Background(), "hello")
	assert.Equal(t, []float64{0, 0, 0}, v)
	assert.Equal(t, 2, emb.calls)

	assert.Empty(t, oracle.New(nil, nil).Embed(context.Background(), "hello"))
}
