// Package psycho holds the psychological state of a character: personality,
// emotion, motivation and core self histories, the topics it wants to raise,
// and the transient fields that drive the plot lifecycle.
package psycho

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
)

// PlotState is the lifecycle state of a character.
type PlotState string

const (
	// StatePlan waits for an external driver to start the next plot.
	StatePlan PlotState = "plan"

	// StateWorking is an ongoing plot.
	StateWorking PlotState = "working"

	// StatePlotFinished ends the current plot and plans the next one.
	StatePlotFinished PlotState = "plot_finished"

	// StatePlanProposals holds proposals waiting to be negotiated.
	StatePlanProposals PlotState = "plan_plot_proposals"

	// StateEnd is terminal.
	StateEnd PlotState = "end"
)

const summaryWords = 5

// ObservedInfo is the part of a character's state its partner can see.
type ObservedInfo struct {
	BehaviorDesc      string            `json:"behavior_desc"`
	PlotState         PlotState         `json:"plot_state"`
	PlotProposals     []core.PlotConfig `json:"plot_proposals"`
	PlotID            int               `json:"plot_id"`
	CurrentPlotConfig core.PlotConfig   `json:"current_plot_config"`
}

// Clone returns a deep copy.
func (o ObservedInfo) Clone() ObservedInfo {
	out := o
	if o.PlotProposals != nil {
		out.PlotProposals = make([]core.PlotConfig, len(o.PlotProposals))
		for i, p := range o.PlotProposals {
			out.PlotProposals[i] = p.Clone()
		}
	}
	out.CurrentPlotConfig = o.CurrentPlotConfig.Clone()
	return out
}

// Equal reports whether two observations carry the same content.
func (o ObservedInfo) Equal(other ObservedInfo) bool {
	return reflect.DeepEqual(o, other)
}

// Option configures a State.
type Option func(*State)

// WithClock sets the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTopicLimits sets the topic cache cap and how many used topics are
// shown to the model.
func WithTopicLimits(maxCache, maxUsedRetrieval int) Option {
	return func(s *State) {
		if maxCache > 0 {
			s.maxTopicCache = maxCache
		}
		if maxUsedRetrieval > 0 {
			s.maxUsedTopicRetrieval = maxUsedRetrieval
		}
	}
}

// State is the psychological state of one character. Histories are
// newest first.
//
// A State is not safe for concurrent use; the owning character serializes
// access.
type State struct {
	name    string
	partner string
	oracle  *oracle.Oracle
	now     func() time.Time

	maxTopicCache         int
	maxUsedTopicRetrieval int

	Personalities []*Personality
	Emotions      []*memory.Emotion
	Motivations   []*memory.Motivation
	CoreSelves    []*memory.CoreSelf

	CurrentPlotID int
	CurrentRound  int

	CurrentTopics        []*memory.Topic
	UsedTopics           []*memory.Topic
	TopicsForCurrentPlot []*memory.Topic

	CurrentBehavior    *memory.Behavior
	PreservedObserved  map[string]ObservedInfo
	PerceivedBehaviors []*memory.Behavior

	ProposedPlots     []core.PlotConfig
	CurrentPlotConfig core.PlotConfig
	PlotState         PlotState
}

// New builds the state of name from its profile. Personality, emotion,
// motivation and core self are seeded at plot 0, round 0; a personality that
// lacks either its description or its scores is completed by the oracle.
func New(ctx context.Context, name, partner string, profile core.CharacterProfile, o *oracle.Oracle, opts ...Option) *State {
	s := &State{
		name:                  name,
		partner:               partner,
		oracle:                o,
		now:                   time.Now,
		maxTopicCache:         20,
		maxUsedTopicRetrieval: 10,
		CurrentPlotID:         -1,
		CurrentRound:          -1,
		PreservedObserved:     make(map[string]ObservedInfo),
		PlotState:             StatePlotFinished,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initPersonality(ctx, profile.Personality)
	s.initEmotion(ctx, profile.Emotion)
	s.initMotivation(ctx, profile.Motivation)
	s.initCoreSelf(ctx, profile.CoreSelf)
	return s
}

// Name returns the character name.
func (s *State) Name() string { return s.name }

// Partner returns the partner name.
func (s *State) Partner() string { return s.partner }

func (s *State) embed(ctx context.Context, text string) []float64 {
	return s.oracle.Embed(ctx, text)
}

func (s *State) initPersonality(ctx context.Context, p core.PersonalityProfile) {
	var personality *Personality
	scores := &Personality{
		Openness:          p.Openness,
		Conscientiousness: p.Conscientiousness,
		Extraversion:      p.Extraversion,
		Agreeableness:     p.Agreeableness,
		Neuroticism:       p.Neuroticism,
	}
	switch {
	case p.Description == "":
		personality = s.PersonalityByQuantitative(ctx, p)
	case !scores.Valid():
		personality = s.PersonalityByDescription(ctx, p.Description)
	default:
		personality = scores
		personality.SelfName = s.name
		personality.Description = p.Description
		personality.Time = s.now()
		personality.Embedding = s.embed(ctx, personality.EmbeddingText())
	}
	personality.PlotID = 0
	personality.Round = 0
	s.Personalities = append([]*Personality{personality}, s.Personalities...)
}

func (s *State) initEmotion(ctx context.Context, e core.EmotionProfile) {
	emotion := &memory.Emotion{
		SelfName:    s.name,
		Pleasure:    memory.Likert(e.Pleasure),
		Arousal:     memory.Likert(e.Arousal),
		Dominance:   memory.Likert(e.Dominance),
		Description: e.Description,
		Embedding:   s.embed(ctx, e.Description),
		PlotID:      0,
		Round:       0,
		Time:        s.now(),
	}
	s.Emotions = append([]*memory.Emotion{emotion}, s.Emotions...)
}

func (s *State) initMotivation(ctx context.Context, m core.MotivationProfile) {
	motivation := &memory.Motivation{
		SelfName:  s.name,
		LongTerm:  m.LongTerm,
		ShortTerm: m.ShortTerm,
		Time:      s.now(),
	}
	motivation.Embedding = s.embed(ctx, motivation.Prompt())
	s.Motivations = append([]*memory.Motivation{motivation}, s.Motivations...)
}

func (s *State) initCoreSelf(ctx context.Context, c core.CoreSelfProfile) {
	coreSelf := &memory.CoreSelf{
		SelfName:          s.name,
		CentralBelief:     c.CentralBelief,
		Features:          append([]string(nil), c.Features...),
		FeatureEmbeddings: make(map[string][]float64, len(c.Features)),
		Time:              s.now(),
	}
	for _, f := range c.Features {
		if _, ok := coreSelf.FeatureEmbeddings[f]; !ok {
			coreSelf.FeatureEmbeddings[f] = s.embed(ctx, f)
		}
	}
	coreSelf.Embedding = s.embed(ctx, coreSelf.Prompt())
	s.CoreSelves = append([]*memory.CoreSelf{coreSelf}, s.CoreSelves...)
}

// Personality returns the current personality.
func (s *State) Personality() *Personality { return s.Personalities[0] }

// Emotion returns the current emotion.
func (s *State) Emotion() *memory.Emotion { return s.Emotions[0] }

// Motivation returns the current motivation.
func (s *State) Motivation() *memory.Motivation { return s.Motivations[0] }

// CoreSelf returns the current core self.
func (s *State) CoreSelf() *memory.CoreSelf { return s.CoreSelves[0] }

// PushEmotion makes e the current emotion.
func (s *State) PushEmotion(e *memory.Emotion) {
	s.Emotions = append([]*memory.Emotion{e}, s.Emotions...)
}

// PushMotivation makes m the current motivation.
func (s *State) PushMotivation(m *memory.Motivation) {
	s.Motivations = append([]*memory.Motivation{m}, s.Motivations...)
}

// PushCoreSelf makes c the current core self.
func (s *State) PushCoreSelf(c *memory.CoreSelf) {
	s.CoreSelves = append([]*memory.CoreSelf{c}, s.CoreSelves...)
}

func (s *State) newEmotion(ctx context.Context, desc string, pad oracle.PAD) *memory.Emotion {
	return &memory.Emotion{
		SelfName:    s.name,
		PartnerName: s.partner,
		Pleasure:    memory.Likert(pad.Pleasure),
		Arousal:     memory.Likert(pad.Arousal),
		Dominance:   memory.Likert(pad.Dominance),
		Description: desc,
		Embedding:   s.embed(ctx, desc),
		PlotID:      s.CurrentPlotID,
		Round:       s.CurrentRound,
		Time:        s.now(),
	}
}

// EmotionByDescription scores a described emotion.
func (s *State) EmotionByDescription(ctx context.Context, desc string) *memory.Emotion {
	return s.newEmotion(ctx, desc, s.oracle.QuantitativeEmotion(ctx, desc))
}

// EmotionByQuantitative describes a PAD emotion.
func (s *State) EmotionByQuantitative(ctx context.Context, pad core.PAD) *memory.Emotion {
	p := oracle.PAD{Pleasure: pad.Pleasure, Arousal: pad.Arousal, Dominance: pad.Dominance}
	return s.newEmotion(ctx, s.oracle.DescribeEmotion(ctx, p), p)
}

// PersonalityByDescription scores a described personality.
func (s *State) PersonalityByDescription(ctx context.Context, desc string) *Personality {
	scores := s.oracle.QuantitativePersonality(ctx, desc)
	p := &Personality{
		SelfName:          s.name,
		Description:       desc,
		Openness:          scores.Openness,
		Conscientiousness: scores.Conscientiousness,
		Extraversion:      scores.Extraversion,
		Agreeableness:     scores.Agreeableness,
		Neuroticism:       scores.Neuroticism,
		PlotID:            s.CurrentPlotID,
		Round:             s.CurrentRound,
		Time:              s.now(),
	}
	p.Embedding = s.embed(ctx, p.EmbeddingText())
	return p
}

// PersonalityByQuantitative describes a scored personality.
func (s *State) PersonalityByQuantitative(ctx context.Context, profile core.PersonalityProfile) *Personality {
	p := &Personality{
		SelfName:          s.name,
		Openness:          profile.Openness,
		Conscientiousness: profile.Conscientiousness,
		Extraversion:      profile.Extraversion,
		Agreeableness:     profile.Agreeableness,
		Neuroticism:       profile.Neuroticism,
		PlotID:            s.CurrentPlotID,
		Round:             s.CurrentRound,
		Time:              s.now(),
	}
	p.Description = s.oracle.DescribePersonality(ctx, p.bigFive())
	p.Embedding = s.embed(ctx, p.EmbeddingText())
	return p
}

// StartNewPlotSetup advances to the next plot and builds its plot record and
// opening behavior from setup. A missing summary is generated. A starting
// emotion, when given, becomes the current emotion.
func (s *State) StartNewPlotSetup(ctx context.Context, setup core.PlotSetup) (*memory.Plot, *memory.Behavior) {
	s.CurrentPlotID++
	s.CurrentRound = 0

	summary := setup.Summary
	if summary == "" {
		summary = s.oracle.SummarizeSentence(ctx, setup.PlotBackground, summaryWords)
	}
	now := s.now()
	plot := &memory.Plot{
		SelfName:       s.name,
		PlotID:         s.CurrentPlotID,
		PlotBackground: setup.PlotBackground,
		Summary:        summary,
		Time:           now,
	}

	behavior := &memory.Behavior{
		SelfName:    s.name,
		PartnerName: s.partner,
		Round:       s.CurrentRound,
		PlotID:      s.CurrentPlotID,
		Time:        now,
	}
	if b := setup.Behavior; b != nil {
		behavior.Speech = b.Speech
		behavior.Expression = b.Expression
		behavior.Motion = b.Motion
		behavior.Place = b.Place
	}
	behavior.Embedding = s.embed(ctx, behavior.InteractiveDescription())
	s.CurrentBehavior = behavior

	if !setup.Emotion.Empty() {
		var emotion *memory.Emotion
		if setup.Emotion.PAD != nil {
			emotion = s.EmotionByQuantitative(ctx, *setup.Emotion.PAD)
		} else {
			emotion = s.EmotionByDescription(ctx, setup.Emotion.Description)
		}
		s.PushEmotion(emotion)
	}
	return plot, behavior
}

// SortTopics orders the current topics by score, highest first. Equal
// scores keep their order.
func (s *State) SortTopics() {
	sort.SliceStable(s.CurrentTopics, func(i, j int) bool {
		return s.CurrentTopics[i].Score() > s.CurrentTopics[j].Score()
	})
}

// UsedTopicsPrompt renders the most recent used topics.
func (s *State) UsedTopicsPrompt() []string {
	var out []string
	for i, t := range s.UsedTopics {
		if i >= s.maxUsedTopicRetrieval {
			break
		}
		if t.Used {
			out = append(out, t.Prompt())
		}
	}
	return out
}

// GenerateTopics asks the oracle for new topics toward partner and adds them,
// created at the current plot, to the current topics.
func (s *State) GenerateTopics(ctx context.Context, personalPrompt, memoryPrompt, partner string) {
	memoryPrompt += fmt.Sprintf("Previous used topics are: [%s]\n", strings.Join(s.UsedTopicsPrompt(), ", "))

	for _, p := range s.oracle.Topics(ctx, personalPrompt, memoryPrompt, partner) {
		t := &memory.Topic{
			SelfName:      s.name,
			PartnerName:   p.PartnerName,
			Description:   p.Description,
			Summary:       p.Summary,
			Poignancy:     p.Poignancy,
			Emergency:     p.Emergency,
			CreatedPlotID: s.CurrentPlotID,
			UsedPlotID:    -1,
			Round:         s.CurrentRound,
			Time:          s.now(),
		}
		s.CurrentTopics = append([]*memory.Topic{t}, s.CurrentTopics...)
	}
	s.SortTopics()
}

// DeduplicateTopics sorts the current topics, caps them at the cache size
// and keeps the ones the oracle selects as distinct, in score order.
func (s *State) DeduplicateTopics(ctx context.Context) {
	if len(s.CurrentTopics) == 0 {
		return
	}
	s.SortTopics()
	if len(s.CurrentTopics) > s.maxTopicCache {
		s.CurrentTopics = s.CurrentTopics[:s.maxTopicCache]
	}

	var b strings.Builder
	b.WriteString("Below are the proposed topics between two characters:\n")
	b.WriteString("Each topic has an ID and description with poignancy and emergency in a dict format.\n")
	b.WriteString("Due to potential duplicates or similarities among these topics, please select the IDs of the topics after removing the duplicates.\n")
	b.WriteString("The topics are as follows:\n")
	for i, t := range s.CurrentTopics {
		fmt.Fprintf(&b, "Topic %d: %s\n", i, t.Prompt())
	}
	b.WriteString("The given ids should be in a list format, like list indices.\n")

	indices := s.oracle.DedupTopics(ctx, b.String(), len(s.CurrentTopics))
	sort.Ints(indices)
	kept := make([]*memory.Topic, 0, len(indices))
	for i, idx := range indices {
		if i > 0 && idx == indices[i-1] {
			continue
		}
		kept = append(kept, s.CurrentTopics[idx])
	}
	s.CurrentTopics = kept
}

// EmotionUpdate re-estimates the emotion after behaviorDesc and makes it
// current.
func (s *State) EmotionUpdate(ctx context.Context, innatePrompt, memoryPrompt, behaviorDesc, previous string) *memory.Emotion {
	prompt := innatePrompt + memoryPrompt +
		fmt.Sprintf("\n----\nNow her/his current behavior is %s\n", behaviorDesc) +
		oracle.EkmanEmotions +
		fmt.Sprintf("Before these behaviors, his/her emotion are: %s\n", previous) +
		"What is her/his current emotion? You'd better give a change. The change of emotion should reflect the previous behaviors.\n" +
		"So based on the personality, previous emotion, motivation, relationship, and relevant memories, using the psychological theory, her/his current emotion is:\n"

	j := s.oracle.EmotionFromPrompt(ctx, prompt)
	emotion := s.newEmotion(ctx, j.Description, oracle.PAD{Pleasure: j.Pleasure, Arousal: j.Arousal, Dominance: j.Dominance})
	s.PushEmotion(emotion)
	return emotion
}

// ResetPlot clears the transient fields of a finished plot.
func (s *State) ResetPlot() {
	s.TopicsForCurrentPlot = nil
	s.CurrentBehavior = nil
	s.PreservedObserved = make(map[string]ObservedInfo)
	s.PerceivedBehaviors = nil
	s.ProposedPlots = nil
	s.CurrentPlotConfig = nil
}

// Observed renders what the partner can see.
func (s *State) Observed() ObservedInfo {
	info := ObservedInfo{
		PlotState:         s.PlotState,
		PlotProposals:     s.ProposedPlots,
		PlotID:            s.CurrentPlotID,
		CurrentPlotConfig: s.CurrentPlotConfig,
	}
	if s.CurrentBehavior != nil {
		info.BehaviorDesc = s.CurrentBehavior.InteractiveDescription()
	}
	return info.Clone()
}
