package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Unknown marks a Likert score that has not been estimated.
const Unknown = -1

// TimeLayout is the timestamp layout used in prompts and logs.
const TimeLayout = "2006-01-02 15:04:05"

// Likert returns v if it is on the 1-9 scale, Unknown otherwise.
func Likert(v int) int {
	if v < 1 || v > 9 {
		return Unknown
	}
	return v
}

func likertText(v int) string {
	if v == Unknown {
		return "unknown"
	}
	return fmt.Sprint(v)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// Event is an episodic memory: something that happened, with importance and urgency.
type Event struct {
	SelfName    string    `json:"self_name"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Poignancy   int       `json:"poignancy"`
	Emergency   int       `json:"emergency"`
	Embedding   []float64 `json:"embedding"`
	PlotID      int       `json:"plot_id"`
	Round       int       `json:"round"`
	AccessTimes int       `json:"access_times"`
	Forgot      bool      `json:"forgot"`
	Time        time.Time `json:"time"`
}

// NewEvent returns an event with the default poignancy and emergency of 5.
func NewEvent(self, description string, plotID, round int, at time.Time) *Event {
	return &Event{
		SelfName:    self,
		Description: description,
		Keywords:    []string{},
		Poignancy:   5,
		Emergency:   5,
		PlotID:      plotID,
		Round:       round,
		AccessTimes: 1,
		Time:        at,
	}
}

// PromptLine renders the event for prompts.
func (e *Event) PromptLine() string {
	return fmt.Sprintf("Event: [%s], poignancy: %d, emergency: %d time: %s.\n", e.Description, e.Poignancy, e.Emergency, stamp(e.Time))
}

// LogDescription renders the event for memory logs.
func (e *Event) LogDescription() string {
	return fmt.Sprintf("<self_name>%s<description>%s<plot_id>%d<keywords>%v<poignancy>%d<emergency>%d",
		e.SelfName, e.Description, e.PlotID, e.Keywords, e.Poignancy, e.Emergency)
}

func (e *Event) record() ([]string, []string) {
	return []string{"self_name", "description", "time", "plot_id", "round", "keywords", "poignancy", "access_times", "forgot", "emergency"},
		[]string{e.SelfName, e.Description, stamp(e.Time), fmt.Sprint(e.PlotID), fmt.Sprint(e.Round), strings.Join(e.Keywords, ";"),
			fmt.Sprint(e.Poignancy), fmt.Sprint(e.AccessTimes), fmt.Sprint(e.Forgot), fmt.Sprint(e.Emergency)}
}

// Thought is a semantic memory derived from events.
type Thought struct {
	SelfName    string    `json:"self_name"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Poignancy   int       `json:"poignancy"`
	Embedding   []float64 `json:"embedding"`
	PlotID      int       `json:"plot_id"`
	AccessTimes int       `json:"access_times"`
	Forgot      bool      `json:"forgot"`
	Time        time.Time `json:"time"`
}

// NewThought returns a thought with the default poignancy of 5.
func NewThought(self, description string, plotID int, at time.Time) *Thought {
	return &Thought{
		SelfName:    self,
		Description: description,
		Keywords:    []string{},
		Poignancy:   5,
		PlotID:      plotID,
		AccessTimes: 1,
		Time:        at,
	}
}

// PromptLine renders the thought for prompts.
func (t *Thought) PromptLine() string {
	return fmt.Sprintf("Thought: [%s], poignancy: %d, time: %s.\n", t.Description, t.Poignancy, stamp(t.Time))
}

// LogDescription renders the thought for memory logs.
func (t *Thought) LogDescription() string {
	return fmt.Sprintf("<self_name>%s<description>%s<plot_id>%d<poignancy>%d<keywords>%v",
		t.SelfName, t.Description, t.PlotID, t.Poignancy, t.Keywords)
}

func (t *Thought) record() ([]string, []string) {
	return []string{"self_name", "description", "time", "plot_id", "poignancy", "access_times", "forgot", "keywords"},
		[]string{t.SelfName, t.Description, stamp(t.Time), fmt.Sprint(t.PlotID), fmt.Sprint(t.Poignancy),
			fmt.Sprint(t.AccessTimes), fmt.Sprint(t.Forgot), strings.Join(t.Keywords, ";")}
}

// Behavior is one dialog turn: what a character says and does, and where.
type Behavior struct {
	SelfName    string    `json:"self_name"`
	PartnerName string    `json:"partner_name"`
	Speech      string    `json:"speech"`
	Expression  string    `json:"expression"`
	Motion      string    `json:"motion"`
	Place       string    `json:"place"`
	Round       int       `json:"round"`
	PlotID      int       `json:"plot_id"`
	Embedding   []float64 `json:"embedding"`
	Time        time.Time `json:"time"`
}

// InteractiveDescription is the wire form exchanged between characters.
func (b *Behavior) InteractiveDescription() string {
	return fmt.Sprintf("<self_name>%s<speech>%s<expression>%s<motion>%s<place>%s<partner_name>%s",
		b.SelfName, b.Speech, b.Expression, b.Motion, b.Place, b.PartnerName)
}

// FullDescription includes time, round and plot.
func (b *Behavior) FullDescription() string {
	return fmt.Sprintf("<time>%s<self_name>%s<speech>%s<expression>%s<motion>%s<partner_name>%s<place>%s<round>%d<plot_id>%d",
		stamp(b.Time), b.SelfName, b.Speech, b.Expression, b.Motion, b.PartnerName, b.Place, b.Round, b.PlotID)
}

// LogDescription renders the behavior for memory logs.
func (b *Behavior) LogDescription() string {
	return fmt.Sprintf("%s<plot_id>%d<round>%d", b.InteractiveDescription(), b.PlotID, b.Round)
}

// SameAs compares the interactive content of two behaviors.
func (b *Behavior) SameAs(other *Behavior) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.InteractiveDescription() == other.InteractiveDescription()
}

func (b *Behavior) record() ([]string, []string) {
	return []string{"time", "self_name", "partner_name", "speech", "expression", "motion", "place", "round", "plot_id"},
		[]string{stamp(b.Time), b.SelfName, b.PartnerName, b.Speech, b.Expression, b.Motion, b.Place, fmt.Sprint(b.Round), fmt.Sprint(b.PlotID)}
}

// ParseBehavior parses the `<key>value` wire form. Unknown keys are ignored.
func ParseBehavior(desc string) (*Behavior, error) {
	b := &Behavior{Round: -1, PlotID: -1}
	for _, item := range strings.Split(desc, "<") {
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, ">")
		if !ok {
			return nil, fmt.Errorf("malformed behavior field %q", item)
		}
		switch key {
		case "self_name":
			b.SelfName = value
		case "partner_name":
			b.PartnerName = value
		case "speech":
			b.Speech = value
		case "expression":
			b.Expression = value
		case "motion":
			b.Motion = value
		case "place":
			b.Place = value
		}
	}
	return b, nil
}

// Relationship is a character's view of one partner.
type Relationship struct {
	SelfName       string    `json:"self_name"`
	PartnerName    string    `json:"partner_name"`
	Intimacy       int       `json:"intimacy"`
	Trust          int       `json:"trust"`
	Supportiveness int       `json:"supportiveness"`
	Description    string    `json:"description"`
	Attitude       string    `json:"attitude"`
	Embedding      []float64 `json:"embedding"`
	PlotID         int       `json:"plot_id"`
	Round          int       `json:"round"`
	Time           time.Time `json:"time"`
}

// EmbeddingText is the text the relationship embedding is computed from.
func (r *Relationship) EmbeddingText() string {
	return fmt.Sprintf("The relationship between %s and %s is [%s].%s's attitude towards %s is [%s].",
		r.SelfName, r.PartnerName, r.Description, r.SelfName, r.PartnerName, r.Attitude)
}

// Prompt renders the relationship with its Likert scores.
func (r *Relationship) Prompt() string {
	return r.EmbeddingText() +
		"According to social pyschological view to measure the social relationship in a Likert scale range (1-9), " +
		fmt.Sprintf("the intimacy is %s, the trust is %s, and the supportiveness is %s.",
			likertText(r.Intimacy), likertText(r.Trust), likertText(r.Supportiveness))
}

// KeyDescription renders only the scores.
func (r *Relationship) KeyDescription() string {
	return fmt.Sprintf("<intimacy>%d<trust>%d<supportiveness>%d", r.Intimacy, r.Trust, r.Supportiveness)
}

// LogDescription renders the relationship for memory logs.
func (r *Relationship) LogDescription() string {
	return fmt.Sprintf("<self_name>%s<intimacy>%d<trust>%d<supportiveness>%d<description>%s<attitude>%s<partner_name>%s<plot_id>%d",
		r.SelfName, r.Intimacy, r.Trust, r.Supportiveness, r.Description, r.Attitude, r.PartnerName, r.PlotID)
}

func (r *Relationship) record() ([]string, []string) {
	return []string{"time", "self_name", "partner_name", "intimacy", "trust", "supportiveness", "description", "attitude", "plot_id", "round"},
		[]string{stamp(r.Time), r.SelfName, r.PartnerName, fmt.Sprint(r.Intimacy), fmt.Sprint(r.Trust), fmt.Sprint(r.Supportiveness),
			r.Description, r.Attitude, fmt.Sprint(r.PlotID), fmt.Sprint(r.Round)}
}

// Emotion is a PAD emotion with a free-text description.
type Emotion struct {
	SelfName    string    `json:"self_name"`
	PartnerName string    `json:"partner_name"`
	Pleasure    int       `json:"pleasure"`
	Arousal     int       `json:"arousal"`
	Dominance   int       `json:"dominance"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding"`
	PlotID      int       `json:"plot_id"`
	Round       int       `json:"round"`
	Time        time.Time `json:"time"`
}

// Prompt renders the emotion with its PAD scores.
func (e *Emotion) Prompt() string {
	return fmt.Sprintf("The emotion of %s is described as [%s].", e.SelfName, e.Description) +
		"According to PAD theory in a Likert scale with range (1-9), " +
		fmt.Sprintf("%s's emotion is %s pleasure, %s arousal, %s dominance.",
			e.SelfName, likertText(e.Pleasure), likertText(e.Arousal), likertText(e.Dominance))
}

// QuantitativeDescription renders only the PAD scores.
func (e *Emotion) QuantitativeDescription() string {
	return fmt.Sprintf("<pleasure>%d<arousal>%d<dominance>%d", e.Pleasure, e.Arousal, e.Dominance)
}

// FullDescription includes time, partner and plot.
func (e *Emotion) FullDescription() string {
	return fmt.Sprintf("<time>%s<self_name>%s%s<description>%s<partner_name>%s<plot_id>%d<round>%d",
		stamp(e.Time), e.SelfName, e.QuantitativeDescription(), e.Description, e.PartnerName, e.PlotID, e.Round)
}

// LogDescription renders the emotion for memory logs.
func (e *Emotion) LogDescription() string {
	return fmt.Sprintf("<self_name>%s%s<description>%s<partner_name>%s<plot_id>%d",
		e.SelfName, e.QuantitativeDescription(), e.Description, e.PartnerName, e.PlotID)
}

func (e *Emotion) record() ([]string, []string) {
	return []string{"time", "self_name", "partner_name", "pleasure", "arousal", "dominance", "description", "plot_id", "round"},
		[]string{stamp(e.Time), e.SelfName, e.PartnerName, fmt.Sprint(e.Pleasure), fmt.Sprint(e.Arousal), fmt.Sprint(e.Dominance),
			e.Description, fmt.Sprint(e.PlotID), fmt.Sprint(e.Round)}
}

// CoreSelf is the central belief of a character plus its core features.
type CoreSelf struct {
	SelfName          string               `json:"self_name"`
	CentralBelief     string               `json:"central_belief"`
	Features          []string             `json:"features"`
	FeatureEmbeddings map[string][]float64 `json:"feature_embeddings"`
	Embedding         []float64            `json:"embedding"`
	PlotID            int                  `json:"plot_id"`
	Round             int                  `json:"round"`
	Time              time.Time            `json:"time"`
}

// Prompt renders the central belief.
func (c *CoreSelf) Prompt() string {
	return fmt.Sprintf("%s's central belief is: [%s].", c.SelfName, c.CentralBelief)
}

// PromptWithFeatures renders the belief and the given features.
func (c *CoreSelf) PromptWithFeatures(features []string) string {
	prompt := c.Prompt()
	if len(features) != 0 {
		prompt += fmt.Sprintf("%s's personal features are: [%s].", c.SelfName, strings.Join(features, ", "))
	}
	return prompt
}

// RetrieveFeatures returns up to topK features whose similarity with q exceeds threshold,
// most similar first.
func (c *CoreSelf) RetrieveFeatures(q []float64, topK int, threshold float64) []string {
	type scored struct {
		feature string
		score   float64
	}
	ranked := make([]scored, 0, len(c.Features))
	for _, f := range c.Features {
		emb, ok := c.FeatureEmbeddings[f]
		if !ok {
			continue
		}
		ranked = append(ranked, scored{f, Cosine(emb, q)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	var out []string
	for i := 0; i < len(ranked) && i < topK; i++ {
		if ranked[i].score > threshold {
			out = append(out, ranked[i].feature)
		}
	}
	return out
}

// FeaturePrompt renders the belief with the features relevant to queries.
// With no queries every feature is included. The embeddings of the chosen
// features are returned alongside.
func (c *CoreSelf) FeaturePrompt(queries [][]float64, topK int, threshold float64) (string, [][]float64) {
	features := c.Features
	if len(queries) > 0 {
		seen := make(map[string]bool)
		features = nil
		for _, q := range queries {
			for _, f := range c.RetrieveFeatures(q, topK, threshold) {
				if !seen[f] {
					seen[f] = true
					features = append(features, f)
				}
			}
		}
	}
	embeddings := make([][]float64, 0, len(features))
	for _, f := range features {
		if emb, ok := c.FeatureEmbeddings[f]; ok {
			embeddings = append(embeddings, emb)
		}
	}
	return c.PromptWithFeatures(features), embeddings
}

// Clone returns a deep copy of the core self.
func (c *CoreSelf) Clone() *CoreSelf {
	out := *c
	out.Features = append([]string(nil), c.Features...)
	out.FeatureEmbeddings = make(map[string][]float64, len(c.FeatureEmbeddings))
	for k, v := range c.FeatureEmbeddings {
		out.FeatureEmbeddings[k] = v
	}
	return &out
}

// LogDescription renders the core self for memory logs.
func (c *CoreSelf) LogDescription() string {
	return fmt.Sprintf("<self_name>%s<central_belief>%s<plot_id>%d", c.SelfName, c.CentralBelief, c.PlotID)
}

func (c *CoreSelf) record() ([]string, []string) {
	return []string{"self_name", "central_belief", "plot_id", "round", "time"},
		[]string{c.SelfName, c.CentralBelief, fmt.Sprint(c.PlotID), fmt.Sprint(c.Round), stamp(c.Time)}
}

// Motivation holds a long-term and a short-term motivation.
type Motivation struct {
	SelfName  string    `json:"self_name"`
	LongTerm  string    `json:"long_term"`
	ShortTerm string    `json:"short_term"`
	Embedding []float64 `json:"embedding"`
	PlotID    int       `json:"plot_id"`
	Round     int       `json:"round"`
	Time      time.Time `json:"time"`
}

// Prompt renders both motivations. It is also the embedding text.
func (m *Motivation) Prompt() string {
	return fmt.Sprintf("%s's long-term motivation is [%s] ;%s's short-term motivation is [%s].",
		m.SelfName, m.LongTerm, m.SelfName, m.ShortTerm)
}

// FullMotivation renders the two terms.
func (m *Motivation) FullMotivation() string {
	return fmt.Sprintf("<long_term>%s<short_term>%s", m.LongTerm, m.ShortTerm)
}

// LogDescription renders the motivation for memory logs.
func (m *Motivation) LogDescription() string {
	return fmt.Sprintf("<self_name>%s%s<plot_id>%d", m.SelfName, m.FullMotivation(), m.PlotID)
}

func (m *Motivation) record() ([]string, []string) {
	return []string{"self_name", "long_term", "short_term", "plot_id", "round", "time"},
		[]string{m.SelfName, m.LongTerm, m.ShortTerm, fmt.Sprint(m.PlotID), fmt.Sprint(m.Round), stamp(m.Time)}
}

// Topic is something a character wants to raise with a partner.
type Topic struct {
	SelfName      string    `json:"self_name"`
	PartnerName   string    `json:"partner_name"`
	Description   string    `json:"description"`
	Summary       string    `json:"summary"`
	Poignancy     int       `json:"poignancy"`
	Emergency     int       `json:"emergency"`
	CreatedPlotID int       `json:"created_plot_id"`
	Used          bool      `json:"used"`
	UsedPlotID    int       `json:"used_plot_id"`
	Round         int       `json:"round"`
	Time          time.Time `json:"time"`
}

// Score ranks topics: zero once used, otherwise poignancy plus twice the emergency.
func (t *Topic) Score() int {
	if t.Used {
		return 0
	}
	return t.Poignancy + 2*t.Emergency
}

// Prompt renders the topic as a dict literal.
func (t *Topic) Prompt() string {
	return fmt.Sprintf("{'description': '%s', 'poignancy': %d, 'emergency': %d}", t.Description, t.Poignancy, t.Emergency)
}

// UsedInfo renders a used topic, or "" if the topic is unused.
func (t *Topic) UsedInfo() string {
	if !t.Used {
		return ""
	}
	return fmt.Sprintf("Topic: [%s] in plot [%d] with partner [%s]].\n", t.Description, t.UsedPlotID, t.PartnerName)
}

// LogDescription renders the topic for memory logs.
func (t *Topic) LogDescription() string {
	return fmt.Sprintf("<self_name>%s<description>%s<poignancy>%d<emergency>%d<partner_name>%s<summary>%s",
		t.SelfName, t.Description, t.Poignancy, t.Emergency, t.PartnerName, t.Summary)
}

func (t *Topic) record() ([]string, []string) {
	return []string{"self_name", "description", "poignancy", "emergency", "time", "created_plot_id", "round", "used", "used_plot_id", "partner_name", "summary"},
		[]string{t.SelfName, t.Description, fmt.Sprint(t.Poignancy), fmt.Sprint(t.Emergency), stamp(t.Time), fmt.Sprint(t.CreatedPlotID),
			fmt.Sprint(t.Round), fmt.Sprint(t.Used), fmt.Sprint(t.UsedPlotID), t.PartnerName, t.Summary}
}

// Plot is one bounded interaction episode between two characters.
type Plot struct {
	SelfName       string    `json:"self_name"`
	PlotID         int       `json:"plot_id"`
	PlotBackground string    `json:"plot_background"`
	Summary        string    `json:"summary"`
	Generated      bool      `json:"generated"`
	Time           time.Time `json:"time"`
}
