package core

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Mode selects how a character plans its next plot.
type Mode string

const (
	// ModePreconfigured replays the predefined plots in order.
	ModePreconfigured Mode = "preconfigured"

	// ModeAutonomous lets characters propose and negotiate their own plots.
	ModeAutonomous Mode = "autonomous"

	// ModeEventDriven is autonomous planning with scheduled events injected per plot.
	ModeEventDriven Mode = "event-driven"

	// ModeInteractive waits for an external driver to start plots.
	ModeInteractive Mode = "interactive"
)

// SimulationConfig is the YAML simulation profile: characters, places and the
// knobs of the plot lifecycle.
//
// Example profile:
//
//	application_type: AI society
//	mode: autonomous
//	place_dicts:
//	  room:
//	    kitchen: {}
//	    study:
//	      desk: {}
//	characters_info:
//	  Alice:
//	    personality: {description: "curious and warm"}
//	    relationships:
//	      Bob: {intimacy: 6, trust: 5, supportiveness: 7}
type SimulationConfig struct {
	ApplicationType string `yaml:"application_type" json:"application_type"`
	Mode            Mode   `yaml:"mode" json:"mode"`

	// Ticks is the number of society ticks a run performs.
	Ticks int `yaml:"ticks" json:"ticks"`

	RetentionPerception   int `yaml:"retention_perception" json:"retention_perception"`
	ContextRetention      int `yaml:"context_retention" json:"context_retention"`
	MaxRetrieveEvents     int `yaml:"max_retrieve_events" json:"max_retrieve_events"`
	MaxRetrieveThoughts   int `yaml:"max_retrieve_thoughts" json:"max_retrieve_thoughts"`
	MaxTopicPerPlot       int `yaml:"max_topic_per_plot" json:"max_topic_per_plot"`
	MaxTopicProposals     int `yaml:"max_topic_proposals" json:"max_topic_proposals"`
	MaxPlotRetention      int `yaml:"max_plot_retention" json:"max_plot_retention"`
	MaxUsedTopicRetrieval int `yaml:"max_used_topic_retrieval" json:"max_used_topic_retrieval"`
	EmotionUpdateRounds   int `yaml:"emotion_update_rounds" json:"emotion_update_rounds"`
	MaxRoundPerPlot       int `yaml:"max_round_per_plot" json:"max_round_per_plot"`
	MaxTopicCache         int `yaml:"max_topic_cache" json:"max_topic_cache"`

	MaxPerPersonaRetrieval int `yaml:"max_per_persona_retrieval" json:"max_per_persona_retrieval"`
	MaxPersonaRetrieval    int `yaml:"max_persona_retrieval" json:"max_persona_retrieval"`

	// MaxProposalAttempts bounds the plot proposal loop.
	MaxProposalAttempts int `yaml:"max_proposal_attempts" json:"max_proposal_attempts"`

	// PredefinedPlots holds one plot configuration per plot id (preconfigured mode).
	PredefinedPlots []PlotConfig `yaml:"predefined_plots" json:"predefined_plots"`

	// Events holds scheduled events indexed by plot id (event-driven mode).
	Events []PlotEvents `yaml:"events" json:"events"`

	Places PlaceTree `yaml:"place_dicts" json:"place_dicts"`

	// RootPlace is the place proposal prompts start from. Defaults to the first root.
	RootPlace string `yaml:"root_place" json:"root_place"`

	Characters map[string]CharacterProfile `yaml:"characters_info" json:"characters_info"`

	// PersonaTable is a path to the persona instruction YAML table (optional).
	PersonaTable string `yaml:"persona_table" json:"persona_table"`

	SaveDir string `yaml:"save_dir" json:"save_dir"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// PlotConfig maps a character name to its setup for one plot.
type PlotConfig map[string]PlotSetup

// Clone returns a deep copy of the plot configuration.
func (c PlotConfig) Clone() PlotConfig {
	if c == nil {
		return nil
	}
	out := make(PlotConfig, len(c))
	for name, setup := range c {
		out[name] = setup.Clone()
	}
	return out
}

// PlotSetup is one character's view of a plot: background, starting emotion
// and behavior, the topics it wants to raise, and scheduled events.
type PlotSetup struct {
	PlotBackground string         `yaml:"plot_background" json:"plot_background"`
	Summary        string         `yaml:"summary" json:"summary"`
	TopicIDs       []int          `yaml:"topic_ids" json:"topic_ids"`
	Poignancy      int            `yaml:"poignancy" json:"poignancy"`
	Emergency      int            `yaml:"emergency" json:"emergency"`
	Emotion        *EmotionSetup  `yaml:"emotion,omitempty" json:"emotion,omitempty"`
	Behavior       *BehaviorSetup `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	Events         []string       `yaml:"events,omitempty" json:"events,omitempty"`
}

// Score ranks a proposal: poignancy plus twice the emergency.
func (s PlotSetup) Score() int {
	return s.Poignancy + 2*s.Emergency
}

// Clone returns a deep copy of the setup.
func (s PlotSetup) Clone() PlotSetup {
	out := s
	if s.TopicIDs != nil {
		out.TopicIDs = append([]int(nil), s.TopicIDs...)
	}
	if s.Events != nil {
		out.Events = append([]string(nil), s.Events...)
	}
	if s.Emotion != nil {
		e := *s.Emotion
		if s.Emotion.PAD != nil {
			pad := *s.Emotion.PAD
			e.PAD = &pad
		}
		out.Emotion = &e
	}
	if s.Behavior != nil {
		b := *s.Behavior
		out.Behavior = &b
	}
	return out
}

// PAD is a pleasure/arousal/dominance triple on the 1-9 scale.
type PAD struct {
	Pleasure  int `yaml:"pleasure" json:"pleasure"`
	Arousal   int `yaml:"arousal" json:"arousal"`
	Dominance int `yaml:"dominance" json:"dominance"`
}

// EmotionSetup is either a free-text description or a PAD mapping.
type EmotionSetup struct {
	Description string `json:"description,omitempty"`
	PAD         *PAD   `json:"pad,omitempty"`
}

// Empty reports whether neither form is set.
func (e *EmotionSetup) Empty() bool {
	return e == nil || (e.Description == "" && e.PAD == nil)
}

// UnmarshalYAML accepts `emotion: "calm"` as well as `emotion: {pleasure: 6, ...}`.
func (e *EmotionSetup) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		e.Description = value.Value
		return nil
	case yaml.MappingNode:
		var pad PAD
		if err := value.Decode(&pad); err != nil {
			return err
		}
		e.PAD = &pad
		return nil
	default:
		return fmt.Errorf("emotion: unsupported yaml node at line %d", value.Line)
	}
}

// BehaviorSetup is the opening behavior of a plot.
type BehaviorSetup struct {
	Speech     string `yaml:"speech" json:"speech"`
	Expression string `yaml:"expression" json:"expression"`
	Motion     string `yaml:"motion" json:"motion"`
	Place      string `yaml:"place" json:"place"`
}

// ScheduledEvent is an event injected before a plot, visible to the named characters.
type ScheduledEvent struct {
	Description string   `json:"description"`
	Characters  []string `json:"characters"`
}

// Involves reports whether name is among the event's characters.
func (e ScheduledEvent) Involves(name string) bool {
	for _, c := range e.Characters {
		if c == name {
			return true
		}
	}
	return false
}

// PlotEvents is the ordered list of events scheduled for one plot.
type PlotEvents []ScheduledEvent

// UnmarshalYAML reads `description: [names]` pairs, keeping document order.
func (p *PlotEvents) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("events: expected mapping at line %d", value.Line)
	}
	events := make(PlotEvents, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		var names []string
		switch val.Kind {
		case yaml.ScalarNode:
			names = []string{val.Value}
		default:
			if err := val.Decode(&names); err != nil {
				return err
			}
		}
		events = append(events, ScheduledEvent{Description: key.Value, Characters: names})
	}
	*p = events
	return nil
}

// PlaceEntry is one node of the place tree.
type PlaceEntry struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Children    PlaceTree `json:"children,omitempty"`
}

// PlaceTree is an ordered forest of places.
type PlaceTree []PlaceEntry

// UnmarshalYAML reads nested mappings keeping key order. A `description`
// key holding a scalar describes the enclosing place.
func (t *PlaceTree) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("place tree: expected mapping at line %d", value.Line)
	}
	tree := make(PlaceTree, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		entry := PlaceEntry{Name: key.Value}
		if val.Kind == yaml.MappingNode {
			children := &yaml.Node{Kind: yaml.MappingNode, Tag: val.Tag}
			for j := 0; j+1 < len(val.Content); j += 2 {
				if val.Content[j].Value == "description" && val.Content[j+1].Kind == yaml.ScalarNode {
					entry.Description = val.Content[j+1].Value
					continue
				}
				children.Content = append(children.Content, val.Content[j], val.Content[j+1])
			}
			if err := children.Decode(&entry.Children); err != nil {
				return err
			}
		}
		tree = append(tree, entry)
	}
	*t = tree
	return nil
}

// CharacterProfile is the initial psychological profile of one character.
type CharacterProfile struct {
	Personality   PersonalityProfile             `yaml:"personality" json:"personality"`
	Emotion       EmotionProfile                 `yaml:"emotion" json:"emotion"`
	Motivation    MotivationProfile              `yaml:"motivation" json:"motivation"`
	CoreSelf      CoreSelfProfile                `yaml:"core_self" json:"core_self"`
	Relationships map[string]RelationshipProfile `yaml:"relationships" json:"relationships"`
}

// PersonalityProfile is a Big Five profile. Scores outside 1..9 mean unknown.
type PersonalityProfile struct {
	Description       string `yaml:"description" json:"description"`
	Openness          int    `yaml:"openness" json:"openness"`
	Conscientiousness int    `yaml:"conscientiousness" json:"conscientiousness"`
	Extraversion      int    `yaml:"extraversion" json:"extraversion"`
	Agreeableness     int    `yaml:"agreeableness" json:"agreeableness"`
	Neuroticism       int    `yaml:"neuroticism" json:"neuroticism"`
}

// EmotionProfile is the initial emotion.
type EmotionProfile struct {
	Description string `yaml:"description" json:"description"`
	Pleasure    int    `yaml:"pleasure" json:"pleasure"`
	Arousal     int    `yaml:"arousal" json:"arousal"`
	Dominance   int    `yaml:"dominance" json:"dominance"`
}

// MotivationProfile holds the long- and short-term motivation.
type MotivationProfile struct {
	LongTerm  string `yaml:"long_term" json:"long_term"`
	ShortTerm string `yaml:"short_term" json:"short_term"`
}

// CoreSelfProfile holds the central belief and core features.
type CoreSelfProfile struct {
	CentralBelief string   `yaml:"central_belief" json:"central_belief"`
	Features      []string `yaml:"features" json:"features"`
}

// RelationshipProfile is the initial relationship toward one partner.
type RelationshipProfile struct {
	Description    string `yaml:"description" json:"description"`
	Attitude       string `yaml:"attitude" json:"attitude"`
	Intimacy       int    `yaml:"intimacy" json:"intimacy"`
	Trust          int    `yaml:"trust" json:"trust"`
	Supportiveness int    `yaml:"supportiveness" json:"supportiveness"`
}

// LoadSimulationConfig reads a YAML simulation profile, applies defaults and validates it.
//
// Example:
//
//	sim, err := core.LoadSimulationConfig("configs/ai_society.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSimError("LoadSimulationConfig", err)
	}
	return ParseSimulationConfig(data)
}

// ParseSimulationConfig parses a YAML simulation profile from memory.
func ParseSimulationConfig(data []byte) (*SimulationConfig, error) {
	var sim SimulationConfig
	if err := yaml.Unmarshal(data, &sim); err != nil {
		return nil, NewSimError("ParseSimulationConfig", fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	sim.ApplyDefaults()
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	return &sim, nil
}

// ApplyDefaults fills every unset knob.
func (s *SimulationConfig) ApplyDefaults() {
	setDefault := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	if s.ApplicationType == "" {
		s.ApplicationType = "AI society"
	}
	if s.Mode == "" {
		s.Mode = ModeAutonomous
	}
	setDefault(&s.Ticks, 50)
	setDefault(&s.RetentionPerception, 6)
	setDefault(&s.ContextRetention, 12)
	setDefault(&s.MaxRetrieveEvents, 3)
	setDefault(&s.MaxRetrieveThoughts, 3)
	setDefault(&s.MaxTopicPerPlot, 2)
	setDefault(&s.MaxTopicProposals, 5)
	setDefault(&s.MaxPlotRetention, 5)
	setDefault(&s.MaxUsedTopicRetrieval, 10)
	setDefault(&s.EmotionUpdateRounds, 3)
	setDefault(&s.MaxRoundPerPlot, 12)
	setDefault(&s.MaxTopicCache, 20)
	setDefault(&s.MaxPerPersonaRetrieval, 3)
	setDefault(&s.MaxPersonaRetrieval, 10)
	setDefault(&s.MaxProposalAttempts, 3)
	if s.RootPlace == "" && len(s.Places) > 0 {
		s.RootPlace = s.Places[0].Name
	}
	if s.SaveDir == "" {
		s.SaveDir = "./sociomind_logs"
	}
}

// Validate checks the profile for a runnable two-character society.
func (s *SimulationConfig) Validate() error {
	switch s.Mode {
	case ModePreconfigured, ModeAutonomous, ModeEventDriven, ModeInteractive:
	default:
		return NewSimError("Validate", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s.Mode))
	}
	if s.ApplicationType != "AI society" {
		return NewSimError("Validate", fmt.Errorf("%w: unknown application type %q", ErrInvalidConfig, s.ApplicationType))
	}
	if len(s.Characters) < 2 {
		return NewSimError("Validate", fmt.Errorf("%w: at least two characters are required, got %d", ErrInvalidConfig, len(s.Characters)))
	}
	for _, knob := range []struct {
		name  string
		value int
	}{
		{"retention_perception", s.RetentionPerception},
		{"context_retention", s.ContextRetention},
		{"emotion_update_rounds", s.EmotionUpdateRounds},
		{"max_round_per_plot", s.MaxRoundPerPlot},
		{"max_proposal_attempts", s.MaxProposalAttempts},
	} {
		if knob.value <= 0 {
			return NewSimError("Validate", fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, knob.name, knob.value))
		}
	}
	if s.Mode == ModePreconfigured && len(s.PredefinedPlots) == 0 {
		return NewSimError("Validate", fmt.Errorf("%w: preconfigured mode needs predefined_plots", ErrInvalidConfig))
	}
	for i, plot := range s.PredefinedPlots {
		for name := range plot {
			if _, ok := s.Characters[name]; !ok {
				return NewSimError("Validate", fmt.Errorf("%w: predefined plot %d names unknown character %q", ErrInvalidConfig, i, name))
			}
		}
	}
	return nil
}

// CharacterNames returns the configured character names in sorted order.
func (s *SimulationConfig) CharacterNames() []string {
	names := make([]string, 0, len(s.Characters))
	for name := range s.Characters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
