package psycho

import (
	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
)

// Snapshot is the persisted part of a State. Transient plot fields are not
// kept; a restored state resumes at the start of a plot boundary.
type Snapshot struct {
	Name          string               `json:"name"`
	Partner       string               `json:"partner"`
	CurrentPlotID int                  `json:"current_plot_id"`
	CurrentRound  int                  `json:"current_round"`
	Personalities []*Personality       `json:"personality_list"`
	Emotions      []*memory.Emotion    `json:"emotion_list"`
	Motivations   []*memory.Motivation `json:"motivation_list"`
	CoreSelves    []*memory.CoreSelf   `json:"core_self_list"`
	CurrentTopics []*memory.Topic      `json:"current_topic_list"`
	UsedTopics    []*memory.Topic      `json:"used_topic_list"`
	PlotState     PlotState            `json:"plot_state"`
	PlotConfig    core.PlotConfig      `json:"current_plot_config,omitempty"`
}

// Snapshot captures the state. Slices are copied; records are shared.
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{
		Name:          s.name,
		Partner:       s.partner,
		CurrentPlotID: s.CurrentPlotID,
		CurrentRound:  s.CurrentRound,
		Personalities: append([]*Personality(nil), s.Personalities...),
		Emotions:      append([]*memory.Emotion(nil), s.Emotions...),
		Motivations:   append([]*memory.Motivation(nil), s.Motivations...),
		CoreSelves:    append([]*memory.CoreSelf(nil), s.CoreSelves...),
		CurrentTopics: append([]*memory.Topic(nil), s.CurrentTopics...),
		UsedTopics:    append([]*memory.Topic(nil), s.UsedTopics...),
		PlotState:     s.PlotState,
		PlotConfig:    s.CurrentPlotConfig.Clone(),
	}
}

// Restore replaces the histories and cursors of s with those of snap.
// Transient plot fields are reset.
func (s *State) Restore(snap *Snapshot) error {
	if snap == nil {
		return core.NewSimError("Restore", core.ErrSnapshotNotFound)
	}
	if snap.Name != s.name || len(snap.Personalities) == 0 || len(snap.Emotions) == 0 ||
		len(snap.Motivations) == 0 || len(snap.CoreSelves) == 0 {
		return core.NewSimError("Restore", core.ErrInvalidInput)
	}
	s.ResetPlot()
	s.partner = snap.Partner
	s.CurrentPlotID = snap.CurrentPlotID
	s.CurrentRound = snap.CurrentRound
	s.Personalities = append([]*Personality(nil), snap.Personalities...)
	s.Emotions = append([]*memory.Emotion(nil), snap.Emotions...)
	s.Motivations = append([]*memory.Motivation(nil), snap.Motivations...)
	s.CoreSelves = append([]*memory.CoreSelf(nil), snap.CoreSelves...)
	s.CurrentTopics = append([]*memory.Topic(nil), snap.CurrentTopics...)
	s.UsedTopics = append([]*memory.Topic(nil), snap.UsedTopics...)
	s.PlotState = snap.PlotState
	s.CurrentPlotConfig = snap.PlotConfig.Clone()
	return nil
}
