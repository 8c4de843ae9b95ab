package sociomind_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/internal/simtest"
	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
	"github.com/oceanbase/sociomind-go/pkg/sociomind"
)

// behaviorsInPlot returns the behaviors of plotID, oldest first.
func behaviorsInPlot(c *sociomind.Character, plotID int) []*memory.Node {
	var out []*memory.Node
	nodes := c.Memory().Behaviors()
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].PlotID == plotID {
			out = append(out, nodes[i])
		}
	}
	return out
}

func TestReaction_DialogTurns(t *testing.T) {
	// Turns are served in call order: Alice, Bob, Alice, ... Bob repeats
	// himself on his second turn.
	fake := simtest.NewLLM().
		On("So your reaction is",
			"<self_name>Alice<speech>Tea?<expression>smile<motion>lifts the cup<place>chair<partner_name>Bob",
			"<self_name>Bob<speech>No thanks.<expression>frown<motion>keeps working<place>desk<partner_name>Alice",
			"<self_name>Alice<speech>Coffee then?<expression>grin<motion>points at the kettle<place>chair<partner_name>Bob",
			"<self_name>Bob<speech>No thanks.<expression>frown<motion>keeps working<place>desk<partner_name>Alice",
			"<self_name>Alice<speech>Water?<expression>shrug<motion>stands up<place>desk<partner_name>Bob",
			"<self_name>Bob<speech>Fine, water.<expression>sigh<motion>puts down the screwdriver<place>desk<partner_name>Alice",
			"<self_name>Alice<speech>Here you go.<expression>smile<motion>hands over a glass<place>desk<partner_name>Bob",
		).
		Default("END")
	s := newSociety(t, simulation(t, core.ModePreconfigured), fake)
	ctx := context.Background()
	alice := character(t, s, "Alice")
	bob := character(t, s, "Bob")
	emotions := len(alice.State().Emotions)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Tick(ctx))
	}

	// Alice reaches max_round_per_plot and closes the plot; Bob follows
	// because his partner stopped working.
	assert.Equal(t, psycho.StatePlotFinished, alice.PlotState())
	assert.Equal(t, 4, alice.State().CurrentRound)
	assert.Equal(t, psycho.StatePlotFinished, bob.PlotState())
	assert.Equal(t, 3, bob.State().CurrentRound)

	// One emotion update, after the third round.
	require.Len(t, alice.State().Emotions, emotions+1)
	stored := alice.Memory().Emotions()
	require.Len(t, stored, 1)
	assert.Equal(t, 0, stored[0].Emotion.PlotID)
	assert.Equal(t, 3, stored[0].Emotion.Round)

	// Opening and four turns of Alice; Bob's opening and two distinct turns.
	// His repeated turn was perceived once.
	nodes := behaviorsInPlot(alice, 0)
	require.Len(t, nodes, 8)
	var own, perceived []string
	for _, n := range nodes {
		if n.Behavior.SelfName == "Alice" {
			own = append(own, n.Behavior.Speech)
		} else {
			perceived = append(perceived, n.Behavior.Speech)
		}
	}
	assert.Equal(t, []string{"", "Tea?", "Coffee then?", "Water?", "Here you go."}, own)
	assert.Equal(t, []string{"", "No thanks.", "Fine, water."}, perceived)

	// Walk Alice's own chain from her opening behavior.
	var walked []string
	var partners []string
	for id := nodes[0].ID; id != memory.NoNode; {
		n, ok := alice.Memory().Node(id)
		require.True(t, ok)
		walked = append(walked, n.Behavior.Speech)
		if n.Chain.LastPartner != memory.NoNode {
			p, ok := alice.Memory().Node(n.Chain.LastPartner)
			require.True(t, ok)
			partners = append(partners, p.Behavior.Speech)
		}
		id = n.Chain.NextSelf
	}
	assert.Equal(t, own, walked)
	assert.Equal(t, []string{"", "No thanks.", "No thanks.", "Fine, water."}, partners,
		"each turn links to the partner behavior it answered")

	assert.Equal(t, "Here you go.", alice.State().CurrentBehavior.Speech)
	assert.Equal(t, "desk", alice.State().CurrentBehavior.Place)
}

func TestReaction_FailedSensingKeepsObservation(t *testing.T) {
	sim := simulation(t, core.ModeInteractive)
	sim.Characters["Carol"] = core.CharacterProfile{}
	o := oracle.New(simtest.NewLLM().Default("END"), &simtest.Embedder{})
	ctx := context.Background()
	opts := []sociomind.Option{sociomind.WithLogger(discard), sociomind.WithClock(clock())}

	alice, err := sociomind.NewCharacter(ctx, "Alice", "Bob", sim, o, opts...)
	require.NoError(t, err)
	// Bob answers only to Carol, so Alice cannot sense him.
	bob, err := sociomind.NewCharacter(ctx, "Bob", "Carol", sim, o, opts...)
	require.NoError(t, err)
	require.NoError(t, alice.SetPartner(bob))

	require.NoError(t, alice.Reaction(ctx))
	require.Equal(t, psycho.StatePlan, alice.PlotState())
	require.NoError(t, alice.StartPlot(ctx, core.PlotConfig{"Alice": {PlotBackground: "A quiet morning.", Summary: "morning"}}))

	last := psycho.ObservedInfo{
		PlotState:     psycho.StateWorking,
		PlotID:        0,
		BehaviorDesc:  "<self_name>Bob<speech>Hi<expression>smile<motion>waves<place>desk<partner_name>Alice",
		PlotProposals: []core.PlotConfig{{"Bob": {PlotBackground: "A walk."}}},
	}
	alice.State().PreservedObserved["Bob"] = last

	require.NoError(t, alice.Reaction(ctx))
	assert.Equal(t, last, alice.State().PreservedObserved["Bob"])
	assert.Equal(t, psycho.StatePlotFinished, alice.PlotState(), "an unseen partner is not working")
}

func TestStartPlot_FailedStoreLeavesStateUnchanged(t *testing.T) {
	s := newSociety(t, simulation(t, core.ModeInteractive), simtest.NewLLM().Default("END"))
	ctx := context.Background()
	alice := character(t, s, "Alice")

	require.NoError(t, s.Tick(ctx))
	require.Equal(t, psycho.StatePlan, alice.PlotState())
	// Plot 0 is already taken in memory.
	_, err := alice.Memory().AddPlot(&memory.Plot{SelfName: "Alice", PlotID: 0, PlotBackground: "elsewhere"})
	require.NoError(t, err)
	emotions := len(alice.State().Emotions)

	err = alice.StartPlot(ctx, core.PlotConfig{"Alice": {
		PlotBackground: "A rainy afternoon.",
		Summary:        "rain",
		Emotion:        &core.EmotionSetup{Description: "gloomy"},
		Behavior:       &core.BehaviorSetup{Place: "chair", Motion: "reads"},
	}})
	require.Error(t, err)

	assert.Equal(t, -1, alice.PlotID())
	assert.Equal(t, psycho.StatePlan, alice.PlotState())
	assert.Len(t, alice.State().Emotions, emotions)
	assert.Nil(t, alice.State().CurrentBehavior)
	assert.Nil(t, alice.State().CurrentPlotConfig)
}

func TestNewSociety_RejectsNonPositiveRoundSettings(t *testing.T) {
	tests := []struct {
		name string
		set  func(*core.SimulationConfig)
	}{
		{name: "emotion update rounds", set: func(s *core.SimulationConfig) { s.EmotionUpdateRounds = 0 }},
		{name: "max round per plot", set: func(s *core.SimulationConfig) { s.MaxRoundPerPlot = -1 }},
		{name: "retention perception", set: func(s *core.SimulationConfig) { s.RetentionPerception = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := simulation(t, core.ModePreconfigured)
			tt.set(sim)
			_, err := sociomind.NewSociety(context.Background(), &core.Config{Simulation: sim},
				sociomind.WithLLM(simtest.NewLLM().Default("END")),
				sociomind.WithEmbedder(&simtest.Embedder{}),
				sociomind.WithLogger(discard),
			)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}
