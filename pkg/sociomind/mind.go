package sociomind

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/llm"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
)

const maxPersonaContextBehaviors = 5

// workingMemory is what a character recalls for the behavior it answers.
type workingMemory struct {
	current  *memory.Behavior
	context  []*memory.Node
	events   []*memory.Node
	thoughts []*memory.Node
}

// perception stores the partner's latest behavior unless it was already seen
// among the recent behaviors.
func (c *Character) perception(ctx context.Context) {
	desc := c.state.PreservedObserved[c.state.Partner()].BehaviorDesc
	if !strings.HasPrefix(desc, "<self_name>") {
		return
	}
	b, err := memory.ParseBehavior(desc)
	if err != nil {
		c.logger.Debug("partner behavior ignored", "error", err)
		return
	}
	for _, n := range c.memory.LatestBehaviors(c.sim.RetentionPerception) {
		if n.Behavior.SameAs(b) {
			return
		}
	}

	b.Time = c.now()
	b.Round = c.state.CurrentRound
	b.PlotID = c.state.CurrentPlotID
	b.Embedding = c.embed(ctx, b.InteractiveDescription())
	if _, err := c.memory.AddBehavior(b); err != nil {
		c.logger.Warn("perceived behavior not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		return
	}
	c.state.PerceivedBehaviors = append([]*memory.Behavior{b}, c.state.PerceivedBehaviors...)
}

// memoryQuery recalls the dialog context, events and thoughts relevant to
// the newest perceived behavior.
func (c *Character) memoryQuery() {
	c.working = workingMemory{}
	if len(c.state.PerceivedBehaviors) == 0 {
		return
	}
	b := c.state.PerceivedBehaviors[0]
	plotID := c.state.CurrentPlotID
	c.working = workingMemory{
		current:  b,
		context:  c.memory.ContextBehaviors(plotID, c.sim.ContextRetention),
		events:   c.memory.RetrieveEventsByEmbedding(b.Embedding, plotID, false, c.sim.MaxRetrieveEvents),
		thoughts: c.memory.RetrieveThoughtsByEmbedding(b.Embedding, c.sim.MaxRetrieveThoughts),
	}
}

func (c *Character) decisionSystemPrompt(t traits) string {
	partner := c.state.Partner()
	var b strings.Builder
	fmt.Fprintf(&b, "Let's do a role play like making a film. Assume you are a person named [%s].\n", c.name)
	fmt.Fprintf(&b, "I'm a person with name [%s] to interact with you.\n", partner)
	fmt.Fprintf(&b, "In this plot, you are a person named [%s].\n", c.name)
	b.WriteString(t.String())
	b.WriteString(c.state.Emotion().Prompt())
	b.WriteString(sectionBreak)
	fmt.Fprintf(&b, "The background of the interactive plot and conversation is [%s].\n", c.plotBackground(c.state.CurrentPlotID))
	fmt.Fprintf(&b, "The topics you want to start with %s are: [%s].\n", partner, topicLines(c.state.TopicsForCurrentPlot))
	b.WriteString("The reactions of interactive conversation are in the format of a string like <AA>BB, where AA means the attributes and BB means the corresponding value." +
		"For each round, we react to each other in four dimensions: speech, expression, motion, and place." +
		"For example, '<self_name>Xiaotao<speech>Hello<expression>smiling<motion>waving hands and sit up<place>bookshelf<partner_name>Zhixu' means the person Xiaotao says 'Hello' with expression smiling and motion waving at the bookshelf to Zhixu.")
	b.WriteString("Your reactions should based on psychological traits and procedure, which means that it depends on your personality, emotion, motivation, belief, and your memories." +
		"You should enter the topics based on plot background quickly by speechs, motions and expressions." +
		"For speech, do not be formal in daily conversations, and your propensity for cooperation and friendliness should be consistent with your current psychological traits and procedure." +
		"Your speech should be consistent with current plot background and the topics. Better express specific meanings instead of abstract concepts." +
		"Must avoid repeating what the other person said." +
		"Your speech should not be too polite. It's best that your conversations continue to bring up new topics, not cater to each other." +
		"And never reveal that you are a language model by saying things like 'As an language model' or 'As a digital robot'.\n" +
		"For motion, the motions must be various and atomic that can convey body language, plausible and natural in the setting of relationship between the two characters and the physical scenes.\n" +
		"These are examples of motion: embraces tightly for warm, push away in anger, lightly brushes fingers on partner's arm, hits the thigh hard with the fist, clap hands happily, jump , pat on the back, ..." +
		"For expression, the expression should be plausible with the emotion and current speech.\n")
	fmt.Fprintf(&b, "For place, your motions are in a room studio. %s\n Your place name must be in the room studio.\n", c.placePrompt())
	return b.String()
}

// relevantMemoryPrompt renders the recalled events and thoughts.
func relevantMemoryPrompt(events, thoughts []*memory.Node) string {
	return "\n\n---\n\nIn this interactive conversation, you have several relevant memories:\n\n" +
		fmt.Sprintf("Relevant events: [%s].\n\n", eventLines(events)) +
		fmt.Sprintf("Relevant thoughts: [%s].\n\n", thoughtLines(thoughts)) +
		sectionBreak
}

// decision asks the oracle for the next dialog turn. Ending the
// conversation, or reaching the round limit, finishes the plot.
func (c *Character) decision(ctx context.Context) {
	wm := c.working
	if wm.current == nil {
		// Nothing new from the partner: answer our own latest behavior.
		wm.current = c.state.CurrentBehavior
	}
	var query []float64
	if wm.current != nil {
		query = wm.current.Embedding
	}
	t := c.traits(query)

	messages := []llm.Message{{Role: llm.RoleSystem, Content: c.decisionSystemPrompt(t)}}
	for _, n := range wm.context {
		role := llm.RoleUser
		if n.Behavior.SelfName == c.name {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: n.Behavior.InteractiveDescription()})
	}
	if wm.current != nil {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: wm.current.InteractiveDescription()})
	}

	contextEmbeddings := nodeEmbeddings(wm.context)
	if len(contextEmbeddings) > maxPersonaContextBehaviors {
		contextEmbeddings = contextEmbeddings[:maxPersonaContextBehaviors]
	}
	current := relevantMemoryPrompt(wm.events, wm.thoughts) +
		c.personaPrompt(c.traitEmbeddings(), [][]float64{c.state.Emotion().Embedding},
			nodeEmbeddings(wm.events), nodeEmbeddings(wm.thoughts), contextEmbeddings) +
		"############\nAttention: \n\n" +
		"Now you have two options for reaction: end the conversation or respond based on the information above." +
		"When the above conversation becomes pointless, repetitive or doesn't fit your motivation, personality, or topics, you should end the interactive conversation." +
		"Your speech should not be too polite. Don't easily express your gratitude and friendliness. It's best that your conversations continue to bring up new topics, not cater to each other." +
		"If you end the conversation, your output should be: 'END', and if you react, it should be structured the similar way as the example provided." +
		"So your reaction is "
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: current})

	partner := c.state.Partner()
	d := c.oracle.Decide(ctx, messages, [2]string{c.name, partner}, c.checkPlace())
	if d.End {
		c.logger.Info("conversation ended", "plot_id", c.state.CurrentPlotID, "round", c.state.CurrentRound, "partner", partner)
		c.setState(psycho.StatePlotFinished)
		return
	}

	b := &memory.Behavior{
		SelfName:    c.name,
		PartnerName: partner,
		Speech:      d.Behavior.Speech,
		Expression:  d.Behavior.Expression,
		Motion:      d.Behavior.Motion,
		Place:       d.Behavior.Place,
		Round:       c.state.CurrentRound,
		PlotID:      c.state.CurrentPlotID,
		Time:        c.now(),
	}
	b.Embedding = c.embed(ctx, b.InteractiveDescription())
	if _, err := c.memory.AddBehavior(b); err != nil {
		c.logger.Warn("behavior not stored", "plot_id", c.state.CurrentPlotID, "error", err)
	}
	c.logger.Debug("behavior decided", "plot_id", b.PlotID, "round", b.Round, "behavior", b.InteractiveDescription())
	c.state.CurrentBehavior = b
	c.state.CurrentRound++

	if c.state.CurrentRound%c.sim.EmotionUpdateRounds == 0 {
		c.updateEmotion(ctx, t, b)
	}
	if c.state.CurrentRound >= c.sim.MaxRoundPerPlot {
		c.setState(psycho.StatePlotFinished)
	}
}

func (c *Character) updateEmotion(ctx context.Context, t traits, b *memory.Behavior) {
	innate := fmt.Sprintf("Assume you are a very professional psychologist. Here is a person named [%s].\n", c.name) +
		t.String() + sectionBreak
	recalled := "\n\n---\n\nIn this conversation, she/he have several relevant memories:\n\n" +
		fmt.Sprintf("Relevant events: [%s].\n\n", eventLines(c.working.events)) +
		fmt.Sprintf("Relevant thoughts: [%s].\n\n", thoughtLines(c.working.thoughts)) +
		sectionBreak

	emotion := c.state.EmotionUpdate(ctx, innate, recalled, b.InteractiveDescription(), c.state.Emotions[0].Prompt())
	if _, err := c.memory.AddEmotion(emotion); err != nil {
		c.logger.Warn("emotion not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		return
	}
	c.logger.Debug("emotion updated", "plot_id", emotion.PlotID, "emotion", emotion.FullDescription())
}
