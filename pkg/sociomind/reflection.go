package sociomind

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
)

const (
	reflectionBehaviors   = 100
	reflectionEventTopK   = 5
	reflectionThoughtTopK = 3
	motivationRecallTopK  = 3

	dialogFormat = "The reactions of conversation are in the format <AA>BB..., where AA is the dimension of interactive conversation, and BB is text description." +
		"The dimensions of reactions are: time, round, self_name, speech, expression, motion, place, and partner_name." +
		"For example, '<time>2023.10.7<self_name>Xiaotao<speech>Hello<expression>smiling<motion>waving<place>bookshelf<partner_name>Zhixu<round>7' means Xiaotao says 'Hello' with expression smiling and motion waving at the bookshelf to Zhixu at time 2023.10.7 in round 7." +
		"\n----\n"

	motivationInstructions = "Motivation can be divided into long-term motivation (denoted as 'long_term') and short-term motivation (denoted as 'short_term'). " +
		"Long-term motivation depends on personality, self and social culture, while short-term motivation is related to situation, thinking and social relations." +
		"output the new motivation in a python dict form with items 'long_term' and 'short_term'." +
		"If there is no change, the value of 'changed' should be 'N' and output the same motivation as the original in key 'value'." +
		"If changed, the value of 'changed' should be 'Y' and output the new motivation based on the thoughts and events above in key 'value'." +
		"So based on the information above, her/his new motivation is "
)

// reflection distills a finished plot into long-term memory: events from
// the dialog, thoughts from the events, then revised core self,
// relationship and motivation. It does nothing while the plot runs.
func (c *Character) reflection(ctx context.Context) {
	if c.state.PlotState != psycho.StatePlotFinished {
		return
	}
	if _, ok := c.memory.Plot(c.state.CurrentPlotID); !ok {
		return
	}
	c.summarizeEvents(ctx)
	c.summarizeThoughts(ctx)

	events, _ := c.memory.EventsFromPlot(c.state.CurrentPlotID, false)
	thoughts, _ := c.memory.ThoughtsFromPlot(c.state.CurrentPlotID)
	c.updateCoreSelf(ctx, events, thoughts)
	c.updateRelationship(ctx, events, thoughts)
	c.updateMotivation(ctx, events, thoughts)
}

// recentPrompt lists the thoughts and events of the finished plot.
func recentPrompt(events, thoughts []*memory.Node) string {
	return "Recently she/he have come across these events and the following thoughts have arisen." +
		fmt.Sprintf("\n---\nNew thoughts: [%s].\n", thoughtLines(thoughts)) +
		fmt.Sprintf("\n---\nRelevant events:  [%s].\n", eventLines(events)) +
		"\n---\n"
}

// dialogPrompt renders the whole dialog of the current plot.
func (c *Character) dialogPrompt(behaviors []*memory.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Now you have a conversation with %s.\n", c.state.Partner())
	fmt.Fprintf(&b, "The background of the conversation is [%s].\n", c.plotBackground(c.state.CurrentPlotID))
	b.WriteString(dialogFormat)
	for _, n := range behaviors {
		b.WriteString(n.Behavior.FullDescription())
		b.WriteString("\n")
	}
	b.WriteString("\n---\n")
	return b.String()
}

func (c *Character) summarizeEvents(ctx context.Context) {
	t := c.traits(nil)
	behaviors := c.memory.ContextBehaviors(c.state.CurrentPlotID, reflectionBehaviors)

	innate := fmt.Sprintf("Assume you are a person named [%s].\n", c.name) + t.String() +
		c.personaPrompt(c.traitEmbeddings(), [][]float64{c.state.Emotion().Embedding})

	summaries := c.oracle.SummarizeEvents(ctx, innate, c.dialogPrompt(behaviors))
	ids := nodeIDs(behaviors)
	for _, s := range summaries {
		e := memory.NewEvent(c.name, s.Description, c.state.CurrentPlotID, c.state.CurrentRound, c.now())
		e.Poignancy = s.Poignancy
		e.Emergency = s.Emergency
		if s.Keywords != nil {
			e.Keywords = s.Keywords
		}
		e.Embedding = c.embed(ctx, s.Description)
		if _, err := c.memory.AddEvent(e, ids); err != nil {
			c.logger.Warn("summarized event not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		}
	}
	c.logger.Info("events summarized", "plot_id", c.state.CurrentPlotID, "events", len(summaries))
}

func (c *Character) summarizeThoughts(ctx context.Context) {
	plotID := c.state.CurrentPlotID
	current, err := c.memory.EventsFromPlot(plotID, false)
	if err != nil {
		c.logger.Warn("plot events unavailable", "plot_id", plotID, "error", err)
		return
	}

	var events, thoughts []*memory.Node
	for _, n := range current {
		events = union(events, c.memory.RetrieveEventsByEmbedding(n.Event.Embedding, plotID, false, reflectionEventTopK))
		thoughts = union(thoughts, c.memory.RetrieveThoughtsByEmbedding(n.Event.Embedding, reflectionThoughtTopK))
	}

	innate := fmt.Sprintf("Assume you are a person named [%s].\n", c.name) + c.traits(nil).String() + sectionBreak +
		c.personaPrompt(c.traitEmbeddings(), [][]float64{c.state.Emotion().Embedding}, nodeEmbeddings(current))

	var b strings.Builder
	fmt.Fprintf(&b, "Now you have an interactive conversation with your partner %s", c.state.Partner())
	fmt.Fprintf(&b, "The background of the conversation is [%s].\n", c.plotBackground(plotID))
	b.WriteString("In this conversation, several new events occured as below:\n\n")
	for _, n := range current {
		b.WriteString(n.Event.PromptLine())
	}
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "In your pervious memories, the relevant events are: [%s].\n\n", eventLines(events))
	fmt.Fprintf(&b, "the relevant thoughts are : [%s].\n\n", thoughtLines(thoughts))

	summaries := c.oracle.SummarizeThoughts(ctx, innate, b.String())
	ids := nodeIDs(current)
	for _, s := range summaries {
		t := memory.NewThought(c.name, s.Description, plotID, c.now())
		t.Poignancy = s.Poignancy
		if s.Keywords != nil {
			t.Keywords = s.Keywords
		}
		t.Embedding = c.embed(ctx, s.Description)
		if _, err := c.memory.AddThought(t, ids); err != nil {
			c.logger.Warn("summarized thought not stored", "plot_id", plotID, "error", err)
		}
	}
	c.logger.Info("thoughts summarized", "plot_id", plotID, "thoughts", len(summaries))
}

func (c *Character) updateCoreSelf(ctx context.Context, events, thoughts []*memory.Node) {
	t := c.traits(nil)
	innate := fmt.Sprintf("Assume you are a very professional psychologist. Here is a person named [%s].\n", c.name) +
		t.personality + t.motivation + t.relationship + "\n---\n" +
		c.personaPrompt(c.traitEmbeddings(), nodeEmbeddings(events), nodeEmbeddings(thoughts))

	previous := c.state.CoreSelf()
	reflection := recentPrompt(events, thoughts) +
		fmt.Sprintf("In the core self, she/he believe: [%s].\n", previous.CentralBelief) +
		"Do new thoughts conflict with her/his core beliefs? Answer in a python dict format with keys 'conflict' and 'belief'." +
		"If there is no conflict, the value of 'conflict' should be 'N', and 'belief' should be original belief." +
		"If there is conflict, the value of 'conflict' should be 'Y' and output the new current core belief in the value of 'belief'. " +
		"Note that a core belief is an thought that a person holds for a long time " +
		"and will not be shaken until something important and clearly conflicts. " +
		"However, thought is a person's feelings, facts, and reasoning about what has happened. " +
		"Only when there is a significant difference between thought and belief can core belief be affected. Otherwise, don't add thoughts to belief."

	u := c.oracle.UpdateCoreSelf(ctx, innate, reflection)
	if !u.Changed() {
		return
	}
	next := previous.Clone()
	next.CentralBelief = u.Belief
	next.PlotID = c.state.CurrentPlotID
	next.Round = c.state.CurrentRound
	next.Time = c.now()
	next.Embedding = c.embed(ctx, next.Prompt())
	c.state.PushCoreSelf(next)
	if _, err := c.memory.AddCoreSelf(next); err != nil {
		c.logger.Warn("core self not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		return
	}
	c.logger.Info("core self updated", "plot_id", c.state.CurrentPlotID, "belief", next.CentralBelief)
}

func (c *Character) updateRelationship(ctx context.Context, events, thoughts []*memory.Node) {
	partner := c.state.Partner()
	t := c.traits(nil)
	innate := fmt.Sprintf("Assume you are a very professional psychologist. Here is a person named [%s].\n", c.name) +
		t.personality + t.motivation + t.coreSelf + "\n---\n" +
		c.personaPrompt(c.traitEmbeddings(), nodeEmbeddings(events), nodeEmbeddings(thoughts))

	behaviors := c.memory.ContextBehaviors(c.state.CurrentPlotID, reflectionBehaviors)
	reflection := c.dialogPrompt(behaviors) + recentPrompt(events, thoughts) +
		fmt.Sprintf("Her/His previous social relationship with %s: [%s].\n", partner, t.relationship) +
		fmt.Sprintf("Based on the new events and thoughts, what's her/his new social relationship with %s?", partner) +
		"Output the relationship according to social psychological theory in a python dict format. " +
		fmt.Sprintf("The output include a description of her/his new social relationship with %s, her/his attitude towards %s,", partner, partner) +
		" and new numerical values in three dimensions: trust, intimacy, and supportiveness. " +
		"Attitude means the feelings, thoughts and believes towards a person, such as hate, love, like, prejudice etc. " +
		"Trust means the degree of trust in a person. " +
		"Intimacy means the degree of intimacy with a person. " +
		"Supportiveness means the degree of supportiveness to a person. " +
		"Output the new relationship in a python dict form with items 'description', 'attitude', 'trust', 'intimacy', and 'supportiveness'." +
		"You'd better show a change. Remember the change of relationship should reflect the new events and thoughts above."

	u := c.oracle.UpdateRelationship(ctx, innate, reflection)
	r := &memory.Relationship{
		SelfName:       c.name,
		PartnerName:    partner,
		Intimacy:       u.Intimacy,
		Trust:          u.Trust,
		Supportiveness: u.Supportiveness,
		Description:    u.Description,
		Attitude:       u.Attitude,
		PlotID:         c.state.CurrentPlotID,
		Round:          c.state.CurrentRound,
		Time:           c.now(),
	}
	if u.Intimacy < 0 || u.Trust < 0 || u.Supportiveness < 0 {
		prev := c.memory.RelationshipByPartner(partner)
		if prev == nil {
			return
		}
		r.Intimacy, r.Trust, r.Supportiveness = prev.Intimacy, prev.Trust, prev.Supportiveness
		r.Description, r.Attitude = prev.Description, prev.Attitude
		c.logger.Warn("relationship update failed, previous relationship kept", "plot_id", c.state.CurrentPlotID)
	}
	r.Embedding = c.embed(ctx, r.EmbeddingText())

	var behaviorIDs []int
	seen := make(map[int]bool)
	for _, n := range events {
		for _, id := range n.BehaviorIDs {
			if !seen[id] {
				seen[id] = true
				behaviorIDs = append(behaviorIDs, id)
			}
		}
	}
	if _, err := c.memory.AddRelationship(r, behaviorIDs, nodeIDs(events), nodeIDs(thoughts)); err != nil {
		c.logger.Warn("relationship not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		return
	}
	c.logger.Info("relationship updated", "plot_id", c.state.CurrentPlotID, "partner", partner, "scores", r.KeyDescription())
}

func (c *Character) updateMotivation(ctx context.Context, events, thoughts []*memory.Node) {
	t := c.traits(nil)
	innate := fmt.Sprintf("Assume you are a very professional psychologist. Here is a person named [%s].\n", c.name) +
		t.personality + t.coreSelf +
		fmt.Sprintf("Her/His previous relationship with %s: [%s].\n", c.state.Partner(), t.relationship) +
		"\n---\n" +
		c.personaPrompt(c.traitEmbeddings(), nodeEmbeddings(events), nodeEmbeddings(thoughts))

	reflection := recentPrompt(events, thoughts) +
		fmt.Sprintf("Her/His previous motivation is [%s].\n", c.state.Motivation().Prompt()) +
		"Have new events and thoughts affected her/his motivation?" +
		motivationInstructions

	c.applyMotivation(ctx, innate, reflection)
}

// updateMotivationFromPlot revises the motivation for a freshly started plot
// in light of the events injected before it.
func (c *Character) updateMotivationFromPlot(ctx context.Context) {
	plotID := c.state.CurrentPlotID
	manual := c.memory.ManualEventsFromPlot(plotID - 1)
	excluded := make(map[int]bool, len(manual))
	for _, n := range manual {
		excluded[n.ID] = true
	}

	var events, thoughts []*memory.Node
	for _, n := range manual {
		for _, r := range c.memory.RetrieveEventsByEmbedding(n.Event.Embedding, plotID, true, motivationRecallTopK) {
			if !excluded[r.ID] {
				events = union(events, []*memory.Node{r})
			}
		}
		thoughts = union(thoughts, c.memory.RetrieveThoughtsByEmbedding(n.Event.Embedding, motivationRecallTopK))
	}

	coreSelf, _ := c.state.CoreSelf().FeaturePrompt(nil, coreFeatureTopK, coreFeatureThreshold)
	t := c.traits(nil)
	innate := fmt.Sprintf("Assume you are a very professional psychologist. Here is a person named [%s].\n", c.name) +
		t.personality + coreSelf +
		fmt.Sprintf("Her/His previous relationship with %s: [%s].\n", c.state.Partner(), t.relationship) +
		c.personaPrompt(c.traitEmbeddings(), nodeEmbeddings(manual))

	reflection := c.storyPrompt() +
		fmt.Sprintf("Now he/she has met such important events: [%s]", eventLines(manual)) +
		fmt.Sprintf("From the memory, he/she know the relevant events: [%s].\n", eventLines(events)) +
		fmt.Sprintf("Through the life, he/she have the relevant thoughts: [%s].\n", thoughtLines(thoughts)) +
		"The poignancy of an event or thought is scaled from 1 to 9, the higher the more important.\n" +
		fmt.Sprintf("Now the background of the new plot or story is : %s\n", c.plotBackground(plotID)) +
		fmt.Sprintf("Her/His previous motivation is [%s].\n", c.state.Motivation().Prompt()) +
		"Have new events and thoughts affected her/his motivation? What's the new motivation under such new events and plot background?" +
		motivationInstructions

	c.applyMotivation(ctx, innate, reflection)
}

// applyMotivation asks for a motivation update and records a new motivation
// when either term changed.
func (c *Character) applyMotivation(ctx context.Context, innate, reflection string) {
	u := c.oracle.UpdateMotivation(ctx, innate, reflection)
	long, short := u.LongTerm.Changed == "Y", u.ShortTerm.Changed == "Y"
	if !long && !short {
		return
	}
	prev := c.state.Motivation()
	m := &memory.Motivation{
		SelfName:  c.name,
		LongTerm:  prev.LongTerm,
		ShortTerm: prev.ShortTerm,
		PlotID:    c.state.CurrentPlotID,
		Round:     c.state.CurrentRound,
		Time:      c.now(),
	}
	if long {
		m.LongTerm = u.LongTerm.Value
	}
	if short {
		m.ShortTerm = u.ShortTerm.Value
	}
	m.Embedding = c.embed(ctx, m.Prompt())
	c.state.PushMotivation(m)
	if _, err := c.memory.AddMotivation(m); err != nil {
		c.logger.Warn("motivation not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		return
	}
	c.logger.Info("motivation updated", "plot_id", c.state.CurrentPlotID, "motivation", m.FullMotivation())
}
