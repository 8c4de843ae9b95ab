package sociomind

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
	"github.com/oceanbase/sociomind-go/pkg/psycho"
)

const scheduledEventBoost = 5

// Selection is the plot two characters agreed on, seen by one of them.
type Selection struct {
	// Plot is the configuration to start. It holds a setup for the selecting
	// character.
	Plot core.PlotConfig

	// Own reports whether the selecting character's proposal won.
	Own bool
}

// SelectPlot negotiates the next plot of self from its own proposals and
// those of partner. Only the first proposal of each side counts, scored by
// poignancy plus twice the emergency of its proposer's setup. The higher
// score wins; on a tie the lexicographically greater name wins, so both
// characters reach the same decision. When the partner wins, self keeps its
// own plot but takes the emotion and behavior the partner proposed for it.
// When only the partner proposed, self joins that plot without a background
// or topics of its own. It reports false when neither side proposed.
func SelectPlot(self, partner string, own, theirs []core.PlotConfig) (Selection, bool) {
	var mine, other core.PlotConfig
	if len(own) > 0 {
		if _, ok := own[0][self]; ok {
			mine = own[0]
		}
	}
	if len(theirs) > 0 {
		_, hasSelf := theirs[0][self]
		_, hasPartner := theirs[0][partner]
		if hasSelf && hasPartner {
			other = theirs[0]
		}
	}

	switch {
	case mine != nil && other != nil:
		ownScore := mine[self].Score()
		partnerScore := other[partner].Score()
		if ownScore > partnerScore || (ownScore == partnerScore && self > partner) {
			return Selection{Plot: mine.Clone(), Own: true}, true
		}
		selected := mine.Clone()
		setup := selected[self]
		winner := other[self].Clone()
		setup.Emotion = winner.Emotion
		setup.Behavior = winner.Behavior
		selected[self] = setup
		return Selection{Plot: selected}, true

	case other != nil:
		selected := other.Clone()
		setup := selected[self]
		setup.PlotBackground = ""
		setup.TopicIDs = []int{}
		selected[self] = setup
		return Selection{Plot: selected}, true

	case mine != nil:
		return Selection{Plot: mine.Clone(), Own: true}, true
	}
	return Selection{}, false
}

// planPlotProposals plans the plot that follows a finished one.
func (c *Character) planPlotProposals(ctx context.Context) {
	switch c.sim.Mode {
	case core.ModePreconfigured:
		next := c.state.CurrentPlotID + 1
		if next >= len(c.sim.PredefinedPlots) {
			c.setState(psycho.StateEnd)
			return
		}
		plot := c.sim.PredefinedPlots[next]
		if _, ok := plot[c.name]; !ok {
			c.logger.Warn("predefined plot has no setup for character", "plot_id", next)
			c.setState(psycho.StateEnd)
			return
		}
		if err := c.startNewPlot(ctx, plot.Clone()); err != nil {
			c.logger.Error("predefined plot not started", "plot_id", next, "error", err)
			c.setState(psycho.StateEnd)
			return
		}
		c.setState(psycho.StateWorking)

	case core.ModeAutonomous, core.ModeEventDriven:
		c.injectScheduledEvents(ctx)
		c.generateNewTopics(ctx)
		c.state.DeduplicateTopics(ctx)
		c.generatePlotProposals(ctx)
		c.setState(psycho.StatePlanProposals)

	case core.ModeInteractive:
		c.setState(psycho.StatePlan)
	}
}

// injectScheduledEvents stores the events scheduled before the next plot
// that involve this character, boosted in poignancy and emergency.
func (c *Character) injectScheduledEvents(ctx context.Context) {
	next := c.state.CurrentPlotID + 1
	if next < 0 || next >= len(c.sim.Events) {
		return
	}
	for _, scheduled := range c.sim.Events[next] {
		if !scheduled.Involves(c.name) {
			continue
		}
		e := c.eventFromDescription(ctx, scheduled.Description)
		e.Poignancy = min(9, e.Poignancy+scheduledEventBoost)
		e.Emergency = min(9, e.Emergency+scheduledEventBoost)
		if _, err := c.memory.AddManualEvent(e); err != nil {
			c.logger.Warn("scheduled event not stored", "plot_id", next, "error", err)
			continue
		}
		c.logger.Info("scheduled event injected", "plot_id", next, "event", e.Description)
	}
}

// planStartNewPlot negotiates the proposals of both characters and starts
// the selected plot. Without any proposal the character ends.
func (c *Character) planStartNewPlot(ctx context.Context) {
	partner := c.state.Partner()
	sel, ok := SelectPlot(c.name, partner, c.state.ProposedPlots, c.state.PreservedObserved[partner].PlotProposals)
	if !ok {
		c.logger.Info("no plot proposed", "plot_id", c.state.CurrentPlotID)
		c.setState(psycho.StateEnd)
		return
	}

	setup := sel.Plot[c.name]
	plot, behavior, err := c.openPlot(ctx, setup, true)
	if err != nil {
		c.logger.Error("plot not stored", "plot_id", c.state.CurrentPlotID+1, "error", err)
		c.setState(psycho.StateEnd)
		return
	}
	c.state.CurrentPlotConfig = sel.Plot
	if _, err := c.memory.AddBehavior(behavior); err != nil {
		c.logger.Warn("opening behavior not stored", "plot_id", plot.PlotID, "error", err)
	}

	c.assignTopics(setup.TopicIDs)
	c.updateMotivationFromPlot(ctx)

	c.logger.Info("plot started",
		"plot_id", c.state.CurrentPlotID,
		"own_proposal", sel.Own,
		"background", plot.PlotBackground,
		"topics", len(c.state.TopicsForCurrentPlot),
	)
	c.setState(psycho.StateWorking)
}

// assignTopics moves the topics at ids from the topic cache to the current
// plot. Ids outside the cache are ignored.
func (c *Character) assignTopics(ids []int) {
	chosen := make(map[int]bool, len(ids))
	var topics []*memory.Topic
	for _, id := range ids {
		if id < 0 || id >= len(c.state.CurrentTopics) || chosen[id] {
			continue
		}
		chosen[id] = true
		topics = append(topics, c.state.CurrentTopics[id])
	}
	rest := make([]*memory.Topic, 0, len(c.state.CurrentTopics)-len(topics))
	for i, t := range c.state.CurrentTopics {
		if !chosen[i] {
			rest = append(rest, t)
		}
	}
	c.state.TopicsForCurrentPlot = topics
	c.state.CurrentTopics = rest
}

// startNewPlot starts a configured plot: the plot and its opening behavior
// are stored, its events remembered, and topics created for it assigned.
func (c *Character) startNewPlot(ctx context.Context, plot core.PlotConfig) error {
	setup := plot[c.name]
	p, behavior, err := c.openPlot(ctx, setup, false)
	if err != nil {
		return core.NewSimError("startNewPlot", err)
	}
	c.state.CurrentPlotConfig = plot
	if _, err := c.memory.AddBehavior(behavior); err != nil {
		return core.NewSimError("startNewPlot", err)
	}
	for _, desc := range setup.Events {
		if desc == "" {
			continue
		}
		if _, err := c.memory.AddEvent(c.eventFromDescription(ctx, desc), nil); err != nil {
			return core.NewSimError("startNewPlot", err)
		}
	}
	c.generateNewTopics(ctx)
	c.checkTopicsForCurrentPlot()

	c.logger.Info("plot started",
		"plot_id", c.state.CurrentPlotID,
		"background", p.PlotBackground,
		"topics", len(c.state.TopicsForCurrentPlot),
	)
	return nil
}

// openPlot sets up the next plot and stores it. When the plot cannot be
// stored the setup is undone, so the state never runs ahead of memory.
func (c *Character) openPlot(ctx context.Context, setup core.PlotSetup, generated bool) (*memory.Plot, *memory.Behavior, error) {
	plotID, round := c.state.CurrentPlotID, c.state.CurrentRound
	current, emotions := c.state.CurrentBehavior, c.state.Emotions

	p, behavior := c.state.StartNewPlotSetup(ctx, setup)
	p.Generated = generated
	if _, err := c.memory.AddPlot(p); err != nil {
		c.state.CurrentPlotID, c.state.CurrentRound = plotID, round
		c.state.CurrentBehavior, c.state.Emotions = current, emotions
		return nil, nil, err
	}
	return p, behavior, nil
}

// checkTopicsForCurrentPlot assigns up to MaxTopicPerPlot topics created in
// the current plot to it. Generated plots bring their own topics.
func (c *Character) checkTopicsForCurrentPlot() {
	n, ok := c.memory.Plot(c.state.CurrentPlotID)
	if !ok || n.Plot.Generated {
		return
	}
	var ids []int
	for i, t := range c.state.CurrentTopics {
		if len(ids) >= c.sim.MaxTopicPerPlot {
			break
		}
		if t.CreatedPlotID == c.state.CurrentPlotID {
			ids = append(ids, i)
		}
	}
	c.assignTopics(ids)
}

// eventFromDescription turns a free-text event into a scored event of the
// current plot and round.
func (c *Character) eventFromDescription(ctx context.Context, desc string) *memory.Event {
	e := memory.NewEvent(c.name, desc, c.state.CurrentPlotID, c.state.CurrentRound, c.now())
	e.Embedding = c.embed(ctx, desc)

	thoughts := c.memory.RetrieveThoughtsByEmbedding(e.Embedding, c.sim.MaxRetrieveThoughts)
	background := "\n---\nRelevant background are as follows:\n" +
		c.traits(e.Embedding).String() +
		fmt.Sprintf("Relevant thoughts are: [%s]\n", thoughtLines(thoughts))

	k := c.oracle.EventKeywords(ctx, desc, background)
	e.Poignancy = k.Poignancy
	e.Emergency = k.Emergency
	if k.Keywords != nil {
		e.Keywords = k.Keywords
	}
	return e
}

// generateNewTopics proposes new topics from the events of the current plot,
// what they remind the character of, and any freshly injected events.
func (c *Character) generateNewTopics(ctx context.Context) {
	plotID := c.state.CurrentPlotID
	current, err := c.memory.EventsFromPlot(plotID, false)
	if err != nil {
		current = nil
	}
	manual := c.memory.ManualEventsFromPlot(plotID)

	var events, thoughts []*memory.Node
	for _, n := range current {
		events = union(events, c.memory.RetrieveEventsByEmbedding(n.Event.Embedding, plotID, false, c.sim.MaxRetrieveEvents))
	}
	for _, n := range events {
		thoughts = union(thoughts, c.memory.RetrieveThoughtsByEmbedding(n.Event.Embedding, c.sim.MaxRetrieveThoughts))
	}

	_, featureEmbeddings := c.state.CoreSelf().FeaturePrompt(nil, coreFeatureTopK, coreFeatureThreshold)
	personal := fmt.Sprintf("Here is a person named [%s].\n", c.name) +
		c.traits(nil).String() + sectionBreak +
		c.personaPrompt(c.traitEmbeddings(), featureEmbeddings, nodeEmbeddings(manual), nodeEmbeddings(current), nodeEmbeddings(thoughts))

	var b strings.Builder
	b.WriteString(c.storyPrompt())
	fmt.Fprintf(&b, "In the previous time, the person experienced such events: [%s].\n", eventLines(current))
	fmt.Fprintf(&b, "From the memory, he/she know such relevant events: [%s].\n", eventLines(events))
	fmt.Fprintf(&b, "Through the life, he/she have such relevant thoughts: [%s].\n", thoughtLines(thoughts))
	b.WriteString("The poignancy of an event or thought is scaled from 1 to 9, the higher the more important.\n")
	if len(manual) > 0 {
		fmt.Fprintf(&b, "Now he/she meet such new very important events [%s], which will strongly influence the emergency and poignancy of the proposed topic and plot background next.\n", eventLines(manual))
	}
	b.WriteString("Note that everyone has a sense of boundaries. Without a high degree of intimacy, trust, and a suitable situation, people will not use the deepest contents as a topic.\n")

	c.state.GenerateTopics(ctx, personal, b.String(), c.state.Partner())
}

// usedTopicsPrompt lists the topics used in each retained plot, oldest plot
// first.
func (c *Character) usedTopicsPrompt() string {
	plots := c.memory.Plots()
	if len(plots) > c.sim.MaxPlotRetention {
		plots = plots[:c.sim.MaxPlotRetention]
	}
	var b strings.Builder
	for i := range plots {
		plotID := plots[len(plots)-1-i].PlotID
		var used []*memory.Topic
		for _, t := range c.state.UsedTopics {
			if len(used) >= c.sim.MaxUsedTopicRetrieval {
				break
			}
			if t.Used && t.UsedPlotID == plotID {
				used = append(used, t)
			}
		}
		if len(used) > 0 {
			fmt.Fprintf(&b, "For story %d, topics are: [%s]\n", i, topicLines(used))
		}
	}
	return b.String()
}

// generatePlotProposals turns the best cached topics into one plot
// proposal for both characters.
func (c *Character) generatePlotProposals(ctx context.Context) {
	c.state.ProposedPlots = nil
	c.state.SortTopics()
	topics := c.state.CurrentTopics
	if len(topics) > c.sim.MaxTopicProposals {
		topics = topics[:c.sim.MaxTopicProposals]
	}
	if len(topics) == 0 {
		c.logger.Info("no topics to propose a plot from", "plot_id", c.state.CurrentPlotID)
		return
	}
	partner := c.state.Partner()

	personal := fmt.Sprintf("Here is a person named [%s].\n", c.name) +
		c.traits(nil).String() + sectionBreak +
		c.personaPrompt(c.traitEmbeddings())

	var topicPrompt strings.Builder
	fmt.Fprintf(&topicPrompt, "Below are the topics he/she want to start with %s:\n", partner)
	topicPrompt.WriteString("Each topic has an ID and description with poignancy and emergency in a dict format.\n")
	topicPrompt.WriteString("poignancy and emergency are scaled from 1 to 9, the higher the more important.\n")
	topicPrompt.WriteString("The topics are as follows:\n")
	for i, t := range topics {
		fmt.Fprintf(&topicPrompt, "Topic %d: %s\n", i, t.Prompt())
	}

	plotPrompt := "\n----\n" + c.storyPrompt() + c.usedTopicsPrompt() + "\n----\n" +
		fmt.Sprintf("Output the plot proposals he/she want to start with %s in next plot in a list format.", partner) +
		"Each plot in the list is a dict, in which 'topic_ids' mean the above relevant key topic ids about the plot, 'plot_background' is the description about background of the plot. " +
		"The plot background should be plausible and reasonable mainly based on the given topics and don't explain the reason to choose the plot background and topics." +
		fmt.Sprintf("Remember that each plot background should include no more than %d topics. Don't make the plotbackground so complicated. The description of the plot_background should be no more than 50 words.", c.sim.MaxTopicPerPlot) +
		"'poignancy' and 'emergency' are the importance (range from 1-9) and emergency of the proposed plot based on the emergency and poignancy of the topics.\n" +
		"'summary' is the summary of the plot background within 5 words.\n"

	var proposals []oracle.PlotProposal
	for attempt := 0; attempt < c.sim.MaxProposalAttempts && len(proposals) == 0; attempt++ {
		proposals = c.oracle.PlotProposals(ctx, personal, topicPrompt.String(), plotPrompt, len(topics))
	}
	if len(proposals) == 0 {
		c.logger.Warn("no plot proposal produced", "plot_id", c.state.CurrentPlotID, "attempts", c.sim.MaxProposalAttempts)
		return
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Poignancy+2*proposals[i].Emergency > proposals[j].Poignancy+2*proposals[j].Emergency
	})

	c.state.ProposedPlots = []core.PlotConfig{c.plotSetupFromBackground(ctx, proposals[0], topics)}
}

// plotSetupFromBackground asks for the starting emotion and behavior of both
// characters in a proposed plot.
func (c *Character) plotSetupFromBackground(ctx context.Context, p oracle.PlotProposal, topics []*memory.Topic) core.PlotConfig {
	partner := c.state.Partner()
	background := c.embed(ctx, p.PlotBackground)

	personal := fmt.Sprintf("There is a person named [%s].\n", c.name) +
		c.traits(nil).String() +
		c.personaPrompt(c.traitEmbeddings(), [][]float64{background})

	chosen := make([]*memory.Topic, 0, len(p.TopicIDs))
	for _, id := range p.TopicIDs {
		if id >= 0 && id < len(topics) {
			chosen = append(chosen, topics[id])
		}
	}
	newPlot := fmt.Sprintf("Now he/she want to start a new plot with %s.\n", partner) +
		fmt.Sprintf("The background of the plot is [%s].\n", p.PlotBackground) +
		fmt.Sprintf("The topics he/she want to start with %s are: [%s].\n", partner, topicLines(chosen)) +
		"His/Her plot scene are stricted in a room studio. " + c.placePrompt() + "\n" +
		fmt.Sprintf("Based on the personal innate traits, the background of the plot, and the room layout, output the plot he/she want to start with %s in a python dict format.", partner) +
		fmt.Sprintf("The keys of the generated plot dictionary must be %s and %s, without any other individuals.", c.name, partner)

	plot := make(core.PlotConfig, 2)
	for name, j := range c.oracle.PlotSetup(ctx, personal, newPlot, [2]string{c.name, partner}) {
		setup := core.PlotSetup{
			PlotBackground: p.PlotBackground,
			Summary:        p.Summary,
			TopicIDs:       append([]int{}, p.TopicIDs...),
			Poignancy:      p.Poignancy,
			Emergency:      p.Emergency,
			Behavior:       &core.BehaviorSetup{Place: j.Behavior.Place, Motion: j.Behavior.Motion},
		}
		if j.Emotion != "" {
			setup.Emotion = &core.EmotionSetup{Description: j.Emotion}
		}
		plot[name] = setup
	}
	return plot
}

// endPlot retires the topics of the finished plot and clears its transient
// state.
func (c *Character) endPlot() {
	c.working = workingMemory{}
	for _, t := range c.state.TopicsForCurrentPlot {
		t.Used = true
		t.UsedPlotID = c.state.CurrentPlotID
		c.state.UsedTopics = append(c.state.UsedTopics, t)
		if _, err := c.memory.AddTopic(t); err != nil {
			c.logger.Warn("used topic not stored", "plot_id", c.state.CurrentPlotID, "error", err)
		}
	}
	c.state.ResetPlot()
}
