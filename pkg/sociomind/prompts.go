package sociomind

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/memory"
)

const (
	coreFeatureTopK      = 4
	coreFeatureThreshold = 0.9
	placeDepth           = 3

	boundaryExample = "For example, when meeting for the first time or when they don’t trust each other, people are reluctant to mention these related topics."
	sectionBreak    = "\n-----\n"
)

// traits holds the four trait prompts most prompt builders start from.
type traits struct {
	personality  string
	motivation   string
	coreSelf     string
	relationship string
}

func (t traits) String() string {
	return t.personality + t.motivation + t.coreSelf + t.relationship
}

// traits renders the current personality, motivation, core self and
// relationship. With a query, only core features relevant to it are shown.
func (c *Character) traits(query []float64) traits {
	var queries [][]float64
	if query != nil {
		queries = [][]float64{query}
	}
	coreSelf, _ := c.state.CoreSelf().FeaturePrompt(queries, coreFeatureTopK, coreFeatureThreshold)

	t := traits{
		personality: c.state.Personality().Prompt(),
		motivation: c.state.Motivation().Prompt() +
			"Motivations are the reasons that drive your behavior. These are deep inner thoughts that will not be expressed to the other person without sufficient trust and intimacy." +
			boundaryExample,
		coreSelf: coreSelf +
			"Central beliefs are deep inner thoughts that will not be expressed to the other person without sufficient trust and intimacy." +
			boundaryExample,
	}
	if r := c.memory.RelationshipByPartner(c.state.Partner()); r != nil {
		t.relationship = r.Prompt()
	}
	return t
}

// traitEmbeddings returns the embeddings of the current personality,
// motivation, core self and relationship.
func (c *Character) traitEmbeddings() [][]float64 {
	out := [][]float64{
		c.state.Personality().Embedding,
		c.state.Motivation().Embedding,
		c.state.CoreSelf().Embedding,
	}
	if r := c.memory.RelationshipByPartner(c.state.Partner()); r != nil {
		out = append(out, r.Embedding)
	}
	return out
}

// personaPrompt renders the persona instructions retrieved for the given
// embeddings.
func (c *Character) personaPrompt(groups ...[][]float64) string {
	var queries [][]float64
	for _, g := range groups {
		queries = append(queries, g...)
	}
	var b strings.Builder
	b.WriteString("\n--\nPsychological research has found the following pattern in human trait and behaviors:\n")
	for _, instruction := range c.persona.Retrieve(queries, c.sim.MaxPerPersonaRetrieval, c.sim.MaxPersonaRetrieval) {
		b.WriteString(instruction)
	}
	b.WriteString(sectionBreak)
	return b.String()
}

func (c *Character) placePrompt() string {
	return c.places.ProposalPrompt(c.sim.RootPlace, placeDepth)
}

// checkPlace validates behavior places against the cognition map. A world
// without places accepts any place.
func (c *Character) checkPlace() func(string) bool {
	if c.places.Len() == 0 {
		return nil
	}
	return c.places.CheckPlace
}

func (c *Character) embed(ctx context.Context, text string) []float64 {
	return c.oracle.Embed(ctx, text)
}

func (c *Character) plotBackground(plotID int) string {
	if n, ok := c.memory.Plot(plotID); ok {
		return n.Plot.PlotBackground
	}
	return ""
}

// storyPrompt lists the backgrounds of the latest plots, oldest first.
func (c *Character) storyPrompt() string {
	plots := c.memory.Plots()
	if len(plots) > c.sim.MaxPlotRetention {
		plots = plots[:c.sim.MaxPlotRetention]
	}
	var b strings.Builder
	b.WriteString("According to the development of time, the person experienced the following story:\n")
	for i := range plots {
		fmt.Fprintf(&b, "Background of story %d : [%s].\n", i, plots[len(plots)-1-i].Plot.PlotBackground)
	}
	return b.String()
}

func eventLines(nodes []*memory.Node) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, strings.TrimSuffix(n.Event.PromptLine(), "\n"))
	}
	return strings.Join(lines, ", ")
}

func thoughtLines(nodes []*memory.Node) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, strings.TrimSuffix(n.Thought.PromptLine(), "\n"))
	}
	return strings.Join(lines, ", ")
}

func topicLines(topics []*memory.Topic) string {
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		lines = append(lines, t.Prompt())
	}
	return strings.Join(lines, ", ")
}

func nodeIDs(nodes []*memory.Node) []int {
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

// nodeEmbeddings returns the embedding of each event, thought or behavior node.
func nodeEmbeddings(nodes []*memory.Node) [][]float64 {
	out := make([][]float64, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n.Event != nil:
			out = append(out, n.Event.Embedding)
		case n.Thought != nil:
			out = append(out, n.Thought.Embedding)
		case n.Behavior != nil:
			out = append(out, n.Behavior.Embedding)
		}
	}
	return out
}

// union appends the nodes of add not yet in nodes.
func union(nodes, add []*memory.Node) []*memory.Node {
	seen := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = true
	}
	for _, n := range add {
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}
	return nodes
}
