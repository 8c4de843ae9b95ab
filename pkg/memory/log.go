package memory

import (
	"encoding/csv"
	"fmt"
	"io"
)

const (
	logSectionRule = "################"
	logSectionEnd  = "--------------------"
)

// logWriter writes the human-readable dump to w and, when cw is set, the
// same sections as csv rows.
type logWriter struct {
	w   io.Writer
	cw  *csv.Writer
	err error
}

func (l *logWriter) line(format string, args ...any) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, format+"\n", args...)
}

func (l *logWriter) row(fields ...string) {
	if l.err != nil || l.cw == nil {
		return
	}
	l.err = l.cw.Write(fields)
}

func (l *logWriter) section(title string) {
	l.line(logSectionRule)
	l.line("%s", title)
	l.row(title)
}

func (l *logWriter) end() {
	l.line(logSectionEnd)
	l.row("")
}

// nodes writes one labelled line per node, and a csv header before the first row.
func (l *logWriter) nodes(label string, nodes []*Node) {
	for i, n := range nodes {
		l.line("%s: %s", label, n.LogDescription())
		header, values := n.record()
		if i == 0 {
			l.row(header...)
		}
		l.row(values...)
	}
}

// WriteLog dumps the memory plot by plot, oldest plot first. With all unset
// only the current plot is written. cw may be nil.
func (m *Memory) WriteLog(w io.Writer, cw *csv.Writer, all bool) error {
	plots := m.Plots()
	if !all && len(plots) > 0 {
		plots = plots[:1]
	} else {
		for i, j := 0, len(plots)-1; i < j; i, j = i+1, j-1 {
			plots[i], plots[j] = plots[j], plots[i]
		}
	}

	l := &logWriter{w: w, cw: cw}
	for _, plot := range plots {
		id := plot.Plot.PlotID

		if manual := m.ManualEventsFromPlot(id - 1); len(manual) > 0 {
			l.section("Manual Events")
			l.nodes("Manual Event", manual)
		}

		l.line(logSectionRule)
		for _, s := range []string{
			fmt.Sprintf("Plot %d", id),
			"Plot background: " + plot.Plot.PlotBackground,
			"Plot summary: " + plot.Plot.Summary,
		} {
			l.line("%s", s)
			l.row(s)
		}

		l.section("Topics")
		l.nodes("Topic", m.resolve(plot.Children.TopicIDs))
		l.end()

		l.section("Behaviors")
		l.nodes("Behavior", reversed(m.resolve(plot.Children.BehaviorIDs)))
		l.end()

		l.section("Events")
		l.nodes("Event", reversed(m.resolve(plot.Children.EventIDs)))
		l.end()

		l.section("Thoughts")
		l.nodes("Thought", reversed(m.resolve(plot.Children.ThoughtIDs)))
		l.end()

		l.section("Emotions")
		l.nodes("Emotion", m.resolve(plot.Children.EmotionIDs))
		l.end()

		l.section("Relationships")
		for _, partner := range m.Partners() {
			var rels []*Node
			for _, n := range reversed(m.Relationships(partner)) {
				if n.PlotID == id {
					rels = append(rels, n)
				}
			}
			l.nodes("Relationship", rels)
		}
		l.end()

		l.section("Coreselfs")
		l.nodes("Coreself", m.resolve(plot.Children.CoreSelfIDs))
		l.end()

		l.section("Motivations")
		l.nodes("Motivation", m.resolve(plot.Children.MotivationIDs))
		l.end()
	}
	if l.err == nil && cw != nil {
		cw.Flush()
		l.err = cw.Error()
	}
	if l.err != nil {
		return fmt.Errorf("write memory log: %w", l.err)
	}
	return nil
}

func reversed(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// Summary renders the node counts on one line, for verbose logs.
func (m *Memory) Summary() string {
	return fmt.Sprintf("memory of %s: %d nodes, %d plots, %d events, %d manual events, %d thoughts, %d behaviors, %d topics",
		m.name, len(m.nodes), len(m.plots), len(m.events), len(m.manualEvents), len(m.thoughts), len(m.behaviors), len(m.topics))
}
