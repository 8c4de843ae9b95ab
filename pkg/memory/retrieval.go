package memory

import "sort"

type scoredNode struct {
	node  *Node
	score float64
}

func topNodes(scored []scoredNode, topK int) []*Node {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]*Node, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.node)
	}
	return out
}

// RetrieveEventsByEmbedding returns up to topK events most relevant to q,
// weighted by how well they survive until plotID. Events of the current plot
// are not candidates, and events that are or become forgotten are skipped.
// With manual set, injected events are candidates too. Retrieval does not
// reinforce events.
func (m *Memory) RetrieveEventsByEmbedding(q []float64, plotID int, manual bool, topK int) []*Node {
	if topK <= 0 {
		return nil
	}
	candidates := m.events
	if manual {
		candidates = append(append([]int(nil), m.events...), m.manualEvents...)
	}
	scored := make([]scoredNode, 0, len(candidates))
	for _, id := range candidates {
		n := m.nodes[id-1]
		if n.Event.Forgot || n.PlotID == m.currentPlotID {
			continue
		}
		score := scoreEvent(n.Event, q, plotID, EventForgetting)
		if n.Event.Forgot {
			continue
		}
		scored = append(scored, scoredNode{n, score})
	}
	return topNodes(scored, topK)
}

// RetrieveThoughtsByEmbedding returns up to topK thoughts most relevant to q
// at the current plot. Returned thoughts are reinforced: their access count
// grows and LastAccessed is set, which slows their future decay.
func (m *Memory) RetrieveThoughtsByEmbedding(q []float64, topK int) []*Node {
	if topK <= 0 {
		return nil
	}
	scored := make([]scoredNode, 0, len(m.thoughts))
	for _, id := range m.thoughts {
		n := m.nodes[id-1]
		if n.Thought.Forgot {
			continue
		}
		score := scoreThought(n.Thought, q, m.currentPlotID, ThoughtForgetting)
		if n.Thought.Forgot {
			continue
		}
		scored = append(scored, scoredNode{n, score})
	}
	out := topNodes(scored, topK)
	now := m.now()
	for _, n := range out {
		n.LastAccessed = now
		n.Thought.AccessTimes++
	}
	return out
}
