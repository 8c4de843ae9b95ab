package memory

import "time"

// Kind identifies the payload carried by a Node.
type Kind string

const (
	KindEvent        Kind = "event"
	KindThought      Kind = "thought"
	KindBehavior     Kind = "behavior"
	KindRelationship Kind = "relationship"
	KindEmotion      Kind = "emotion"
	KindCoreSelf     Kind = "core_self"
	KindMotivation   Kind = "motivation"
	KindTopic        Kind = "topic"
	KindPlot         Kind = "plot"
)

// NoNode marks an absent link in the behavior chain.
const NoNode = -1

// BehaviorLinks chains the behaviors of one plot in time, per speaker.
type BehaviorLinks struct {
	LastSelf    int `json:"last_self_node_id"`
	LastPartner int `json:"last_partner_node_id"`
	NextSelf    int `json:"next_self_node_id"`
	NextPartner int `json:"next_partner_node_id"`
}

func newBehaviorLinks() *BehaviorLinks {
	return &BehaviorLinks{LastSelf: NoNode, LastPartner: NoNode, NextSelf: NoNode, NextPartner: NoNode}
}

// PlotChildren lists the nodes owned by a plot, newest first.
type PlotChildren struct {
	EventIDs        []int `json:"event_node_ids"`
	BehaviorIDs     []int `json:"behavior_node_ids"`
	TopicIDs        []int `json:"topic_node_ids"`
	EmotionIDs      []int `json:"emotion_node_ids"`
	RelationshipIDs []int `json:"relationship_node_ids"`
	CoreSelfIDs     []int `json:"core_self_node_ids"`
	MotivationIDs   []int `json:"motivation_node_ids"`
	ThoughtIDs      []int `json:"thought_node_ids"`
}

// Node is one arena slot. Exactly one payload pointer is set, matching Kind.
type Node struct {
	ID           int        `json:"node_id"`
	Count        int        `json:"node_count"`
	TypeCount    int        `json:"type_count"`
	Kind         Kind       `json:"kind"`
	PlotID       int        `json:"plot_id"`
	Created      time.Time  `json:"created"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	LastAccessed time.Time  `json:"last_accessed"`

	BehaviorIDs []int `json:"behavior_node_ids,omitempty"`
	EventIDs    []int `json:"event_node_ids,omitempty"`
	ThoughtIDs  []int `json:"thought_node_ids,omitempty"`

	Chain    *BehaviorLinks `json:"chain,omitempty"`
	Children *PlotChildren  `json:"children,omitempty"`

	Event        *Event        `json:"event,omitempty"`
	Thought      *Thought      `json:"thought,omitempty"`
	Behavior     *Behavior     `json:"behavior,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	Emotion      *Emotion      `json:"emotion,omitempty"`
	CoreSelf     *CoreSelf     `json:"core_self,omitempty"`
	Motivation   *Motivation   `json:"motivation,omitempty"`
	Topic        *Topic        `json:"topic,omitempty"`
	Plot         *Plot         `json:"plot,omitempty"`
}

// LogDescription renders the payload for memory logs.
func (n *Node) LogDescription() string {
	switch n.Kind {
	case KindEvent:
		return n.Event.LogDescription()
	case KindThought:
		return n.Thought.LogDescription()
	case KindBehavior:
		return n.Behavior.LogDescription()
	case KindRelationship:
		return n.Relationship.LogDescription()
	case KindEmotion:
		return n.Emotion.LogDescription()
	case KindCoreSelf:
		return n.CoreSelf.LogDescription()
	case KindMotivation:
		return n.Motivation.LogDescription()
	case KindTopic:
		return n.Topic.LogDescription()
	case KindPlot:
		return n.Plot.PlotBackground
	}
	return ""
}

// record returns the csv header and row of the payload.
func (n *Node) record() ([]string, []string) {
	switch n.Kind {
	case KindEvent:
		return n.Event.record()
	case KindThought:
		return n.Thought.record()
	case KindBehavior:
		return n.Behavior.record()
	case KindRelationship:
		return n.Relationship.record()
	case KindEmotion:
		return n.Emotion.record()
	case KindCoreSelf:
		return n.CoreSelf.record()
	case KindMotivation:
		return n.Motivation.record()
	case KindTopic:
		return n.Topic.record()
	}
	return nil, nil
}
