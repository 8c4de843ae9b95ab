package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/llm"
)

const defaultBelief = "I am a realistic human that can feel and enjoy the life."

var behaviorKeys = []string{"self_name", "speech", "expression", "motion", "place", "partner_name"}

// refineLimits caps the words of each behavior field, in refinement order.
var refineLimits = []struct {
	key string
	max int
}{
	{"speech", 30},
	{"expression", 4},
	{"motion", 6},
	{"place", 3},
}

const refineAttempts = 4

// BehaviorProposal is a behavior decided by a character.
type BehaviorProposal struct {
	SelfName    string `json:"self_name"`
	Speech      string `json:"speech"`
	Expression  string `json:"expression"`
	Motion      string `json:"motion"`
	Place       string `json:"place"`
	PartnerName string `json:"partner_name"`
}

func (b *BehaviorProposal) field(key string) *string {
	switch key {
	case "speech":
		return &b.Speech
	case "expression":
		return &b.Expression
	case "motion":
		return &b.Motion
	case "place":
		return &b.Place
	}
	return nil
}

// Decision is a character's next move: either a behavior or the end of the
// plot.
type Decision struct {
	End      bool
	Behavior BehaviorProposal
}

// EventSummary is an event distilled from a dialog.
type EventSummary struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Poignancy   int      `json:"poignancy"`
	Emergency   int      `json:"emergency"`
}

// ThoughtSummary is a thought distilled from events.
type ThoughtSummary struct {
	Description string   `json:"description"`
	Poignancy   int      `json:"poignancy"`
	Keywords    []string `json:"keywords"`
}

// CoreSelfUpdate is a revised core belief. Conflict is "Y" or "N".
type CoreSelfUpdate struct {
	Conflict string `json:"conflict"`
	Belief   string `json:"belief"`
}

// Changed reports whether the belief conflicts with the previous one.
func (c CoreSelfUpdate) Changed() bool {
	return c.Conflict == "Y"
}

// RelationshipUpdate is a revised relationship. Scores of -1 mean the update
// failed.
type RelationshipUpdate struct {
	Intimacy       int    `json:"intimacy"`
	Trust          int    `json:"trust"`
	Supportiveness int    `json:"supportiveness"`
	Description    string `json:"description"`
	Attitude       string `json:"attitude"`
}

// MotivationChange is the revision of one motivation term. Changed is "Y"
// or "N".
type MotivationChange struct {
	Changed string `json:"changed"`
	Value   string `json:"value"`
}

// MotivationUpdate revises both motivation terms.
type MotivationUpdate struct {
	LongTerm  MotivationChange `json:"long_term"`
	ShortTerm MotivationChange `json:"short_term"`
}

func isEnd(s string) bool {
	switch strings.TrimSpace(s) {
	case "END", "end", `"END"`, `"end"`:
		return true
	}
	return false
}

// Decide asks a character for its next behavior given its chat. The place
// must pass checkPlace; a nil checkPlace accepts any place. Fields longer
// than their word limit are refined before returning.
func (o *Oracle) Decide(ctx context.Context, messages []llm.Message, names [2]string, checkPlace func(string) bool) Decision {
	failSafe := Decision{Behavior: BehaviorProposal{SelfName: names[0], PartnerName: names[1]}}
	example := "<self_name>Xiaotao<speech>How are you?<expression>smile<motion>wave hands<place>bookshelf<partner_name>Zhixu"

	d := Judge(ctx, o, Request{
		Name:     "decide",
		Messages: messages,
		Example:  `"` + example + `"`,
		Instruction: "The output must follow the format of the example output mentioned above. Remember in this interactive conversation body language weigh 30% of the signal expression." +
			"Note that your motion should be physics consistent and semantic variant with the previous motion, and it is best to use the motion with obvious semantics to express your own emotions and language." +
			"Stop being too polite and cooperative." +
			"Remember the motions are based on the moment when the people stand instead of sitting." + LikertScale,
		Retries: 6,
	}, func(raw string) (Decision, error) {
		return parseDecision(raw, checkPlace)
	}, failSafe)

	if d.End {
		return d
	}
	d.Behavior = o.RefineBehavior(ctx, d.Behavior)
	return d
}

func parseDecision(raw string, checkPlace func(string) bool) (Decision, error) {
	if isEnd(raw) {
		return Decision{End: true}, nil
	}
	fields := parseTagged(unquote(raw), behaviorKeys)
	for _, k := range behaviorKeys {
		if _, ok := fields[k]; !ok {
			return Decision{}, invalid("missing field %q", k)
		}
	}
	b := BehaviorProposal{
		SelfName:    strings.TrimSpace(fields["self_name"]),
		Speech:      strings.TrimSpace(fields["speech"]),
		Expression:  strings.TrimSpace(fields["expression"]),
		Motion:      strings.TrimSpace(fields["motion"]),
		Place:       strings.ToLower(strings.TrimSpace(fields["place"])),
		PartnerName: strings.TrimSpace(fields["partner_name"]),
	}
	if checkPlace != nil && !checkPlace(b.Place) {
		return Decision{}, invalid("unknown place %q", b.Place)
	}
	return Decision{Behavior: b}, nil
}

// RefineBehavior shortens the fields of b that exceed their word limits. A
// field that cannot be shortened keeps its value.
func (o *Oracle) RefineBehavior(ctx context.Context, b BehaviorProposal) BehaviorProposal {
	for _, limit := range refineLimits {
		field := b.field(limit.key)
		if wordCount(*field) <= limit.max {
			continue
		}
		for attempt := 0; attempt < refineAttempts; attempt++ {
			res := o.simplify(ctx, limit.key, *field, limit.max)
			if res != "" && wordCount(res) <= limit.max {
				*field = res
				break
			}
		}
	}
	return b
}

func (o *Oracle) simplify(ctx context.Context, key, value string, max int) string {
	prompt := fmt.Sprintf("The [%s] of a person is [%s].", key, value) +
		fmt.Sprintf("Please simplify it by retaining core meanings and make it not more than %d words.", max) +
		"If this is a speech, simplify it the way people would in everyday speech." +
		"The simplified results should be: "

	return Judge(ctx, o, Request{
		Name:        "simplify_" + key,
		Prompt:      prompt,
		Example:     `"How are you?"`,
		Instruction: "Remember to keep the core meanings.",
		Retries:     5,
	}, func(raw string) (string, error) {
		return unquote(raw), nil
	}, "")
}

// SummarizeEvents distills events from a dialog. An exhausted budget yields
// no events.
func (o *Oracle) SummarizeEvents(ctx context.Context, innate, memory string) []EventSummary {
	example := []EventSummary{
		{Description: "Zhixu debates with xiaotao on fiction movies.", Keywords: []string{"debates", "fiction movie"}, Poignancy: 6, Emergency: 5},
		{Description: "Zhixu knows that Xiaotao pretend to like fiction movies ", Keywords: []string{"pretend"}, Poignancy: 5, Emergency: 3},
	}
	prompt := fmt.Sprintf("%s \n %s ", innate, memory) +
		"Based on the dialog above, summarize the key events and output the event list in list format." +
		"Each event is a dict, in which the key 'description' means the description," +
		"'poignancy' is in a Likert scale (1-9) to measure the importance of the event," +
		"'emergency' is in a Likert scale (1-9) to measure the urgency of the event," +
		" 'keywords' is a list of keywords that effectively describe the event and reveal the topic, do not include the name of the persons." +
		"The events summarized should contain effective social information and be summarized according to the personality, motivation, relationship, and core belief of the person." +
		"The summary of events must not be too detailed, must be a general summary of what happened, and do not repeat between events." +
		"So the result should be: "

	return Judge(ctx, o, Request{
		Name:    "summarize_events",
		Prompt:  prompt,
		Example: mustJSON(example),
		Instruction: "The output must continue the sentence with any other words except the proposed format. " +
			"Attention: the number of summarized events should not be more than 3.",
		Retries: 6,
		JSON:    true,
	}, func(raw string) ([]EventSummary, error) {
		var out []EventSummary
		err := parseList(raw, &out, "description", "keywords", "poignancy", "emergency")
		return out, err
	}, nil)
}

// SummarizeThoughts distills new thoughts from relevant memories. An
// exhausted budget yields no thoughts.
func (o *Oracle) SummarizeThoughts(ctx context.Context, innate, memory string) []ThoughtSummary {
	example := []ThoughtSummary{
		{Description: "Zhixu seems to be a straightforward person", Keywords: []string{"straightforward"}, Poignancy: 3},
		{Description: "I must leave this place", Keywords: []string{"leave", "place"}, Poignancy: 7},
	}
	prompt := fmt.Sprintf("%s \n %s ", innate, memory) +
		"Based on the relevant memories about relevant events and thoughts, summarize the new thoughts by current occured events and output the thought list in list format." +
		"Thoughts are a bunch of minds and feelings about what's happening, and what you're picking up about what's happening." +
		"Each thought is a dict, in which the key 'description' means the description," +
		"'poignancy' is in a Likert scale (1-9) to measure the importance of the thought." +
		" 'keywords' is a list of keywords that effectively describe the event and reveal the topic, do not include the name of the persons." +
		"The thoughts should be summarized according to the personality, motivation, relationship, and core belief of the person, and do not repeat between thoughts." +
		"So the result should be: "

	return Judge(ctx, o, Request{
		Name:    "summarize_thoughts",
		Prompt:  prompt,
		Example: mustJSON(example),
		Instruction: "The output must continue the sentence with any other words except the proposed format. " +
			"Focus on the thoughts you get from the new events, rather than the thoughts you already have." +
			"Attention: the number of summarized thoughts should not be more than 3.",
		Retries: 6,
		JSON:    true,
	}, func(raw string) ([]ThoughtSummary, error) {
		var out []ThoughtSummary
		err := parseList(raw, &out, "description", "poignancy", "keywords")
		return out, err
	}, nil)
}

func yesNo(s string) bool {
	return s == "Y" || s == "N"
}

// UpdateCoreSelf revises the core belief after a plot.
func (o *Oracle) UpdateCoreSelf(ctx context.Context, innate, reflection string) CoreSelfUpdate {
	failSafe := CoreSelfUpdate{Conflict: "N", Belief: defaultBelief}
	prompt := innate + reflection +
		"'poignancy' is in a Likert scale (1-9) to measure the importance of the thought. Belief is a string description, not list of thoughts." +
		"So the updated core self should be "

	return Judge(ctx, o, Request{
		Name:        "update_core_self",
		Prompt:      prompt,
		Example:     mustJSON(failSafe),
		Instruction: "The output must continue the sentence with any other words except the proposed dict format. ",
		Retries:     6,
		JSON:        true,
	}, func(raw string) (CoreSelfUpdate, error) {
		var c CoreSelfUpdate
		if err := parseObject(raw, &c, "conflict", "belief"); err != nil {
			return c, err
		}
		if !yesNo(c.Conflict) {
			return c, invalid("conflict must be Y or N, got %q", c.Conflict)
		}
		return c, nil
	}, failSafe)
}

// UpdateRelationship revises the relationship toward the partner after a
// plot.
func (o *Oracle) UpdateRelationship(ctx context.Context, innate, reflection string) RelationshipUpdate {
	example := RelationshipUpdate{Intimacy: 2, Trust: 2, Supportiveness: 2, Description: "they are strangers.", Attitude: "neutral"}
	prompt := innate + reflection +
		"Trust, intimacy, and supportness is in a Likert scale (1-9) to measure the relationship between two persons." +
		"So based on the new events, your new relationship with the person should be "

	return Judge(ctx, o, Request{
		Name:        "update_relationship",
		Prompt:      prompt,
		Example:     mustJSON(example),
		Instruction: LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (RelationshipUpdate, error) {
		var r RelationshipUpdate
		err := parseObject(raw, &r, "intimacy", "trust", "supportiveness", "description", "attitude")
		return r, err
	}, RelationshipUpdate{Intimacy: -1, Trust: -1, Supportiveness: -1})
}

// UpdateMotivation revises the long and short term motivations after a
// plot. When the budget runs out neither term changes.
func (o *Oracle) UpdateMotivation(ctx context.Context, innate, reflection string) MotivationUpdate {
	example := MotivationUpdate{
		LongTerm:  MotivationChange{Changed: "N", Value: "Explore the meaning of human life."},
		ShortTerm: MotivationChange{Changed: "Y", Value: "Know Zhixu's heart"},
	}

	return Judge(ctx, o, Request{
		Name:    "update_motivation",
		Prompt:  innate + reflection,
		Example: mustJSON(example),
		Retries: 5,
		JSON:    true,
	}, func(raw string) (MotivationUpdate, error) {
		var m MotivationUpdate
		v, err := decodeAny(raw)
		if err != nil {
			return m, err
		}
		if err := hasKeys(v, []string{"long_term", "short_term"}); err != nil {
			return m, err
		}
		obj := v.(map[string]any)
		for _, term := range []string{"long_term", "short_term"} {
			if err := hasKeys(obj[term], []string{"changed", "value"}); err != nil {
				return m, err
			}
		}
		if err := decodeInto(v, &m); err != nil {
			return m, err
		}
		if !yesNo(m.LongTerm.Changed) || !yesNo(m.ShortTerm.Changed) {
			return m, invalid("changed must be Y or N")
		}
		return m, nil
	}, MotivationUpdate{LongTerm: MotivationChange{Changed: "N"}, ShortTerm: MotivationChange{Changed: "N"}})
}
