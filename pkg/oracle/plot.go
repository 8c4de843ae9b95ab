package oracle

import (
	"context"
	"fmt"
)

// summaryWordLimit is the longest summary kept as-is. Longer ones are
// re-summarized into summaryWords words.
const (
	summaryWordLimit = 7
	summaryWords     = 5
)

// TopicProposal is a topic a character would like to talk about.
type TopicProposal struct {
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Poignancy   int    `json:"poignancy"`
	Emergency   int    `json:"emergency"`
	PartnerName string `json:"partner_name"`
}

// PlotProposal is a candidate plot built from numbered topics.
type PlotProposal struct {
	TopicIDs       []int  `json:"topic_ids"`
	Poignancy      int    `json:"poignancy"`
	Emergency      int    `json:"emergency"`
	PlotBackground string `json:"plot_background"`
	Summary        string `json:"summary"`
}

// Score is the proposal's selection score.
func (p PlotProposal) Score() int {
	return p.Poignancy + p.Emergency
}

// PlotBehavior is where a character starts a plot and what it does there.
type PlotBehavior struct {
	Place  string `json:"place"`
	Motion string `json:"motion"`
}

// PlotSetupJudgment is one character's starting state in a new plot.
type PlotSetupJudgment struct {
	Emotion  string       `json:"emotion"`
	Behavior PlotBehavior `json:"behavior"`
}

// SummarizeSentence shortens a sentence to at most lens words. It returns ""
// when no short enough summary is produced.
func (o *Oracle) SummarizeSentence(ctx context.Context, sentence string, lens int) string {
	prompt := fmt.Sprintf("Here is a sentence: '%s'.\n", sentence) +
		fmt.Sprintf("Summarize the sentence without losing key information in no more than %d words, and the result should be: ", lens)

	return Judge(ctx, o, Request{
		Name:        "summarize_sentence",
		Prompt:      prompt,
		Example:     `"How are you?"`,
		Instruction: "The output must follow the string format of the example output.",
		Retries:     5,
	}, func(raw string) (string, error) {
		s := unquote(raw)
		if wordCount(s) > lens {
			return "", invalid("summary longer than %d words", lens)
		}
		return s, nil
	}, "")
}

// Topics proposes conversation topics toward partner from the character's
// traits and relevant memories.
func (o *Oracle) Topics(ctx context.Context, personal, relevant, partner string) []TopicProposal {
	prompt := personal + relevant +
		"Based on the information above, generate a list of topics that you would like to start to talk with your partners in the next interaction. " +
		"Do not generate topics similar or identical to previous used topics." +
		"Topics should include specific events that are consistent with the way things are going." +
		" The new topic should conform to the time line of the events, thoughts, and background and realistic setting of the original story." +
		"It should be plausible with previous events and have specific and detailed plots. Do not produce topics unrelated to characters, events, etc." +
		"Each proposed topic is a dict, in which the key 'description' means the description, 'summary' means the summary of the description within 5 words, " +
		"'emergency' and 'poignancy' are in a Likert scale to measure the emergency and importance of the topic, " +
		"'partner_name' is the person's name you want to talk to.So the result should be:"

	example := []TopicProposal{
		{Description: "Xiaotao is curious about AI techniques, especially GPT-5.", Summary: "curious about AI", Poignancy: 6, Emergency: 2, PartnerName: "Zhixu"},
		{Description: "Xiaotao found herself as a robot, not real life.", Summary: "I'm a robot, not human", Poignancy: 8, Emergency: 8, PartnerName: "Zhixu"},
	}

	topics := Judge(ctx, o, Request{
		Name:    "topics",
		Prompt:  prompt,
		Example: mustJSON(example),
		Instruction: "Remember all your proposed topics should based on your personal innate traits, current events, and relevant memeories." +
			"Don't repeat the topics in the example and previous used topics." + LikertScale,
		Retries: 8,
		JSON:    true,
	}, func(raw string) ([]TopicProposal, error) {
		var out []TopicProposal
		if err := parseList(raw, &out, "description", "summary", "poignancy", "emergency", "partner_name"); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, invalid("no topics")
		}
		return out, nil
	}, []TopicProposal{{Poignancy: 1, Emergency: 1, PartnerName: partner}})

	for i := range topics {
		if wordCount(topics[i].Summary) > summaryWordLimit {
			topics[i].Summary = o.SummarizeSentence(ctx, topics[i].Description, summaryWords)
		}
	}
	return topics
}

// DedupTopics asks which of n numbered topics to keep. The result is a
// non-empty list of indices in [0, n); every index is kept on failure.
func (o *Oracle) DedupTopics(ctx context.Context, prompt string, n int) []int {
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if n == 0 {
		return all
	}

	return Judge(ctx, o, Request{
		Name:        "dedup_topics",
		Prompt:      prompt + "So the results should be: ",
		Example:     "[0, 1, 3]",
		Instruction: "The output must follow the format of the example output mentioned above." + LikertScale,
		Retries:     8,
		JSON:        true,
	}, func(raw string) ([]int, error) {
		v, err := decodeAny(raw)
		if err != nil {
			return nil, err
		}
		items, ok := v.([]any)
		if !ok || len(items) == 0 {
			return nil, invalid("expected a non-empty list of indices")
		}
		out := make([]int, 0, len(items))
		for _, item := range items {
			f, ok := item.(float64)
			if !ok || f != float64(int(f)) || f < 0 || int(f) >= n {
				return nil, invalid("index %v out of range", item)
			}
			out = append(out, int(f))
		}
		return out, nil
	}, all)
}

// PlotProposals proposes plots from n numbered topics. Topic ids outside
// [0, n) invalidate the response. An exhausted budget yields no proposals.
func (o *Oracle) PlotProposals(ctx context.Context, personal, topicPrompt, plotPrompt string, n int) []PlotProposal {
	example := []PlotProposal{
		{TopicIDs: []int{0, 2}, Poignancy: 8, Emergency: 6, PlotBackground: "Xiaotao knew that she is not a real life.", Summary: "Xiaotao realized she's unreal."},
		{TopicIDs: []int{1}, Poignancy: 3, Emergency: 4, PlotBackground: "Xiaotao know that Zhixu likes reading books.", Summary: "Zhixu enjoys reading, Xiaotao knows."},
	}

	plots := Judge(ctx, o, Request{
		Name:        "plot_proposals",
		Prompt:      personal + topicPrompt + plotPrompt + "Based on the information above, generate a list of plot proposals that he/she would like to start: ",
		Example:     mustJSON(example),
		Instruction: LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) ([]PlotProposal, error) {
		var out []PlotProposal
		if err := parseList(raw, &out, "topic_ids", "poignancy", "emergency", "plot_background", "summary"); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, invalid("no plots")
		}
		for _, p := range out {
			if len(p.TopicIDs) == 0 {
				return nil, invalid("plot without topics")
			}
			for _, id := range p.TopicIDs {
				if id < 0 || id >= n {
					return nil, invalid("topic id %d out of range", id)
				}
			}
		}
		return out, nil
	}, nil)

	for i := range plots {
		if wordCount(plots[i].Summary) > summaryWordLimit {
			plots[i].Summary = o.SummarizeSentence(ctx, plots[i].PlotBackground, summaryWords)
		}
	}
	return plots
}

// PlotSetup asks for the starting emotion and behavior of both characters in
// a new plot. The result holds exactly the two names.
func (o *Oracle) PlotSetup(ctx context.Context, personal, newPlot string, names [2]string) map[string]PlotSetupJudgment {
	example := map[string]PlotSetupJudgment{
		names[0]: {Emotion: "happy and curious", Behavior: PlotBehavior{Place: "chair", Motion: "sit on the chair"}},
		names[1]: {Emotion: "thrilled and curious", Behavior: PlotBehavior{Place: "desk", Motion: "appear near the desk"}},
	}
	failSafe := map[string]PlotSetupJudgment{
		names[0]: {Behavior: PlotBehavior{Place: "chair"}},
		names[1]: {Behavior: PlotBehavior{Place: "desk"}},
	}
	prompt := personal + newPlot +
		"You should output the emotion and behavior of each person in the plot. Besides, the behavior includes the place and motion of the person." +
		"Remember that the motion must be details and various like a character in an animated movie." +
		EkmanEmotions + "So the result should be: "

	return Judge(ctx, o, Request{
		Name:        "plot_setup",
		Prompt:      prompt,
		Example:     mustJSON(example),
		Instruction: "The output must continue the sentence with any other words except the proposed format. " + LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (map[string]PlotSetupJudgment, error) {
		v, err := decodeAny(raw)
		if err != nil {
			return nil, err
		}
		obj, ok := v.(map[string]any)
		if !ok || len(obj) != 2 {
			return nil, invalid("expected an object with two characters")
		}
		if err := hasKeys(v, names[:]); err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := hasKeys(obj[name], []string{"emotion", "behavior"}); err != nil {
				return nil, err
			}
			inner := obj[name].(map[string]any)
			if err := hasKeys(inner["behavior"], []string{"place", "motion"}); err != nil {
				return nil, err
			}
		}
		var out map[string]PlotSetupJudgment
		if err := decodeInto(v, &out); err != nil {
			return nil, err
		}
		return out, nil
	}, failSafe)
}
