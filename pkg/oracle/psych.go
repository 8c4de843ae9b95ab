package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

// EkmanEmotions lists the basic emotions offered to the model when it
// describes or scores an emotion.
const EkmanEmotions = "According to Paul Ekman's basic emotion theory, human have basic emtions: wrath, grossness, fear, joy, loneliness, shock, " +
	"amusement, contempt, contentment, embarrassment, excitement, guilt, pride in achievement, relief, satisfaction, sensory pleasure, and shame."

const defaultDescription = "happy, excited, and confident"

// PAD is an emotion on the pleasure, arousal and dominance axes.
type PAD struct {
	Pleasure  int `json:"pleasure"`
	Arousal   int `json:"arousal"`
	Dominance int `json:"dominance"`
}

// BigFive holds Big Five personality scores.
type BigFive struct {
	Openness          int `json:"openness"`
	Conscientiousness int `json:"conscientiousness"`
	Extraversion      int `json:"extraversion"`
	Agreeableness     int `json:"agreeableness"`
	Neuroticism       int `json:"neuroticism"`
}

// EmotionJudgment is an emotion with its description.
type EmotionJudgment struct {
	Description string `json:"description"`
	Pleasure    int    `json:"pleasure"`
	Arousal     int    `json:"arousal"`
	Dominance   int    `json:"dominance"`
}

// Keywords rates an event description.
type Keywords struct {
	Poignancy int      `json:"poignancy"`
	Emergency int      `json:"emergency"`
	Keywords  []string `json:"keywords"`
}

// RelationshipScores rates a relationship.
type RelationshipScores struct {
	Intimacy       int `json:"intimacy"`
	Trust          int `json:"trust"`
	Supportiveness int `json:"supportiveness"`
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// QuantitativeEmotion scores an emotion description on the PAD axes. An empty
// description or an exhausted budget yields -1 on every axis.
func (o *Oracle) QuantitativeEmotion(ctx context.Context, desc string) PAD {
	failSafe := PAD{-1, -1, -1}
	if desc == "" {
		return failSafe
	}
	prompt := fmt.Sprintf("This is about a person's emotion description: [%s].", desc) +
		"Assume you are a very professional psychologist. Using the PAD theory of psychology and Likert scale (1-9), score on pleasure, arousal and dominance." +
		"The higher the score, the higher the strength." + EkmanEmotions + "So the result should be"

	return Judge(ctx, o, Request{
		Name:        "quantitative_emotion",
		Prompt:      prompt,
		Example:     mustJSON(PAD{5, 5, 5}),
		Instruction: "The output must follow the format of the example output mentioned above." + LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (PAD, error) {
		var p PAD
		if err := parseObject(raw, &p, "pleasure", "arousal", "dominance"); err != nil {
			return p, err
		}
		if !inLikert(p.Pleasure, p.Arousal, p.Dominance) {
			return p, invalid("pad out of range: %+v", p)
		}
		return p, nil
	}, failSafe)
}

// QuantitativePersonality scores a personality description on the Big Five
// traits. An empty description or an exhausted budget yields -1 everywhere.
func (o *Oracle) QuantitativePersonality(ctx context.Context, desc string) BigFive {
	failSafe := BigFive{-1, -1, -1, -1, -1}
	if desc == "" {
		return failSafe
	}
	prompt := fmt.Sprintf("This is about a person's personality description: [%s].", desc) +
		"Assume you are a very professional psychologist. Using the Big Five theory of psychology and Likert scale (1-9), " +
		"score on openness, conscientiousness, extraversion, agreeableness, neuroticism." +
		"The higher the score, the higher the strength." + "So the result should be"

	return Judge(ctx, o, Request{
		Name:        "quantitative_personality",
		Prompt:      prompt,
		Example:     mustJSON(BigFive{5, 5, 5, 5, 5}),
		Instruction: "The output must follow the format of the example output mentioned above." + LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (BigFive, error) {
		var b BigFive
		if err := parseObject(raw, &b, "openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"); err != nil {
			return b, err
		}
		if !inLikert(b.Openness, b.Conscientiousness, b.Extraversion, b.Agreeableness, b.Neuroticism) {
			return b, invalid("big five out of range: %+v", b)
		}
		return b, nil
	}, failSafe)
}

// shortDescription accepts a plain string of at most maxWords words.
func shortDescription(maxWords int) func(string) (string, error) {
	return func(raw string) (string, error) {
		s := unquote(raw)
		if s == "" || wordCount(s) > maxWords {
			return "", invalid("description must have 1 to %d words", maxWords)
		}
		return s, nil
	}
}

// DescribePersonality turns Big Five scores into a short description.
func (o *Oracle) DescribePersonality(ctx context.Context, scores BigFive) string {
	prompt := fmt.Sprintf("Assume you are a very professional psychologist. This is a quantitative evaluation of a person: [%s].\n", mustJSON(scores)) +
		"The evaluation based on the Big Five theory of psychology and Likert scale (1-9), score on openness, conscientiousness, extraversion, agreeableness, neuroticism." +
		"The higher the score, the higher the strength." +
		"Based on the score and the Goldberg's personality trait markers, describe the personality of the person.\n" +
		"So the description should be: "

	return Judge(ctx, o, Request{
		Name:        "describe_personality",
		Prompt:      prompt,
		Example:     `"` + defaultDescription + `"`,
		Instruction: "The output must follow the string format of the example output. The description should not be more than 15 words." + LikertScale,
		Retries:     5,
	}, shortDescription(15), defaultDescription)
}

// DescribeEmotion turns PAD scores into a short description.
func (o *Oracle) DescribeEmotion(ctx context.Context, pad PAD) string {
	prompt := fmt.Sprintf("Assume you are a very professional psychologist. This is a quantitative evaluation of a person: [%s].\n", mustJSON(pad)) +
		"The evaluation based on the PAD theory of psychology and Likert scale (1-9), score on pleasure, arousal and dominance." +
		"The higher the score, the higher the strength." +
		"Based on the score, describe the emotion of the person.\n" + EkmanEmotions +
		"So the description should be: "

	return Judge(ctx, o, Request{
		Name:        "describe_emotion",
		Prompt:      prompt,
		Example:     `"` + defaultDescription + `"`,
		Instruction: "The output must follow the string format of the example output. The description should not be more than 15 words." + LikertScale,
		Retries:     5,
	}, shortDescription(15), defaultDescription)
}

// EmotionFromPrompt estimates the emotion a prompt describes.
func (o *Oracle) EmotionFromPrompt(ctx context.Context, prompt string) EmotionJudgment {
	prompt += "\n\nThe emotion are described based on the PAD theory of psychology and Likert scale (1-9), score on pleasure, arousal and dominance." +
		"So the description should be: "

	return Judge(ctx, o, Request{
		Name:        "emotion_from_prompt",
		Prompt:      prompt,
		Example:     mustJSON(EmotionJudgment{"happy and peaceful", 8, 3, 6}),
		Instruction: "The description should not be more than 15 words." + LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (EmotionJudgment, error) {
		var e EmotionJudgment
		err := parseObject(raw, &e, "description", "pleasure", "arousal", "dominance")
		return e, err
	}, EmotionJudgment{Description: "", Pleasure: 5, Arousal: 5, Dominance: 5})
}

// EventKeywords rates the poignancy and emergency of an event and extracts
// its keywords, given the background it happened in.
func (o *Oracle) EventKeywords(ctx context.Context, desc, background string) Keywords {
	prompt := fmt.Sprintf("Here is a brief description of event: '%s'\n", desc) +
		fmt.Sprintf("This event happened based on the background: \n---\n '%s'\n---\n", background) +
		"Please assign the poignancy of the event and the keywords of the event.\n" +
		"For the poignancy, on the scale of 1 to 9, where 1 is purely mundane (e.g., wave hand, smile) and 9 is extremely poignant (e.g., a break up, love betray), rate the likely poignancy of the event." +
		"For emergency, it is measured based on the urgency of the event, on the scale of 1 to 9, where 1 is not urgent at all and 9 is extremely urgent.\n" +
		"For the keywords list, they should effectively describe the event and reveal the topic of the event. Do not output the name of the character as keyword.\n" +
		"So the result should be: "

	return Judge(ctx, o, Request{
		Name:        "event_keywords",
		Prompt:      prompt,
		Example:     mustJSON(Keywords{5, 5, []string{"argue", "cry"}}),
		Instruction: "Keywords are a list of strings. The output must follow the string format of the example output.",
		Retries:     3,
		JSON:        true,
	}, func(raw string) (Keywords, error) {
		var k Keywords
		err := parseObject(raw, &k, "poignancy", "emergency", "keywords")
		return k, err
	}, Keywords{Poignancy: 0, Emergency: 5, Keywords: []string{"meeting"}})
}

// QuantitativeRelationship scores a relationship description and attitude.
func (o *Oracle) QuantitativeRelationship(ctx context.Context, desc, attitude string) RelationshipScores {
	prompt := fmt.Sprintf("This is a relationship description between two persons: '%s'.", desc) +
		fmt.Sprintf("One person hold the attitude towards the another: '%s'", attitude) +
		"Using the social psychological theory to measure the relationship in a Likert scale (1-9), score on intimacy, trust, and supportiveness." +
		"The higher the score, the higher the strength." +
		"So the result should be"

	return Judge(ctx, o, Request{
		Name:        "quantitative_relationship",
		Prompt:      prompt,
		Example:     mustJSON(RelationshipScores{5, 5, 5}),
		Instruction: LikertScale,
		Retries:     5,
		JSON:        true,
	}, func(raw string) (RelationshipScores, error) {
		var r RelationshipScores
		err := parseObject(raw, &r, "intimacy", "trust", "supportiveness")
		return r, err
	}, RelationshipScores{5, 5, 5})
}
