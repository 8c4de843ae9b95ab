package psycho

import (
	"fmt"
	"strings"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/memory"
	"github.com/oceanbase/sociomind-go/pkg/oracle"
)

// Personality is a Big Five personality with a free-text description.
type Personality struct {
	SelfName          string    `json:"self_name"`
	Description       string    `json:"description"`
	Openness          int       `json:"openness"`
	Conscientiousness int       `json:"conscientiousness"`
	Extraversion      int       `json:"extraversion"`
	Agreeableness     int       `json:"agreeableness"`
	Neuroticism       int       `json:"neuroticism"`
	Embedding         []float64 `json:"embedding"`
	PlotID            int       `json:"plot_id"`
	Round             int       `json:"round"`
	Time              time.Time `json:"time"`
}

// traitMarker is a pair of opposite Goldberg adjectives, low end first.
type traitMarker [2]string

// goldbergMarkers lists the trait markers used to describe each Big Five trait.
var goldbergMarkers = map[string][]traitMarker{
	"openness": {
		{"unimaginative", "imaginative"},
		{"uncreative", "creative"},
		{"artistically unappreciative", "artistically appreciative"},
		{"unaesthetic", "aesthetic"},
		{"unreflective", "reflective"},
		{"emotionally closed", "emotionally aware"},
		{"uninquisitive", "curious"},
		{"predictable", "spontaneous"},
		{"unintelligent", "intelligent"},
		{"unanalytical", "analytical"},
		{"unsophisticated", "sophisticated"},
		{"socially conservative", "socially progressive"},
	},
	"conscientiousness": {
		{"unsure", "self-efficacious"},
		{"messy", "orderly"},
		{"irresponsible", "responsible"},
		{"lazy", "hardworking"},
		{"undisciplined", "self-disciplined"},
		{"impractical", "practical"},
		{"extravagant", "thrifty"},
		{"disorganized", "organized"},
		{"negligent", "conscientious"},
		{"careless", "thorough"},
	},
	"extraversion": {
		{"unfriendly", "friendly"},
		{"introverted", "extraverted"},
		{"silent", "talkative"},
		{"timid", "bold"},
		{"unassertive", "assertive"},
		{"inactive", "active"},
		{"unenergetic", "energetic"},
		{"unadventurous", "adventurous and daring"},
		{"gloomy", "cheerful"},
	},
	"agreeableness": {
		{"distrustful", "trustful"},
		{"immoral", "moral"},
		{"dishonest", "honest"},
		{"unkind", "kind"},
		{"stingy", "generous"},
		{"unaltruistic", "altruistic"},
		{"uncooperative", "cooperative"},
		{"self-important", "humble"},
		{"unsympathetic", "sympathetic"},
		{"selfish", "unselfish"},
		{"disagreeable", "agreeable"},
	},
	"neuroticism": {
		{"easygoing", "anxious"},
		{"patient", "irritable"},
		{"happy", "depressed"},
		{"unselfconscious", "self-conscious"},
		{"level-headed", "impulsive"},
		{"emotionally stable", "emotionally unstable"},
	},
}

var bigFiveOrder = []string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"}

// MarkerPhrase renders one trait marker for a 1-9 score. Scores off the
// scale are "neutral".
func MarkerPhrase(score int, low, high string) string {
	switch score {
	case 1:
		return "extremely " + low
	case 2:
		return "very " + low
	case 3:
		return low
	case 4:
		return "a bit " + low
	case 5:
		return fmt.Sprintf("neither %s nor %s", low, high)
	case 6:
		return "a bit " + high
	case 7:
		return high
	case 8:
		return "very " + high
	case 9:
		return "extremely " + high
	default:
		return "neutral"
	}
}

func (p *Personality) score(trait string) int {
	switch trait {
	case "openness":
		return p.Openness
	case "conscientiousness":
		return p.Conscientiousness
	case "extraversion":
		return p.Extraversion
	case "agreeableness":
		return p.Agreeableness
	case "neuroticism":
		return p.Neuroticism
	}
	return memory.Unknown
}

// BigFiveDescription describes the scores with Goldberg's trait markers.
func (p *Personality) BigFiveDescription() string {
	phrases := make([]string, 0, 64)
	for _, trait := range bigFiveOrder {
		s := p.score(trait)
		for _, m := range goldbergMarkers[trait] {
			phrases = append(phrases, MarkerPhrase(s, m[0], m[1]))
		}
	}
	return fmt.Sprintf("%s is a person described as [ %s].", p.SelfName, strings.Join(phrases, ", "))
}

// EmbeddingText is the text the personality embedding is computed from.
func (p *Personality) EmbeddingText() string {
	if p.Description == "" {
		return p.BigFiveDescription()
	}
	return p.Description
}

// Valid reports whether every score is on the 1-9 scale.
func (p *Personality) Valid() bool {
	for _, trait := range bigFiveOrder {
		if memory.Likert(p.score(trait)) == memory.Unknown {
			return false
		}
	}
	return true
}

// Prompt renders the description and the scores.
func (p *Personality) Prompt() string {
	return fmt.Sprintf("%s is a person described as %s.", p.SelfName, p.Description) +
		"According to Big Five Trait theory in a Likert scale with range (1-9), " +
		fmt.Sprintf("%s's personality is %s openness, %s conscientiousness, %s extraversion, %s agreeableness, %s neuroticism.",
			p.SelfName, likert(p.Openness), likert(p.Conscientiousness), likert(p.Extraversion), likert(p.Agreeableness), likert(p.Neuroticism))
}

// PersonaPrompt renders only the description.
func (p *Personality) PersonaPrompt() string {
	return fmt.Sprintf("%s is a person described as %s.", p.SelfName, p.Description)
}

// QuantitativeDescription renders the scores.
func (p *Personality) QuantitativeDescription() string {
	return fmt.Sprintf("<openness>%d<conscientiousness>%d<extraversion>%d<agreeableness>%d<neuroticism>%d",
		p.Openness, p.Conscientiousness, p.Extraversion, p.Agreeableness, p.Neuroticism)
}

func (p *Personality) bigFive() oracle.BigFive {
	return oracle.BigFive{
		Openness:          p.Openness,
		Conscientiousness: p.Conscientiousness,
		Extraversion:      p.Extraversion,
		Agreeableness:     p.Agreeableness,
		Neuroticism:       p.Neuroticism,
	}
}

func likert(v int) string {
	if memory.Likert(v) == memory.Unknown {
		return "unknown"
	}
	return fmt.Sprint(v)
}
