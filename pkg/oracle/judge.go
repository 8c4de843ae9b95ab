package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanbase/sociomind-go/pkg/llm"
)

var errNoProvider = errors.New("no llm provider configured")

// LikertScale explains the 1-9 scale in prompts.
const LikertScale = "In the Likert scale range (1-9), 9 means extremely, 5 means neutral, 1 means not at all."

// Request describes one structured judgment.
type Request struct {
	// Name identifies the judgment in logs.
	Name string

	// Prompt is a single user prompt. Ignored when Messages is set.
	Prompt string

	// Messages is a full chat. The output instructions are appended to the
	// last message.
	Messages []llm.Message

	// Example is the example output shown to the model, already rendered.
	Example string

	// Instruction is appended to the output instructions.
	Instruction string

	// Retries is the number of attempts, at least 1.
	Retries int

	// JSON requests a JSON object response.
	JSON bool
}

// messages renders the request with its output instructions.
func (r Request) messages() []llm.Message {
	var suffix string
	if r.JSON {
		suffix = fmt.Sprintf("\n\nOutput the response to the prompt above in json. %s\nExample output json:\n%s", r.Instruction, r.Example)
	} else {
		suffix = fmt.Sprintf("\nOutput the response to the prompt above. %s\n", r.Instruction) +
			"In this output, all the strings should be surrounded by double quotes, not single quotes. This principle is very important.\n" +
			"Example output:\n" + r.Example
	}
	if len(r.Messages) > 0 {
		out := append([]llm.Message(nil), r.Messages...)
		last := out[len(out)-1]
		last.Content += suffix
		out[len(out)-1] = last
		return out
	}
	return []llm.Message{{Role: llm.RoleUser, Content: "\"\"\"\n" + r.Prompt + "\n\"\"\"\n" + suffix}}
}

func reformatPrompt(response, example string) string {
	return "Modify the format of the input string according to the format of the sample. " +
		"Note that the input content cannot be changed, but the format of the input must be consistent with that of the sample" +
		"\nExample:\n" + example + "\n" +
		"\nInput string: \n" + response + "\n" +
		"\nOutput the result directly, without any superfluous content.So the output should be \n"
}

// Judge runs a structured judgment. Each attempt calls the model, normalizes
// quotes, and parses. A response that fails to parse gets one reformat call
// before the attempt counts as failed. When every attempt fails, failSafe is
// returned.
func Judge[T any](ctx context.Context, o *Oracle, req Request, parse func(string) (T, error), failSafe T) T {
	retries := req.Retries
	if retries < 1 {
		retries = 1
	}
	msgs := req.messages()
	if o.verbose {
		o.logger.Debug("oracle prompt", "judgment", req.Name, "prompt", msgs[len(msgs)-1].Content)
	}

	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		raw, err := o.generate(ctx, msgs, req.JSON)
		if err != nil {
			o.logger.Debug("oracle call failed", "judgment", req.Name, "attempt", attempt, "error", err)
			if errors.Is(err, errNoProvider) {
				break
			}
			continue
		}
		raw = doubleQuote(stripCodeBlocks(raw))
		if o.verbose {
			o.logger.Debug("oracle response", "judgment", req.Name, "attempt", attempt, "response", raw)
		}
		v, err := parse(raw)
		if err == nil {
			return v
		}

		fixed, rerr := o.generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: reformatPrompt(raw, req.Example)}}, false)
		if rerr == nil {
			if v, err2 := parse(doubleQuote(stripCodeBlocks(fixed))); err2 == nil {
				return v
			}
		}
		o.logger.Debug("oracle response rejected", "judgment", req.Name, "attempt", attempt, "error", err)
	}

	o.logger.Warn("oracle retries exhausted, using fail-safe", "judgment", req.Name, "retries", retries)
	return failSafe
}
