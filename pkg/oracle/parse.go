package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOutput is returned by parsers when a model response does not
// have the expected shape.
var ErrInvalidOutput = errors.New("invalid output format")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOutput, fmt.Sprintf(format, args...))
}

// stripCodeBlocks removes markdown code fences around a response.
func stripCodeBlocks(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// doubleQuote turns single-quoted string literals into double-quoted ones,
// pairing quotes that sit next to structural characters. Apostrophes inside
// words are left alone.
func doubleQuote(s string) string {
	res := []byte(s)
	left := -1
	for i := 1; i < len(s)-1; i++ {
		if s[i] != '\'' {
			continue
		}
		next, prev := s[i+1], s[i-1]
		if prev == '"' || next == '"' {
			continue
		}
		if !strings.ContainsRune(",}].:\n", rune(next)) && !strings.ContainsRune("{[\n ,", rune(prev)) {
			continue
		}
		if left == -1 {
			left = i
			continue
		}
		res[left] = '"'
		res[i] = '"'
		left = -1
	}
	return string(res)
}

// unquote strips one pair of surrounding double quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// decodeAny parses a JSON response and unwraps a single-key object whose
// value is itself an object or an array, as models often wrap results in
// {"result": ...}.
func decodeAny(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(stripCodeBlocks(raw)), &v); err != nil {
		return nil, invalid("not json: %v", err)
	}
	if obj, ok := v.(map[string]any); ok && len(obj) == 1 {
		for _, inner := range obj {
			switch inner.(type) {
			case map[string]any, []any:
				return inner, nil
			}
		}
	}
	return v, nil
}

// hasKeys checks that v is an object holding every key.
func hasKeys(v any, keys []string) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return invalid("expected object, got %T", v)
	}
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return invalid("missing key %q", k)
		}
	}
	return nil
}

// decodeInto re-encodes v and decodes it strictly into out. Unknown keys and
// mistyped values are rejected.
func decodeInto(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return invalid("%v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// parseObject decodes a JSON object response into out, requiring keys.
func parseObject(raw string, out any, keys ...string) error {
	v, err := decodeAny(raw)
	if err != nil {
		return err
	}
	if err := hasKeys(v, keys); err != nil {
		return err
	}
	return decodeInto(v, out)
}

// parseList decodes a JSON array response into out, requiring keys on every
// element. A single object is not accepted as a list.
func parseList(raw string, out any, keys ...string) error {
	v, err := decodeAny(raw)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return invalid("expected list, got %T", v)
	}
	for _, item := range items {
		if err := hasKeys(item, keys); err != nil {
			return err
		}
	}
	return decodeInto(items, out)
}

// wordCount counts whitespace separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

func inLikert(vs ...int) bool {
	for _, v := range vs {
		if v < 1 || v > 9 {
			return false
		}
	}
	return true
}

// parseTagged splits a `<key>value<key>value` string into its fields.
// Fields with unknown keys are dropped.
func parseTagged(s string, known []string) map[string]string {
	out := make(map[string]string)
	for _, item := range strings.Split(s, "<") {
		if len(item) < 2 {
			continue
		}
		key, value, ok := strings.Cut(item, ">")
		if !ok {
			continue
		}
		for _, k := range known {
			if k == key {
				out[key] = value
				break
			}
		}
	}
	return out
}
