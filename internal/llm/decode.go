package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when no recovery strategy yields valid JSON.
var ErrNoJSON = eris.New("llm: no decodable JSON in response")

// Strategy names the recovery step that produced a decoded value.
type Strategy string

const (
	StrategyDirect Strategy = "direct"
	StrategyFenced Strategy = "fenced"
	StrategyBraces Strategy = "braces"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// DecodeJSON unmarshals an LLM response into v, trying in order: the whole
// text, the first fenced code block, then the first balanced {...}
// substring. It returns the strategy that succeeded.
func DecodeJSON(text string, v any) (Strategy, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", eris.Wrap(ErrNoJSON, "empty response")
	}

	if json.Unmarshal([]byte(text), v) == nil {
		return StrategyDirect, nil
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return StrategyFenced, nil
		}
	}

	if obj := firstObject(text); obj != "" {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return StrategyBraces, nil
		}
	}

	return "", eris.Wrapf(ErrNoJSON, "%d bytes", len(text))
}

// firstObject returns the first brace-balanced substring, honouring JSON
// string escapes, or "" if the braces never balance.
func firstObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
