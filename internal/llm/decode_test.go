package llm

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Category string   `json:"category"`
	Steps    []string `json:"steps"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strategy Strategy
		category string
	}{
		{"direct", `{"category":"positive"}`, StrategyDirect, "positive"},
		{"direct with whitespace", "\n  {\"category\":\"negative\"}  \n", StrategyDirect, "negative"},
		{"fenced json", "Voici le résultat :\n```json\n{\"category\":\"referral\"}\n```\nBonne journée", StrategyFenced, "referral"},
		{"fenced bare", "```\n{\"category\":\"objection\"}\n```", StrategyFenced, "objection"},
		{"braces in prose", `Sure! {"category":"neutral","steps":["a}b"]} Hope it helps {not json}`, StrategyBraces, "neutral"},
		{"nested braces", `result: {"category":"positive","meta":{"x":{"y":1}}} end`, StrategyBraces, "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			got, err := DecodeJSON(tt.text, &p)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, got)
			assert.Equal(t, tt.category, p.Category)
		})
	}
}

func TestDecodeJSON_Failures(t *testing.T) {
	for _, text := range []string{"", "   ", "no json here", "{unbalanced", "```json\nnot json\n```"} {
		var p payload
		_, err := DecodeJSON(text, &p)
		assert.True(t, eris.Is(err, ErrNoJSON), "text %q", text)
	}
}

func TestFirstObject_EscapedQuotes(t *testing.T) {
	text := `x {"a":"he said \"}\" ok"} y`
	assert.Equal(t, `{"a":"he said \"}\" ok"}`, firstObject(text))
}
