package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSONValidPassthrough(t *testing.T) {
	input := `{"ideas": [{"title": "Why leads ghost"}]}`
	out, stats, err := RepairJSON(input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.False(t, stats.WasRepaired)
}

func TestRepairJSONTrailingCommas(t *testing.T) {
	out, stats, err := RepairJSON(`{"a": 1, "b": [1, 2,],}`)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Contains(t, stats.RepairStrategies, "trailing_commas")

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, float64(1), parsed["a"])
}

func TestRepairJSONTruncatedObject(t *testing.T) {
	out, stats, err := RepairJSON(`{"ideas": [{"title": "Objection handling"`)
	require.NoError(t, err)
	assert.Contains(t, stats.RepairStrategies, "completion")

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
}

func TestRepairJSONUnquotedKeys(t *testing.T) {
	out, _, err := RepairJSON(`{title: "Hooks that land", score: 3}`)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "Hooks that land", parsed["title"])
}

func TestExtractJSONFencedBlock(t *testing.T) {
	raw := "Here are the ideas:\n```json\n{\"ideas\": []}\n```\nLet me know."
	assert.Equal(t, `{"ideas": []}`, ExtractJSON(raw))
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `The result is {"ok": true} as requested.`
	assert.Equal(t, `{"ok": true}`, ExtractJSON(raw))
}

func TestExtractJSONNoJSON(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("no structured content here"))
}

func TestParseResponse(t *testing.T) {
	var target struct {
		Ideas []struct {
			Title string `json:"title"`
		} `json:"ideas"`
	}
	raw := "```json\n{\"ideas\": [{\"title\": \"Why no-shows happen\",}]}\n```"
	stats, err := ParseResponse(raw, &target)
	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	require.Len(t, target.Ideas, 1)
	assert.Equal(t, "Why no-shows happen", target.Ideas[0].Title)
}
