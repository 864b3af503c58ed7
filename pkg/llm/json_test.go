package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	got, err := ExtractJSON(`{"actions": []}`)
	require.NoError(t, err)
	assert.Equal(t, `{"actions": []}`, got)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	resp := "Here's the plan:\n```json\n{\"should_act\": true, \"reason\": \"first visit\"}\n```\nDone."

	got, err := ExtractJSON(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"should_act": true, "reason": "first visit"}`, got)
}

func TestExtractJSON_StripsThinkTags(t *testing.T) {
	resp := "<think>the consumer is new, greet them</think>\n{\"should_act\": true}"

	got, err := ExtractJSON(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"should_act": true}`, got)
}

func TestExtractJSON_NestedBracesInsideStrings(t *testing.T) {
	resp := `{"message": "use \"{placeholders}\" carefully", "n": 1} trailing prose`

	got, err := ExtractJSON(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "use \"{placeholders}\" carefully", "n": 1}`, got)
}

func TestExtractJSON_Array(t *testing.T) {
	got, err := ExtractJSON("the actions are: [1, 2, 3]")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", got)
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not decide on any actions.")
	assert.Error(t, err)
}

func TestParseJSONResponse_IntoStruct(t *testing.T) {
	type decision struct {
		ShouldAct bool   `json:"should_act"`
		Reason    string `json:"reason"`
	}

	got, err := ParseJSONResponse[decision]("```json\n{\"should_act\": true, \"reason\": \"hot lead\"}\n```")
	require.NoError(t, err)
	assert.True(t, got.ShouldAct)
	assert.Equal(t, "hot lead", got.Reason)
}

func TestParseJSONResponse_MalformedPayload(t *testing.T) {
	type decision struct {
		ShouldAct bool `json:"should_act"`
	}

	_, err := ParseJSONResponse[decision](`{"should_act": "not-a-bool"}`)
	assert.Error(t, err)
}
