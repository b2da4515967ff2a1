package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFor_ReflectsProperties(t *testing.T) {
	s := SchemaFor[echoArgs]()

	assert.Equal(t, "object", s["type"])
	assert.NotContains(t, s, "$schema")

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	text := props["text"].(map[string]any)
	assert.Equal(t, "string", text["type"])
	assert.Equal(t, "Text to echo back", text["description"])
	assert.Equal(t, "integer", props["times"].(map[string]any)["type"])

	required, _ := s["required"].([]any)
	assert.Contains(t, required, "text")
	assert.NotContains(t, required, "times")
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs[echoArgs](map[string]any{"text": "hello", "times": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, echoArgs{Text: "hello", Times: 3}, args)

	_, err = DecodeArgs[echoArgs](map[string]any{"times": 1})
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"name":"x","n":4,"ok":true}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x", "n": float64(4), "ok": true}, args)

	null, err := ParseArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, null)

	empty, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseArguments("{bad")
	assert.Error(t, err)
}
