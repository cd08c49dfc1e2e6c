package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			"bare object",
			`{"a": "b"}`,
			`{"a": "b"}`,
			true,
		},
		{
			"object in code fence",
			"```json\n{\"a\": \"b\"}\n```",
			`{"a": "b"}`,
			true,
		},
		{
			"object with surrounding prose",
			"Here is the glossary you asked for:\n{\"a\": \"b\"}\nLet me know if you need more.",
			`{"a": "b"}`,
			true,
		},
		{
			"nested object",
			`prefix {"a": {"b": "c"}} suffix`,
			`{"a": {"b": "c"}}`,
			true,
		},
		{
			"no object at all",
			"I could not produce a glossary.",
			"",
			false,
		},
		{
			"broken json",
			`{"a": `,
			"",
			false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tc.input)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, ok := ExtractJSONArray("```\n[\"x\", \"y\"]\n```")
	require.True(t, ok)
	assert.Equal(t, `["x", "y"]`, got)

	_, ok = ExtractJSONArray("no array here")
	assert.False(t, ok)

	// 对象不是数组
	_, ok = ExtractJSONArray(`{"a": "b"}`)
	assert.False(t, ok)
}
