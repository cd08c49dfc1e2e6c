package source

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentPreservesOrder(t *testing.T) {
	data := []byte(`{
		"zeta": "last first",
		"alpha": "second",
		"tags": ["a", "b", "c"],
		"omega": "fourth"
	}`)

	doc, err := ParseDocument(data)
	require.NoError(t, err)

	// 键序必须是文件中的出现顺序，不是字典序
	assert.Equal(t, []string{"zeta", "alpha", "tags", "omega"}, doc.Keys())
	assert.Equal(t, 4, doc.Len())

	v, ok := doc.Get("tags")
	require.True(t, ok)
	assert.Equal(t, KindArray, v.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, v.List)

	v, ok = doc.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "second", v.Text)
}

func TestParseDocumentRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"a": `},
		{"top-level array", `["a", "b"]`},
		{"empty object", `{}`},
		{"numeric value", `{"a": 42}`},
		{"nested object", `{"a": {"b": "c"}}`},
		{"array of numbers", `{"a": [1, 2]}`},
		{"duplicate key", `{"a": "x", "a": "y"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "content/en.json", []byte(`{"t": "Hello"}`), 0o644))

	doc, err := LoadDocument(fs, "content/en.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, doc.Keys())

	_, err = LoadDocument(fs, "content/missing.json")
	assert.Error(t, err)
}
