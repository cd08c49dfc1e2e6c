package source

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBatches(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, "content/batches.toml", []byte(content), 0o644))
}

func testDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(`{
		"hero_title": "a",
		"hero_body": "b",
		"about_body": "c",
		"seo_title": "d",
		"seo_description": "e"
	}`))
	require.NoError(t, err)
	return doc
}

func TestLoadBatches(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBatches(t, fs, `
[[batch]]
name = "hero"
context = "Landing page hero section."
keys = ["hero_title", "hero_body"]

[[batch]]
name = "seo"
context = "Search metadata."
keys = ["seo_title", "seo_description", "hero_title"]
derived = true
`)

	batches, err := LoadBatches(fs, "content/batches.toml", testDoc(t))
	require.NoError(t, err)

	// about_body 没有归属，必须落进隐式的收尾正文批次
	require.Len(t, batches, 3)
	assert.Equal(t, "ungrouped", batches[2].Name)
	assert.Equal(t, []string{"about_body"}, batches[2].Keys)
	assert.False(t, batches[2].Derived)

	body := BodyBatches(batches)
	derived := DerivedBatches(batches)
	assert.Len(t, body, 2)
	require.Len(t, derived, 1)
	assert.Equal(t, "seo", derived[0].Name)
}

func TestLoadBatchesRejectsInconsistentDefinitions(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			"unknown key",
			"[[batch]]\nname = \"x\"\nkeys = [\"nope\"]\n",
		},
		{
			"key in two body batches",
			"[[batch]]\nname = \"x\"\nkeys = [\"hero_title\"]\n\n[[batch]]\nname = \"y\"\nkeys = [\"hero_title\"]\n",
		},
		{
			"missing name",
			"[[batch]]\nkeys = [\"hero_title\"]\n",
		},
		{
			"empty keys",
			"[[batch]]\nname = \"x\"\nkeys = []\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeBatches(t, fs, tc.content)
			_, err := LoadBatches(fs, "content/batches.toml", testDoc(t))
			assert.Error(t, err)
		})
	}
}
