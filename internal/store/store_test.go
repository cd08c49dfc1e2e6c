package store

import (
	"testing"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return New(fs, "locales", "glossaries", "logs"), fs
}

func storeDoc(t *testing.T, raw string) *source.Document {
	t.Helper()
	doc, err := source.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestWriteTranslationKeepsSourceOrder(t *testing.T) {
	st, fs := newTestStore()
	doc := storeDoc(t, `{"zebra": "one", "apple": "two", "mid": ["a", "b"]}`)
	cand := map[string]source.Value{
		"apple": source.StringValue("deux"),
		"zebra": source.StringValue("un"),
		"mid":   source.ArrayValue([]string{"x", "y"}),
	}

	require.NoError(t, st.WriteTranslation("fr", doc, cand))

	data, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":"un","apple":"deux","mid":["x","y"]}`, string(data))
}

func TestWriteTranslationEscapesPathSyntaxInKeys(t *testing.T) {
	st, fs := newTestStore()

	// 带点的键必须作为字面键写出，不能被解释成嵌套路径
	doc := storeDoc(t, `{"nav.home": "Home", "a|b": "pipe"}`)
	cand := map[string]source.Value{
		"nav.home": source.StringValue("Accueil"),
		"a|b":      source.StringValue("barre"),
	}

	require.NoError(t, st.WriteTranslation("fr", doc, cand))

	data, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Equal(t, `{"nav.home":"Accueil","a|b":"barre"}`, string(data))

	loaded, err := st.LoadTranslation("fr")
	require.NoError(t, err)
	assert.Equal(t, "Accueil", loaded["nav.home"].Text)
}

func TestWriteTranslationRefusesPartialCandidate(t *testing.T) {
	st, fs := newTestStore()
	doc := storeDoc(t, `{"a": "one", "b": "two"}`)
	cand := map[string]source.Value{"a": source.StringValue("un")}

	err := st.WriteTranslation("fr", doc, cand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)

	exists, err := afero.Exists(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.False(t, exists, "partial candidate must not produce a file")
}

func TestGlossaryRoundTrip(t *testing.T) {
	st, _ := newTestStore()

	// 不存在的术语表返回 nil 而不是错误
	terms, err := st.LoadGlossary("fr")
	require.NoError(t, err)
	assert.Nil(t, terms)

	require.NoError(t, st.WriteGlossary("fr", map[string]string{
		"burnout":  "épuisement",
		"slowness": "lenteur",
	}))

	terms, err = st.LoadGlossary("fr")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"burnout":  "épuisement",
		"slowness": "lenteur",
	}, terms)
}

func TestWriteGlossaryRefusesEmpty(t *testing.T) {
	st, fs := newTestStore()
	require.Error(t, st.WriteGlossary("fr", nil))
	require.Error(t, st.WriteGlossary("fr", map[string]string{}))

	exists, err := afero.Exists(fs, "glossaries/fr.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteRunLog(t *testing.T) {
	st, fs := newTestStore()

	path, err := st.WriteRunLog("run_fr_20260830T120000.json", []byte(`{"result":"success"}`))
	require.NoError(t, err)
	assert.Equal(t, "logs/run_fr_20260830T120000.json", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, `{"result":"success"}`, string(data))
}

func TestHasTranslation(t *testing.T) {
	st, _ := newTestStore()
	assert.False(t, st.HasTranslation("fr"))

	doc := storeDoc(t, `{"a": "one"}`)
	require.NoError(t, st.WriteTranslation("fr", doc, map[string]source.Value{"a": source.StringValue("un")}))
	assert.True(t, st.HasTranslation("fr"))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, `nav\.home`, escapePath("nav.home"))
	assert.Equal(t, `a\|b\#c\@d`, escapePath("a|b#c@d"))
	assert.Equal(t, `a\\b`, escapePath(`a\b`))
	assert.Equal(t, "plain", escapePath("plain"))
}
