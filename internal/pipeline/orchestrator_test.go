package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/ldelacroix/polyglossia/internal/config"
	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func orchestratorConfig() *config.Config {
	return &config.Config{
		Provider:             "openai",
		Model:                "gpt-4o",
		MaxOutputTokens:      1024,
		LocalesDir:           "locales",
		GlossaryDir:          "glossaries",
		LogDir:               "logs",
		SourceLang:           "en",
		MaxRetryRounds:       2,
		MaxSemanticRounds:    2,
		LengthRatioMin:       0.5,
		LengthRatioMax:       2.0,
		DenseRatioMin:        0.3,
		DenseRatioMax:        3.0,
		DenseScripts:         []string{"zh", "ja", "ko"},
		UntranslatedMinRunes: 25,
		UntranslatedMaxShare: 0.3,
		ContextWindow:        2,
		ContextMaxWidth:      280,
	}
}

func newTestOrchestrator(backend provider.Backend) (*Orchestrator, afero.Fs) {
	fs := afero.NewMemMapFs()
	st := store.New(fs, "locales", "glossaries", "logs")
	return NewOrchestrator(orchestratorConfig(), backend, st, zap.NewNop()), fs
}

func requireRunLogWritten(t *testing.T, fs afero.Fs) {
	t.Helper()
	entries, err := afero.ReadDir(fs, "logs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "run_fr_"))
}

func TestRunSuccessWritesTranslationInSourceOrder(t *testing.T) {
	backend := &scriptedBackend{handle: func(prompt string) (*provider.Response, error) {
		switch {
		case strings.Contains(prompt, "Build a translation glossary"):
			return textResponse(`{"slowness": "lenteur"}`)
		case strings.Contains(prompt, "Review this"):
			return textResponse("NO_ISSUES")
		case strings.Contains(prompt, "Key: z_greeting"):
			return textResponse("Bonjour")
		case strings.Contains(prompt, "Key: a_farewell"):
			return textResponse("Au revoir")
		}
		return textResponse("unexpected")
	}}
	o, fs := newTestOrchestrator(backend)

	doc, err := source.ParseDocument([]byte(`{"z_greeting": "Hello", "a_farewell": "Goodbye"}`))
	require.NoError(t, err)
	batches := []source.Batch{{Name: "main", Keys: []string{"z_greeting", "a_farewell"}}}

	log := o.Run(context.Background(), doc, batches, "fr", false)
	assert.Equal(t, ResultSuccess, log.Result)
	assert.NotZero(t, log.TokensIn)

	// 译文按源文档键序写出，不受候选 map 迭代序影响
	data, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"z_greeting":"Bonjour"`)
	assert.Contains(t, out, `"a_farewell":"Au revoir"`)
	assert.Less(t, strings.Index(out, "z_greeting"), strings.Index(out, "a_farewell"))

	// 术语表在运行中生成并缓存
	cached, err := afero.Exists(fs, "glossaries/fr.json")
	require.NoError(t, err)
	assert.True(t, cached)

	requireRunLogWritten(t, fs)
}

func TestRunFailsClosedWhenOutputStaysEnglish(t *testing.T) {
	const src = "The burnout society replaces discipline with achievement."
	keyPrompts := 0
	backend := &scriptedBackend{handle: func(prompt string) (*provider.Response, error) {
		if strings.Contains(prompt, "Build a translation glossary") {
			return textResponse("no glossary today")
		}
		// 每一轮都原样回显英文源文
		keyPrompts++
		return textResponse(src)
	}}
	o, fs := newTestOrchestrator(backend)

	doc, err := source.ParseDocument([]byte(`{"body": "` + src + `"}`))
	require.NoError(t, err)
	batches := []source.Batch{{Name: "main", Keys: []string{"body"}}}

	log := o.Run(context.Background(), doc, batches, "fr", false)
	assert.Equal(t, ResultFailed, log.Result)

	// 首轮加两轮重试，三次逐键请求之后仍然不干净就失败关闭
	assert.Equal(t, 3, keyPrompts)

	exists, err := afero.Exists(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.False(t, exists, "failed run must not write a translation file")

	requireRunLogWritten(t, fs)
}

func TestRunAbortsOnSecurityViolationWithoutRetry(t *testing.T) {
	keyPrompts := 0
	backend := &scriptedBackend{handle: func(prompt string) (*provider.Response, error) {
		if strings.Contains(prompt, "Build a translation glossary") {
			return textResponse("no glossary today")
		}
		keyPrompts++
		return textResponse(`Bonjour <script>alert(1)</script>`)
	}}
	o, fs := newTestOrchestrator(backend)

	doc, err := source.ParseDocument([]byte(`{"greeting": "Hello"}`))
	require.NoError(t, err)
	batches := []source.Batch{{Name: "main", Keys: []string{"greeting"}}}

	log := o.Run(context.Background(), doc, batches, "fr", false)
	assert.Equal(t, ResultFailed, log.Result)

	// 安全违规立即终止，不进入重试环
	assert.Equal(t, 1, keyPrompts)

	exists, err := afero.Exists(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.False(t, exists)

	abortRecorded := false
	for _, p := range log.Phases {
		if p.Phase == "security_abort" {
			abortRecorded = true
		}
	}
	assert.True(t, abortRecorded)

	requireRunLogWritten(t, fs)
}

func TestRunAppliesSemanticFixes(t *testing.T) {
	reviews := 0
	backend := &scriptedBackend{handle: func(prompt string) (*provider.Response, error) {
		switch {
		case strings.Contains(prompt, "Build a translation glossary"):
			return textResponse("no glossary today")
		case strings.Contains(prompt, "Review this"):
			reviews++
			if reviews == 1 {
				return textResponse("KEY: body | TYPE: glossary | DESC: slowness should be lenteur")
			}
			return textResponse("NO_ISSUES")
		case strings.Contains(prompt, "Problem type:"):
			return textResponse("Nous écrivons sur la lenteur.")
		case strings.Contains(prompt, "Key: body"):
			return textResponse("Nous écrivons sur la paresse.")
		}
		return textResponse("unexpected")
	}}
	o, fs := newTestOrchestrator(backend)

	doc, err := source.ParseDocument([]byte(`{"body": "We write about slowness."}`))
	require.NoError(t, err)
	batches := []source.Batch{{Name: "main", Keys: []string{"body"}}}

	log := o.Run(context.Background(), doc, batches, "fr", false)
	assert.Equal(t, ResultSuccess, log.Result)
	assert.Equal(t, 2, reviews)

	data, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "lenteur")
}

func TestRunAllIsSequentialPerLanguage(t *testing.T) {
	backend := &scriptedBackend{handle: func(prompt string) (*provider.Response, error) {
		switch {
		case strings.Contains(prompt, "Build a translation glossary"):
			return textResponse(`{"slowness": "x"}`)
		case strings.Contains(prompt, "Review this"):
			return textResponse("NO_ISSUES")
		case strings.Contains(prompt, "French"):
			return textResponse("Bonjour")
		case strings.Contains(prompt, "German"):
			return textResponse("Guten Tag")
		}
		return textResponse("unexpected")
	}}
	o, fs := newTestOrchestrator(backend)

	doc, err := source.ParseDocument([]byte(`{"greeting": "Hello"}`))
	require.NoError(t, err)
	batches := []source.Batch{{Name: "main", Keys: []string{"greeting"}}}

	logs := o.RunAll(context.Background(), doc, batches, []string{"fr", "de"}, false)
	require.Len(t, logs, 2)
	assert.Equal(t, "fr", logs[0].Language)
	assert.Equal(t, "de", logs[1].Language)
	assert.Equal(t, ResultSuccess, logs[0].Result)
	assert.Equal(t, ResultSuccess, logs[1].Result)

	fr, err := afero.ReadFile(fs, "locales/fr.json")
	require.NoError(t, err)
	assert.Contains(t, string(fr), "Bonjour")
	de, err := afero.ReadFile(fs, "locales/de.json")
	require.NoError(t, err)
	assert.Contains(t, string(de), "Guten Tag")
}
