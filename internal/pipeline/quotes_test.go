package pipeline

import (
	"testing"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuotes(t *testing.T) {
	testCases := []struct {
		name  string
		lang  string
		input string
		want  string
	}{
		{"french guillemets", "fr", `il dit "bonjour" et part`, "il dit « bonjour » et part"},
		{"german quotes", "de", `er sagt "hallo" dazu`, "er sagt „hallo“ dazu"},
		{"spanish guillemets", "es", `dice "hola" y se va`, "dice «hola» y se va"},
		{"japanese brackets", "ja", `彼は"こんにちは"と言う`, "彼は「こんにちは」と言う"},
		{"fallback curly", "nl", `zegt "hallo" erbij`, "zegt “hallo” erbij"},
		{"two pairs", "de", `"a" und "b"`, "„a“ und „b“"},
		{"no quotes untouched", "fr", "rien à changer ici", "rien à changer ici"},
		{"odd quote untouched", "de", `ein " allein`, `ein " allein`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeQuotes(tc.input, tc.lang))
		})
	}
}

func TestNormalizeQuotesIsIdempotent(t *testing.T) {
	inputs := []string{
		`she says "hello" and "goodbye"`,
		`nothing here`,
		`nested "outer 'inner' outer" text`,
		`"leading" and trailing "quotes"`,
	}
	langs := []string{"fr", "de", "es", "it", "pt", "ru", "ja", "zh", "en", "nl"}

	// 对每种支持的语言，归一化两次等于归一化一次
	for _, lang := range langs {
		for _, input := range inputs {
			once := NormalizeQuotes(input, lang)
			twice := NormalizeQuotes(once, lang)
			assert.Equal(t, once, twice, "lang=%s input=%q", lang, input)
		}
	}
}

func TestNormalizeCandidate(t *testing.T) {
	cand := map[string]source.Value{
		"s": source.StringValue(`say "hi"`),
		"a": source.ArrayValue([]string{`say "hi"`, `say "bye"`}),
	}

	NormalizeCandidate(cand, "de")

	assert.Equal(t, "say „hi“", cand["s"].Text)
	assert.Equal(t, []string{"say „hi“", "say „bye“"}, cand["a"].List)
}
