package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDangerousPatternCatalogue(t *testing.T) {
	// 危险清单的每一项都必须产生带 SECURITY: 前缀的错误
	testCases := []struct {
		name  string
		value string
	}{
		{"script tag", `<script>alert(1)</script>`},
		{"script tag with spaces", `< script >alert(1)</script>`},
		{"iframe tag", `<iframe src="https://evil.example"></iframe>`},
		{"object tag", `<object data="x"></object>`},
		{"embed tag", `<embed src="x">`},
		{"link tag", `<link rel="stylesheet" href="x">`},
		{"meta tag", `<meta http-equiv="refresh" content="0">`},
		{"svg tag", `<svg onload=alert(1)>`},
		{"form tag", `<form action="/steal">`},
		{"input tag", `<input type="text">`},
		{"img tag", `<img src=x>`},
		{"javascript uri", `click <a href="javascript:alert(1)">here</a>`},
		{"data html uri", `see data:text/html;base64,PHNjcmlwdD4=`},
		{"event handler", `nice text onclick="alert(1)" more text`},
		{"css expression", `width: expression(alert(1))`},
		{"css javascript url", `background: url("javascript:alert(1)")`},
		{"html comment", `before <!-- hidden --> after`},
		{"entity encoded tag", `&lt;script&gt;alert(1)&lt;/script&gt;`},
		{"numeric entity tag", `&#60;script&#62;`},
		{"hex entity tag", `&#x3c;script&#x3e;`},
		{"unicode escape", `\u003cscript\u003e`},
		{"hex escape", `\x3cscript\x3e`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := Scan("k", tc.value)
			require.NotEmpty(t, issues, "value %q must be flagged", tc.value)
			for _, issue := range issues {
				assert.True(t, issue.Security)
				assert.True(t, strings.HasPrefix(issue.Message, SecurityPrefix),
					"message %q must carry the SECURITY: prefix", issue.Message)
				assert.Equal(t, []string{"k"}, issue.Keys)
			}
		})
	}
}

func TestScanSuspiciousUnicode(t *testing.T) {
	testCases := []struct {
		name  string
		value string
	}{
		{"zero width space", "inno\u200Bcent"},
		{"right-to-left override", "price \u202E431"},
		{"word joiner", "a\u2060b"},
		{"byte order mark", "\uFEFFtext"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := Scan("k", tc.value)
			require.Len(t, issues, 1)
			assert.True(t, issues[0].Security)
			assert.Contains(t, issues[0].Message, "suspicious unicode")
		})
	}
}

func TestScanAllowsInlineTagsAndPlainText(t *testing.T) {
	testCases := []struct {
		name  string
		value string
	}{
		{"plain text", "A quiet sentence about slowness."},
		{"allowed em", "We live in an <em>attention economy</em>."},
		{"allowed strong", "This part <strong>matters</strong>."},
		{"allowed cite", "As argued in <cite>The Burnout Society</cite>."},
		{"arrow and dash", "Read more → essays — archive"},
		{"accented text", "Müdigkeitsgesellschaft, naïveté, œuvre"},
		{"cjk text", "注意力経済について書く"},
		{"less-than as comparison", "3 < 5 is true"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, Scan("k", tc.value))
		})
	}
}

func TestScanEncodedAngleBracketEscapes(t *testing.T) {
	// 反斜杠转义的尖括号必须命中转义检测器本身，
	// 而不是依赖明文标签清单或标签解析兜底
	testCases := []struct {
		name  string
		value string
	}{
		{"unicode escape lower", `\u003cscript\u003e`},
		{"unicode escape upper", `\U003Cscript\U003E`},
		{"hex escape", `\x3cscript\x3e`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := Scan("k", tc.value)
			require.Len(t, issues, 1)
			assert.True(t, issues[0].Security)
			assert.Contains(t, issues[0].Message, "unicode escape for angle bracket")
		})
	}
}

func TestScanDisallowedTagViaTokenizer(t *testing.T) {
	// 不在清单里的标签即使本身无害也不允许
	issues := Scan("k", `hello <blink>world</blink>`)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Message, "disallowed tag <blink>")
}
