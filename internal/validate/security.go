package validate

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"
)

// allowedTags 是译文中唯一允许出现的行内标签
var allowedTags = []string{"em", "strong", "cite"}

// dangerousPatterns 是危险内容的固定清单。命中任何一条都是
// 安全类错误：自动化的纠正重试无法被信任不会把载荷换个位置
// 重新引入，所以一律直接终止本次运行。
var dangerousPatterns = []struct {
	name string
	re   *regexp2.Regexp
}{
	{"script tag", regexp2.MustCompile(`<\s*script\b`, regexp2.IgnoreCase)},
	{"iframe tag", regexp2.MustCompile(`<\s*iframe\b`, regexp2.IgnoreCase)},
	{"object tag", regexp2.MustCompile(`<\s*object\b`, regexp2.IgnoreCase)},
	{"embed tag", regexp2.MustCompile(`<\s*embed\b`, regexp2.IgnoreCase)},
	{"link tag", regexp2.MustCompile(`<\s*link\b`, regexp2.IgnoreCase)},
	{"meta tag", regexp2.MustCompile(`<\s*meta\b`, regexp2.IgnoreCase)},
	{"svg tag", regexp2.MustCompile(`<\s*svg\b`, regexp2.IgnoreCase)},
	{"form tag", regexp2.MustCompile(`<\s*form\b`, regexp2.IgnoreCase)},
	{"input tag", regexp2.MustCompile(`<\s*input\b`, regexp2.IgnoreCase)},
	{"img tag", regexp2.MustCompile(`<\s*img\b`, regexp2.IgnoreCase)},
	{"javascript URI", regexp2.MustCompile(`javascript\s*:`, regexp2.IgnoreCase)},
	{"data html URI", regexp2.MustCompile(`data\s*:\s*text/html`, regexp2.IgnoreCase)},
	{"event handler attribute", regexp2.MustCompile(`\bon[a-z]+\s*=\s*["'\x60]?`, regexp2.IgnoreCase)},
	{"css expression", regexp2.MustCompile(`expression\s*\(`, regexp2.IgnoreCase)},
	{"css javascript url", regexp2.MustCompile(`url\s*\(\s*["']?\s*javascript`, regexp2.IgnoreCase)},
	{"html comment", regexp2.MustCompile(`<!--`, 0)},
}

// encodedTagPatterns 捕获实体编码或转义后的标签开启符，
// 防止通过一层编码绕过上面的明文清单。
var encodedTagPatterns = []struct {
	name string
	re   *regexp2.Regexp
}{
	{"entity-encoded tag opener", regexp2.MustCompile(`&lt;\s*/?\s*[a-z]`, regexp2.IgnoreCase)},
	{"numeric entity tag opener", regexp2.MustCompile(`&#0*60;?|&#x0*3c;?`, regexp2.IgnoreCase)},
	{"unicode escape for angle bracket", regexp2.MustCompile(`\\u003[ce]|\\x3[ce]`, regexp2.IgnoreCase)},
}

// suspiciousRunes 是禁止出现的零宽/双向控制/格式化码点。
// 不可见码点一律写成转义形式，U+FEFF 的字面量在文件中部
// 不是合法的 Go 源码。
var suspiciousRunes = map[rune]string{
	'\u200B': "zero width space",
	'\u200C': "zero width non-joiner",
	'\u200D': "zero width joiner",
	'\u200E': "left-to-right mark",
	'\u200F': "right-to-left mark",
	'\u202A': "left-to-right embedding",
	'\u202B': "right-to-left embedding",
	'\u202C': "pop directional formatting",
	'\u202D': "left-to-right override",
	'\u202E': "right-to-left override",
	'\u2060': "word joiner",
	'\u2061': "function application",
	'\u2062': "invisible times",
	'\u2063': "invisible separator",
	'\u2064': "invisible plus",
	'\u061C': "arabic letter mark",
	'\uFEFF': "byte order mark",
}

// Scan 对单个字符串值做全部安全检查，返回命中的安全类错误。
// 纯函数，既被结构校验器调用，也被语义修复器在接受修复前复查。
func Scan(key, text string) []Issue {
	var issues []Issue

	for _, p := range dangerousPatterns {
		if matched, _ := p.re.MatchString(text); matched {
			issues = append(issues, securityIssue(key,
				fmt.Sprintf("%s dangerous pattern (%s) in value of %q", SecurityPrefix, p.name, key)))
		}
	}

	for _, p := range encodedTagPatterns {
		if matched, _ := p.re.MatchString(text); matched {
			issues = append(issues, securityIssue(key,
				fmt.Sprintf("%s encoded markup (%s) in value of %q", SecurityPrefix, p.name, key)))
		}
	}

	issues = append(issues, scanTags(key, text)...)
	issues = append(issues, scanRunes(key, text)...)

	return issues
}

// scanTags 用 HTML 分词器找出允许清单之外的标签
func scanTags(key, text string) []Issue {
	if !strings.Contains(text, "<") {
		return nil
	}

	var issues []Issue
	reported := make(map[string]bool)

	tok := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			tag := strings.ToLower(string(name))
			if tag == "" || reported[tag] {
				continue
			}
			if !isAllowedTag(tag) {
				reported[tag] = true
				issues = append(issues, securityIssue(key,
					fmt.Sprintf("%s disallowed tag <%s> in value of %q", SecurityPrefix, tag, key)))
			}
		}
	}

	return issues
}

// scanRunes 检查零宽与双向控制码点
func scanRunes(key, text string) []Issue {
	var issues []Issue
	reported := make(map[rune]bool)

	for _, r := range text {
		name, bad := suspiciousRunes[r]
		if !bad || reported[r] {
			continue
		}
		reported[r] = true
		issues = append(issues, securityIssue(key,
			fmt.Sprintf("%s suspicious unicode U+%04X (%s) in value of %q", SecurityPrefix, r, name, key)))
	}

	return issues
}

func isAllowedTag(tag string) bool {
	for _, t := range allowedTags {
		if tag == t {
			return true
		}
	}
	return false
}
