package pipeline

import (
	"regexp"

	"github.com/ldelacroix/polyglossia/internal/source"
)

// quotePair 某语言的排版引号对
type quotePair struct {
	open  string
	close string
}

// quotePairs 各语言的直引号替换表。不在表中的语言使用英文
// 弯引号。法语引号内侧带不换行空格。
var quotePairs = map[string]quotePair{
	"fr": {"« ", " »"},
	"de": {"„", "“"},
	"es": {"«", "»"},
	"it": {"«", "»"},
	"pt": {"«", "»"},
	"ru": {"«", "»"},
	"ja": {"「", "」"},
	"zh": {"「", "」"},
}

var defaultQuotes = quotePair{"“", "”"}

// straightQuoted 匹配一对同行内的直双引号及其内容
var straightQuoted = regexp.MustCompile(`"([^"\n]*)"`)

// NormalizeQuotes 把成对的 ASCII 直双引号替换成目标语言的排版
// 引号。结果中不再含有成对直引号，所以此变换是幂等的。
func NormalizeQuotes(text, lang string) string {
	pair, ok := quotePairs[lang]
	if !ok {
		pair = defaultQuotes
	}

	return straightQuoted.ReplaceAllString(text, pair.open+"$1"+pair.close)
}

// NormalizeCandidate 对候选译文的每个字符串值应用引号归一化
func NormalizeCandidate(cand map[string]source.Value, lang string) {
	for key, v := range cand {
		switch v.Kind {
		case source.KindString:
			v.Text = NormalizeQuotes(v.Text, lang)
		case source.KindArray:
			items := make([]string, len(v.List))
			for i, item := range v.List {
				items[i] = NormalizeQuotes(item, lang)
			}
			v.List = items
		}
		cand[key] = v
	}
}
