package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"
)

// markerRunes 是源文中出现时必须被译文保留的非 ASCII 标记符号
var markerRunes = []rune{'→', '—', '§'}

// Policy 是结构校验的全部策略参数
type Policy struct {
	SourceLang           string
	ProtectedNames       []string // 允许屈折变化、按词干检查的人名
	ProtectedTitles      []string // 必须逐字保留的作品标题
	RatioMin             float64  // 普通文字的长度比例下限
	RatioMax             float64
	DenseRatioMin        float64 // 高信息密度文字的放宽区间
	DenseRatioMax        float64
	DenseScripts         []string // 单字信息密度高的语言代码
	UntranslatedMinRunes int      // 未翻译检测只看不短于此的字符串
	UntranslatedMaxShare float64  // 与源文相同的比例超过此值报聚合错误
}

// Validator 结构校验器。对候选译文执行模式一致性与安全不变量
// 检查，除了就地删除多余键之外没有任何副作用，不做网络调用。
type Validator struct {
	policy Policy
	logger *zap.Logger
}

// New 创建结构校验器
func New(policy Policy, logger *zap.Logger) *Validator {
	return &Validator{policy: policy, logger: logger}
}

// Validate 对照源文档校验候选译文，返回校验报告。
// 唯一的就地修改：候选译文中源文档没有的键会被删除（警告）。
func (v *Validator) Validate(doc *source.Document, cand map[string]source.Value, lang string) *Report {
	report := &Report{}

	// 缺失键合并成一条错误，列出全部缺失的键
	var missing []string
	for _, key := range doc.Keys() {
		if _, ok := cand[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, Issue{
			Keys:    missing,
			Code:    CodeMissingKeys,
			Message: fmt.Sprintf("missing keys: %s", strings.Join(missing, ", ")),
		})
	}

	// 多余键只警告，并就地删除
	for key := range cand {
		if !doc.Has(key) {
			report.addWarning(fmt.Sprintf("extra key %q not present in source, dropped", key))
			delete(cand, key)
		}
	}

	// 逐键检查
	var identical []string
	eligible := 0
	for _, entry := range doc.Entries() {
		cv, ok := cand[entry.Key]
		if !ok {
			continue
		}

		if cv.Kind != entry.Value.Kind {
			report.addError(CodeTypeMismatch,
				fmt.Sprintf("type mismatch for %q: expected %s, got %s",
					entry.Key, entry.Value.KindName(), cv.KindName()),
				entry.Key)
			continue
		}

		if entry.Value.Kind == source.KindArray {
			if len(cv.List) != len(entry.Value.List) {
				report.addError(CodeArrayLength,
					fmt.Sprintf("array length mismatch for %q: expected %d, got %d",
						entry.Key, len(entry.Value.List), len(cv.List)),
					entry.Key)
			}
			continue
		}

		report.addIssues(v.CheckString(entry.Key, entry.Value.Text, cv.Text, lang))

		// 聚合未翻译检测：只统计足够长的字符串，目标语言等于
		// 源语言时豁免
		if lang != v.policy.SourceLang && utf8.RuneCountInString(entry.Value.Text) >= v.policy.UntranslatedMinRunes {
			eligible++
			if untranslated(entry.Value.Text, cv.Text) {
				identical = append(identical, entry.Key)
			}
		}
	}

	if eligible > 0 && float64(len(identical))/float64(eligible) > v.policy.UntranslatedMaxShare {
		report.Errors = append(report.Errors, Issue{
			Keys: identical,
			Code: CodeUntranslated,
			Message: fmt.Sprintf("untranslated content: %d of %d long values are identical to the source (keys: %s)",
				len(identical), eligible, strings.Join(identical, ", ")),
		})
	}

	if v.logger != nil {
		v.logger.Debug("structural validation finished",
			zap.String("lang", lang),
			zap.Int("errors", len(report.Errors)),
			zap.Int("warnings", len(report.Warnings)))
	}

	return report
}

// CheckString 对单个字符串值执行全部逐串检查，包括安全扫描。
// 语义修复器在接受一个修复之前用它复查，防止以结构或安全
// 违规为代价换取语义改进。
func (v *Validator) CheckString(key, srcText, candText, lang string) []Issue {
	var issues []Issue

	if strings.TrimSpace(srcText) != "" && strings.TrimSpace(candText) == "" {
		issues = append(issues, Issue{
			Keys:    []string{key},
			Code:    CodeEmptyValue,
			Message: fmt.Sprintf("empty value for %q while source is non-empty", key),
		})
	}

	issues = append(issues, v.checkTags(key, srcText, candText)...)
	issues = append(issues, v.checkProtectedNames(key, srcText, candText)...)
	issues = append(issues, v.checkProtectedTitles(key, srcText, candText)...)
	issues = append(issues, v.checkLengthRatio(key, srcText, candText, lang)...)
	issues = append(issues, v.checkMarkers(key, srcText, candText)...)
	issues = append(issues, v.checkMarkdownLinks(key, srcText, candText)...)
	issues = append(issues, Scan(key, candText)...)

	return issues
}

// checkTags 检查允许清单内标签的配平与数量一致
func (v *Validator) checkTags(key, srcText, candText string) []Issue {
	var issues []Issue

	for _, tag := range allowedTags {
		opening := "<" + tag + ">"
		closing := "</" + tag + ">"

		srcOpen := strings.Count(srcText, opening)
		candOpen := strings.Count(candText, opening)
		candClose := strings.Count(candText, closing)

		if candOpen != srcOpen {
			issues = append(issues, Issue{
				Keys: []string{key},
				Code: CodeTagBalance,
				Message: fmt.Sprintf("tag count mismatch for %q: source has %d <%s>, candidate has %d",
					key, srcOpen, tag, candOpen),
			})
		}
		if candOpen != candClose {
			issues = append(issues, Issue{
				Keys: []string{key},
				Code: CodeTagBalance,
				Message: fmt.Sprintf("unbalanced tag <%s> in %q: %d opening vs %d closing",
					tag, key, candOpen, candClose),
			})
		}
	}

	return issues
}

// checkProtectedNames 人名按词干检查：容忍语法屈折，仍能发现遗漏
func (v *Validator) checkProtectedNames(key, srcText, candText string) []Issue {
	var issues []Issue
	lowerCand := strings.ToLower(candText)

	for _, name := range v.policy.ProtectedNames {
		if !strings.Contains(srcText, name) {
			continue
		}
		for _, word := range splitNameWords(name) {
			if utf8.RuneCountInString(word) < 3 {
				continue
			}
			stem := nameStem(word)
			if !strings.Contains(lowerCand, strings.ToLower(stem)) {
				issues = append(issues, Issue{
					Keys: []string{key},
					Code: CodeProtectedName,
					Message: fmt.Sprintf("protected name %q missing from %q: stem %q not found",
						name, key, stem),
				})
			}
		}
	}

	return issues
}

// checkProtectedTitles 作品标题必须逐字出现，不允许任何屈折
func (v *Validator) checkProtectedTitles(key, srcText, candText string) []Issue {
	var issues []Issue

	for _, title := range v.policy.ProtectedTitles {
		if strings.Contains(srcText, title) && !strings.Contains(candText, title) {
			issues = append(issues, Issue{
				Keys:    []string{key},
				Code:    CodeProtectedTitle,
				Message: fmt.Sprintf("protected title %q missing verbatim from %q", title, key),
			})
		}
	}

	return issues
}

// checkLengthRatio 候选与源文的长度比例必须落在策略区间内。
// 高信息密度的文字（如中日韩）使用放宽的区间。
func (v *Validator) checkLengthRatio(key, srcText, candText, lang string) []Issue {
	srcLen := utf8.RuneCountInString(srcText)
	candLen := utf8.RuneCountInString(candText)
	if srcLen < 10 || candLen == 0 {
		// 太短的字符串比例波动太大，不做此检查
		return nil
	}

	min, max := v.policy.RatioMin, v.policy.RatioMax
	if v.isDenseScript(lang) {
		min, max = v.policy.DenseRatioMin, v.policy.DenseRatioMax
	}

	ratio := float64(candLen) / float64(srcLen)
	if ratio < min || ratio > max {
		return []Issue{{
			Keys: []string{key},
			Code: CodeLengthRatio,
			Message: fmt.Sprintf("length ratio %.2f for %q outside allowed range [%.2f, %.2f]",
				ratio, key, min, max),
		}}
	}
	return nil
}

// checkMarkers 源文中的标记符号（箭头等）必须保留
func (v *Validator) checkMarkers(key, srcText, candText string) []Issue {
	var issues []Issue

	for _, marker := range markerRunes {
		if strings.ContainsRune(srcText, marker) && !strings.ContainsRune(candText, marker) {
			issues = append(issues, Issue{
				Keys:    []string{key},
				Code:    CodeMarkerLost,
				Message: fmt.Sprintf("marker symbol %q missing from %q", string(marker), key),
			})
		}
	}

	return issues
}

// checkMarkdownLinks 源文中的每个链接目标都必须原样出现在译文里
func (v *Validator) checkMarkdownLinks(key, srcText, candText string) []Issue {
	var issues []Issue

	for _, dest := range linkDestinations(srcText) {
		if dest == "" {
			continue
		}
		if !strings.Contains(candText, dest) {
			issues = append(issues, Issue{
				Keys:    []string{key},
				Code:    CodeMarkdownLink,
				Message: fmt.Sprintf("link destination %q missing from %q", dest, key),
			})
		}
	}

	return issues
}

func (v *Validator) isDenseScript(lang string) bool {
	for _, s := range v.policy.DenseScripts {
		if strings.EqualFold(s, lang) {
			return true
		}
	}
	return false
}

// untranslated 判断候选是否等同于源文：严格相等之外，
// 编辑距离小到可以忽略的也算未翻译
func untranslated(srcText, candText string) bool {
	if srcText == candText {
		return true
	}
	dist := fuzzy.LevenshteinDistance(srcText, candText)
	return dist*20 < utf8.RuneCountInString(srcText)
}

// nameStem 计算人名单词的词干：不超过 5 个字符取整个单词，
// 否则取前 max(4, len-2) 个字符，以容忍词尾的语法屈折
func nameStem(word string) string {
	runes := []rune(word)
	if len(runes) <= 5 {
		return word
	}
	n := len(runes) - 2
	if n < 4 {
		n = 4
	}
	return string(runes[:n])
}

func splitNameWords(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-'
	})
}
