package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// noIssuesSentinel 审查后端用来表示"没有发现问题"的字面量
const noIssuesSentinel = "NO_ISSUES"

// LanguageName 把语言代码转换成英文显示名，供提示词使用
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}

// PromptBuilder 为流水线各阶段构建提示词
type PromptBuilder struct {
	TargetLang      string            // 语言代码
	TargetLangName  string            // 英文显示名
	Glossary        map[string]string // 可为 nil
	ProtectedNames  []string
	ProtectedTitles []string
}

// ruleBlock 所有翻译请求共用的固定规则
func (pb *PromptBuilder) ruleBlock() string {
	var sb strings.Builder

	sb.WriteString("Rules:\n")
	sb.WriteString("1. Preserve all inline tags (<em>, <strong>, <cite>), arrow symbols (→) and Markdown syntax exactly as in the source.\n")

	n := 2
	if len(pb.ProtectedNames) > 0 {
		fmt.Fprintf(&sb, "%d. Keep these proper names recognizable; grammatical inflection is allowed: %s.\n",
			n, strings.Join(pb.ProtectedNames, ", "))
		n++
	}
	if len(pb.ProtectedTitles) > 0 {
		fmt.Fprintf(&sb, "%d. Keep these titles verbatim, untranslated: %s.\n",
			n, strings.Join(pb.ProtectedTitles, ", "))
		n++
	}

	fmt.Fprintf(&sb, "%d. Use the typographic quotation marks customary in %s instead of straight quotes.\n", n, pb.TargetLangName)
	n++
	fmt.Fprintf(&sb, "%d. Mind subject-verb number agreement throughout.\n", n)

	return sb.String()
}

// glossaryBlock 术语表格式化成显式的术语对
func (pb *PromptBuilder) glossaryBlock() string {
	if len(pb.Glossary) == 0 {
		return ""
	}

	terms := make([]string, 0, len(pb.Glossary))
	for t := range pb.Glossary {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var sb strings.Builder
	sb.WriteString("Glossary (use these translations consistently):\n")
	for _, t := range terms {
		fmt.Fprintf(&sb, "- %q → %q\n", t, pb.Glossary[t])
	}
	return sb.String()
}

// BuildKeyPrompt 单键翻译请求：正文逐键翻译、派生批次回退和
// 技术校验重试共用的形态。feedback 是上一轮校验错误的原文，
// 作为纠正反馈附在请求末尾。
func (pb *PromptBuilder) BuildKeyPrompt(key, srcText, sectionCtx string, feedback []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Translate the following site copy from English to %s.\n\n", pb.TargetLangName)
	sb.WriteString(pb.ruleBlock())
	sb.WriteString("\n")

	if g := pb.glossaryBlock(); g != "" {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	if sectionCtx != "" {
		sb.WriteString(sectionCtx)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Key: %s\nSource text:\n%s\n", key, srcText)

	if len(feedback) > 0 {
		sb.WriteString("\nYour previous attempt was rejected. Fix these problems:\n")
		for _, f := range feedback {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}

	sb.WriteString("\nReturn only the translated text, with no quotation marks around it and no commentary.")
	return sb.String()
}

// BuildArrayPrompt 数组值整体翻译，要求返回长度完全一致的 JSON 数组
func (pb *PromptBuilder) BuildArrayPrompt(key string, items []string, sectionCtx string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Translate each element of the following list from English to %s.\n\n", pb.TargetLangName)
	sb.WriteString(pb.ruleBlock())
	sb.WriteString("\n")

	if g := pb.glossaryBlock(); g != "" {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	if sectionCtx != "" {
		sb.WriteString(sectionCtx)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Key: %s\nSource list (JSON):\n", key)
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s\n", item)
	}

	fmt.Fprintf(&sb, "\nReturn a JSON array of exactly %d translated strings, in the same order, and nothing else.", len(items))
	return sb.String()
}

// BuildDerivedPrompt 派生批次整体翻译：批次的全部键作为一个
// JSON 对象翻译，并附上已产出正文译文的摘要以保证跨批次的
// 术语一致。
func (pb *PromptBuilder) BuildDerivedPrompt(batch source.Batch, doc *source.Document, priorSummary string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Translate the values of the following JSON object from English to %s.\n", pb.TargetLangName)
	fmt.Fprintf(&sb, "Section: %s\n\n", batch.Context)
	sb.WriteString(pb.ruleBlock())
	sb.WriteString("\n")

	if g := pb.glossaryBlock(); g != "" {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	if priorSummary != "" {
		sb.WriteString("Already translated site copy, for terminology consistency:\n")
		sb.WriteString(priorSummary)
		sb.WriteString("\n")
	}

	sb.WriteString("Source object:\n{\n")
	for _, key := range batch.Keys {
		v, ok := doc.Get(key)
		if !ok || v.Kind != source.KindString {
			continue
		}
		fmt.Fprintf(&sb, "  %q: %q,\n", key, v.Text)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nReturn a JSON object with exactly the same keys and translated string values, and nothing else.")
	return sb.String()
}

// BuildReviewPrompt 语义审查：整体对照源文与译文，按约定的行格式
// 列出离散问题
func (pb *PromptBuilder) BuildReviewPrompt(doc *source.Document, cand map[string]source.Value) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Review this %s translation of an English site against the source.\n\n", pb.TargetLangName)
	sb.WriteString("Look for: untranslated passages, terminology inconsistent with the glossary, wrong quotation style, register mismatches, and meaning drift.\n\n")

	if g := pb.glossaryBlock(); g != "" {
		sb.WriteString(g)
		sb.WriteString("\n")
	}

	sb.WriteString("Source → translation, key by key:\n")
	for _, entry := range doc.Entries() {
		cv, ok := cand[entry.Key]
		if !ok || entry.Value.Kind != source.KindString || cv.Kind != source.KindString {
			continue
		}
		fmt.Fprintf(&sb, "[%s]\nEN: %s\n%s: %s\n", entry.Key, entry.Value.Text, strings.ToUpper(pb.TargetLang), cv.Text)
	}

	fmt.Fprintf(&sb, "\nReport each issue on its own line in exactly this format:\nKEY: <key> | TYPE: <short category> | DESC: <what is wrong>\n\nIf the translation has no issues, respond with the single word %s.", noIssuesSentinel)
	return sb.String()
}

// BuildFixPrompt 单个语义问题的修复请求
func (pb *PromptBuilder) BuildFixPrompt(issue SemanticIssue, srcText, candText, sectionCtx string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "A reviewer flagged a problem in this %s translation.\n\n", pb.TargetLangName)
	fmt.Fprintf(&sb, "Problem type: %s\nProblem description: %s\n\n", issue.Category, issue.Description)
	sb.WriteString(pb.ruleBlock())
	sb.WriteString("\n")

	if g := pb.glossaryBlock(); g != "" {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	if sectionCtx != "" {
		sb.WriteString(sectionCtx)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Key: %s\nEnglish source:\n%s\n\nCurrent translation:\n%s\n", issue.Key, srcText, candText)
	sb.WriteString("\nReturn only the corrected translation, with no quotation marks around it and no commentary.")
	return sb.String()
}

// sectionContext 构建正文翻译的"章节上下文"块：同批次前后邻近
// 键的源文和已产出的译文，逐条按显示宽度截断以节约提示词。
func sectionContext(doc *source.Document, batch source.Batch, key string, cand map[string]source.Value, window, maxWidth int) string {
	pos := -1
	for i, k := range batch.Keys {
		if k == key {
			pos = i
			break
		}
	}
	if pos < 0 || window <= 0 {
		return ""
	}

	lo := pos - window
	if lo < 0 {
		lo = 0
	}
	hi := pos + window
	if hi > len(batch.Keys)-1 {
		hi = len(batch.Keys) - 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Section context (%s):\n", batch.Context)

	wrote := false
	for i := lo; i <= hi; i++ {
		k := batch.Keys[i]
		if k == key {
			continue
		}
		v, ok := doc.Get(k)
		if !ok || v.Kind != source.KindString {
			continue
		}

		fmt.Fprintf(&sb, "- [%s] EN: %s\n", k, clip(v.Text, maxWidth))
		if cv, ok := cand[k]; ok && cv.Kind == source.KindString {
			fmt.Fprintf(&sb, "  translated: %s\n", clip(cv.Text, maxWidth))
		}
		wrote = true
	}

	if !wrote {
		return ""
	}
	return sb.String()
}

// clip 按显示宽度截断上下文摘录
func clip(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}
	return runewidth.Truncate(text, maxWidth, "…")
}
