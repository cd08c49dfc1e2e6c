package glossary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/store"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Glossary 是英文术语到目标语言术语的稳定映射
type Glossary struct {
	Terms  map[string]string
	Cached bool // true 表示来自磁盘缓存，false 表示本次新生成
}

// Recorder 累计生成调用的 token 用量
type Recorder interface {
	AddUsage(tokensIn, tokensOut int)
}

// Manager 术语表管理器：优先使用磁盘缓存，必要时调用生成后端
// 生成并持久化新术语表。一门语言的术语表一旦生成就会被后续
// 运行无限期复用，除非显式要求重新生成。
type Manager struct {
	backend   provider.Backend
	store     *store.Store
	model     string
	maxTokens int
	baseTerms []string
	logger    *zap.Logger
}

// NewManager 创建术语表管理器
func NewManager(backend provider.Backend, st *store.Store, model string, maxTokens int, baseTerms []string, logger *zap.Logger) *Manager {
	return &Manager{
		backend:   backend,
		store:     st,
		model:     model,
		maxTokens: maxTokens,
		baseTerms: baseTerms,
		logger:    logger,
	}
}

// Load 获取某语言的术语表。存在缓存且未要求重新生成时直接返回
// 缓存；否则调用后端生成。生成被截断时返回 nil（流水线在无
// 术语表的情况下继续，不算整次运行失败）。
func (m *Manager) Load(ctx context.Context, doc *source.Document, lang, langName string, regenerate bool, rec Recorder) (*Glossary, error) {
	if !regenerate {
		cached, err := m.store.LoadGlossary(lang)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			m.logger.Info("glossary loaded from cache",
				zap.String("lang", lang),
				zap.Int("terms", len(cached)))
			return &Glossary{Terms: cached, Cached: true}, nil
		}
	}

	// 必需术语 = 基础词汇 ∪ 既有缓存术语表的全部键：已经生成过的
	// 术语是这门语言今后所有再生成的下限
	required := m.requiredTerms(lang)

	prompt := buildPrompt(doc, langName, required)
	resp, err := m.backend.Generate(ctx, &provider.Request{
		Model:     m.model,
		Prompt:    prompt,
		MaxTokens: m.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("glossary generation failed: %w", err)
	}
	if rec != nil {
		rec.AddUsage(resp.TokensIn, resp.TokensOut)
	}

	if resp.Truncated {
		m.logger.Warn("glossary generation truncated, proceeding without glossary",
			zap.String("lang", lang))
		return nil, nil
	}

	terms, err := parseTerms(resp.Text)
	if err != nil {
		m.logger.Warn("glossary response unparseable, proceeding without glossary",
			zap.String("lang", lang),
			zap.Error(err))
		return nil, nil
	}

	for _, term := range required {
		if _, ok := terms[term]; !ok {
			m.logger.Warn("required term absent from generated glossary",
				zap.String("lang", lang),
				zap.String("term", term))
		}
	}

	if err := m.store.WriteGlossary(lang, terms); err != nil {
		return nil, err
	}

	m.logger.Info("glossary generated",
		zap.String("lang", lang),
		zap.Int("terms", len(terms)))
	return &Glossary{Terms: terms}, nil
}

// requiredTerms 返回排序后的必需术语列表
func (m *Manager) requiredTerms(lang string) []string {
	set := make(map[string]bool)
	for _, t := range m.baseTerms {
		set[t] = true
	}
	if cached, err := m.store.LoadGlossary(lang); err == nil {
		for t := range cached {
			set[t] = true
		}
	}

	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

func buildPrompt(doc *source.Document, langName string, required []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Build a translation glossary from English to %s for the site content below.\n\n", langName)
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Return a single JSON object mapping each English term to its canonical translation.\n")
	sb.WriteString("2. Include every term from the required list, plus any recurring term of art you find in the content.\n")
	sb.WriteString("3. Choose the translation a careful human translator would use consistently across the whole site.\n")
	sb.WriteString("4. Return only the JSON object, no commentary.\n\n")

	sb.WriteString("Required terms:\n")
	for _, t := range required {
		fmt.Fprintf(&sb, "- %s\n", t)
	}

	sb.WriteString("\nSite content:\n")
	for _, entry := range doc.Entries() {
		if entry.Value.Kind == source.KindArray {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Key, strings.Join(entry.Value.List, " | "))
		} else {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Key, entry.Value.Text)
		}
	}

	return sb.String()
}

// parseTerms 宽容地解析后端返回的术语映射
func parseTerms(text string) (map[string]string, error) {
	raw, ok := provider.ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	terms := make(map[string]string)
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String && value.String() != "" {
			terms[key.String()] = value.String()
		}
		return true
	})

	if len(terms) == 0 {
		return nil, fmt.Errorf("response contained no usable terms")
	}
	return terms, nil
}
