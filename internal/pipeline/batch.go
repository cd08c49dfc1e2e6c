package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// BatchTranslator 批次翻译器。正文批次逐键顺序翻译并携带章节
// 上下文；派生批次作为一个结构化请求整体翻译，失败时回退到
// 逐键路径。
type BatchTranslator struct {
	backend   provider.Backend
	pb        *PromptBuilder
	model     string
	maxTokens int
	window    int // 章节上下文向前后各取的键数
	maxWidth  int // 上下文摘录的最大显示宽度
	logger    *zap.Logger
}

// NewBatchTranslator 创建批次翻译器
func NewBatchTranslator(backend provider.Backend, pb *PromptBuilder, model string, maxTokens, window, maxWidth int, logger *zap.Logger) *BatchTranslator {
	return &BatchTranslator{
		backend:   backend,
		pb:        pb,
		model:     model,
		maxTokens: maxTokens,
		window:    window,
		maxWidth:  maxWidth,
		logger:    logger,
	}
}

// TranslateBody 顺序翻译一个正文批次。单键失败不中断批次：
// 该键保持缺席，留给校验阶段按缺失键重试。
func (bt *BatchTranslator) TranslateBody(ctx context.Context, doc *source.Document, batch source.Batch, cand map[string]source.Value, log *RunLog) {
	ok, failed := 0, 0

	for _, key := range batch.Keys {
		if _, done := cand[key]; done {
			continue
		}
		v, found := doc.Get(key)
		if !found {
			continue
		}

		sectionCtx := sectionContext(doc, batch, key, cand, bt.window, bt.maxWidth)
		translated, err := bt.TranslateKey(ctx, key, v, sectionCtx, nil, log)
		if err != nil {
			bt.logger.Warn("key translation failed",
				zap.String("batch", batch.Name),
				zap.String("key", key),
				zap.Error(err))
			failed++
			continue
		}

		cand[key] = translated
		ok++
	}

	log.Record("body_batch", "batch %q: %d translated, %d failed", batch.Name, ok, failed)
}

// TranslateDerived 整体翻译一个派生批次；截断或解析失败时回退
// 到逐键翻译（派生批次没有章节上下文的概念）。
func (bt *BatchTranslator) TranslateDerived(ctx context.Context, doc *source.Document, batch source.Batch, cand map[string]source.Value, priorSummary string, log *RunLog) {
	pending := 0
	for _, key := range batch.Keys {
		if _, done := cand[key]; !done {
			pending++
		}
	}
	if pending == 0 {
		log.Record("derived_batch", "batch %q: nothing to translate", batch.Name)
		return
	}

	merged, err := bt.translateDerivedObject(ctx, doc, batch, cand, priorSummary, log)
	if err == nil {
		log.Record("derived_batch", "batch %q: %d keys merged", batch.Name, merged)
		return
	}

	bt.logger.Warn("derived batch failed, falling back to per-key translation",
		zap.String("batch", batch.Name),
		zap.Error(err))
	log.Record("derived_batch", "batch %q failed (%v), per-key fallback", batch.Name, err)

	ok, failed := 0, 0
	for _, key := range batch.Keys {
		if _, done := cand[key]; done {
			continue
		}
		v, found := doc.Get(key)
		if !found {
			continue
		}

		translated, err := bt.TranslateKey(ctx, key, v, "", nil, log)
		if err != nil {
			failed++
			continue
		}
		cand[key] = translated
		ok++
	}
	log.Record("derived_batch", "batch %q fallback: %d translated, %d failed", batch.Name, ok, failed)
}

func (bt *BatchTranslator) translateDerivedObject(ctx context.Context, doc *source.Document, batch source.Batch, cand map[string]source.Value, priorSummary string, log *RunLog) (int, error) {
	prompt := bt.pb.BuildDerivedPrompt(batch, doc, priorSummary)

	resp, err := bt.backend.Generate(ctx, &provider.Request{
		Model:     bt.model,
		Prompt:    prompt,
		MaxTokens: bt.maxTokens,
	})
	if err != nil {
		return 0, err
	}
	log.AddUsage(resp.TokensIn, resp.TokensOut)

	if resp.Truncated {
		return 0, fmt.Errorf("response truncated")
	}

	raw, ok := provider.ExtractJSONObject(resp.Text)
	if !ok {
		return 0, fmt.Errorf("no JSON object in response")
	}

	merged := 0
	inBatch := make(map[string]bool, len(batch.Keys))
	for _, k := range batch.Keys {
		inBatch[k] = true
	}

	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		// 批次之外的键直接忽略，留给校验阶段发现真正的缺失
		if !inBatch[k] || value.Type != gjson.String {
			return true
		}
		// 派生批次只为交叉引用携带正文键，不允许覆盖已有译文
		if _, done := cand[k]; done {
			return true
		}
		cand[k] = source.StringValue(value.String())
		merged++
		return true
	})

	if merged == 0 {
		return 0, fmt.Errorf("response object contained none of the batch keys")
	}
	return merged, nil
}

// TranslateKey 翻译单个键。数组值要求返回长度完全一致的 JSON
// 数组；字符串值剥掉后端可能回显的一层包裹引号。
func (bt *BatchTranslator) TranslateKey(ctx context.Context, key string, v source.Value, sectionCtx string, feedback []string, log *RunLog) (source.Value, error) {
	var prompt string
	if v.Kind == source.KindArray {
		prompt = bt.pb.BuildArrayPrompt(key, v.List, sectionCtx)
	} else {
		prompt = bt.pb.BuildKeyPrompt(key, v.Text, sectionCtx, feedback)
	}

	resp, err := bt.backend.Generate(ctx, &provider.Request{
		Model:     bt.model,
		Prompt:    prompt,
		MaxTokens: bt.maxTokens,
	})
	if err != nil {
		return source.Value{}, err
	}
	log.AddUsage(resp.TokensIn, resp.TokensOut)

	if resp.Truncated {
		return source.Value{}, fmt.Errorf("response truncated for key %q", key)
	}

	if v.Kind == source.KindArray {
		return parseArrayResponse(key, resp.Text, len(v.List))
	}

	text := stripEchoQuotes(strings.TrimSpace(resp.Text))
	if text == "" {
		return source.Value{}, fmt.Errorf("empty response for key %q", key)
	}
	return source.StringValue(text), nil
}

// parseArrayResponse 解析数组翻译的响应并核对长度
func parseArrayResponse(key, text string, want int) (source.Value, error) {
	raw, ok := provider.ExtractJSONArray(text)
	if !ok {
		return source.Value{}, fmt.Errorf("no JSON array in response for key %q", key)
	}

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return source.Value{}, fmt.Errorf("array response for key %q is not a string array: %w", key, err)
	}
	if len(items) != want {
		return source.Value{}, fmt.Errorf("array response for key %q has %d elements, want %d", key, len(items), want)
	}

	return source.ArrayValue(items), nil
}

// stripEchoQuotes 剥掉后端回显的一层包裹引号。只有整个文本被
// 一对引号包住、且内部不再出现同类引号时才剥。
func stripEchoQuotes(text string) string {
	pairs := [][2]string{
		{`"`, `"`},
		{"“", "”"},
		{"«", "»"},
		{"„", "“"},
	}

	for _, p := range pairs {
		if len(text) <= len(p[0])+len(p[1]) {
			continue
		}
		if strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			inner := strings.TrimSuffix(strings.TrimPrefix(text, p[0]), p[1])
			if !strings.Contains(inner, p[0]) && !strings.Contains(inner, p[1]) {
				return inner
			}
		}
	}
	return text
}

// priorSummary 把已产出的正文译文压缩成派生批次可用的摘要
func priorSummary(doc *source.Document, cand map[string]source.Value, maxWidth int) string {
	var sb strings.Builder
	for _, entry := range doc.Entries() {
		cv, ok := cand[entry.Key]
		if !ok || cv.Kind != source.KindString {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", entry.Key, clip(cv.Text, maxWidth))
	}
	return sb.String()
}
