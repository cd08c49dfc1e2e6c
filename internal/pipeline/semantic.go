package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/validate"
	"go.uber.org/zap"
)

// SemanticIssue 审查者报出的一个离散问题。Category 是审查者
// 自选的开放词表（untranslated、glossary、register 等），
// 流水线不理解它，只把描述原样路由进修复请求。
type SemanticIssue struct {
	Key         string
	Category    string
	Description string
}

// Reviewer 语义审查者：一次请求整体对照源文与译文，产出问题
// 列表而不是修改后的文本。
type Reviewer struct {
	backend   provider.Backend
	pb        *PromptBuilder
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewReviewer 创建语义审查者
func NewReviewer(backend provider.Backend, pb *PromptBuilder, model string, maxTokens int, logger *zap.Logger) *Reviewer {
	return &Reviewer{backend: backend, pb: pb, model: model, maxTokens: maxTokens, logger: logger}
}

// Review 执行一轮语义审查。响应被截断是语义阶段的硬失败
// （但不影响整次运行的成败）。
func (r *Reviewer) Review(ctx context.Context, doc *source.Document, cand map[string]source.Value, log *RunLog) ([]SemanticIssue, error) {
	prompt := r.pb.BuildReviewPrompt(doc, cand)

	resp, err := r.backend.Generate(ctx, &provider.Request{
		Model:     r.model,
		Prompt:    prompt,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic review failed: %w", err)
	}
	log.AddUsage(resp.TokensIn, resp.TokensOut)

	if resp.Truncated {
		return nil, fmt.Errorf("semantic review response truncated")
	}

	issues := parseIssues(resp.Text)
	log.Record("semantic_review", "%d issues reported", len(issues))
	return issues, nil
}

// parseIssues 宽容地解析行式问题列表，不符合三段格式的行直接跳过
func parseIssues(text string) []SemanticIssue {
	if strings.Contains(text, noIssuesSentinel) {
		return nil
	}

	var issues []SemanticIssue
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			continue
		}

		key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "KEY:"))
		category := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "TYPE:"))
		desc := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[2]), "DESC:"))

		if key == "" || desc == "" || !strings.HasPrefix(strings.TrimSpace(parts[0]), "KEY:") {
			continue
		}

		issues = append(issues, SemanticIssue{Key: key, Category: category, Description: desc})
	}
	return issues
}

// Fixer 语义修复器：一次修一个问题，并在接受修复之前用逐串
// 检查复核。语义改进绝不能以结构或安全违规为代价。
type Fixer struct {
	bt        *BatchTranslator
	validator *validate.Validator
	window    int
	maxWidth  int
	logger    *zap.Logger
}

// NewFixer 创建语义修复器
func NewFixer(bt *BatchTranslator, validator *validate.Validator, window, maxWidth int, logger *zap.Logger) *Fixer {
	return &Fixer{bt: bt, validator: validator, window: window, maxWidth: maxWidth, logger: logger}
}

// Fix 尝试应用一个语义问题的修复。返回是否实际应用。
// 未知键和数组键直接跳过（数组只做结构校验，不做语义修补）。
// 修复未通过逐串复查时丢弃，候选译文保持修复前的值。
func (f *Fixer) Fix(ctx context.Context, doc *source.Document, batches []source.Batch, cand map[string]source.Value, issue SemanticIssue, lang string, log *RunLog) (bool, error) {
	srcVal, ok := doc.Get(issue.Key)
	if !ok {
		f.logger.Debug("semantic issue for unknown key, skipped", zap.String("key", issue.Key))
		return false, nil
	}
	if srcVal.Kind == source.KindArray {
		f.logger.Debug("semantic issue for array key, skipped", zap.String("key", issue.Key))
		return false, nil
	}
	current, ok := cand[issue.Key]
	if !ok || current.Kind != source.KindString {
		return false, nil
	}

	sectionCtx := ""
	if batch, found := batchOf(batches, issue.Key); found {
		sectionCtx = sectionContext(doc, batch, issue.Key, cand, f.window, f.maxWidth)
	}

	prompt := f.bt.pb.BuildFixPrompt(issue, srcVal.Text, current.Text, sectionCtx)
	resp, err := f.bt.backend.Generate(ctx, &provider.Request{
		Model:     f.bt.model,
		Prompt:    prompt,
		MaxTokens: f.bt.maxTokens,
	})
	if err != nil {
		return false, err
	}
	log.AddUsage(resp.TokensIn, resp.TokensOut)

	if resp.Truncated {
		return false, fmt.Errorf("fix response truncated for key %q", issue.Key)
	}

	fixed := stripEchoQuotes(strings.TrimSpace(resp.Text))
	if fixed == "" || fixed == current.Text {
		return false, nil
	}

	// 接受修复前复查：逐串检查失败就丢弃修复，保留修复前的值
	if issues := f.validator.CheckString(issue.Key, srcVal.Text, fixed, lang); len(issues) > 0 {
		f.logger.Warn("semantic fix rejected by string checks, reverted",
			zap.String("key", issue.Key),
			zap.Int("violations", len(issues)))
		log.Record("semantic_fix", "fix for %q reverted: %d string-check violations", issue.Key, len(issues))
		return false, nil
	}

	cand[issue.Key] = source.StringValue(fixed)
	return true, nil
}

// batchOf 找到键所属的正文批次
func batchOf(batches []source.Batch, key string) (source.Batch, bool) {
	for _, b := range batches {
		if b.Derived {
			continue
		}
		for _, k := range b.Keys {
			if k == key {
				return b, true
			}
		}
	}
	return source.Batch{}, false
}
