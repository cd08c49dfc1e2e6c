package pipeline

import (
	"context"

	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/validate"
	"go.uber.org/zap"
)

// RetryEngine 对结构校验失败的单个键重新请求翻译，并把具体的
// 校验错误原文作为纠正反馈注入请求。
type RetryEngine struct {
	bt     *BatchTranslator
	logger *zap.Logger
}

// NewRetryEngine 创建重试引擎
func NewRetryEngine(bt *BatchTranslator, logger *zap.Logger) *RetryEngine {
	return &RetryEngine{bt: bt, logger: logger}
}

// RetryKeys 对校验报告点名的全部键逐个重试。重试的键来自报告的
// 结构化字段，不需要从错误文本里反解析。成功的键写回候选译文，
// 失败的键保持原状（缺失键留到下一轮继续以缺失报出）。
func (re *RetryEngine) RetryKeys(ctx context.Context, doc *source.Document, cand map[string]source.Value, report *validate.Report, log *RunLog) int {
	retried := 0

	for _, key := range report.RetryKeys() {
		v, ok := doc.Get(key)
		if !ok {
			continue
		}

		feedback := report.KeyMessages(key)
		translated, err := re.bt.TranslateKey(ctx, key, v, "", feedback, log)
		if err != nil {
			re.logger.Warn("retry failed",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		cand[key] = translated
		retried++
	}

	log.Record("retry", "%d of %d flagged keys re-translated", retried, len(report.RetryKeys()))
	return retried
}
