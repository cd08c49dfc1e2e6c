package pipeline

import (
	"context"

	"github.com/ldelacroix/polyglossia/internal/config"
	"github.com/ldelacroix/polyglossia/internal/glossary"
	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/store"
	"github.com/ldelacroix/polyglossia/internal/validate"
	"go.uber.org/zap"
)

// Orchestrator 按固定顺序驱动一门语言的完整翻译运行：
// 术语表 → 正文批次 → 派生批次 → 技术校验/重试环 →
// 语义审查/修复环 → 引号归一化 → 按源序重排 → 持久化。
// 技术校验环没有归零就在语义审查之前以失败终止，不写任何
// 译文文件；已发布的旧译文保持原样。
type Orchestrator struct {
	cfg        *config.Config
	backend    provider.Backend
	store      *store.Store
	validator  *validate.Validator
	glossaries *glossary.Manager
	logger     *zap.Logger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(cfg *config.Config, backend provider.Backend, st *store.Store, logger *zap.Logger) *Orchestrator {
	validator := validate.New(validate.Policy{
		SourceLang:           cfg.SourceLang,
		ProtectedNames:       cfg.ProtectedNames,
		ProtectedTitles:      cfg.ProtectedTitles,
		RatioMin:             cfg.LengthRatioMin,
		RatioMax:             cfg.LengthRatioMax,
		DenseRatioMin:        cfg.DenseRatioMin,
		DenseRatioMax:        cfg.DenseRatioMax,
		DenseScripts:         cfg.DenseScripts,
		UntranslatedMinRunes: cfg.UntranslatedMinRunes,
		UntranslatedMaxShare: cfg.UntranslatedMaxShare,
	}, logger)

	glossaries := glossary.NewManager(backend, st, cfg.Model, cfg.MaxOutputTokens, cfg.BaseGlossaryTerms, logger)

	return &Orchestrator{
		cfg:        cfg,
		backend:    backend,
		store:      st,
		validator:  validator,
		glossaries: glossaries,
		logger:     logger,
	}
}

// RunAll 依次处理多门语言。语言之间除了不可变的源文档没有
// 任何共享可变状态，严格串行。
func (o *Orchestrator) RunAll(ctx context.Context, doc *source.Document, batches []source.Batch, langs []string, regenGlossary bool) []*RunLog {
	logs := make([]*RunLog, 0, len(langs))
	for _, lang := range langs {
		logs = append(logs, o.Run(ctx, doc, batches, lang, regenGlossary))
	}
	return logs
}

// Run 执行一门语言的一次完整翻译运行。无论成败，运行日志
// 都会被写出；译文文件只在候选译文以零错误通过结构校验之后
// 写出。
func (o *Orchestrator) Run(ctx context.Context, doc *source.Document, batches []source.Batch, lang string, regenGlossary bool) *RunLog {
	log := NewRunLog(lang)
	langName := LanguageName(lang)

	o.logger.Info("translation run started",
		zap.String("runID", log.ID),
		zap.String("lang", lang),
		zap.Int("keys", doc.Len()))

	// 阶段一：术语表。失败不致命，没有术语表也能继续。
	var terms map[string]string
	gloss, err := o.glossaries.Load(ctx, doc, lang, langName, regenGlossary, log)
	switch {
	case err != nil:
		o.logger.Warn("glossary unavailable, continuing without it",
			zap.String("lang", lang), zap.Error(err))
		log.Record("glossary", "unavailable: %v", err)
	case gloss == nil:
		log.Record("glossary", "generation failed, continuing without glossary")
	default:
		terms = gloss.Terms
		provenance := "generated"
		if gloss.Cached {
			provenance = "cached"
		}
		log.Record("glossary", "%d terms (%s)", len(terms), provenance)
	}

	pb := &PromptBuilder{
		TargetLang:      lang,
		TargetLangName:  langName,
		Glossary:        terms,
		ProtectedNames:  o.cfg.ProtectedNames,
		ProtectedTitles: o.cfg.ProtectedTitles,
	}
	bt := NewBatchTranslator(o.backend, pb, o.cfg.Model, o.cfg.MaxOutputTokens,
		o.cfg.ContextWindow, o.cfg.ContextMaxWidth, o.logger)
	retries := NewRetryEngine(bt, o.logger)
	reviewer := NewReviewer(o.backend, pb, o.cfg.Model, o.cfg.MaxOutputTokens, o.logger)
	fixer := NewFixer(bt, o.validator, o.cfg.ContextWindow, o.cfg.ContextMaxWidth, o.logger)

	// 阶段二：批次翻译。候选译文从空开始，逐键累积。
	cand := make(map[string]source.Value, doc.Len())
	for _, batch := range source.BodyBatches(batches) {
		bt.TranslateBody(ctx, doc, batch, cand, log)
	}
	prior := priorSummary(doc, cand, o.cfg.ContextMaxWidth)
	for _, batch := range source.DerivedBatches(batches) {
		bt.TranslateDerived(ctx, doc, batch, cand, prior, log)
	}

	// 阶段三：技术校验与重试环。首轮之外最多 MaxRetryRounds 轮。
	rounds := 1 + o.cfg.MaxRetryRounds
	clean := false
	for round := 1; round <= rounds; round++ {
		report := o.validator.Validate(doc, cand, lang)
		for _, w := range report.Warnings {
			o.logger.Warn("validation warning", zap.String("lang", lang), zap.String("warning", w))
		}
		log.Record("validation", "round %d: %d errors, %d warnings", round, len(report.Errors), len(report.Warnings))

		if report.Clean() {
			clean = true
			break
		}

		// 安全类错误立即终止整次运行，不重试：自动化的纠正
		// 重试无法被信任不会换个位置重新引入载荷
		if report.HasSecurity() {
			for _, e := range report.Errors {
				if e.Security {
					o.logger.Error("security violation, aborting run",
						zap.String("lang", lang), zap.String("error", e.Message))
					log.Record("security_abort", "%s", e.Message)
				}
			}
			return o.finish(log, ResultFailed)
		}

		if round == rounds {
			for _, m := range report.Messages() {
				o.logger.Error("validation error persists", zap.String("lang", lang), zap.String("error", m))
			}
			log.Record("validation", "errors persist after %d rounds, failing closed", rounds)
			return o.finish(log, ResultFailed)
		}

		retries.RetryKeys(ctx, doc, cand, report, log)
	}

	if !clean {
		return o.finish(log, ResultFailed)
	}

	// 阶段四：语义审查与修复环。审查是增强而不是闸门——此阶段
	// 的失败不影响运行成败。
	for round := 1; round <= o.cfg.MaxSemanticRounds; round++ {
		issues, err := reviewer.Review(ctx, doc, cand, log)
		if err != nil {
			o.logger.Warn("semantic review aborted", zap.String("lang", lang), zap.Error(err))
			log.Record("semantic_review", "aborted: %v", err)
			break
		}
		if len(issues) == 0 {
			log.Record("semantic_review", "round %d: clean", round)
			break
		}

		applied := 0
		for _, issue := range issues {
			ok, err := fixer.Fix(ctx, doc, batches, cand, issue, lang, log)
			if err != nil {
				o.logger.Warn("semantic fix failed",
					zap.String("key", issue.Key), zap.Error(err))
				continue
			}
			if ok {
				applied++
			}
		}
		log.Record("semantic_fix", "round %d: %d of %d fixes applied", round, applied, len(issues))

		// 一个修复都没应用时再审查也只会得到同样的结果
		if applied == 0 {
			break
		}
	}

	// 阶段五：引号归一化与持久化。写出由 store 按源文档键序完成。
	NormalizeCandidate(cand, lang)
	if err := o.store.WriteTranslation(lang, doc, cand); err != nil {
		o.logger.Error("failed to persist translation", zap.String("lang", lang), zap.Error(err))
		log.Record("persist", "write failed: %v", err)
		return o.finish(log, ResultFailed)
	}
	log.Record("persist", "translation written to %s", o.store.TranslationPath(lang))

	return o.finish(log, ResultSuccess)
}

// finish 记录终态并写出运行日志。日志写失败只记录，不改变运行结果。
func (o *Orchestrator) finish(log *RunLog, result string) *RunLog {
	log.Finish(result)

	data, err := log.Marshal()
	if err != nil {
		o.logger.Error("failed to marshal run log", zap.Error(err))
		return log
	}
	path, err := o.store.WriteRunLog(log.FileName(), data)
	if err != nil {
		o.logger.Error("failed to write run log", zap.Error(err))
		return log
	}

	o.logger.Info("translation run finished",
		zap.String("runID", log.ID),
		zap.String("lang", log.Language),
		zap.String("result", result),
		zap.Int("tokensIn", log.TokensIn),
		zap.Int("tokensOut", log.TokensOut),
		zap.String("runLog", path))
	return log
}
