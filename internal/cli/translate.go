package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ldelacroix/polyglossia/internal/pipeline"
	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// translate 命令的标志
	targetLangs   []string
	regenGlossary bool
)

func newTranslateCommand() *cobra.Command {
	translateCmd := &cobra.Command{
		Use:   "translate",
		Short: "为目标语言生成并校验译文",
		Long: `为每门目标语言执行一次完整的翻译运行：术语表、批次翻译、
结构与安全校验（含重试）、语义审查与修复、引号归一化，最后
按源文档键序写出译文文件。多门语言严格串行处理。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			doc, batches, err := loadContent(cfg, st)
			if err != nil {
				return err
			}

			backend, err := provider.New(cfg, log)
			if err != nil {
				return err
			}

			langs := targetLangs
			if len(langs) == 0 {
				langs = cfg.Languages
			}

			orch := pipeline.NewOrchestrator(cfg, backend, st, log)

			var logs []*pipeline.RunLog
			failed := 0
			for _, lang := range langs {
				spinner, _ := pterm.DefaultSpinner.Start(
					fmt.Sprintf("translating %s (%s)", lang, pipeline.LanguageName(lang)))

				runLog := orch.Run(context.Background(), doc, batches, lang, regenGlossary)
				logs = append(logs, runLog)

				if runLog.Result == pipeline.ResultSuccess {
					spinner.Success(fmt.Sprintf("%s: %s", lang, color.GreenString("success")))
				} else {
					spinner.Fail(fmt.Sprintf("%s: %s", lang, color.RedString("failed")))
					failed++
				}
			}

			printSummary(logs)

			if failed > 0 {
				return fmt.Errorf("%d of %d languages failed", failed, len(langs))
			}
			return nil
		},
	}

	translateCmd.Flags().StringSliceVarP(&targetLangs, "lang", "l", nil, "目标语言代码（默认取配置中的 languages）")
	translateCmd.Flags().BoolVar(&regenGlossary, "regenerate-glossary", false, "忽略缓存，重新生成术语表")

	return translateCmd
}

// printSummary 输出所有运行的汇总表
func printSummary(logs []*pipeline.RunLog) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Language", "Result", "Phases", "Tokens In", "Tokens Out", "Run Log"})

	for _, l := range logs {
		result := l.Result
		if result == pipeline.ResultSuccess {
			result = color.GreenString(result)
		} else {
			result = color.RedString(result)
		}
		t.AppendRow(table.Row{l.Language, result, len(l.Phases), l.TokensIn, l.TokensOut, l.FileName()})
	}

	t.Render()
}
