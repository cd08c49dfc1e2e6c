package cli

import (
	"fmt"

	"github.com/ldelacroix/polyglossia/internal/config"
	"github.com/ldelacroix/polyglossia/internal/logger"
	"github.com/ldelacroix/polyglossia/internal/source"
	"github.com/ldelacroix/polyglossia/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// 命令行标志变量
	cfgFile   string
	debugMode bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polyglossia",
		Short: "polyglossia 是多语言静态站点的离线翻译生成器",
		Long: `polyglossia 为多语言静态站点离线生成译文。

它把可信的英文源文档交给语言模型逐批翻译，对结果强制执行
结构与安全校验，再经过语义审查与修复，只有完全通过校验的
译文才会被写入站点使用的译文文件。校验不通过时旧译文保持
原样，站点回退到源语言内容。`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认查找 ./polyglossia.yaml）")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")

	rootCmd.AddCommand(newTranslateCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newGlossaryCommand())

	return rootCmd
}

// bootstrap 加载配置、日志与存储层，是各子命令的公共初始化
func bootstrap() (*config.Config, *zap.Logger, *store.Store, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if debugMode {
		cfg.Debug = true
	}

	log := logger.NewLogger(cfg.Debug)
	st := store.New(afero.NewOsFs(), cfg.LocalesDir, cfg.GlossaryDir, cfg.LogDir)
	return cfg, log, st, nil
}

// loadContent 加载源文档与批次定义
func loadContent(cfg *config.Config, st *store.Store) (*source.Document, []source.Batch, error) {
	doc, err := source.LoadDocument(st.Fs(), cfg.SourcePath())
	if err != nil {
		return nil, nil, err
	}
	batches, err := source.LoadBatches(st.Fs(), cfg.BatchesPath(), doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, batches, nil
}
