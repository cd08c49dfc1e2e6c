package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ldelacroix/polyglossia/internal/glossary"
	"github.com/ldelacroix/polyglossia/internal/pipeline"
	"github.com/ldelacroix/polyglossia/internal/provider"
	"github.com/spf13/cobra"
)

var (
	// glossary 命令的标志
	glossaryRegen bool
)

func newGlossaryCommand() *cobra.Command {
	glossaryCmd := &cobra.Command{
		Use:   "glossary <lang>",
		Short: "查看或重新生成某语言的术语表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := args[0]

			cfg, log, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			doc, _, err := loadContent(cfg, st)
			if err != nil {
				return err
			}

			backend, err := provider.New(cfg, log)
			if err != nil {
				return err
			}

			mgr := glossary.NewManager(backend, st, cfg.Model, cfg.MaxOutputTokens, cfg.BaseGlossaryTerms, log)
			gloss, err := mgr.Load(context.Background(), doc, lang, pipeline.LanguageName(lang), glossaryRegen, nil)
			if err != nil {
				return err
			}
			if gloss == nil {
				return fmt.Errorf("glossary generation for %s failed", lang)
			}

			terms := make([]string, 0, len(gloss.Terms))
			for t := range gloss.Terms {
				terms = append(terms, t)
			}
			sort.Strings(terms)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"English", pipeline.LanguageName(lang)})
			for _, term := range terms {
				t.AppendRow(table.Row{term, gloss.Terms[term]})
			}
			t.Render()

			provenance := "generated"
			if gloss.Cached {
				provenance = "cached"
			}
			fmt.Printf("%d terms (%s)\n", len(terms), provenance)
			return nil
		},
	}

	glossaryCmd.Flags().BoolVar(&glossaryRegen, "regenerate", false, "忽略缓存，重新生成术语表")

	return glossaryCmd
}
