package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/ldelacroix/polyglossia/internal/validate"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate <lang>",
		Short: "对已发布的译文重新执行结构与安全校验",
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

			cand, err := st.LoadTranslation(lang)
			if err != nil {
				return err
			}

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
			}, log)

			report := validator.Validate(doc, cand, lang)

			for _, w := range report.Warnings {
				fmt.Printf("%s %s\n", color.YellowString("warning:"), w)
			}
			for _, e := range report.Errors {
				fmt.Printf("%s %s\n", color.RedString("error:"), e.Message)
			}

			if !report.Clean() {
				return fmt.Errorf("%s: %d errors", lang, len(report.Errors))
			}

			fmt.Printf("%s: %s (%d keys)\n", lang, color.GreenString("valid"), doc.Len())
			return nil
		},
	}

	return validateCmd
}
