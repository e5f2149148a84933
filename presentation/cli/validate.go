package cli

import (
	"fmt"

	"crm_automation/infrastructure/patterns"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [file ...]",
	Short: "Check pattern repositories for dangling references and composition cycles",
	Long: `Load one or more pattern repositories (default: the configured patterns file)
and report every template whose primary or fallback names a missing pattern,
and every {@pattern} composition that is missing or loops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		files := args
		if len(files) == 0 {
			files = []string{cfg.Patterns.File}
		}

		store := patterns.NewStore(logger)
		for _, file := range files {
			if err := store.Load(file); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if err := store.Validate(); err != nil {
			problems := multierr.Errors(err)
			for _, p := range problems {
				fmt.Fprintf(out, "  - %v\n", p)
			}
			return fmt.Errorf("%d problem(s) found", len(problems))
		}

		p, t, s := store.Stats()
		fmt.Fprintf(out, "OK: %d patterns, %d templates, %d statics\n", p, t, s)
		return nil
	},
}
