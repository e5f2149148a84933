package cli

import (
	"context"
	"fmt"
	"strings"

	"crm_automation/application/scenario"
	"crm_automation/domain/entities"

	"github.com/spf13/cobra"
)

var flagResolveFallback bool

func init() {
	resolveCmd.Flags().BoolVar(&flagResolveFallback, "fallback", false, "resolve the template's fallback instead of its primary")

	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path> [key=value ...]",
	Short: "Print the selector a symbolic path resolves to",
	Long: `Resolve a template, pattern or static path against the pattern repository
and print the resulting selector. Unresolved placeholders are reported as warnings.

	Examples:
	  crm_automation resolve loginPage.usernameField
	  crm_automation resolve basic.inputByName name=username
	  crm_automation resolve table.rowByText "text=John Doe"
	  crm_automation resolve loginPage.usernameField --fallback`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		params, err := scenario.ParseParams(strings.Join(args[1:], ","))
		if err != nil {
			return err
		}

		var loc entities.ResolvedLocator
		if flagResolveFallback {
			loc, err = a.resolver.ResolveFallback(context.Background(), args[0], params)
		} else {
			loc, err = a.resolver.Resolve(context.Background(), args[0], params)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, loc.Selector)
		if loc.PatternPath != "" {
			fmt.Fprintf(out, "  pattern:  %s\n", loc.PatternPath)
		}
		if loc.FallbackUsed {
			fmt.Fprintln(out, "  fallback: yes")
		}
		for _, w := range loc.Warnings {
			fmt.Fprintf(out, "  warning:  %s\n", w.Message)
		}
		return nil
	},
}
