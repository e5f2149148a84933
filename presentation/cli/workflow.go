package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"crm_automation/application/session"
	"crm_automation/application/workflow"
	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"
	"crm_automation/infrastructure/storage"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func init() {
	addBrowserFlags(workflowCmd)
	workflowCmd.Flags().String("environment", "", "environment for workflows that do not name one")

	rootCmd.AddCommand(workflowCmd)
}

var workflowCmd = &cobra.Command{
	Use:   "workflow <file> [name ...]",
	Short: "Run scripted workflows without Gherkin",
	Long: `Run the workflows defined in a YAML file, each in a fresh browser context.
When names are given only those workflows run.

	Examples:
	  crm_automation workflow workflows/login.yaml
	  crm_automation workflow workflows/leads.yaml create_lead convert_lead --environment uat`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		all, err := storage.LoadWorkflows(args[0])
		if err != nil {
			return err
		}
		selected, err := selectWorkflows(all, args[1:])
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		if err := a.loadData(false); err != nil {
			return err
		}

		artifacts, err := storage.NewArtifacts(cfg.Results.Dir)
		if err != nil {
			return err
		}

		b, err := a.launchBrowser()
		if err != nil {
			return fmt.Errorf("failed to initialize browser: %w", err)
		}
		defer b.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runner := workflow.NewRunner(a.data, logger, artifacts.ScreenshotDir())
		var results []entities.WorkflowResult
		var runErr error

		for _, wf := range selected {
			if wf.Environment == "" {
				wf.Environment = cfg.Run.Environment
			}
			a.resolver.ClearCache()

			result, err := runOne(ctx, a, b, artifacts, runner, wf)
			results = append(results, result)
			if err != nil {
				runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", wf.Name, err))
			}
			if ctx.Err() != nil {
				break
			}
		}

		if err := artifacts.SaveReport(results); err != nil {
			logger.Warnf("Failed to save run report: %v", err)
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-10s skipped=%d\n", r.Name, r.Status, r.Skipped)
		}
		return runErr
	},
}

// runOne - runs a workflow in its own browser context, screenshotting on failure
func runOne(ctx context.Context, a *app, b interfaces.Browser, artifacts *storage.Artifacts, runner *workflow.Runner, wf entities.Workflow) (entities.WorkflowResult, error) {
	failed := entities.WorkflowResult{Name: wf.Name, Status: entities.WorkflowStatusFailed}

	browserSession, err := b.NewSession(ctx, artifacts.Session(wf.Name))
	if err != nil {
		failed.Error = err.Error()
		return failed, err
	}

	sess, err := session.New(ctx, browserSession, a.facade, a.logger)
	if err != nil {
		browserSession.Close(false)
		failed.Error = err.Error()
		return failed, err
	}

	result, runErr := runner.Run(ctx, sess, wf)
	if runErr != nil {
		if err := sess.Screenshot(context.Background(), artifacts.Screenshot(wf.Name)); err != nil {
			a.logger.Warnf("Failed to capture failure screenshot: %v", err)
		}
	}
	if err := sess.Close(true); err != nil {
		a.logger.Warnf("Failed to close browser session: %v", err)
	}
	return result, runErr
}

func selectWorkflows(all []entities.Workflow, names []string) ([]entities.Workflow, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]entities.Workflow, len(all))
	for _, wf := range all {
		byName[wf.Name] = wf
	}

	selected := make([]entities.Workflow, 0, len(names))
	for _, name := range names {
		wf, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("workflow %q not found", name)
		}
		selected = append(selected, wf)
	}
	return selected, nil
}
