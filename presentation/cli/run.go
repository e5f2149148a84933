package cli

import (
	"fmt"

	"crm_automation/application/scenario"
	"crm_automation/domain/entities"
	"crm_automation/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagRunWorkflows []string

func init() {
	addBrowserFlags(runCmd)
	runCmd.Flags().StringSlice("features", []string{"features"}, "feature files or directories")
	runCmd.Flags().String("tags", "", `tag expression, e.g. "@smoke && ~@wip"`)
	runCmd.Flags().String("format", "pretty", "godog formatter (pretty, progress, cucumber, junit)")
	runCmd.Flags().String("environment", "", "environment used until a scenario opens another")
	runCmd.Flags().Bool("step-shots", false, "screenshot the page after every step")
	runCmd.Flags().StringSliceVar(&flagRunWorkflows, "workflows", nil, `workflow files callable with 'I run the "name" workflow'`)

	rootCmd.AddCommand(runCmd)
}

// addBrowserFlags - flags shared by every command that drives a browser
func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", "playwright", "browser driver (playwright or selenium)")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	cmd.Flags().Duration("slow-mo", 0, "delay between browser operations")
	cmd.Flags().Duration("timeout", 0, "how long an element may take to appear (default 20s)")
	cmd.Flags().Bool("video", false, "record a video per scenario (playwright only)")
	cmd.Flags().Bool("trace", true, "keep a playwright trace for failed scenarios")
	cmd.Flags().Bool("install", false, "install playwright browsers before running")
	cmd.Flags().String("results", "results", "directory for screenshots, videos, traces and report.json")
	cmd.Flags().String("driver-path", "", "chromedriver executable (selenium only)")
	cmd.Flags().String("binary-path", "", "Chrome executable (selenium only)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run Gherkin features",
	Long: `Run Gherkin features with the generic step library.

Every scenario gets a fresh browser context. Failed scenarios leave a screenshot
and a trace under <results>/<run id>/.

	Examples:
	  crm_automation run --features ./features --tags "@smoke" --patterns patterns.yaml --data testdata.yaml
	  crm_automation run --driver selenium --headless=false --features ./features/lead.feature`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
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

		var workflows []entities.Workflow
		for _, file := range flagRunWorkflows {
			wfs, err := storage.LoadWorkflows(file)
			if err != nil {
				return err
			}
			workflows = append(workflows, wfs...)
		}

		artifacts, err := storage.NewArtifacts(cfg.Results.Dir)
		if err != nil {
			return err
		}
		logger.WithField("run_id", artifacts.RunID).Infof("Writing artifacts to %s", artifacts.Root)

		b, err := a.launchBrowser()
		if err != nil {
			return fmt.Errorf("failed to initialize browser: %w", err)
		}

		suite := scenario.NewSuite(b, a.resolver, a.facade, a.data, artifacts, logger, workflows...)
		status := suite.Run(scenario.Options{
			Paths:           cfg.Run.Features,
			Tags:            cfg.Run.Tags,
			Format:          cfg.Run.Format,
			Output:          cmd.OutOrStdout(),
			Environment:     cfg.Run.Environment,
			StepScreenshots: cfg.Results.StepScreenshots,
		})

		report := suite.Report()
		logger.WithFields(logrus.Fields{
			"passed":    report.Passed,
			"failed":    report.Failed,
			"fallbacks": report.Fallbacks,
		}).Info("Run finished")

		if err := b.Close(); err != nil {
			logger.Warnf("Failed to close browser: %v", err)
		}

		if status != 0 {
			return &exitError{code: status}
		}
		return nil
	},
}
