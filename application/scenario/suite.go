// Package scenario runs Gherkin features against the locator repository with godog.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"crm_automation/application/actions"
	"crm_automation/application/session"
	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"
	"crm_automation/infrastructure/storage"

	"github.com/cucumber/godog"
	"github.com/sirupsen/logrus"
)

// Options select which features run and how results are printed
type Options struct {
	Paths       []string
	Tags        string
	Format      string
	Output      io.Writer
	Environment string

	// StepScreenshots captures the focused tab after every executed step
	StepScreenshots bool
}

// Suite wires one browser, resolver and facade into godog; each scenario gets its own session
type Suite struct {
	browser   interfaces.Browser
	resolver  interfaces.Resolver
	facade    *actions.Facade
	data      interfaces.TestDataStore
	artifacts *storage.Artifacts
	logger    *logrus.Logger

	workflows       map[string]entities.Workflow
	environment     string
	stepScreenshots bool

	mu      sync.Mutex
	reports []ScenarioReport
}

// NewSuite - creates a suite; data and workflows are optional
func NewSuite(browser interfaces.Browser, resolver interfaces.Resolver, facade *actions.Facade, data interfaces.TestDataStore, artifacts *storage.Artifacts, logger *logrus.Logger, workflows ...entities.Workflow) *Suite {
	s := &Suite{
		browser:   browser,
		resolver:  resolver,
		facade:    facade,
		data:      data,
		artifacts: artifacts,
		logger:    logger,
		workflows: make(map[string]entities.Workflow, len(workflows)),
	}
	for _, wf := range workflows {
		s.workflows[wf.Name] = wf
	}
	return s
}

// Run - runs the features and returns godog's exit status (0 when every scenario passed)
func (s *Suite) Run(opts Options) int {
	s.environment = opts.Environment
	s.stepScreenshots = opts.StepScreenshots

	format := opts.Format
	if format == "" {
		format = "pretty"
	}

	suite := godog.TestSuite{
		Name:                "crm_automation",
		ScenarioInitializer: s.InitializeScenario,
		Options: &godog.Options{
			Format:      format,
			Paths:       opts.Paths,
			Tags:        opts.Tags,
			Output:      opts.Output,
			Strict:      true,
			Concurrency: 1,
		},
	}

	status := suite.Run()

	if s.artifacts != nil {
		if err := s.artifacts.SaveReport(s.Report()); err != nil {
			s.logger.Warnf("Failed to save run report: %v", err)
		}
	}
	return status
}

// InitializeScenario - registers hooks and steps for one scenario
func (s *Suite) InitializeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(s.beforeScenario)
	ctx.After(s.afterScenario)
	ctx.StepContext().After(s.afterStep)
	registerSteps(ctx, s)
}

type stateKey struct{}

// scenarioState is the per-scenario focus and bookkeeping carried in the step context
type scenarioState struct {
	name        string
	started     time.Time
	session     *session.Session
	environment string
	outcomes    []entities.Outcome
	steps       int
	screenshots []string
}

func (st *scenarioState) record(outcome entities.Outcome) {
	st.outcomes = append(st.outcomes, outcome)
}

func stateFrom(ctx context.Context) (*scenarioState, error) {
	st, ok := ctx.Value(stateKey{}).(*scenarioState)
	if !ok || st.session == nil {
		return nil, errors.New("no browser session for this scenario")
	}
	return st, nil
}

// beforeScenario - clears memoized locators and opens a fresh browser context
func (s *Suite) beforeScenario(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	s.resolver.ClearCache()

	dirs := interfaces.SessionArtifacts{}
	if s.artifacts != nil {
		dirs = s.artifacts.Session(sc.Name)
	}

	browserSession, err := s.browser.NewSession(ctx, dirs)
	if err != nil {
		return ctx, fmt.Errorf("failed to open browser session: %w", err)
	}

	sess, err := session.New(ctx, browserSession, s.facade, s.logger)
	if err != nil {
		browserSession.Close(false)
		return ctx, err
	}

	s.logger.WithField("scenario", sc.Name).Info("Starting scenario")

	st := &scenarioState{
		name:        sc.Name,
		started:     time.Now(),
		session:     sess,
		environment: s.environment,
	}
	return context.WithValue(ctx, stateKey{}, st), nil
}

// afterStep - captures the tab after each executed step when step screenshots are on
func (s *Suite) afterStep(ctx context.Context, step *godog.Step, status godog.StepResultStatus, stepErr error) (context.Context, error) {
	if !s.stepScreenshots || s.artifacts == nil {
		return ctx, nil
	}
	if status != godog.StepPassed && status != godog.StepFailed {
		return ctx, nil
	}
	st, ok := ctx.Value(stateKey{}).(*scenarioState)
	if !ok || st.session == nil {
		return ctx, nil
	}

	st.steps++
	path := s.artifacts.Screenshot(fmt.Sprintf("%s step %02d", st.name, st.steps))
	if err := st.session.Screenshot(context.Background(), path); err != nil {
		s.logger.WithField("step", step.Text).Warnf("Failed to capture step screenshot: %v", err)
		return ctx, nil
	}
	st.screenshots = append(st.screenshots, path)
	return ctx, nil
}

// afterScenario - screenshots failures and always tears the session down
func (s *Suite) afterScenario(ctx context.Context, sc *godog.Scenario, scenarioErr error) (context.Context, error) {
	st, ok := ctx.Value(stateKey{}).(*scenarioState)
	if !ok || st.session == nil {
		return ctx, nil
	}

	report := newScenarioReport(st, scenarioErr)
	failed := scenarioErr != nil

	if failed && s.artifacts != nil {
		path := s.artifacts.Screenshot(sc.Name)
		if err := st.session.Screenshot(context.Background(), path); err != nil {
			s.logger.Warnf("Failed to capture failure screenshot: %v", err)
		} else {
			report.Screenshot = path
		}
	}

	// video and trace are kept for every scenario
	if err := st.session.Close(true); err != nil {
		s.logger.Warnf("Failed to close browser session: %v", err)
	}
	st.session = nil

	log := s.logger.WithFields(logrus.Fields{
		"scenario":  sc.Name,
		"fallbacks": report.Fallbacks,
		"duration":  report.Duration,
	})
	if failed {
		log.Errorf("Scenario failed: %v", scenarioErr)
	} else {
		log.Info("Scenario passed")
	}

	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()

	return ctx, nil
}
