package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"crm_automation/application/session"
	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Runner executes scripted workflows step by step against a session
type Runner struct {
	data          interfaces.TestDataStore
	logger        *logrus.Logger
	screenshotDir string
	history       []entities.Outcome
}

// NewRunner - creates a workflow runner; data may be nil when workflows reference no test data
func NewRunner(data interfaces.TestDataStore, logger *logrus.Logger, screenshotDir string) *Runner {
	return &Runner{
		data:          data,
		logger:        logger,
		screenshotDir: screenshotDir,
		history:       make([]entities.Outcome, 0),
	}
}

// Run - executes every action in order; a failing optional action is skipped
func (r *Runner) Run(ctx context.Context, sess *session.Session, wf entities.Workflow) (entities.WorkflowResult, error) {
	r.history = make([]entities.Outcome, 0)
	result := entities.WorkflowResult{
		Name:   wf.Name,
		Status: entities.WorkflowStatusInProgress,
	}

	log := r.logger.WithField("workflow", wf.Name)
	log.Infof("Starting workflow (%d actions)", len(wf.Actions))

	expander := NewExpander(r.data, wf.Environment)

	for i, action := range wf.Actions {
		select {
		case <-ctx.Done():
			return r.fail(result, fmt.Errorf("workflow canceled: %w", ctx.Err()))
		default:
		}

		expanded, err := expander.Action(action)
		if err != nil {
			return r.fail(result, fmt.Errorf("step %d (%s): %w", i+1, action.Type, err))
		}

		stepLog := log.WithFields(logrus.Fields{
			"step":   i + 1,
			"action": action.Type,
			"target": action.Target,
		})
		if action.Description != "" {
			stepLog.Info(action.Description)
		}

		outcome, err := r.execute(ctx, sess, expanded)
		if err != nil {
			if action.Optional && ctx.Err() == nil {
				stepLog.Warnf("Optional step failed, skipping: %v", err)
				result.Skipped++
				continue
			}
			return r.fail(result, fmt.Errorf("step %d (%s %s): %w", i+1, action.Type, action.Target, err))
		}

		r.history = append(r.history, outcome)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.FallbackUsed {
			stepLog.WithField("selector", outcome.Locator.Selector).Warn("Step passed on fallback locator")
		}
	}

	result.Status = entities.WorkflowStatusCompleted
	log.WithField("skipped", result.Skipped).Info("Workflow completed")
	return result, nil
}

func (r *Runner) fail(result entities.WorkflowResult, err error) (entities.WorkflowResult, error) {
	result.Status = entities.WorkflowStatusFailed
	result.Error = err.Error()
	r.logger.WithField("workflow", result.Name).Errorf("Workflow failed: %v", err)
	return result, err
}

// execute - executes a single action
func (r *Runner) execute(ctx context.Context, sess *session.Session, action entities.Action) (entities.Outcome, error) {
	facade := sess.Facade()
	outcome := entities.Outcome{Action: action.Type}
	start := time.Now()

	switch action.Type {
	case entities.ActionNavigate:
		if action.URL == "" {
			return outcome, fmt.Errorf("url is required for navigate action")
		}
		page, err := sess.Tab()
		if err != nil {
			return outcome, err
		}
		err = facade.Navigate(ctx, page, action.URL)
		outcome.Duration = time.Since(start)
		return outcome, err

	case entities.ActionOpenTab:
		err := sess.OpenTab(ctx, action.URL)
		outcome.Duration = time.Since(start)
		return outcome, err

	case entities.ActionSwitchTab:
		return outcome, sess.SwitchTab(action.Index)

	case entities.ActionCloseTab:
		return outcome, sess.CloseTab()

	case entities.ActionMainFrame:
		sess.MainFrame()
		return outcome, nil

	case entities.ActionSwitchFrame:
		if action.Target == "" {
			return outcome, fmt.Errorf("target is required for switch_frame action")
		}
		return sess.EnterFrame(ctx, action.Target, action.Params)

	case entities.ActionScreenshot:
		name := action.Value
		if name == "" {
			name = fmt.Sprintf("step_%s.png", time.Now().Format("20060102_150405"))
		}
		return outcome, sess.Screenshot(ctx, filepath.Join(r.screenshotDir, name))
	}

	if action.Target == "" {
		return outcome, fmt.Errorf("target is required for %s action", action.Type)
	}
	page, err := sess.Page()
	if err != nil {
		return outcome, err
	}

	switch action.Type {
	case entities.ActionClick:
		return facade.Click(ctx, page, action.Target, action.Params)

	case entities.ActionFill:
		return facade.Fill(ctx, page, action.Target, action.Value, action.Params)

	case entities.ActionSelect:
		return facade.SelectOption(ctx, page, action.Target, action.Value, action.Params)

	case entities.ActionCheck:
		return facade.Check(ctx, page, action.Target, action.Params)

	case entities.ActionPress:
		key := action.Value
		if key == "" {
			key = "Enter"
		}
		return facade.Press(ctx, page, action.Target, key, action.Params)

	case entities.ActionWaitVisible:
		return facade.WaitVisible(ctx, page, action.Target, action.Params)

	case entities.ActionWaitHidden:
		return facade.WaitHidden(ctx, page, action.Target, action.Params)

	case entities.ActionAssertText:
		text, outcome, err := facade.Text(ctx, page, action.Target, action.Params)
		if err != nil {
			return outcome, err
		}
		if !strings.Contains(text, action.Value) {
			return outcome, fmt.Errorf("expected %s to contain %q, got %q", action.Target, action.Value, text)
		}
		return outcome, nil

	default:
		return outcome, fmt.Errorf("unknown action: %s", action.Type)
	}
}

// History - returns outcomes of the last run's successful actions
func (r *Runner) History() []entities.Outcome {
	return r.history
}
