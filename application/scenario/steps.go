package scenario

import (
	"context"
	"fmt"
	"strings"

	"crm_automation/application/workflow"
	"crm_automation/domain/entities"

	"github.com/cucumber/godog"
)

// Login form templates used by the "I log in as" step
const (
	loginUsernameTemplate = "loginPage.usernameField"
	loginPasswordTemplate = "loginPage.passwordField"
	loginButtonTemplate   = "loginPage.loginButton"
)

type steps struct {
	suite *Suite
}

func registerSteps(ctx *godog.ScenarioContext, s *Suite) {
	st := &steps{suite: s}

	ctx.Step(`^I open the "([^"]*)" environment$`, st.openEnvironment)
	ctx.Step(`^I log in as "([^"]*)"$`, st.logInAs)
	ctx.Step(`^I navigate to "([^"]*)"$`, st.navigate)

	ctx.Step(`^I click "([^"]*)"$`, st.click)
	ctx.Step(`^I click "([^"]*)" with "([^"]*)"$`, st.clickWith)
	ctx.Step(`^I fill "([^"]*)" with "([^"]*)"$`, st.fill)
	ctx.Step(`^I fill "([^"]*)" with the "([^"]*)" of user "([^"]*)"$`, st.fillUserField)
	ctx.Step(`^I fill the form:$`, st.fillForm)
	ctx.Step(`^I select "([^"]*)" in "([^"]*)"$`, st.selectOption)
	ctx.Step(`^I check "([^"]*)"$`, st.check)
	ctx.Step(`^I press "([^"]*)" in "([^"]*)"$`, st.press)

	ctx.Step(`^I wait for "([^"]*)"$`, st.waitVisible)
	ctx.Step(`^I wait for "([^"]*)" to disappear$`, st.waitHidden)
	ctx.Step(`^I should see "([^"]*)"$`, st.waitVisible)
	ctx.Step(`^I should see "([^"]*)" with "([^"]*)"$`, st.shouldSeeWith)
	ctx.Step(`^I should not see "([^"]*)"$`, st.shouldNotSee)
	ctx.Step(`^"([^"]*)" should contain "([^"]*)"$`, st.shouldContain)

	ctx.Step(`^I switch to frame "([^"]*)"$`, st.switchFrame)
	ctx.Step(`^I switch to the parent frame$`, st.parentFrame)
	ctx.Step(`^I switch to the main frame$`, st.mainFrame)
	ctx.Step(`^I open a new tab$`, st.openTab)
	ctx.Step(`^I switch to tab (\d+)$`, st.switchTab)
	ctx.Step(`^I close the current tab$`, st.closeTab)

	ctx.Step(`^I take a screenshot "([^"]*)"$`, st.screenshot)
	ctx.Step(`^I run the "([^"]*)" workflow$`, st.runWorkflow)
}

func (s *steps) expand(st *scenarioState, value string) (string, error) {
	return workflow.NewExpander(s.suite.data, st.environment).String(value)
}

func (s *steps) openEnvironment(ctx context.Context, name string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if s.suite.data == nil {
		return fmt.Errorf("no test data loaded")
	}

	env, err := s.suite.data.Environment(name)
	if err != nil {
		return err
	}
	st.environment = name

	page, err := st.session.Tab()
	if err != nil {
		return err
	}
	return s.suite.facade.Navigate(ctx, page, env.URL)
}

func (s *steps) logInAs(ctx context.Context, role string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if s.suite.data == nil {
		return fmt.Errorf("no test data loaded")
	}

	creds, err := s.suite.data.User(st.environment, role)
	if err != nil {
		return err
	}

	page, err := st.session.Page()
	if err != nil {
		return err
	}
	facade := s.suite.facade

	outcome, err := facade.Fill(ctx, page, loginUsernameTemplate, creds.Username, nil)
	if err != nil {
		return err
	}
	st.record(outcome)

	outcome, err = facade.Fill(ctx, page, loginPasswordTemplate, creds.Password, nil)
	if err != nil {
		return err
	}
	st.record(outcome)

	outcome, err = facade.Click(ctx, page, loginButtonTemplate, nil)
	if err != nil {
		return err
	}
	st.record(outcome)
	return nil
}

func (s *steps) navigate(ctx context.Context, url string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if url, err = s.expand(st, url); err != nil {
		return err
	}
	page, err := st.session.Tab()
	if err != nil {
		return err
	}
	return s.suite.facade.Navigate(ctx, page, url)
}

// act - runs one facade action against the current focus and records its outcome
func (s *steps) act(ctx context.Context, fn func(st *scenarioState) (entities.Outcome, error)) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	outcome, err := fn(st)
	if err != nil {
		return err
	}
	st.record(outcome)
	return nil
}

func (s *steps) click(ctx context.Context, path string) error {
	return s.clickWith(ctx, path, "")
}

func (s *steps) clickWith(ctx context.Context, path, params string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		p, err := s.params(st, params)
		if err != nil {
			return entities.Outcome{}, err
		}
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.Click(ctx, page, path, p)
	})
}

func (s *steps) fill(ctx context.Context, path, value string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		v, err := s.expand(st, value)
		if err != nil {
			return entities.Outcome{}, err
		}
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.Fill(ctx, page, path, v, nil)
	})
}

func (s *steps) fillUserField(ctx context.Context, path, field, role string) error {
	return s.fill(ctx, path, fmt.Sprintf("${user.%s.%s}", role, field))
}

// fillForm - fills every row of a two-column table: | template | value |
func (s *steps) fillForm(ctx context.Context, table *godog.Table) error {
	for i, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(row.Cells))
		}
		path, value := row.Cells[0].Value, row.Cells[1].Value
		if i == 0 && path == "field" {
			continue
		}
		if err := s.fill(ctx, path, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *steps) selectOption(ctx context.Context, option, path string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		v, err := s.expand(st, option)
		if err != nil {
			return entities.Outcome{}, err
		}
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.SelectOption(ctx, page, path, v, nil)
	})
}

func (s *steps) check(ctx context.Context, path string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.Check(ctx, page, path, nil)
	})
}

func (s *steps) press(ctx context.Context, key, path string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.Press(ctx, page, path, key, nil)
	})
}

func (s *steps) waitVisible(ctx context.Context, path string) error {
	return s.shouldSeeWith(ctx, path, "")
}

func (s *steps) shouldSeeWith(ctx context.Context, path, params string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		p, err := s.params(st, params)
		if err != nil {
			return entities.Outcome{}, err
		}
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.WaitVisible(ctx, page, path, p)
	})
}

func (s *steps) waitHidden(ctx context.Context, path string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		return s.suite.facade.WaitHidden(ctx, page, path, nil)
	})
}

func (s *steps) shouldNotSee(ctx context.Context, path string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	page, err := st.session.Page()
	if err != nil {
		return err
	}
	visible, err := s.suite.facade.IsVisible(ctx, page, path, nil)
	if err != nil {
		return err
	}
	if visible {
		return fmt.Errorf("expected %s not to be visible", path)
	}
	return nil
}

func (s *steps) shouldContain(ctx context.Context, path, expected string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		want, err := s.expand(st, expected)
		if err != nil {
			return entities.Outcome{}, err
		}
		page, err := st.session.Page()
		if err != nil {
			return entities.Outcome{}, err
		}
		text, outcome, err := s.suite.facade.Text(ctx, page, path, nil)
		if err != nil {
			return outcome, err
		}
		if !strings.Contains(text, want) {
			return outcome, fmt.Errorf("expected %s to contain %q, got %q", path, want, text)
		}
		return outcome, nil
	})
}

func (s *steps) switchFrame(ctx context.Context, path string) error {
	return s.act(ctx, func(st *scenarioState) (entities.Outcome, error) {
		return st.session.EnterFrame(ctx, path, nil)
	})
}

func (s *steps) parentFrame(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	st.session.ParentFrame()
	return nil
}

func (s *steps) mainFrame(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	st.session.MainFrame()
	return nil
}

func (s *steps) openTab(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	return st.session.OpenTab(ctx, "")
}

func (s *steps) switchTab(ctx context.Context, index int) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	return st.session.SwitchTab(index)
}

func (s *steps) closeTab(ctx context.Context) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	return st.session.CloseTab()
}

func (s *steps) screenshot(ctx context.Context, name string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	if s.suite.artifacts == nil {
		return fmt.Errorf("no artifact directory configured")
	}
	return st.session.Screenshot(ctx, s.suite.artifacts.Screenshot(name))
}

func (s *steps) runWorkflow(ctx context.Context, name string) error {
	st, err := stateFrom(ctx)
	if err != nil {
		return err
	}
	wf, ok := s.suite.workflows[name]
	if !ok {
		return fmt.Errorf("workflow %q is not defined", name)
	}
	if wf.Environment == "" {
		wf.Environment = st.environment
	}

	screenshotDir := ""
	if s.suite.artifacts != nil {
		screenshotDir = s.suite.artifacts.ScreenshotDir()
	}
	runner := workflow.NewRunner(s.suite.data, s.suite.logger, screenshotDir)

	result, err := runner.Run(ctx, st.session, wf)
	for _, o := range result.Outcomes {
		st.record(o)
	}
	return err
}

// params - parses "key=value, key2=value2" into runtime params, expanding data references
func (s *steps) params(st *scenarioState, raw string) (entities.Params, error) {
	p, err := ParseParams(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range p {
		if p[k], err = s.expand(st, v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseParams - parses "key=value, key2=value2"; an empty string gives nil
func ParseParams(raw string) (entities.Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	params := entities.Params{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", strings.TrimSpace(pair))
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}
