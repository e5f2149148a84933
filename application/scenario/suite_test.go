package scenario

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crm_automation/application/actions"
	"crm_automation/application/locator"
	"crm_automation/domain/entities"
	"crm_automation/infrastructure/browser/browsertest"
	"crm_automation/infrastructure/patterns"
	"crm_automation/infrastructure/security"
	"crm_automation/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repository = `
patterns:
  basic:
    inputByName: "//input[@name='{name}']"
    inputById: "//input[@id='{id}']"
    buttonByText: "//button[normalize-space()='{text}']"
    heading: "//h1"
    rowByText: "//tr[.//*[normalize-space()='{text}']]"
templates:
  loginPage:
    usernameField:
      primary: basic.inputByName
      params: {name: username}
      fallback:
        primary: basic.inputById
        params: {id: username}
    passwordField:
      primary: basic.inputByName
      params: {name: pw}
    loginButton:
      primary: basic.buttonByText
      params: {text: Log In}
  homePage:
    header:
      primary: basic.heading
    missing:
      primary: basic.buttonByText
      params: {text: Nowhere}
  leadList:
    row:
      primary: basic.rowByText
`

const testData = `
environments:
  uat:
    url: https://uat.example.my.salesforce.com
users:
  uat:
    admin:
      username: admin@example.com.uat
      password: hunter2
`

const feature = `
Feature: Login

  Scenario: Admin logs in through the fallback username field
    Given I open the "uat" environment
    When I log in as "admin"
    Then I should see "homePage.header"
    And "homePage.header" should contain "Home"
    And I should see "leadList.row" with "text=John Doe"
    And I should not see "homePage.missing"

  Scenario: Missing element fails the scenario
    Given I open the "uat" environment
    Then I should see "homePage.missing"
`

func newPage() *browsertest.Page {
	return browsertest.NewPage().
		Show(
			"//input[@id='username']",
			"//input[@name='pw']",
			"//button[normalize-space()='Log In']",
			"//tr[.//*[normalize-space()='John Doe']]",
		).
		SetText("//h1", "Home")
}

func newSuite(t *testing.T, browser *browsertest.Browser, workflows ...entities.Workflow) (*Suite, *storage.Artifacts) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := patterns.NewStore(logger)
	require.NoError(t, store.LoadBytes("repository", []byte(repository)))
	resolver := locator.NewResolver(store, logger, locator.WithCache(true))
	facade := actions.NewFacade(resolver, security.NewRedactor(logger), logger, time.Second)

	data := storage.NewTestData(logger)
	require.NoError(t, data.LoadBytes("testdata", []byte(testData)))

	artifacts, err := storage.NewArtifacts(t.TempDir())
	require.NoError(t, err)

	return NewSuite(browser, resolver, facade, data, artifacts, logger, workflows...), artifacts
}

func writeFeature(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "login.feature")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSuiteRunsFeatures(t *testing.T) {
	browser := browsertest.NewBrowser(newPage)
	suite, artifacts := newSuite(t, browser)

	status := suite.Run(Options{
		Paths:  []string{writeFeature(t, feature)},
		Format: "progress",
		Output: io.Discard,
	})

	assert.Equal(t, 1, status)

	report := suite.Report()
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, artifacts.RunID, report.RunID)
	require.Len(t, report.Scenarios, 2)

	passed, failed := report.Scenarios[0], report.Scenarios[1]
	assert.True(t, passed.Passed)
	assert.Equal(t, 1, passed.Fallbacks)
	assert.Empty(t, passed.Screenshot)

	assert.False(t, failed.Passed)
	assert.Contains(t, failed.Error, "homePage.missing")
	require.NotEmpty(t, failed.Screenshot)
	_, err := os.Stat(failed.Screenshot)
	assert.NoError(t, err)

	// every scenario gets its own context, torn down afterwards with its trace kept
	sessions := browser.Sessions()
	require.Len(t, sessions, 2)
	closed, kept := sessions[0].Closed()
	assert.True(t, closed)
	assert.True(t, kept)
	closed, kept = sessions[1].Closed()
	assert.True(t, closed)
	assert.True(t, kept)

	var saved RunReport
	require.NoError(t, artifacts.LoadReport(&saved))
	assert.Equal(t, 1, saved.Failed)
}

func TestSuiteStepScreenshots(t *testing.T) {
	browser := browsertest.NewBrowser(newPage)
	suite, _ := newSuite(t, browser)

	status := suite.Run(Options{
		Paths: []string{writeFeature(t, `
Feature: Evidence
  Scenario: Every step leaves a screenshot
    Given I open the "uat" environment
    When I log in as "admin"
    Then I should see "homePage.header"
`)},
		Format:          "progress",
		Output:          io.Discard,
		StepScreenshots: true,
	})

	assert.Equal(t, 0, status)
	report := suite.Report()
	require.Len(t, report.Scenarios, 1)
	assert.Empty(t, report.Scenarios[0].Screenshot)
	require.Len(t, report.Scenarios[0].Steps, 3)
	for _, path := range report.Scenarios[0].Steps {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestSuiteSkipsStepScreenshotsByDefault(t *testing.T) {
	browser := browsertest.NewBrowser(newPage)
	suite, _ := newSuite(t, browser)

	suite.Run(Options{
		Paths:  []string{writeFeature(t, feature)},
		Format: "progress",
		Output: io.Discard,
	})

	for _, sc := range suite.Report().Scenarios {
		assert.Empty(t, sc.Steps)
	}
}

func TestSuiteRunsNamedWorkflow(t *testing.T) {
	browser := browsertest.NewBrowser(newPage)
	suite, _ := newSuite(t, browser, entities.Workflow{
		Name: "login",
		Actions: []entities.Action{
			{Type: entities.ActionNavigate, URL: "${env.url}"},
			{Type: entities.ActionFill, Target: "loginPage.usernameField", Value: "${user.admin.username}"},
			{Type: entities.ActionClick, Target: "loginPage.loginButton"},
		},
	})

	status := suite.Run(Options{
		Paths: []string{writeFeature(t, `
Feature: Workflows
  Scenario: Scripted login
    Given I open the "uat" environment
    When I run the "login" workflow
    Then "homePage.header" should contain "Home"
`)},
		Format: "progress",
		Output: io.Discard,
	})

	assert.Equal(t, 0, status)
	report := suite.Report()
	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, 1, report.Fallbacks)
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams("text=John Doe, column = Name")
	require.NoError(t, err)
	assert.Equal(t, entities.Params{"text": "John Doe", "column": "Name"}, p)

	p, err = ParseParams("  ")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = ParseParams("text")
	assert.Error(t, err)
}
