package locator

import (
	"context"
	"io"
	"strings"
	"testing"

	"crm_automation/domain/entities"
	"crm_automation/infrastructure/patterns"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repository = `
patterns:
  basic:
    inputByName: "//input[@name='{name}']"
    inputById: "//input[@id='{id}']"
    labelled: "//label[normalize-space()='{label}']/following::{tag}[1]"
  table:
    rowByText: "//tr[.//*[normalize-space()='{text}']]"
  lightning:
    group: "//div[contains(@class,'slds-form-element')][.//label[normalize-space()='{group}']]"
    inputInGroup: "{@lightning.group}//input[@name='{name}']"
    loopA: "{@lightning.loopB}"
    loopB: "{@lightning.loopA}"

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
  leadPage:
    companyInput:
      primary: lightning.inputInGroup
      params:
        group: "{section}"
        name: Company
    statusPicklist:
      primary: basic.labelled
      params: {label: Lead Status}
    broken:
      primary: lightning.loopA
      fallback:
        primary: basic.inputById
        params: {id: recovered}
  table:
    row:
      primary: table.rowByText

statics:
  common:
    spinner: "//div[contains(@class,'slds-spinner')]"
`

func newResolver(t *testing.T, opts ...Option) (*Resolver, *patterns.Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	store := patterns.NewStore(quiet)
	require.NoError(t, store.LoadBytes("repository", []byte(repository)))

	return NewResolver(store, logger, opts...), store, hook
}

func hasWarning(hook *test.Hook, fragment string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, fragment) {
			return true
		}
	}
	return false
}

func TestResolvePatternPathDirectly(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "basic.inputByName", entities.Params{"name": "username"})

	require.NoError(t, err)
	assert.Equal(t, "//input[@name='username']", loc.Selector)
	assert.Equal(t, "basic.inputByName", loc.PatternPath)
	assert.False(t, loc.FallbackUsed)
	assert.Empty(t, loc.Warnings)
}

func TestResolveTemplateUsesFixedParams(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "loginPage.usernameField", nil)

	require.NoError(t, err)
	assert.Equal(t, "//input[@name='username']", loc.Selector)
	assert.Equal(t, "loginPage.usernameField", loc.TemplatePath)
	assert.Equal(t, entities.Params{"name": "username"}, loc.Params)
}

func TestRuntimeParamsTakePrecedence(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "loginPage.passwordField", entities.Params{"name": "password"})

	require.NoError(t, err)
	assert.Equal(t, "//input[@name='password']", loc.Selector)
}

func TestFallbackWhenPrimaryPatternMissing(t *testing.T) {
	r, store, hook := newResolver(t)
	store.Remove("basic.inputByName")

	loc, err := r.Resolve(context.Background(), "loginPage.usernameField", nil)

	require.NoError(t, err)
	assert.Equal(t, "//input[@id='username']", loc.Selector)
	assert.True(t, loc.FallbackUsed)
	assert.Equal(t, "basic.inputById", loc.PatternPath)
	assert.True(t, hasWarning(hook, "using fallback"))
}

func TestFallbackWhenPrimaryCompositionLoops(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "leadPage.broken", nil)

	require.NoError(t, err)
	assert.True(t, loc.FallbackUsed)
	assert.Equal(t, "//input[@id='recovered']", loc.Selector)
}

func TestNotFoundWithoutFallback(t *testing.T) {
	r, store, _ := newResolver(t)
	store.Remove("basic.inputByName")

	loc, err := r.Resolve(context.Background(), "loginPage.passwordField", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Empty(t, loc.Selector)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	r, _, _ := newResolver(t)

	_, err := r.Resolve(context.Background(), "nonexistent.path", nil)

	var nf *entities.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "nonexistent.path")
	assert.Contains(t, nf.Available, "loginPage")
}

func TestNestedParamResolvedFromRuntime(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "leadPage.companyInput", entities.Params{"section": "Company Information"})

	require.NoError(t, err)
	assert.Equal(t,
		"//div[contains(@class,'slds-form-element')][.//label[normalize-space()='Company Information']]//input[@name='Company']",
		loc.Selector)
	assert.Equal(t, "Company Information", loc.Params["group"])
	assert.Empty(t, loc.Warnings)
}

func TestUnresolvedPlaceholderWarnsButSucceeds(t *testing.T) {
	r, _, hook := newResolver(t)

	loc, err := r.Resolve(context.Background(), "leadPage.statusPicklist", nil)

	require.NoError(t, err)
	assert.False(t, loc.FallbackUsed)
	assert.Equal(t, "//label[normalize-space()='Lead Status']/following::{tag}[1]", loc.Selector)
	require.Len(t, loc.Warnings, 1)
	assert.Equal(t, "tag", loc.Warnings[0].Placeholder)

	assert.True(t, hasWarning(hook, "{tag}"))
}

func TestMissingNestedParamLeavesPlaceholderAndWarns(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "leadPage.companyInput", nil)

	require.NoError(t, err)
	require.Len(t, loc.Warnings, 1)
	assert.Equal(t, "section", loc.Warnings[0].Placeholder)
}

func TestStaticSelector(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.Resolve(context.Background(), "common.spinner", entities.Params{"ignored": "x"})

	require.NoError(t, err)
	assert.Equal(t, "//div[contains(@class,'slds-spinner')]", loc.Selector)
}

func TestResolveFallbackIntent(t *testing.T) {
	r, _, _ := newResolver(t)

	loc, err := r.ResolveFallback(context.Background(), "loginPage.usernameField", nil)
	require.NoError(t, err)
	assert.True(t, loc.FallbackUsed)
	assert.Equal(t, "//input[@id='username']", loc.Selector)

	_, err = r.ResolveFallback(context.Background(), "loginPage.passwordField", nil)
	assert.ErrorIs(t, err, entities.ErrNoFallback)
}

func TestResolveIsDeterministic(t *testing.T) {
	for _, cacheOn := range []bool{false, true} {
		r, _, _ := newResolver(t, WithCache(cacheOn))
		params := entities.Params{"text": "John Doe"}

		first, err := r.Resolve(context.Background(), "table.rowByText", params)
		require.NoError(t, err)
		second, err := r.Resolve(context.Background(), "table.rowByText", params)
		require.NoError(t, err)

		assert.Equal(t, "//tr[.//*[normalize-space()='John Doe']]", first.Selector)
		assert.Equal(t, first.Selector, second.Selector)
		assert.Equal(t, first, second)
	}
}

func TestCacheKeyedOnParams(t *testing.T) {
	r, store, _ := newResolver(t, WithCache(true))
	ctx := context.Background()

	john, err := r.Resolve(ctx, "table.row", entities.Params{"text": "John Doe"})
	require.NoError(t, err)
	jane, err := r.Resolve(ctx, "table.row", entities.Params{"text": "Jane Roe"})
	require.NoError(t, err)
	assert.NotEqual(t, john.Selector, jane.Selector)

	// cached entries survive a store change until cleared
	store.Remove("table.rowByText")
	again, err := r.Resolve(ctx, "table.row", entities.Params{"text": "John Doe"})
	require.NoError(t, err)
	assert.Equal(t, john.Selector, again.Selector)

	r.ClearCache()
	_, err = r.Resolve(ctx, "table.row", entities.Params{"text": "John Doe"})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestCachedLocatorIsNotShared(t *testing.T) {
	r, _, _ := newResolver(t, WithCache(true))
	ctx := context.Background()

	first, err := r.Resolve(ctx, "loginPage.usernameField", nil)
	require.NoError(t, err)
	first.Params["name"] = "tampered"

	second, err := r.Resolve(ctx, "loginPage.usernameField", nil)
	require.NoError(t, err)
	assert.Equal(t, "username", second.Params["name"])
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	r, _, _ := newResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "loginPage.usernameField", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
