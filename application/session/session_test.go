package session

import (
	"context"
	"io"
	"testing"
	"time"

	"crm_automation/application/actions"
	"crm_automation/application/locator"
	"crm_automation/infrastructure/browser/browsertest"
	"crm_automation/infrastructure/patterns"
	"crm_automation/infrastructure/security"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repository = `
patterns:
  basic:
    iframeByTitle: "//iframe[@title='{title}']"
    inputByName: "//input[@name='{name}']"
templates:
  quotePage:
    configurator:
      primary: basic.iframeByTitle
      params: {title: configurator}
    options:
      primary: basic.iframeByTitle
      params: {title: options}
    quantity:
      primary: basic.inputByName
      params: {name: quantity}
`

func newSession(t *testing.T, browser *browsertest.Session) *Session {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := patterns.NewStore(logger)
	require.NoError(t, store.LoadBytes("repository", []byte(repository)))
	facade := actions.NewFacade(locator.NewResolver(store, logger), security.NewRedactor(logger), logger, time.Second)

	s, err := New(context.Background(), browser, facade, logger)
	require.NoError(t, err)
	return s
}

func TestNewOpensFirstTab(t *testing.T) {
	browser := browsertest.NewSession(nil)
	s := newSession(t, browser)

	assert.Equal(t, 1, s.TabCount())
	page, err := s.Page()
	require.NoError(t, err)
	tab, err := s.Tab()
	require.NoError(t, err)
	assert.Same(t, tab, page)
}

func TestNestedFramesAndMainFrame(t *testing.T) {
	outer := browsertest.NewPage()
	inner := outer.AddFrame("//iframe[@title='configurator']").AddFrame("//iframe[@title='options']")
	inner.Show("//input[@name='quantity']")

	s := newSession(t, browsertest.NewSession(func() *browsertest.Page { return outer }))
	ctx := context.Background()

	_, err := s.EnterFrame(ctx, "quotePage.configurator", nil)
	require.NoError(t, err)
	_, err = s.EnterFrame(ctx, "quotePage.options", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.FrameDepth())

	page, err := s.Page()
	require.NoError(t, err)
	_, err = s.Facade().Fill(ctx, page, "quotePage.quantity", "3", nil)
	require.NoError(t, err)
	assert.Contains(t, inner.Calls(), browsertest.Call{Op: "fill", Selector: "//input[@name='quantity']", Value: "3"})

	s.ParentFrame()
	assert.Equal(t, 1, s.FrameDepth())

	s.MainFrame()
	page, err = s.Page()
	require.NoError(t, err)
	assert.Same(t, outer, page)
}

func TestSwitchTabFollowsPopup(t *testing.T) {
	browser := browsertest.NewSession(nil)
	s := newSession(t, browser)
	first, _ := s.Tab()

	popup := browsertest.NewPage()
	browser.Popup(popup)
	assert.Equal(t, 2, s.TabCount())

	require.NoError(t, s.SwitchTab(1))
	tab, _ := s.Tab()
	assert.Same(t, popup, tab)

	require.NoError(t, s.CloseTab())
	tab, _ = s.Tab()
	assert.Same(t, first, tab)
	assert.True(t, popup.Closed())

	assert.Error(t, s.SwitchTab(5))
}

func TestSwitchTabLeavesFrames(t *testing.T) {
	outer := browsertest.NewPage()
	outer.AddFrame("//iframe[@title='configurator']")
	browser := browsertest.NewSession(func() *browsertest.Page { return outer })
	s := newSession(t, browser)

	_, err := s.EnterFrame(context.Background(), "quotePage.configurator", nil)
	require.NoError(t, err)

	require.NoError(t, s.SwitchTab(0))
	assert.Equal(t, 0, s.FrameDepth())
}

func TestOpenTabNavigates(t *testing.T) {
	browser := browsertest.NewSession(nil)
	s := newSession(t, browser)

	require.NoError(t, s.OpenTab(context.Background(), "https://login.salesforce.com"))

	assert.Equal(t, 2, s.TabCount())
	tab, _ := s.Tab()
	assert.Equal(t, "https://login.salesforce.com", tab.URL())
}

func TestCloseTearsDownBrowserContext(t *testing.T) {
	browser := browsertest.NewSession(nil)
	s := newSession(t, browser)

	require.NoError(t, s.Close(true))

	closed, kept := browser.Closed()
	assert.True(t, closed)
	assert.True(t, kept)
	_, err := s.Page()
	assert.ErrorIs(t, err, ErrNoPage)
}
