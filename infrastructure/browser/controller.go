package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Options control how the browser is launched
type Options struct {
	Headless    bool
	SlowMo      time.Duration
	Width       int
	Height      int
	RecordVideo bool
	Trace       bool
	Install     bool

	// DriverPath and BinaryPath pin the chromedriver and Chrome executables for selenium
	DriverPath string
	BinaryPath string
}

type playwrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	logger  *logrus.Logger
}

// NewPlaywrightBrowser - starts playwright and launches chromium
func NewPlaywrightBrowser(opts Options, logger *logrus.Logger) (interfaces.Browser, error) {
	if opts.Install {
		if err := playwright.Install(); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args: []string{
			"--disable-popup-blocking",
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-notifications",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"headless": opts.Headless,
		"slow_mo":  opts.SlowMo,
	}).Info("Launched chromium")

	return &playwrightBrowser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  logger,
	}, nil
}

// NewSession - creates an isolated browser context with video and tracing per scenario
func (b *playwrightBrowser) NewSession(ctx context.Context, dirs interfaces.SessionArtifacts) (interfaces.BrowserSession, error) {
	width, height := b.opts.Width, b.opts.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  width,
			Height: height,
		},
		IgnoreHttpsErrors: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(true),
	}
	if b.opts.RecordVideo && dirs.VideoDir != "" {
		contextOptions.RecordVideo = &playwright.RecordVideo{
			Dir: dirs.VideoDir,
		}
	}

	bctx, err := b.browser.NewContext(contextOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	tracePath := ""
	if b.opts.Trace && dirs.TracePath != "" {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			b.logger.Warnf("Failed to start tracing: %v", err)
		} else {
			tracePath = dirs.TracePath
		}
	}

	s := &playwrightSession{
		context:   bctx,
		tracePath: tracePath,
		logger:    b.logger,
	}

	bctx.OnPage(func(newPage playwright.Page) {
		s.track(newPage)
	})

	return s, nil
}

// Close - closes the browser and stops the driver
func (b *playwrightBrowser) Close() error {
	var closeErr error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil && !isClosedError(err) {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		b.browser = nil
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		b.pw = nil
	}

	return closeErr
}

type playwrightSession struct {
	context   playwright.BrowserContext
	tracePath string
	logger    *logrus.Logger

	pagesMutex sync.Mutex
	pages      []*playwrightPage
}

// track - registers a tab opened either by us or by the application
func (s *playwrightSession) track(page playwright.Page) *playwrightPage {
	s.pagesMutex.Lock()
	defer s.pagesMutex.Unlock()

	for _, p := range s.pages {
		if p.page == page {
			return p
		}
	}

	page.OnDialog(func(dialog playwright.Dialog) {
		s.logger.WithField("message", dialog.Message()).Info("Accepting dialog")
		dialog.Accept()
	})

	page.OnClose(func(closedPage playwright.Page) {
		s.pagesMutex.Lock()
		defer s.pagesMutex.Unlock()

		for i, p := range s.pages {
			if p.page == closedPage {
				s.pages = append(s.pages[:i], s.pages[i+1:]...)
				break
			}
		}
	})

	wrapped := &playwrightPage{page: page, logger: s.logger}
	s.pages = append(s.pages, wrapped)
	return wrapped
}

// NewPage - opens a new tab
func (s *playwrightSession) NewPage(ctx context.Context) (interfaces.Page, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return s.track(page), nil
}

// Pages - returns every open tab in the order it was opened
func (s *playwrightSession) Pages() []interfaces.Page {
	s.pagesMutex.Lock()
	defer s.pagesMutex.Unlock()

	out := make([]interfaces.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	return out
}

// Close - stops tracing and closes the context; the video is flushed on close
func (s *playwrightSession) Close(keepTrace bool) error {
	var closeErr error

	if s.tracePath != "" {
		var err error
		if keepTrace {
			if mkErr := os.MkdirAll(filepath.Dir(s.tracePath), 0755); mkErr != nil {
				closeErr = multierr.Append(closeErr, mkErr)
			}
			err = s.context.Tracing().Stop(s.tracePath)
		} else {
			err = s.context.Tracing().Stop()
		}
		if err != nil && !isClosedError(err) {
			closeErr = multierr.Append(closeErr, fmt.Errorf("failed to stop tracing: %w", err))
		}
	}

	if err := s.context.Close(); err != nil && !isClosedError(err) {
		closeErr = multierr.Append(closeErr, fmt.Errorf("failed to close context: %w", err))
	}

	return closeErr
}

// playwrightPage wraps a tab, or an iframe inside one when frame is set
type playwrightPage struct {
	page   playwright.Page
	frame  playwright.FrameLocator
	logger *logrus.Logger
}

func (p *playwrightPage) locator(selector string) playwright.Locator {
	selector = playwrightSelector(selector)
	if p.frame != nil {
		return p.frame.Locator(selector)
	}
	return p.page.Locator(selector)
}

// Goto - navigates the tab and waits for the DOM to load
func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(60000),
	})
	return mapError(err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

// WaitFor - waits for the element to reach state
func (p *playwrightPage) WaitFor(ctx context.Context, selector string, state entities.ElementState, timeout time.Duration) error {
	waitState := playwright.WaitForSelectorStateVisible
	switch state {
	case entities.StateHidden:
		waitState = playwright.WaitForSelectorStateHidden
	case entities.StateAttached:
		waitState = playwright.WaitForSelectorStateAttached
	}

	err := p.locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   waitState,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return mapError(err)
}

// Click - clicks on the first element matching selector
func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if err := p.locator(selector).First().Click(); err != nil {
		return mapError(err)
	}

	p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(5000),
	})
	return nil
}

// Fill - clears the field and types value
func (p *playwrightPage) Fill(ctx context.Context, selector string, value string) error {
	locator := p.locator(selector).First()
	if err := locator.Clear(); err != nil {
		p.logger.Debugf("Failed to clear %s: %v", selector, err)
	}
	return mapError(locator.Fill(value))
}

// SelectOption - selects by value, then by label
func (p *playwrightPage) SelectOption(ctx context.Context, selector string, option string) error {
	locator := p.locator(selector).First()
	if _, err := locator.SelectOption(playwright.SelectOptionValues{Values: &[]string{option}}); err == nil {
		return nil
	}
	_, err := locator.SelectOption(playwright.SelectOptionValues{Labels: &[]string{option}})
	return mapError(err)
}

func (p *playwrightPage) Check(ctx context.Context, selector string) error {
	return mapError(p.locator(selector).First().Check())
}

func (p *playwrightPage) Press(ctx context.Context, selector string, key string) error {
	return mapError(p.locator(selector).First().Press(key))
}

func (p *playwrightPage) TextContent(ctx context.Context, selector string) (string, error) {
	text, err := p.locator(selector).First().TextContent()
	if err != nil {
		return "", mapError(err)
	}
	return strings.TrimSpace(text), nil
}

func (p *playwrightPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	visible, err := p.locator(selector).First().IsVisible()
	return visible, mapError(err)
}

// Frame - returns a page whose locators resolve inside the iframe at selector
func (p *playwrightPage) Frame(selector string) (interfaces.Page, error) {
	sel := playwrightSelector(selector)
	var frame playwright.FrameLocator
	if p.frame != nil {
		frame = p.frame.FrameLocator(sel)
	} else {
		frame = p.page.FrameLocator(sel)
	}
	return &playwrightPage{page: p.page, frame: frame, logger: p.logger}, nil
}

// Screenshot - takes a full-page screenshot of the tab
func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *playwrightPage) Close() error {
	if p.frame != nil {
		return nil
	}
	if err := p.page.Close(); err != nil && !isClosedError(err) {
		return err
	}
	return nil
}

// playwrightSelector - playwright needs XPath expressions to be tagged explicitly
func playwrightSelector(selector string) string {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return "xpath=" + selector
	}
	return selector
}

// mapError - turns playwright timeouts into entities.ErrActionTimeout
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", entities.ErrActionTimeout, err)
	}
	return err
}

func isClosedError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed")
}
