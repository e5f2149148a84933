package browser

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/multierr"
)

const defaultDriverPort = 9515

// executable describes where a program is searched for when no path is configured
type executable struct {
	name       string
	envVar     string
	candidates []string
	lookNames  []string
}

var chromeDriverExecutable = executable{
	name:   "chromedriver",
	envVar: "BROWSER_DRIVER_PATH",
	candidates: []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
	},
	lookNames: []string{"chromedriver"},
}

var chromeExecutable = executable{
	name:   "Chrome",
	envVar: "CHROME_BINARY_PATH",
	candidates: []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
	lookNames: []string{"google-chrome", "chromium", "chromium-browser"},
}

// locate - configured path first, then the env override, well-known locations and PATH.
// A configured path must exist.
func (e executable) locate(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%s not found at configured path %s: %w", e.name, configured, err)
		}
		return configured, nil
	}

	candidates := e.candidates
	if path := os.Getenv(e.envVar); path != "" {
		candidates = append([]string{path}, candidates...)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "bin", e.name))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, name := range e.lookNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found: install it, set %s or configure its path", e.name, e.envVar)
}

// freePort - asks the OS for an unused port, falling back to the ChromeDriver default
func freePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return defaultDriverPort
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

type seleniumBrowser struct {
	service      *selenium.Service
	port         int
	chromeBinary string
	opts         Options
	logger       *logrus.Logger
}

// NewSeleniumBrowser - starts a ChromeDriver service; every session gets its own Chrome
func NewSeleniumBrowser(opts Options, logger *logrus.Logger) (interfaces.Browser, error) {
	driverPath, err := chromeDriverExecutable.locate(opts.DriverPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("Using ChromeDriver at: %s", driverPath)

	// chromedriver finds Chrome on its own when none is located here
	chromeBinary, err := chromeExecutable.locate(opts.BinaryPath)
	if err != nil && opts.BinaryPath != "" {
		return nil, err
	}
	if chromeBinary != "" {
		logger.Infof("Using Chrome binary at: %s", chromeBinary)
	}

	port := freePort()
	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	if opts.RecordVideo || opts.Trace {
		logger.Warn("Video and trace recording are only available with the playwright driver")
	}

	return &seleniumBrowser{
		service:      service,
		port:         port,
		chromeBinary: chromeBinary,
		opts:         opts,
		logger:       logger,
	}, nil
}

// NewSession - launches a fresh Chrome with a throwaway profile
func (b *seleniumBrowser) NewSession(ctx context.Context, dirs interfaces.SessionArtifacts) (interfaces.BrowserSession, error) {
	userDataDir, err := os.MkdirTemp("", "crm_automation_profile_")
	if err != nil {
		return nil, fmt.Errorf("failed to create user data directory: %w", err)
	}

	width, height := b.opts.Width, b.opts.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}

	caps := selenium.Capabilities{
		"browserName": "chrome",
	}

	chromeCaps := chrome.Capabilities{
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--disable-popup-blocking",
			"--disable-notifications",
			"--no-sandbox",
			fmt.Sprintf("--window-size=%d,%d", width, height),
			fmt.Sprintf("--user-data-dir=%s", userDataDir),
		},
	}
	if b.opts.Headless {
		chromeCaps.Args = append(chromeCaps.Args, "--headless=new")
	}
	if b.chromeBinary != "" {
		chromeCaps.Path = b.chromeBinary
	}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", b.port))
	if err != nil {
		os.RemoveAll(userDataDir)
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome browser not found. Please install Google Chrome or set CHROME_BINARY_PATH environment variable. Error: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}

	return &seleniumSession{
		wd:          wd,
		userDataDir: userDataDir,
		slowMo:      b.opts.SlowMo,
		logger:      b.logger,
		pages:       make(map[string]*seleniumPage),
	}, nil
}

// Close - stops ChromeDriver service
func (b *seleniumBrowser) Close() error {
	if b.service != nil {
		err := b.service.Stop()
		b.service = nil
		return err
	}
	return nil
}

// seleniumSession owns one WebDriver; the driver has a single focus so every
// page operation takes mu and re-focuses its window and frame first.
type seleniumSession struct {
	wd          selenium.WebDriver
	userDataDir string
	slowMo      time.Duration
	logger      *logrus.Logger

	mu      sync.Mutex
	pages   map[string]*seleniumPage
	claimed bool
}

func (s *seleniumSession) page(handle string) *seleniumPage {
	if p, ok := s.pages[handle]; ok {
		return p
	}
	p := &seleniumPage{session: s, handle: handle}
	s.pages[handle] = p
	return p
}

// NewPage - returns the initial window first, then opens new ones
func (s *seleniumSession) NewPage(ctx context.Context) (interfaces.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.claimed {
		handle, err := s.wd.CurrentWindowHandle()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		s.claimed = true
		return s.page(handle), nil
	}

	before, err := s.wd.WindowHandles()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if _, err := s.wd.ExecuteScript("window.open('about:blank', '_blank');", nil); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	after, err := s.wd.WindowHandles()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	known := make(map[string]bool, len(before))
	for _, h := range before {
		known[h] = true
	}
	for _, h := range after {
		if !known[h] {
			return s.page(h), nil
		}
	}
	return nil, fmt.Errorf("failed to create page: no new window appeared")
}

// Pages - returns every open window, including ones opened by the application
func (s *seleniumSession) Pages() []interfaces.Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.wd.WindowHandles()
	if err != nil {
		s.logger.Warnf("Failed to list windows: %v", err)
		return nil
	}

	out := make([]interfaces.Page, 0, len(handles))
	for _, h := range handles {
		out = append(out, s.page(h))
	}
	return out
}

// Close - quits Chrome and removes the throwaway profile
func (s *seleniumSession) Close(keepTrace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closeErr error
	if err := s.wd.Quit(); err != nil && !isClosedError(err) {
		closeErr = multierr.Append(closeErr, fmt.Errorf("failed to quit webdriver: %w", err))
	}
	if err := os.RemoveAll(s.userDataDir); err != nil {
		closeErr = multierr.Append(closeErr, err)
	}
	return closeErr
}

// seleniumPage is a window handle plus the chain of iframes to descend into
type seleniumPage struct {
	session *seleniumSession
	handle  string
	frames  []string
}

// focus - switches the driver to this window and frame; caller holds session.mu
func (p *seleniumPage) focus() error {
	wd := p.session.wd
	if err := wd.SwitchWindow(p.handle); err != nil {
		return fmt.Errorf("failed to switch to window: %w", err)
	}
	if err := wd.SwitchFrame(nil); err != nil {
		return fmt.Errorf("failed to switch to main frame: %w", err)
	}
	for _, sel := range p.frames {
		by, value := seleniumSelector(sel)
		elem, err := wd.FindElement(by, value)
		if err != nil {
			return fmt.Errorf("frame %s not found: %w", sel, err)
		}
		if err := wd.SwitchFrame(elem); err != nil {
			return fmt.Errorf("failed to switch to frame %s: %w", sel, err)
		}
	}
	return nil
}

// with - runs fn with the driver focused on this page
func (p *seleniumPage) with(fn func(wd selenium.WebDriver) error) error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()

	if err := p.focus(); err != nil {
		return err
	}
	if p.session.slowMo > 0 {
		time.Sleep(p.session.slowMo)
	}
	return fn(p.session.wd)
}

func (p *seleniumPage) element(wd selenium.WebDriver, selector string) (selenium.WebElement, error) {
	by, value := seleniumSelector(selector)
	elem, err := wd.FindElement(by, value)
	if err != nil {
		return nil, fmt.Errorf("element not found with selector %s: %w", selector, err)
	}
	return elem, nil
}

func (p *seleniumPage) Goto(ctx context.Context, url string) error {
	return p.with(func(wd selenium.WebDriver) error {
		return wd.Get(url)
	})
}

func (p *seleniumPage) URL() string {
	var url string
	p.with(func(wd selenium.WebDriver) error {
		var err error
		url, err = wd.CurrentURL()
		return err
	})
	return url
}

// WaitFor - polls until the element reaches state. The window and frame path are
// re-entered on every poll so an iframe that appears late is waited for too.
func (p *seleniumPage) WaitFor(ctx context.Context, selector string, state entities.ElementState, timeout time.Duration) error {
	by, value := seleniumSelector(selector)

	p.session.mu.Lock()
	defer p.session.mu.Unlock()

	wd := p.session.wd
	condition := stateCondition(ctx, p.focus, wd, by, value, state)
	err := wd.WaitWithTimeout(condition, timeout)
	return waitError(ctx, err, selector, state, timeout)
}

// elementFinder is the part of selenium.WebDriver that a wait condition needs
type elementFinder interface {
	FindElements(by, value string) ([]selenium.WebElement, error)
}

// stateCondition - a WaitWithTimeout condition; a frame that cannot be entered counts
// as the element being absent
func stateCondition(ctx context.Context, focus func() error, finder elementFinder, by, value string, state entities.ElementState) selenium.Condition {
	return func(selenium.WebDriver) (bool, error) {
		if ctx.Err() != nil {
			return true, nil
		}
		if err := focus(); err != nil {
			return state == entities.StateHidden, nil
		}
		elems, err := finder.FindElements(by, value)
		if err != nil || len(elems) == 0 {
			return state == entities.StateHidden, nil
		}
		switch state {
		case entities.StateAttached:
			return true, nil
		case entities.StateHidden:
			displayed, err := elems[0].IsDisplayed()
			return err == nil && !displayed, nil
		default:
			displayed, err := elems[0].IsDisplayed()
			return err == nil && displayed, nil
		}
	}
}

// waitError - maps a finished wait onto cancellation, ErrActionTimeout or the driver error
func waitError(ctx context.Context, err error, selector string, state entities.ElementState, timeout time.Duration) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && strings.Contains(err.Error(), "timeout") {
		return fmt.Errorf("%w: %s not %s after %v", entities.ErrActionTimeout, selector, state, timeout)
	}
	return err
}

// Click - scrolls the element into view and clicks it
func (p *seleniumPage) Click(ctx context.Context, selector string) error {
	return p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}

		script := `arguments[0].scrollIntoView({block: 'center'}); return true;`
		if _, err := wd.ExecuteScript(script, []interface{}{element}); err != nil {
			p.session.logger.Debugf("Failed to scroll to element: %v", err)
			if err := element.MoveTo(0, 0); err != nil {
				p.session.logger.Debugf("Failed to move to element: %v", err)
			}
		}
		return element.Click()
	})
}

// Fill - clears the field and types value
func (p *seleniumPage) Fill(ctx context.Context, selector string, value string) error {
	return p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}
		if err := element.Clear(); err != nil {
			p.session.logger.Debugf("Failed to clear element: %v", err)
		}
		return element.SendKeys(value)
	})
}

// SelectOption - clicks the option whose value or label matches
func (p *seleniumPage) SelectOption(ctx context.Context, selector string, option string) error {
	return p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}
		literal := xpathLiteral(option)
		opt, err := element.FindElement(selenium.ByXPATH,
			fmt.Sprintf(".//option[@value=%s or normalize-space()=%s]", literal, literal))
		if err != nil {
			return fmt.Errorf("option %q not found in %s: %w", option, selector, err)
		}
		return opt.Click()
	})
}

func (p *seleniumPage) Check(ctx context.Context, selector string) error {
	return p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}
		selected, err := element.IsSelected()
		if err == nil && selected {
			return nil
		}
		return element.Click()
	})
}

func (p *seleniumPage) Press(ctx context.Context, selector string, key string) error {
	return p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}
		return element.SendKeys(seleniumKey(key))
	})
}

func (p *seleniumPage) TextContent(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.with(func(wd selenium.WebDriver) error {
		element, err := p.element(wd, selector)
		if err != nil {
			return err
		}
		text, err = element.Text()
		return err
	})
	return strings.TrimSpace(text), err
}

func (p *seleniumPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	visible := false
	err := p.with(func(wd selenium.WebDriver) error {
		by, value := seleniumSelector(selector)
		elems, err := wd.FindElements(by, value)
		if err != nil || len(elems) == 0 {
			return nil
		}
		visible, err = elems[0].IsDisplayed()
		return err
	})
	return visible, err
}

// Frame - returns a page that descends into the iframe at selector before each operation
func (p *seleniumPage) Frame(selector string) (interfaces.Page, error) {
	frames := append(append([]string(nil), p.frames...), selector)
	return &seleniumPage{session: p.session, handle: p.handle, frames: frames}, nil
}

func (p *seleniumPage) Screenshot(ctx context.Context, path string) error {
	return p.with(func(wd selenium.WebDriver) error {
		data, err := wd.Screenshot()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	})
}

func (p *seleniumPage) Close() error {
	if len(p.frames) > 0 {
		return nil
	}
	p.session.mu.Lock()
	defer p.session.mu.Unlock()

	delete(p.session.pages, p.handle)
	if err := p.session.wd.CloseWindow(p.handle); err != nil && !isClosedError(err) {
		return err
	}
	return nil
}

// seleniumSelector - XPath for expressions starting with / or (, CSS otherwise
func seleniumSelector(selector string) (string, string) {
	switch {
	case strings.HasPrefix(selector, "xpath="):
		return selenium.ByXPATH, strings.TrimPrefix(selector, "xpath=")
	case strings.HasPrefix(selector, "css="):
		return selenium.ByCSSSelector, strings.TrimPrefix(selector, "css=")
	case strings.HasPrefix(selector, "/"), strings.HasPrefix(selector, "("):
		return selenium.ByXPATH, selector
	default:
		return selenium.ByCSSSelector, selector
	}
}

var seleniumKeys = map[string]string{
	"Enter":      selenium.EnterKey,
	"Tab":        selenium.TabKey,
	"Escape":     selenium.EscapeKey,
	"Backspace":  selenium.BackspaceKey,
	"Delete":     selenium.DeleteKey,
	"ArrowDown":  selenium.DownArrowKey,
	"ArrowUp":    selenium.UpArrowKey,
	"ArrowLeft":  selenium.LeftArrowKey,
	"ArrowRight": selenium.RightArrowKey,
	"Space":      selenium.SpaceKey,
}

// seleniumKey - maps playwright key names onto WebDriver key codes
func seleniumKey(key string) string {
	if k, ok := seleniumKeys[key]; ok {
		return k
	}
	return key
}

// xpathLiteral - quotes s for use inside an XPath expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
