// Package browsertest provides an in-memory browser used to test code that drives pages.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"
)

// Call records one interaction with a fake page
type Call struct {
	Op       string
	Selector string
	Value    string
}

// Page is a fake tab. Selectors registered with Show are present and visible;
// waiting on any other selector fails immediately with entities.ErrActionTimeout.
type Page struct {
	mu       sync.Mutex
	url      string
	visible  map[string]bool
	attached map[string]bool
	texts    map[string]string
	fail     map[string]error
	frames   map[string]*Page
	calls    []Call
	closed   bool
}

// NewPage - creates an empty fake page
func NewPage() *Page {
	return &Page{
		visible:  make(map[string]bool),
		attached: make(map[string]bool),
		texts:    make(map[string]string),
		fail:     make(map[string]error),
		frames:   make(map[string]*Page),
	}
}

// Show marks selectors as attached and visible
func (p *Page) Show(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.visible[s] = true
		p.attached[s] = true
	}
	return p
}

// Hide marks a selector as attached but hidden
func (p *Page) Hide(selector string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = false
	p.attached[selector] = true
	return p
}

// SetText sets the text content returned for selector and makes it visible
func (p *Page) SetText(selector, text string) *Page {
	p.Show(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[selector] = text
	return p
}

// FailOn makes actions on selector return err after the wait succeeds
func (p *Page) FailOn(selector string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[selector] = err
	return p
}

// AddFrame registers an iframe reachable through selector and returns its content page
func (p *Page) AddFrame(selector string) *Page {
	p.Show(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	child := NewPage()
	p.frames[selector] = child
	return child
}

// Calls returns the interactions recorded so far
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(op, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: op, Selector: selector, Value: value})
	if err, ok := p.fail[selector]; ok {
		return err
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.record("goto", "", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) WaitFor(ctx context.Context, selector string, state entities.ElementState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: "wait", Selector: selector, Value: string(state)})
	visible, attached := p.visible[selector], p.attached[selector]
	p.mu.Unlock()

	ok := false
	switch state {
	case entities.StateVisible:
		ok = visible
	case entities.StateHidden:
		ok = !visible
	case entities.StateAttached:
		ok = attached
	}
	if !ok {
		return fmt.Errorf("%w: %s not %s after %v", entities.ErrActionTimeout, selector, state, timeout)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.record("click", selector, "")
}

func (p *Page) Fill(ctx context.Context, selector string, value string) error {
	return p.record("fill", selector, value)
}

func (p *Page) SelectOption(ctx context.Context, selector string, option string) error {
	return p.record("select", selector, option)
}

func (p *Page) Check(ctx context.Context, selector string) error {
	return p.record("check", selector, "")
}

func (p *Page) Press(ctx context.Context, selector string, key string) error {
	return p.record("press", selector, key)
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	if err := p.record("text", selector, ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texts[selector], nil
}

func (p *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector], nil
}

func (p *Page) Frame(selector string) (interfaces.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	child, ok := p.frames[selector]
	if !ok {
		return nil, fmt.Errorf("no frame at %s", selector)
	}
	return child, nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := p.record("screenshot", "", path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("png"), 0644)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Session is a fake browser context handing out fake pages
type Session struct {
	mu        sync.Mutex
	pages     []*Page
	newPage   func() *Page
	closed    bool
	keptTrace bool
}

// NewSession - creates a session; newPage builds each tab (nil gives empty pages)
func NewSession(newPage func() *Page) *Session {
	if newPage == nil {
		newPage = NewPage
	}
	return &Session{newPage: newPage}
}

func (s *Session) NewPage(ctx context.Context) (interfaces.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.newPage()
	s.pages = append(s.pages, p)
	return p, nil
}

// Popup simulates the application opening a new tab
func (s *Session) Popup(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
}

func (s *Session) Pages() []interfaces.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.Page, 0, len(s.pages))
	for _, p := range s.pages {
		if !p.Closed() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) Close(keepTrace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		p.Close()
	}
	s.closed = true
	s.keptTrace = keepTrace
	return nil
}

// Closed reports whether Close was called and whether the trace was kept
func (s *Session) Closed() (closed bool, keptTrace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.keptTrace
}

// Browser is a fake browser process
type Browser struct {
	mu       sync.Mutex
	newPage  func() *Page
	sessions []*Session
	closed   bool
}

// NewBrowser - creates a fake browser whose sessions build pages with newPage
func NewBrowser(newPage func() *Page) *Browser {
	return &Browser{newPage: newPage}
}

func (b *Browser) NewSession(ctx context.Context, dirs interfaces.SessionArtifacts) (interfaces.BrowserSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := NewSession(b.newPage)
	b.sessions = append(b.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far
func (b *Browser) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var (
	_ interfaces.Page           = (*Page)(nil)
	_ interfaces.BrowserSession = (*Session)(nil)
	_ interfaces.Browser        = (*Browser)(nil)
)
