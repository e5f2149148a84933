// Package session tracks which tab and frame a scenario is currently driving.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crm_automation/application/actions"
	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ErrNoPage is returned when every tab of the session has been closed
var ErrNoPage = errors.New("no open tab")

// Session owns one browser context and the explicit focus (tab plus frame stack)
// that the facade's actions run against.
type Session struct {
	browser interfaces.BrowserSession
	facade  *actions.Facade
	logger  *logrus.Logger

	mu     sync.Mutex
	tab    interfaces.Page
	frames []interfaces.Page
}

// New - wraps a browser context and opens its first tab
func New(ctx context.Context, browser interfaces.BrowserSession, facade *actions.Facade, logger *logrus.Logger) (*Session, error) {
	page, err := browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open first tab: %w", err)
	}
	return &Session{
		browser: browser,
		facade:  facade,
		logger:  logger,
		tab:     page,
	}, nil
}

// Facade - returns the action facade bound to this session
func (s *Session) Facade() *actions.Facade {
	return s.facade
}

// Page - returns the innermost frame if one was entered, otherwise the current tab
func (s *Session) Page() (interfaces.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) > 0 {
		return s.frames[len(s.frames)-1], nil
	}
	if s.tab == nil {
		return nil, ErrNoPage
	}
	return s.tab, nil
}

// Tab - returns the current top-level tab regardless of frame focus
func (s *Session) Tab() (interfaces.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tab == nil {
		return nil, ErrNoPage
	}
	return s.tab, nil
}

// TabCount - number of open tabs, including popups
func (s *Session) TabCount() int {
	return len(s.browser.Pages())
}

// OpenTab - opens a new tab, focuses it and navigates to url when set
func (s *Session) OpenTab(ctx context.Context, url string) error {
	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}

	s.mu.Lock()
	s.tab = page
	s.frames = nil
	s.mu.Unlock()

	if url == "" {
		return nil
	}
	return s.facade.Navigate(ctx, page, url)
}

// SwitchTab - focuses the tab at index (0 is the first opened) and leaves any frame
func (s *Session) SwitchTab(index int) error {
	pages := s.browser.Pages()
	if index < 0 || index >= len(pages) {
		return fmt.Errorf("tab index %d out of range (open tabs: %d)", index, len(pages))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = pages[index]
	s.frames = nil

	s.logger.WithField("tab", index).Debug("Switched tab")
	return nil
}

// CloseTab - closes the current tab and focuses the most recently opened remaining one
func (s *Session) CloseTab() error {
	s.mu.Lock()
	tab := s.tab
	s.mu.Unlock()

	if tab == nil {
		return ErrNoPage
	}
	if err := tab.Close(); err != nil {
		return fmt.Errorf("failed to close tab: %w", err)
	}

	var next interfaces.Page
	for _, p := range s.browser.Pages() {
		if p != tab {
			next = p
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = next
	s.frames = nil
	return nil
}

// EnterFrame - waits for the iframe at path inside the current focus and focuses it
func (s *Session) EnterFrame(ctx context.Context, path string, params entities.Params) (entities.Outcome, error) {
	page, err := s.Page()
	if err != nil {
		return entities.Outcome{Action: entities.ActionSwitchFrame}, err
	}

	frame, outcome, err := s.facade.SwitchFrame(ctx, page, path, params)
	if err != nil {
		return outcome, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return outcome, nil
}

// ParentFrame - leaves the innermost frame
func (s *Session) ParentFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// MainFrame - returns focus to the top-level document of the current tab
func (s *Session) MainFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// FrameDepth - how many frames deep the focus currently is
func (s *Session) FrameDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Screenshot - captures the current tab to path
func (s *Session) Screenshot(ctx context.Context, path string) error {
	tab, err := s.Tab()
	if err != nil {
		return err
	}
	return s.facade.Screenshot(ctx, tab, path)
}

// Close - tears down the browser context; the trace is kept when keepTrace is set
func (s *Session) Close(keepTrace bool) error {
	s.mu.Lock()
	s.tab = nil
	s.frames = nil
	s.mu.Unlock()

	return s.browser.Close(keepTrace)
}
