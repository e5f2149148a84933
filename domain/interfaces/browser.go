package interfaces

import (
	"context"
	"time"

	"crm_automation/domain/entities"
)

// Browser is a launched browser process that hands out isolated sessions
type Browser interface {
	// NewSession opens a fresh browser context; artifacts are written under dirs
	NewSession(ctx context.Context, dirs SessionArtifacts) (BrowserSession, error)

	// Close shuts the browser down
	Close() error
}

// SessionArtifacts tells a session where to put video and trace output
type SessionArtifacts struct {
	VideoDir  string
	TracePath string
}

// BrowserSession is one isolated context (cookies, tabs) used by a single scenario
type BrowserSession interface {
	// NewPage opens a new tab
	NewPage(ctx context.Context) (Page, error)

	// Pages returns every open tab, including popups opened by the application
	Pages() []Page

	// Close stops tracing (keeping the archive when keepTrace is set) and closes all tabs
	Close(keepTrace bool) error
}

// Page is a handle on a tab or a frame inside it. Selectors are XPath or CSS.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string

	// WaitFor blocks until selector reaches state; timeouts wrap entities.ErrActionTimeout
	WaitFor(ctx context.Context, selector string, state entities.ElementState, timeout time.Duration) error

	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector string, value string) error
	SelectOption(ctx context.Context, selector string, option string) error
	Check(ctx context.Context, selector string) error
	Press(ctx context.Context, selector string, key string) error
	TextContent(ctx context.Context, selector string) (string, error)
	IsVisible(ctx context.Context, selector string) (bool, error)

	// Frame returns a page scoped to the iframe matched by selector
	Frame(selector string) (Page, error)

	// Screenshot writes a PNG of the tab to path
	Screenshot(ctx context.Context, path string) error

	Close() error
}
