package entities

import "time"

// ActionType represents the kind of browser action performed against an element
type ActionType string

const (
	ActionNavigate    ActionType = "navigate"
	ActionClick       ActionType = "click"
	ActionFill        ActionType = "fill"
	ActionSelect      ActionType = "select"
	ActionCheck       ActionType = "check"
	ActionPress       ActionType = "press"
	ActionWaitVisible ActionType = "wait_visible"
	ActionWaitHidden  ActionType = "wait_hidden"
	ActionAssertText  ActionType = "assert_text"
	ActionSwitchFrame ActionType = "switch_frame"
	ActionMainFrame   ActionType = "main_frame"
	ActionOpenTab     ActionType = "open_tab"
	ActionSwitchTab   ActionType = "switch_tab"
	ActionCloseTab    ActionType = "close_tab"
	ActionScreenshot  ActionType = "screenshot"
)

// ElementState is the precondition an element must satisfy before an action runs
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
)

// Action represents a single scripted step addressed by a symbolic path
type Action struct {
	Type        ActionType `json:"type" yaml:"type"`
	Target      string     `json:"target,omitempty" yaml:"target,omitempty"`
	Value       string     `json:"value,omitempty" yaml:"value,omitempty"`
	Index       int        `json:"index,omitempty" yaml:"index,omitempty"`
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
	Params      Params     `json:"params,omitempty" yaml:"params,omitempty"`
	Optional    bool       `json:"optional,omitempty" yaml:"optional,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Outcome records what an action actually resolved and whether the fallback branch ran
type Outcome struct {
	Action       ActionType      `json:"action"`
	Locator      ResolvedLocator `json:"locator"`
	FallbackUsed bool            `json:"fallback_used"`
	Retried      bool            `json:"retried"`
	Duration     time.Duration   `json:"duration"`
}
