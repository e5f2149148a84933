package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout is how long an element may take to reach the required state
const DefaultTimeout = 20 * time.Second

// Facade bridges symbolic element paths to browser actions.
// Every element action resolves the locator, waits for a precondition, then acts;
// a timeout triggers exactly one retry with the template's fallback.
type Facade struct {
	resolver interfaces.Resolver
	redactor interfaces.Redactor
	logger   *logrus.Logger
	timeout  time.Duration
}

// NewFacade - creates a facade; a zero timeout selects DefaultTimeout
func NewFacade(resolver interfaces.Resolver, redactor interfaces.Redactor, logger *logrus.Logger, timeout time.Duration) *Facade {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Facade{
		resolver: resolver,
		redactor: redactor,
		logger:   logger,
		timeout:  timeout,
	}
}

// Timeout - returns the per-element wait budget
func (f *Facade) Timeout() time.Duration {
	return f.timeout
}

// Navigate - opens url in page
func (f *Facade) Navigate(ctx context.Context, page interfaces.Page, url string) error {
	f.logger.WithField("url", url).Info("Navigating")
	if err := page.Goto(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Click - clicks the element once it is visible
func (f *Facade) Click(ctx context.Context, page interfaces.Page, path string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionClick, path, params, entities.StateVisible, func(selector string) error {
		return page.Click(ctx, selector)
	})
}

// Fill - replaces the element's value once it is visible
func (f *Facade) Fill(ctx context.Context, page interfaces.Page, path string, value string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionFill, path, params, entities.StateVisible, func(selector string) error {
		f.logger.WithFields(logrus.Fields{
			"template": path,
			"value":    f.redactor.Mask(path, selector, value),
		}).Debug("Filling")
		return page.Fill(ctx, selector, value)
	})
}

// SelectOption - picks an option of a native select by value or label
func (f *Facade) SelectOption(ctx context.Context, page interfaces.Page, path string, option string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionSelect, path, params, entities.StateVisible, func(selector string) error {
		return page.SelectOption(ctx, selector, option)
	})
}

// Check - ticks a checkbox or radio
func (f *Facade) Check(ctx context.Context, page interfaces.Page, path string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionCheck, path, params, entities.StateVisible, func(selector string) error {
		return page.Check(ctx, selector)
	})
}

// Press - sends a key such as "Enter" to the element
func (f *Facade) Press(ctx context.Context, page interfaces.Page, path string, key string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionPress, path, params, entities.StateVisible, func(selector string) error {
		return page.Press(ctx, selector, key)
	})
}

// WaitVisible - blocks until the element is visible
func (f *Facade) WaitVisible(ctx context.Context, page interfaces.Page, path string, params entities.Params) (entities.Outcome, error) {
	return f.perform(ctx, page, entities.ActionWaitVisible, path, params, entities.StateVisible, nil)
}

// WaitHidden - blocks until the element is hidden or detached; no fallback applies
func (f *Facade) WaitHidden(ctx context.Context, page interfaces.Page, path string, params entities.Params) (entities.Outcome, error) {
	start := time.Now()
	loc, err := f.resolver.Resolve(ctx, path, params)
	if err != nil {
		return entities.Outcome{Action: entities.ActionWaitHidden}, err
	}
	outcome := entities.Outcome{Action: entities.ActionWaitHidden, Locator: loc, FallbackUsed: loc.FallbackUsed}

	if err := page.WaitFor(ctx, loc.Selector, entities.StateHidden, f.timeout); err != nil {
		return outcome, &entities.ActionError{Action: entities.ActionWaitHidden, Path: path, Selector: loc.Selector, Err: err}
	}
	outcome.Duration = time.Since(start)
	return outcome, nil
}

// Text - returns the element's text content
func (f *Facade) Text(ctx context.Context, page interfaces.Page, path string, params entities.Params) (string, entities.Outcome, error) {
	var text string
	outcome, err := f.perform(ctx, page, entities.ActionAssertText, path, params, entities.StateAttached, func(selector string) error {
		var err error
		text, err = page.TextContent(ctx, selector)
		return err
	})
	return text, outcome, err
}

// IsVisible - reports whether the element is visible right now, without waiting
func (f *Facade) IsVisible(ctx context.Context, page interfaces.Page, path string, params entities.Params) (bool, error) {
	loc, err := f.resolver.Resolve(ctx, path, params)
	if err != nil {
		return false, err
	}
	return page.IsVisible(ctx, loc.Selector)
}

// SwitchFrame - waits for the iframe and returns a page scoped to it.
// The caller keeps the parent page to switch back.
func (f *Facade) SwitchFrame(ctx context.Context, page interfaces.Page, path string, params entities.Params) (interfaces.Page, entities.Outcome, error) {
	var frame interfaces.Page
	outcome, err := f.perform(ctx, page, entities.ActionSwitchFrame, path, params, entities.StateAttached, func(selector string) error {
		var err error
		frame, err = page.Frame(selector)
		return err
	})
	if err != nil {
		return nil, outcome, err
	}
	return frame, outcome, nil
}

// Screenshot - captures the page to path
func (f *Facade) Screenshot(ctx context.Context, page interfaces.Page, path string) error {
	if err := page.Screenshot(ctx, path); err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}
	f.logger.WithField("path", path).Debug("Saved screenshot")
	return nil
}

// perform - resolve, wait, act; on timeout retry once with the fallback locator
func (f *Facade) perform(ctx context.Context, page interfaces.Page, action entities.ActionType, path string, params entities.Params, state entities.ElementState, act func(selector string) error) (entities.Outcome, error) {
	start := time.Now()
	outcome := entities.Outcome{Action: action}

	loc, err := f.resolver.Resolve(ctx, path, params)
	if err != nil {
		return outcome, err
	}
	outcome.Locator = loc
	outcome.FallbackUsed = loc.FallbackUsed

	log := f.logger.WithFields(logrus.Fields{
		"action":   action,
		"template": path,
		"selector": loc.Selector,
	})
	log.Info("Performing action")

	firstErr := f.attempt(ctx, page, loc.Selector, state, act)
	if firstErr == nil {
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	if !errors.Is(firstErr, entities.ErrActionTimeout) || loc.FallbackUsed {
		return outcome, &entities.ActionError{Action: action, Path: path, Selector: loc.Selector, Err: firstErr}
	}

	fallback, err := f.resolver.ResolveFallback(ctx, path, params)
	if err != nil {
		if errors.Is(err, entities.ErrNoFallback) || errors.Is(err, entities.ErrNotFound) {
			return outcome, &entities.ActionError{Action: action, Path: path, Selector: loc.Selector, Err: firstErr}
		}
		return outcome, fmt.Errorf("failed to resolve fallback for %s: %w", path, err)
	}

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	log.WithField("fallback", fallback.Selector).Warnf("Timed out, retrying with fallback: %v", firstErr)

	outcome.Locator = fallback
	outcome.FallbackUsed = true
	outcome.Retried = true

	if err := f.attempt(ctx, page, fallback.Selector, state, act); err != nil {
		return outcome, &entities.ActionError{
			Action:        action,
			Path:          path,
			Selector:      fallback.Selector,
			FallbackTried: true,
			Err:           err,
		}
	}

	outcome.Duration = time.Since(start)
	return outcome, nil
}

func (f *Facade) attempt(ctx context.Context, page interfaces.Page, selector string, state entities.ElementState, act func(selector string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := page.WaitFor(ctx, selector, state, f.timeout); err != nil {
		return err
	}
	if act == nil {
		return nil
	}
	return act(selector)
}
