package browser

import (
	"errors"
	"fmt"
	"testing"

	"crm_automation/domain/entities"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
)

func TestPlaywrightSelectorTagsXPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//input[@name='username']", "xpath=//input[@name='username']"},
		{"(//button)[2]", "xpath=(//button)[2]"},
		{"#username", "#username"},
		{"input[name=username]", "input[name=username]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, playwrightSelector(tt.in))
		})
	}
}

func TestSeleniumSelectorStrategy(t *testing.T) {
	tests := []struct {
		in    string
		by    string
		value string
	}{
		{"//input[@name='username']", selenium.ByXPATH, "//input[@name='username']"},
		{"(//button)[2]", selenium.ByXPATH, "(//button)[2]"},
		{"xpath=//a", selenium.ByXPATH, "//a"},
		{"css=div.slds-spinner", selenium.ByCSSSelector, "div.slds-spinner"},
		{"#username", selenium.ByCSSSelector, "#username"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			by, value := seleniumSelector(tt.in)
			assert.Equal(t, tt.by, by)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'Qualified'", xpathLiteral("Qualified"))
	assert.Equal(t, `"O'Brien"`, xpathLiteral("O'Brien"))
	assert.Equal(t, `concat('say "hi" to O', "'", 'Brien')`, xpathLiteral(`say "hi" to O'Brien`))
}

func TestSeleniumKey(t *testing.T) {
	assert.Equal(t, selenium.EnterKey, seleniumKey("Enter"))
	assert.Equal(t, "a", seleniumKey("a"))
}

func TestMapErrorTranslatesTimeouts(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(fmt.Errorf("locator.click: %w", playwright.ErrTimeout))
	assert.ErrorIs(t, err, entities.ErrActionTimeout)

	other := errors.New("element is detached")
	assert.Equal(t, other, mapError(other))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("netscape", Options{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netscape")
}
