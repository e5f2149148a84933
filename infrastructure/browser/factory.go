package browser

import (
	"fmt"
	"strings"

	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const (
	DriverPlaywright = "playwright"
	DriverSelenium   = "selenium"
)

// New - launches the browser backend named by driver
func New(driver string, opts Options, logger *logrus.Logger) (interfaces.Browser, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverPlaywright:
		return NewPlaywrightBrowser(opts, logger)
	case DriverSelenium:
		return NewSeleniumBrowser(opts, logger)
	default:
		return nil, fmt.Errorf("unknown browser driver %q (expected %s or %s)", driver, DriverPlaywright, DriverSelenium)
	}
}
