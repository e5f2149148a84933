package cli

import (
	"errors"
	"fmt"
	"os"

	"crm_automation/application/actions"
	"crm_automation/application/locator"
	"crm_automation/domain/interfaces"
	"crm_automation/infrastructure/browser"
	"crm_automation/infrastructure/config"
	"crm_automation/infrastructure/patterns"
	"crm_automation/infrastructure/security"
	"crm_automation/infrastructure/storage"

	"github.com/sirupsen/logrus"
)

// app holds the components shared by every command
type app struct {
	cfg      config.Config
	logger   *logrus.Logger
	store    *patterns.Store
	resolver *locator.Resolver
	facade   *actions.Facade
	data     *storage.TestData
}

// newApp - loads and validates the pattern repository, then wires resolver and facade
func newApp(cfg config.Config, logger *logrus.Logger) (*app, error) {
	store := patterns.NewStore(logger)
	if err := store.Load(cfg.Patterns.File); err != nil {
		return nil, err
	}
	if err := store.Validate(); err != nil {
		return nil, fmt.Errorf("pattern repository %s is inconsistent: %w", cfg.Patterns.File, err)
	}

	resolver := locator.NewResolver(store, logger, locator.WithCache(cfg.Locator.Cache))
	facade := actions.NewFacade(resolver, security.NewRedactor(logger), logger, cfg.Browser.Timeout)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		resolver: resolver,
		facade:   facade,
	}, nil
}

// loadData - loads the test data file; a missing default file is tolerated
func (a *app) loadData(required bool) error {
	data := storage.NewTestData(a.logger)
	if err := data.Load(a.cfg.Data.File); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			a.logger.WithField("file", a.cfg.Data.File).Debug("No test data file, continuing without")
			a.data = data
			return nil
		}
		return err
	}
	a.data = data
	return nil
}

// launchBrowser - starts the configured driver
func (a *app) launchBrowser() (interfaces.Browser, error) {
	return browser.New(a.cfg.Browser.Driver, a.browserOptions(), a.logger)
}

func (a *app) browserOptions() browser.Options {
	b := a.cfg.Browser
	return browser.Options{
		Headless:    b.Headless,
		SlowMo:      b.SlowMo,
		Width:       b.Width,
		Height:      b.Height,
		RecordVideo: b.RecordVideo,
		Trace:       b.Trace,
		Install:     b.Install,
		DriverPath:  b.DriverPath,
		BinaryPath:  b.BinaryPath,
	}
}
