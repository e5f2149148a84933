package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment override, e.g. CRM_BROWSER_HEADLESS
const EnvPrefix = "CRM"

// Config is the effective run configuration
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	Data     DataConfig     `mapstructure:"data"`
	Results  ResultsConfig  `mapstructure:"results"`
	Locator  LocatorConfig  `mapstructure:"locator"`
	Log      LogConfig      `mapstructure:"log"`
	Run      RunConfig      `mapstructure:"run"`
}

type BrowserConfig struct {
	Driver      string        `mapstructure:"driver"`
	Headless    bool          `mapstructure:"headless"`
	SlowMo      time.Duration `mapstructure:"slow_mo"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	RecordVideo bool          `mapstructure:"record_video"`
	Trace       bool          `mapstructure:"trace"`
	Install     bool          `mapstructure:"install"`
	DriverPath  string        `mapstructure:"driver_path"`
	BinaryPath  string        `mapstructure:"binary_path"`
}

type PatternsConfig struct {
	File string `mapstructure:"file"`
}

type DataConfig struct {
	File string `mapstructure:"file"`
}

type ResultsConfig struct {
	Dir             string `mapstructure:"dir"`
	StepScreenshots bool   `mapstructure:"step_screenshots"`
}

type LocatorConfig struct {
	Cache bool `mapstructure:"cache"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RunConfig struct {
	Features    []string `mapstructure:"features"`
	Tags        string   `mapstructure:"tags"`
	Format      string   `mapstructure:"format"`
	Environment string   `mapstructure:"environment"`
}

// DefaultConfig - built-in values used when nothing overrides them
func DefaultConfig() Config {
	return Config{
		Browser: BrowserConfig{
			Driver:   "playwright",
			Headless: true,
			Timeout:  20 * time.Second,
			Width:    1280,
			Height:   720,
			Trace:    true,
		},
		Patterns: PatternsConfig{File: "patterns.yaml"},
		Data:     DataConfig{File: "testdata.yaml"},
		Results:  ResultsConfig{Dir: "results"},
		Locator:  LocatorConfig{Cache: true},
		Log:      LogConfig{Level: "info"},
		Run: RunConfig{
			Features: []string{"features"},
			Format:   "pretty",
		},
	}
}

// LoadOptions controls where configuration comes from
type LoadOptions struct {
	// ConfigFile is an explicit config path; when empty crm_automation.{yaml,json,toml}
	// is looked up in the working directory and silently skipped if absent.
	ConfigFile string
	// EnvFile is loaded into the process environment before reading CRM_* overrides.
	EnvFile string
	// Flags are bound as the highest-priority source; only flags the user set override.
	Flags *pflag.FlagSet
}

// Load returns the effective configuration after applying precedence:
// defaults < config file < .env / environment (CRM_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("crm_automation")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults so every key is known to AutomaticEnv
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("browser.driver", def.Browser.Driver)
	v.SetDefault("browser.headless", def.Browser.Headless)
	v.SetDefault("browser.slow_mo", def.Browser.SlowMo)
	v.SetDefault("browser.timeout", def.Browser.Timeout)
	v.SetDefault("browser.width", def.Browser.Width)
	v.SetDefault("browser.height", def.Browser.Height)
	v.SetDefault("browser.record_video", def.Browser.RecordVideo)
	v.SetDefault("browser.trace", def.Browser.Trace)
	v.SetDefault("browser.install", def.Browser.Install)
	v.SetDefault("browser.driver_path", def.Browser.DriverPath)
	v.SetDefault("browser.binary_path", def.Browser.BinaryPath)

	v.SetDefault("patterns.file", def.Patterns.File)
	v.SetDefault("data.file", def.Data.File)
	v.SetDefault("results.dir", def.Results.Dir)
	v.SetDefault("results.step_screenshots", def.Results.StepScreenshots)
	v.SetDefault("locator.cache", def.Locator.Cache)
	v.SetDefault("log.level", def.Log.Level)

	v.SetDefault("run.features", def.Run.Features)
	v.SetDefault("run.tags", def.Run.Tags)
	v.SetDefault("run.format", def.Run.Format)
	v.SetDefault("run.environment", def.Run.Environment)
}

// flagKeys maps CLI flag names onto config keys
var flagKeys = map[string]string{
	"driver":      "browser.driver",
	"headless":    "browser.headless",
	"slow-mo":     "browser.slow_mo",
	"timeout":     "browser.timeout",
	"video":       "browser.record_video",
	"trace":       "browser.trace",
	"install":     "browser.install",
	"driver-path": "browser.driver_path",
	"binary-path": "browser.binary_path",
	"patterns":    "patterns.file",
	"data":        "data.file",
	"results":     "results.dir",
	"step-shots":  "results.step_screenshots",
	"cache":       "locator.cache",
	"log-level":   "log.level",
	"features":    "run.features",
	"tags":        "run.tags",
	"format":      "run.format",
	"environment": "run.environment",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate - reports every invalid setting at once
func Validate(cfg Config) error {
	var err error

	switch strings.ToLower(cfg.Browser.Driver) {
	case "playwright", "selenium":
	default:
		err = multierr.Append(err, fmt.Errorf("browser.driver must be playwright or selenium, got %q", cfg.Browser.Driver))
	}
	if cfg.Browser.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("browser.timeout must be positive, got %v", cfg.Browser.Timeout))
	}
	if cfg.Browser.SlowMo < 0 {
		err = multierr.Append(err, fmt.Errorf("browser.slow_mo must not be negative, got %v", cfg.Browser.SlowMo))
	}
	if cfg.Patterns.File == "" {
		err = multierr.Append(err, errors.New("patterns.file is required"))
	}
	if _, parseErr := logrus.ParseLevel(cfg.Log.Level); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", parseErr))
	}

	return err
}

// NewLogger - builds the shared logger with the configured level
func NewLogger(cfg LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
