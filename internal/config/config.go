// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	// Run gets its marching orders from CLI flags, not the config file.
	Run RunConfig `mapstructure:"run" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how browser sessions are created.
// When RemoteURL is set the session attaches to an already running browser
// through its DevTools endpoint; otherwise a local Chrome is launched.
type BrowserConfig struct {
	RemoteURL          string        `mapstructure:"remote_url" yaml:"remote_url"`
	Headless           bool          `mapstructure:"headless" yaml:"headless"`
	Args               []string      `mapstructure:"args" yaml:"args"`
	WindowWidth        int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight       int           `mapstructure:"window_height" yaml:"window_height"`
	StartupTimeout     time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostNavigationWait time.Duration `mapstructure:"post_navigation_wait" yaml:"post_navigation_wait"`
	NewTabTimeout      time.Duration `mapstructure:"new_tab_timeout" yaml:"new_tab_timeout"`
	Debug              bool          `mapstructure:"debug" yaml:"debug"`
}

// EngineConfig tunes the action interpreter and the subtask runner.
type EngineConfig struct {
	ElementTimeout    time.Duration    `mapstructure:"element_timeout" yaml:"element_timeout"`
	DefaultWait       time.Duration    `mapstructure:"default_wait" yaml:"default_wait"`
	DefaultResumeStep int              `mapstructure:"default_resume_step" yaml:"default_resume_step"`
	ActionsPerSecond  float64          `mapstructure:"actions_per_second" yaml:"actions_per_second"`
	BulkDelete        BulkDeleteConfig `mapstructure:"bulk_delete" yaml:"bulk_delete"`
}

// BulkDeleteConfig holds the selectors and waits used when clearing a
// listing table row by row. Individual actions may override any of them.
type BulkDeleteConfig struct {
	RowsSelector     string        `mapstructure:"rows_selector" yaml:"rows_selector"`
	PrimarySelector  string        `mapstructure:"primary_selector" yaml:"primary_selector"`
	FallbackSelector string        `mapstructure:"fallback_selector" yaml:"fallback_selector"`
	ConfirmSelector  string        `mapstructure:"confirm_selector" yaml:"confirm_selector"`
	DeleteTimeout    time.Duration `mapstructure:"delete_timeout" yaml:"delete_timeout"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	AfterDeleteWait  time.Duration `mapstructure:"after_delete_wait" yaml:"after_delete_wait"`
	AfterConfirmWait time.Duration `mapstructure:"after_confirm_wait" yaml:"after_confirm_wait"`
}

// DatabaseConfig holds the database connection details. Run history is only
// persisted when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReportConfig controls the workbook report and the functional summary.
type ReportConfig struct {
	InputSheet  string `mapstructure:"input_sheet" yaml:"input_sheet"`
	OutputSheet string `mapstructure:"output_sheet" yaml:"output_sheet"`
	SummaryFile string `mapstructure:"summary_file" yaml:"summary_file"`
}

// RunConfig holds settings populated from CLI flags for a specific batch run.
type RunConfig struct {
	Input    string `mapstructure:"input"`
	Sheet    string `mapstructure:"sheet"`
	Actions  string `mapstructure:"actions"`
	Output   string `mapstructure:"output"`
	Summary  string `mapstructure:"summary"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	URL      string `mapstructure:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stepwise")
	v.SetDefault("logger.log_file", "logs/automation_log.json")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 800)
	v.SetDefault("browser.window_height", 600)
	v.SetDefault("browser.startup_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_navigation_wait", "5s")
	v.SetDefault("browser.new_tab_timeout", "10s")
	v.SetDefault("browser.debug", false)

	// -- Engine --
	v.SetDefault("engine.element_timeout", "10s")
	v.SetDefault("engine.default_wait", "10s")
	v.SetDefault("engine.default_resume_step", 20)
	v.SetDefault("engine.actions_per_second", 0)
	v.SetDefault("engine.bulk_delete.rows_selector", "#ServersTable > table.x1o > tbody > tr")
	v.SetDefault("engine.bulk_delete.primary_selector", "#ServersTable > table > tbody > tr > td:nth-child(5) > a")
	v.SetDefault("engine.bulk_delete.fallback_selector", "#ServersTable > table > tbody > tr > td:nth-child(4) > a")
	v.SetDefault("engine.bulk_delete.confirm_selector", "#deleteForm > table > tbody > tr > td > button:nth-child(3)")
	v.SetDefault("engine.bulk_delete.delete_timeout", "120s")
	v.SetDefault("engine.bulk_delete.confirm_timeout", "60s")
	v.SetDefault("engine.bulk_delete.after_delete_wait", "5s")
	v.SetDefault("engine.bulk_delete.after_confirm_wait", "10s")

	// -- Report --
	v.SetDefault("report.input_sheet", "Input Details")
	v.SetDefault("report.output_sheet", "Sheet1")
	v.SetDefault("report.summary_file", "logs/functional_log.txt")
}

// Load unmarshals the configuration held by v, expands home-relative paths,
// and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every file system path the run touches.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Logger.LogFile,
		&c.Report.SummaryFile,
		&c.Run.Input,
		&c.Run.Actions,
		&c.Run.Output,
		&c.Run.Summary,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Engine.ElementTimeout <= 0 {
		return fmt.Errorf("engine.element_timeout must be a positive duration")
	}
	if c.Engine.DefaultWait < 0 {
		return fmt.Errorf("engine.default_wait must not be negative")
	}
	if c.Engine.DefaultResumeStep < 1 {
		return fmt.Errorf("engine.default_resume_step must be at least 1")
	}
	if c.Engine.ActionsPerSecond < 0 {
		return fmt.Errorf("engine.actions_per_second must not be negative")
	}
	if c.Browser.NewTabTimeout <= 0 {
		return fmt.Errorf("browser.new_tab_timeout must be a positive duration")
	}
	if err := c.Engine.BulkDelete.Validate(); err != nil {
		return fmt.Errorf("engine.bulk_delete configuration invalid: %w", err)
	}
	if c.Browser.RemoteURL != "" && !strings.Contains(c.Browser.RemoteURL, "://") {
		return fmt.Errorf("browser.remote_url must include a scheme (ws:// or http://)")
	}
	return nil
}

// Validate checks the bulk delete selectors and waits.
func (b *BulkDeleteConfig) Validate() error {
	if b.RowsSelector == "" || b.PrimarySelector == "" || b.ConfirmSelector == "" {
		return fmt.Errorf("rows_selector, primary_selector and confirm_selector are required")
	}
	if b.DeleteTimeout <= 0 || b.ConfirmTimeout <= 0 {
		return fmt.Errorf("delete_timeout and confirm_timeout must be positive durations")
	}
	return nil
}
