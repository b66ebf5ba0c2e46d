// File: internal/engine/ports.go
package engine

import (
	"context"
	"time"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
	"go.uber.org/zap"
)

// Browser is the page automation surface the engine drives. browser.Session
// is the production implementation.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitForElement(ctx context.Context, loc browser.Locator, timeout time.Duration) (*browser.Element, error)
	WaitClickable(ctx context.Context, loc browser.Locator, timeout time.Duration) (*browser.Element, error)
	CountElements(ctx context.Context, loc browser.Locator) (int, error)

	Click(ctx context.Context, el *browser.Element) error
	ScriptClick(ctx context.Context, el *browser.Element) error
	SendKeys(ctx context.Context, el *browser.Element, text string) error
	Clear(ctx context.Context, el *browser.Element) error
	PressEnter(ctx context.Context, el *browser.Element) error
	Value(ctx context.Context, el *browser.Element) (string, error)
	SelectedText(ctx context.Context, el *browser.Element) (string, error)
	SelectByText(ctx context.Context, el *browser.Element, text string) error
	IsChecked(ctx context.Context, el *browser.Element) (bool, error)
	ScrollIntoView(ctx context.Context, el *browser.Element) error
	ClickLabelFor(ctx context.Context, el *browser.Element) error
	SwitchToFrame(ctx context.Context, el *browser.Element) error

	CurrentHandle() string
	// Handles lists the session's own tabs, never tabs that were open
	// before the session attached.
	Handles(ctx context.Context) ([]string, error)
	SwitchToHandle(ctx context.Context, handle string) error

	Close() error
}

var _ Browser = (*browser.Session)(nil)

// SessionFactory opens a fresh browser session.
type SessionFactory func(ctx context.Context) (Browser, error)

// Params are the run parameters available to command_line inputs.
type Params struct {
	Username string
	Password string
	URL      string
}

// Lookup returns the parameter named by a command_line input field.
func (p Params) Lookup(name string) string {
	switch name {
	case "username":
		return p.Username
	case "password":
		return p.Password
	case "url":
		return p.URL
	default:
		return ""
	}
}

// Output accumulates values retrieved during one subtask run.
type Output map[string]string

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options carries the configuration shared by the interpreter, the runner
// and the batch driver.
type Options struct {
	Engine  config.EngineConfig
	Browser config.BrowserConfig
	Params  Params
	Logger  *zap.Logger
	// Sleep replaces real waits, mainly in tests.
	Sleep SleepFunc
	// PollInterval is how often new tabs are looked for.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	return o
}

// recordFields identifies a record on every log line written for it.
func recordFields(rec *taskdata.Record) []zap.Field {
	if rec == nil {
		return nil
	}
	return []zap.Field{
		zap.String(observability.FieldSubtaskID, rec.SubtaskID),
		zap.String(observability.FieldTaskName, rec.TaskName),
		zap.String(observability.FieldConfiguration, rec.ConfigurationName),
	}
}
