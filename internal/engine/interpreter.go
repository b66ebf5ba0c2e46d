// File: internal/engine/interpreter.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
	"github.com/xkilldash9x/stepwise/internal/workflow"
	"go.uber.org/zap"
)

// Interpreter executes single actions against a browser.
type Interpreter struct {
	browser Browser
	opts    Options
	deleter *BulkDeleter
	logger  *zap.Logger
}

// NewInterpreter builds an interpreter bound to one browser session.
func NewInterpreter(b Browser, opts Options) *Interpreter {
	opts = opts.withDefaults()
	return &Interpreter{
		browser: b,
		opts:    opts,
		deleter: NewBulkDeleter(opts.Engine.BulkDelete, opts.Logger, opts.Sleep),
		logger:  opts.Logger.Named("interpreter"),
	}
}

// Execute runs one action for rec. Values retrieved by the action are
// written to out. Nothing the action does stops the run: missing data and
// missing elements skip it, page errors fail it.
func (in *Interpreter) Execute(ctx context.Context, action workflow.Action, rec *taskdata.Record, out Output) (outcome Outcome) {
	log := in.logger.With(recordFields(rec)...).With(
		zap.Int("step", action.Step()),
		zap.String("action", string(action.Kind())),
		zap.String(observability.FieldDescription, action.Description()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while performing action.", zap.Any("panic", r), zap.Stack("stack"))
			outcome = failed(fmt.Errorf("%w: panic: %v", ErrInteractionFailure, r))
		}
	}()

	if w, ok := action.(*workflow.Wait); ok {
		return in.wait(ctx, w, log)
	}

	strategyName, template := action.Locator()
	if template == "" && action.NeedsElement() {
		log.Error("Locator value is missing for action; action skipped.")
		return skipped(errMissingLocator)
	}
	var locatorValue string
	if template != "" {
		v, err := taskdata.Resolve(template, taskdata.BuildContext(rec))
		if err != nil {
			log.Error("Missing key in context for formatting locator value.", zap.Error(err))
			return skipped(err)
		}
		locatorValue = v
		log = log.With(zap.String(observability.FieldLocator, locatorValue))
	}

	input, required := in.resolveInput(action.Input(), rec)
	if required && input == "" {
		log.Warn(fmt.Sprintf("Skipping action '%s' because required input value is missing.", action.Description()))
		return skipped(errMissingInput)
	}

	var el *browser.Element
	if action.NeedsElement() {
		strategy, err := browser.ParseStrategy(strategyName)
		if err != nil {
			log.Error("Unusable locator strategy; action skipped.", zap.Error(err))
			return skipped(err)
		}
		el, err = in.browser.WaitForElement(ctx, browser.Locator{Strategy: strategy, Value: locatorValue}, in.opts.Engine.ElementTimeout)
		if err != nil {
			log.Warn(fmt.Sprintf("Could not find element with locator '%s'.", locatorValue), zap.Error(err))
			return skipped(err)
		}
	}

	outcome = in.dispatch(ctx, action, el, input, out, log)
	switch outcome.Status {
	case Failed:
		log.Error(fmt.Sprintf("An error occurred while performing action '%s'.", action.Description()), zap.Error(outcome.Err))
	case Succeeded:
		log.Debug("Executed step.", zap.Bool("changed", outcome.Changed))
	}
	return outcome
}

// resolveInput returns the action's input value and whether one is declared.
func (in *Interpreter) resolveInput(spec *workflow.InputField, rec *taskdata.Record) (string, bool) {
	if spec == nil {
		return "", false
	}
	switch spec.Source {
	case workflow.SourceCommandLine:
		return in.opts.Params.Lookup(spec.FieldName), true
	case workflow.SourceInputFile:
		if rec == nil {
			return "", true
		}
		v, _ := rec.Field(spec.FieldName)
		return v, true
	case workflow.SourceFixed:
		return spec.Value, true
	default:
		return "", false
	}
}

func interactionErr(err error) Outcome {
	return failed(fmt.Errorf("%w: %w", ErrInteractionFailure, err))
}

func (in *Interpreter) dispatch(ctx context.Context, action workflow.Action, el *browser.Element, input string, out Output, log *zap.Logger) Outcome {
	b := in.browser
	switch a := action.(type) {
	case *workflow.Wait:
		return in.wait(ctx, a, log)

	case *workflow.SendKeys:
		if err := b.Clear(ctx, el); err != nil {
			return interactionErr(err)
		}
		if err := b.SendKeys(ctx, el, input); err != nil {
			return interactionErr(err)
		}
		log.Info("Sent keys to element.")
		return succeeded(true)

	case *workflow.SendKeysEnter:
		if err := b.PressEnter(ctx, el); err != nil {
			return interactionErr(err)
		}
		log.Info("Sent ENTER to element.")
		return succeeded(true)

	case *workflow.Click:
		click := b.Click
		if a.Script {
			click = b.ScriptClick
		}
		if err := click(ctx, el); err != nil {
			return interactionErr(err)
		}
		log.Info("Clicked element.", zap.Bool("script", a.Script))
		return succeeded(true)

	case *workflow.RetrieveValue:
		v, err := b.Value(ctx, el)
		if err != nil {
			return interactionErr(err)
		}
		out[a.Field()] = v
		log.Info("Retrieved value from element.", zap.String("field", a.Field()), zap.String("value", v))
		return succeeded(false)

	case *workflow.SelectDropdown:
		return in.selectDropdown(ctx, a, el, input, log)

	case *workflow.SwitchToNewTab:
		return in.switchToNewTab(ctx, log)

	case *workflow.SwitchToFrame:
		if err := b.SwitchToFrame(ctx, el); err != nil {
			return interactionErr(err)
		}
		log.Info("Switched to iframe.")
		return succeeded(true)

	case *workflow.DeleteRecords:
		deleted, attempted := in.deleter.Run(ctx, b, in.deleter.SpecFor(a))
		if deleted < attempted {
			return failed(fmt.Errorf("%w: deleted %d of %d records", ErrInteractionFailure, deleted, attempted))
		}
		return succeeded(deleted > 0)

	case *workflow.ToggleCheckbox:
		return in.toggleCheckbox(ctx, a, el, log)

	case *workflow.ClearTextBox:
		if err := b.Clear(ctx, el); err != nil {
			return interactionErr(err)
		}
		log.Info("Cleared text box.")
		return succeeded(true)

	default:
		return failed(fmt.Errorf("%w: %s", errUnsupportedAction, action.Kind()))
	}
}

func (in *Interpreter) wait(ctx context.Context, w *workflow.Wait, log *zap.Logger) Outcome {
	d := w.Duration
	if d <= 0 {
		d = in.opts.Engine.DefaultWait
	}
	log.Info(fmt.Sprintf("Waiting for %s...", d))
	if err := in.opts.Sleep(ctx, d); err != nil {
		return failed(err)
	}
	return succeeded(false)
}

// selectDropdown only selects when the current option differs from the
// desired one.
func (in *Interpreter) selectDropdown(ctx context.Context, a *workflow.SelectDropdown, el *browser.Element, input string, log *zap.Logger) Outcome {
	desired := a.Value
	if desired == "" {
		desired = input
	}
	if desired == "" {
		log.Warn("Dropdown value missing for action; action skipped.")
		return skipped(errMissingInput)
	}
	current, err := in.browser.SelectedText(ctx, el)
	if err != nil {
		return interactionErr(err)
	}
	if current == desired {
		log.Info(fmt.Sprintf("Dropdown already set to '%s'; no action taken.", desired))
		return succeeded(false)
	}
	if err := in.browser.SelectByText(ctx, el, desired); err != nil {
		return interactionErr(fmt.Errorf("could not select '%s': %w", desired, err))
	}
	log.Info(fmt.Sprintf("Selected '%s' from dropdown.", desired), zap.String("previous", current))
	return succeeded(true)
}

// toggleCheckbox checks with a direct click and unchecks through the
// element's label. Pages this runs against intercept the two directions
// differently, so the paths must stay distinct.
func (in *Interpreter) toggleCheckbox(ctx context.Context, a *workflow.ToggleCheckbox, el *browser.Element, log *zap.Logger) Outcome {
	checked, err := in.browser.IsChecked(ctx, el)
	if err != nil {
		return interactionErr(err)
	}

	switch {
	case a.Desired == workflow.Checked && !checked:
		if err := in.browser.ScrollIntoView(ctx, el); err != nil {
			return interactionErr(err)
		}
		if err := in.browser.Click(ctx, el); err != nil {
			return interactionErr(fmt.Errorf("could not check checkbox: %w", err))
		}
		log.Info("Checked the checkbox.")
		return succeeded(true)

	case a.Desired == workflow.Unchecked && checked:
		if err := in.browser.ScrollIntoView(ctx, el); err != nil {
			return interactionErr(err)
		}
		if err := in.browser.ClickLabelFor(ctx, el); err != nil {
			return interactionErr(fmt.Errorf("could not uncheck checkbox through its label: %w", err))
		}
		log.Info("Unchecked the checkbox using its label.")
		return succeeded(true)

	default:
		log.Info(fmt.Sprintf("Checkbox is already in state '%s'. No action needed.", a.Desired))
		return succeeded(false)
	}
}

// switchToNewTab polls for a tab other than the current one and moves the
// session onto it. When none shows up the session stays where it is.
func (in *Interpreter) switchToNewTab(ctx context.Context, log *zap.Logger) Outcome {
	original := in.browser.CurrentHandle()
	log.Info("Looking for a new tab.", zap.String("original_handle", original))

	attempts := int(in.opts.Browser.NewTabTimeout/in.opts.PollInterval) + 1
	for i := 0; i < attempts; i++ {
		handles, err := in.browser.Handles(ctx)
		if err != nil && ctx.Err() != nil {
			return failed(ctx.Err())
		}
		for _, h := range handles {
			if h == original {
				continue
			}
			if err := in.browser.SwitchToHandle(ctx, h); err != nil {
				return interactionErr(err)
			}
			log.Info("Switched to the new tab.", zap.String("handle", h))
			return succeeded(true)
		}
		if i < attempts-1 {
			if err := in.opts.Sleep(ctx, in.opts.PollInterval); err != nil {
				return failed(err)
			}
		}
	}
	log.Warn("New tab not found. Staying on the original tab.")
	return succeeded(false)
}

// IsUnsupported reports whether an outcome came from an action kind the
// interpreter has no handler for.
func IsUnsupported(o Outcome) bool {
	return errors.Is(o.Err, errUnsupportedAction)
}
