// File: internal/workflow/action.go
package workflow

import (
	"time"
)

// Kind names an action type as written in the action configuration.
type Kind string

const (
	KindWait           Kind = "wait"
	KindSendKeys       Kind = "send_keys"
	KindSendKeysEnter  Kind = "send_keys_enter"
	KindClick          Kind = "click"
	KindScriptClick    Kind = "script_click"
	KindRetrieveValue  Kind = "retrieve_value"
	KindSelectDropdown Kind = "select_dropdown"
	KindSwitchToNewTab Kind = "switch_to_new_tab"
	KindSwitchToFrame  Kind = "switch_to_frame"
	KindDeleteRecords  Kind = "delete_printer_records"
	KindToggleCheckbox Kind = "toggle_checkbox"
	KindClearTextBox   Kind = "clear_text_box"
)

// InputSource says where an action's input value comes from.
type InputSource string

const (
	SourceCommandLine InputSource = "command_line"
	SourceInputFile   InputSource = "input_file"
	SourceFixed       InputSource = "fixed"
)

// InputField declares the input an action requires.
type InputField struct {
	Source InputSource
	// FieldName selects a run parameter (username, password, url) for
	// command_line inputs and a record column for input_file inputs.
	FieldName string
	// Value is the literal used by fixed inputs.
	Value string
}

// DefaultOutputField is where RetrieveValue stores its result when the
// action does not name a field.
const DefaultOutputField = "retrieved_value"

// Action is one step of a workflow. The set of implementations is closed;
// the engine switches on the concrete type.
type Action interface {
	Step() int
	Kind() Kind
	Description() string
	// Locator returns the strategy name and the unresolved value template.
	Locator() (strategy, template string)
	// Input returns the declared input, or nil when none is required.
	Input() *InputField
	// NeedsElement reports whether the action acts on a located element.
	NeedsElement() bool
	sealed()
}

// Base carries the fields every action has.
type Base struct {
	StepNo       int
	LocatorType  string
	LocatorValue string
	InputSpec    *InputField
	Desc         string
}

func (b *Base) Step() int                 { return b.StepNo }
func (b *Base) Description() string       { return b.Desc }
func (b *Base) Locator() (string, string) { return b.LocatorType, b.LocatorValue }
func (b *Base) Input() *InputField        { return b.InputSpec }
func (b *Base) NeedsElement() bool        { return true }
func (b *Base) sealed()                   {}

// Wait pauses the run. A zero Duration means the engine default.
type Wait struct {
	Base
	Duration time.Duration
}

func (*Wait) Kind() Kind         { return KindWait }
func (*Wait) NeedsElement() bool { return false }

// SendKeys clears a field and types the resolved input into it.
type SendKeys struct{ Base }

func (*SendKeys) Kind() Kind { return KindSendKeys }

// SendKeysEnter sends an Enter keystroke to the element.
type SendKeysEnter struct{ Base }

func (*SendKeysEnter) Kind() Kind { return KindSendKeysEnter }

// Click clicks the element. Script clicks dispatch the click from page
// script, for controls whose direct click is intercepted by an overlay.
type Click struct {
	Base
	Script bool
}

func (c *Click) Kind() Kind {
	if c.Script {
		return KindScriptClick
	}
	return KindClick
}

// RetrieveValue reads the element's value into the run output.
type RetrieveValue struct {
	Base
	OutputField string
}

func (*RetrieveValue) Kind() Kind { return KindRetrieveValue }

// Field returns the output key, falling back to DefaultOutputField.
func (r *RetrieveValue) Field() string {
	if r.OutputField == "" {
		return DefaultOutputField
	}
	return r.OutputField
}

// SelectDropdown selects an option by its visible text. Value takes
// precedence over the resolved input.
type SelectDropdown struct {
	Base
	Value string
}

func (*SelectDropdown) Kind() Kind { return KindSelectDropdown }

// SwitchToNewTab moves focus to a tab opened by a previous action.
type SwitchToNewTab struct{ Base }

func (*SwitchToNewTab) Kind() Kind         { return KindSwitchToNewTab }
func (*SwitchToNewTab) NeedsElement() bool { return false }

// SwitchToFrame scopes subsequent lookups to the frame element's document.
type SwitchToFrame struct{ Base }

func (*SwitchToFrame) Kind() Kind { return KindSwitchToFrame }

// DeleteRecords clears a listing table row by row. Empty selectors and zero
// durations fall back to the engine's bulk delete configuration.
type DeleteRecords struct {
	Base
	RowsSelector     string
	PrimarySelector  string
	FallbackSelector string
	ConfirmSelector  string
	DeleteTimeout    time.Duration
	ConfirmTimeout   time.Duration
}

func (*DeleteRecords) Kind() Kind         { return KindDeleteRecords }
func (*DeleteRecords) NeedsElement() bool { return false }

// CheckState is the desired state of a checkbox.
type CheckState string

const (
	Checked   CheckState = "check"
	Unchecked CheckState = "uncheck"
)

// ToggleCheckbox drives a checkbox to the desired state.
type ToggleCheckbox struct {
	Base
	Desired CheckState
}

func (*ToggleCheckbox) Kind() Kind { return KindToggleCheckbox }

// ClearTextBox empties a text field.
type ClearTextBox struct{ Base }

func (*ClearTextBox) Kind() Kind { return KindClearTextBox }
