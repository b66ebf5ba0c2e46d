// File: internal/workflow/decode.go
package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// document mirrors the action configuration file:
//
//	tasks:
//	  "42":
//	    task:
//	      resume_step: 20
//	      actions:
//	        - step_no: 1
//	          action_type: send_keys
//	          ...
type document struct {
	Tasks map[string]struct {
		Task taskNode `yaml:"task"`
	} `yaml:"tasks"`
}

type taskNode struct {
	ResumeStep int          `yaml:"resume_step"`
	Actions    []actionNode `yaml:"actions"`
}

type inputNode struct {
	Type      string `yaml:"type"`
	FieldName string `yaml:"field_name"`
	Value     string `yaml:"value"`
}

type actionNode struct {
	StepNo        int        `yaml:"step_no"`
	ActionType    string     `yaml:"action_type"`
	LocatorType   string     `yaml:"locator_type"`
	LocatorValue  string     `yaml:"locator_value"`
	InputField    *inputNode `yaml:"input_field"`
	Description   string     `yaml:"description"`
	Duration      seconds    `yaml:"duration"`
	OutputField   string     `yaml:"output_field"`
	DropdownValue string     `yaml:"dropdown_value"`
	DesiredState  string     `yaml:"desired_state"`
	ScriptClick   bool       `yaml:"script_click"`

	RowsSelector     string  `yaml:"rows_selector"`
	PrimarySelector  string  `yaml:"primary_selector"`
	FallbackSelector string  `yaml:"fallback_selector"`
	ConfirmSelector  string  `yaml:"confirm_selector"`
	DeleteTimeout    seconds `yaml:"delete_timeout"`
	ConfirmTimeout   seconds `yaml:"confirm_timeout"`
}

// seconds accepts either a bare number of seconds or a Go duration string.
type seconds time.Duration

func (s *seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if f, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*s = seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*s = seconds(d)
	return nil
}

func (n *actionNode) base() Base {
	b := Base{
		StepNo:       n.StepNo,
		LocatorType:  n.LocatorType,
		LocatorValue: n.LocatorValue,
		Desc:         n.Description,
	}
	if n.InputField != nil {
		switch src := InputSource(n.InputField.Type); src {
		case SourceCommandLine, SourceInputFile, SourceFixed:
			b.InputSpec = &InputField{Source: src, FieldName: n.InputField.FieldName, Value: n.InputField.Value}
		}
	}
	return b
}

// toAction builds the typed action for a decoded node.
func (n *actionNode) toAction() (Action, error) {
	b := n.base()
	switch Kind(strings.ToLower(strings.TrimSpace(n.ActionType))) {
	case KindWait:
		return &Wait{Base: b, Duration: time.Duration(n.Duration)}, nil
	case KindSendKeys:
		return &SendKeys{Base: b}, nil
	case KindSendKeysEnter:
		return &SendKeysEnter{Base: b}, nil
	case KindClick:
		return &Click{Base: b, Script: n.ScriptClick}, nil
	case KindScriptClick:
		return &Click{Base: b, Script: true}, nil
	case KindRetrieveValue:
		return &RetrieveValue{Base: b, OutputField: n.OutputField}, nil
	case KindSelectDropdown:
		return &SelectDropdown{Base: b, Value: n.DropdownValue}, nil
	case KindSwitchToNewTab:
		return &SwitchToNewTab{Base: b}, nil
	case KindSwitchToFrame:
		return &SwitchToFrame{Base: b}, nil
	case KindDeleteRecords:
		return &DeleteRecords{
			Base:             b,
			RowsSelector:     n.RowsSelector,
			PrimarySelector:  n.PrimarySelector,
			FallbackSelector: n.FallbackSelector,
			ConfirmSelector:  n.ConfirmSelector,
			DeleteTimeout:    time.Duration(n.DeleteTimeout),
			ConfirmTimeout:   time.Duration(n.ConfirmTimeout),
		}, nil
	case KindToggleCheckbox:
		desired := CheckState(strings.ToLower(n.DesiredState))
		if desired == "" {
			desired = Checked
		}
		if desired != Checked && desired != Unchecked {
			return nil, fmt.Errorf("step %d: desired_state must be 'check' or 'uncheck', got %q", n.StepNo, n.DesiredState)
		}
		return &ToggleCheckbox{Base: b, Desired: desired}, nil
	case KindClearTextBox:
		return &ClearTextBox{Base: b}, nil
	default:
		return nil, fmt.Errorf("step %d: unknown action_type %q", n.StepNo, n.ActionType)
	}
}
