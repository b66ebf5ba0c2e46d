// File: cmd/run_test.go
package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/engine"
	"github.com/xkilldash9x/stepwise/internal/mocks"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

const runCatalog = `
tasks:
  42:
    task:
      resume_step: 2
      actions:
        - step_no: 1
          action_type: send_keys
          locator_type: id
          locator_value: username
          input_field: {type: command_line, field_name: username}
          description: Enter username
        - step_no: 2
          action_type: retrieve_value
          locator_type: id
          locator_value: "{column_name1}"
          output_field: old_value_column1
          description: Read current value
`

// writeInputs creates the task workbook and the workflow catalog in dir.
func writeInputs(t *testing.T, dir string) (input, actions string) {
	t.Helper()
	input = filepath.Join(dir, "tasks.xlsx")
	f, err := os.Create(input)
	require.NoError(t, err)
	records := []taskdata.Record{
		{SubtaskID: "42", TaskName: "Printer Settings", ConfigurationName: "Office A",
			Columns: [taskdata.MaxColumns]taskdata.Column{{Name: "Timeout", Value: "30"}}},
		{SubtaskID: "42", TaskName: "Printer Settings", ConfigurationName: "Office B",
			Columns: [taskdata.MaxColumns]taskdata.Column{{Name: "Timeout", Value: "45"}}},
		{SubtaskID: "13", TaskName: "Unknown", ConfigurationName: "Nowhere"},
	}
	require.NoError(t, taskdata.WriteSheet(f, "Input Details", records))
	require.NoError(t, f.Close())

	actions = filepath.Join(dir, "actions.yaml")
	require.NoError(t, os.WriteFile(actions, []byte(runCatalog), 0o644))
	return input, actions
}

func TestRunCmd_EndToEnd(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "browser:\n  post_navigation_wait: 0s\n")
	input, actions := writeInputs(t, dir)

	b := new(mocks.MockBrowser)
	b.On("Navigate", mock.Anything, "https://device.example").Return(nil).Once()
	el := mocks.NewElement(browser.Locator{Strategy: browser.ByID, Value: "x"})
	b.On("WaitForElement", mock.Anything, mock.Anything, mock.Anything).Return(el, nil)
	b.On("Clear", mock.Anything, el).Return(nil)
	b.On("SendKeys", mock.Anything, el, "admin").Return(nil).Once()
	b.On("Value", mock.Anything, el).Return("15", nil).Twice()
	b.On("Close").Return(nil).Once()

	opened := 0
	sessionOpener = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (engine.Browser, error) {
		opened++
		return b, nil
	}

	out, _, err := execute(t, context.Background(),
		"--config", cfgPath, "run",
		"--input", input, "--actions", actions,
		"--username", "admin", "--password", "pw", "--url", "https://device.example",
		"--sheet", "Input Details",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "3 records, 2 succeeded, 0 failed, 1 skipped")
	assert.Equal(t, 1, opened)
	b.AssertExpectations(t)

	wb, err := excelize.OpenFile(input)
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "Input Details")
	rows, err := wb.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Printer Settings", "Updating Configuration Office A Updating Column Timeout ,  ,  , ", "Office A", "Timeout", "15", "30"}, rows[1][:6])

	summary, err := os.ReadFile(filepath.Join(dir, "functional_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "SUCCESS:")
	assert.Contains(t, string(summary), "--- Task: Unknown | Configuration: Nowhere ---")
}

func TestRunCmd_MissingFlags(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	_, _, err := execute(t, context.Background(), "--config", cfgPath, "run", "--url", "https://device.example")
	require.Error(t, err)
	assert.Equal(t, "missing required flags: [--input --actions]", err.Error())
}

func TestRunCmd_SessionFailureStillWritesReport(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	input, actions := writeInputs(t, dir)
	output := filepath.Join(dir, "out", "results.xlsx")

	sessionOpener = func(context.Context, config.BrowserConfig, *zap.Logger) (engine.Browser, error) {
		return nil, errors.New("chrome not found")
	}

	out, _, err := execute(t, context.Background(),
		"--config", cfgPath, "run",
		"--input", input, "--actions", actions, "--output", output,
		"--url", "https://device.example",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "3 records, 0 succeeded, 2 failed, 1 skipped")

	wb, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestRunCmd_RefusesToOverwriteTaskSheet(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	input, actions := writeInputs(t, dir)

	opened := false
	sessionOpener = func(context.Context, config.BrowserConfig, *zap.Logger) (engine.Browser, error) {
		opened = true
		return nil, errors.New("unexpected session")
	}

	_, _, err := execute(t, context.Background(),
		"--config", cfgPath, "run",
		"--input", input, "--actions", actions, "--sheet", "Sheet1",
		"--url", "https://device.example",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would overwrite the task records")
	assert.False(t, opened)
}

func TestSameFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "tasks.xlsx")
	assert.True(t, sameFile(a, filepath.Join(dir, "sub", "..", "tasks.xlsx")))
	assert.False(t, sameFile(a, filepath.Join(dir, "results.xlsx")))
}
