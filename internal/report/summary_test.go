// File: internal/report/summary_test.go
package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

const sampleLog = `{"level":"INFO","ts":"2026-03-01 09:00:00","msg":"Opened URL.","subtask_id":"42","task_name":"Printer Settings","configuration":"Office A"}
not json at all
{"level":"WARN","ts":"2026-03-01 09:00:01","msg":"Could not find element with locator 'save'.","subtask_id":"42","task_name":"Printer Settings","configuration":"Office A","locator":"save"}
{"level":"WARN","ts":"2026-03-01 09:00:02","msg":"Skipping action 'type timeout' because required input value is missing.","subtask_id":"42","task_name":"Printer Settings","configuration":"Office A","description":"type timeout"}
{"level":"INFO","ts":"2026-03-01 09:00:03","msg":"Task 'Printer Settings' with Subtask 'Office A' executed successfully.","subtask_id":"42","task_name":"Printer Settings","configuration":"Office A"}
{"level":"ERROR","ts":"2026-03-01 09:00:04","msg":"Error occurred during task execution.","subtask_id":"7","task_name":"Network","configuration":"Office B","error":"run aborted: context canceled"}
`

func TestParseLogLine(t *testing.T) {
	l, ok := ParseLogLine([]byte(`{"level":"warn","msg":"hello","locator":"#x"}`))
	require.True(t, ok)
	assert.Equal(t, "WARN", l.Level)
	assert.Equal(t, "#x", l.Locator)

	_, ok = ParseLogLine([]byte("2026-03-01 INFO plain text"))
	assert.False(t, ok)
	_, ok = ParseLogLine([]byte(`{"level":`))
	assert.False(t, ok)
}

func TestLogLineString(t *testing.T) {
	l := LogLine{Time: "2026-03-01 09:00:00", Level: "ERROR", Message: "boom", SubtaskID: "42", Error: "x"}
	assert.Equal(t, "2026-03-01 09:00:00 - ERROR - boom (subtask_id=42, error=x)", l.String())
}

func TestNotable(t *testing.T) {
	assert.True(t, LogLine{Level: "ERROR", Message: "x"}.Notable())
	assert.True(t, LogLine{Level: "WARN", Message: "x"}.Notable())
	assert.False(t, LogLine{Level: "WARN", Message: "Could not find element with locator 'a'."}.Notable())
	assert.False(t, LogLine{Level: "INFO", Message: "x"}.Notable())
}

func TestSummarize(t *testing.T) {
	lines, err := ReadLog(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, lines, 5)

	targets := []Target{
		{Task: "Printer Settings", Configuration: "Office A"},
		{Task: "Network", Configuration: "Office B"},
		{Task: "Scanner", Configuration: ""},
	}
	var buf bytes.Buffer
	require.NoError(t, Summarize(&buf, targets, lines))
	out := buf.String()

	assert.Contains(t, out, "--- Task: Printer Settings | Configuration: Office A ---")
	assert.Contains(t, out, "    WARNING: 2026-03-01 09:00:02 - WARN - Skipping action 'type timeout'")
	assert.Contains(t, out, "    SUCCESS: 2026-03-01 09:00:03 - INFO - Task 'Printer Settings' with Subtask 'Office A' executed successfully.")
	assert.NotContains(t, out, "Could not find element")

	assert.Contains(t, out, "--- Task: Network | Configuration: Office B ---")
	assert.Contains(t, out, "    ERROR: 2026-03-01 09:00:04 - ERROR - Error occurred during task execution.")

	assert.Contains(t, out, "--- Task: Scanner | Configuration: None ---")
	assert.Contains(t, out, "    ERROR: Task 'Scanner' did not execute successfully.")

	// Scoped warnings belong to their own section only.
	assert.Equal(t, 1, strings.Count(out, "WARNING:"))
}

// twoBatchLog holds an earlier failed batch followed by a successful one
// for the same record.
const twoBatchLog = `{"level":"INFO","ts":"2026-03-01 09:00:00","msg":"Starting stepwise"}
{"level":"WARN","ts":"2026-03-01 09:00:01","msg":"Skipping action 'type timeout' because required input value is missing.","batch_id":"b-old","task_name":"Printer Settings","configuration":"Office A"}
{"level":"ERROR","ts":"2026-03-01 09:00:02","msg":"Error occurred during task execution.","batch_id":"b-old","task_name":"Printer Settings","configuration":"Office A"}
{"level":"INFO","ts":"2026-03-02 09:00:00","msg":"Task 'Printer Settings' with Subtask 'Office A' executed successfully.","batch_id":"b-new","task_name":"Printer Settings","configuration":"Office A"}
`

func TestForBatch(t *testing.T) {
	lines, err := ReadLog(strings.NewReader(twoBatchLog))
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, "b-new", LastBatch(lines))

	old := ForBatch(lines, "b-old")
	require.Len(t, old, 2)
	assert.Equal(t, "ERROR", old[1].Level)

	latest := ForBatch(lines, "")
	require.Len(t, latest, 1)
	assert.Equal(t, "b-new", latest[0].BatchID)

	untagged := []LogLine{{Level: "INFO", Message: "a"}, {Level: "WARN", Message: "b"}}
	assert.Equal(t, untagged, ForBatch(untagged, ""))
	assert.Empty(t, ForBatch(untagged, "b-new"))
}

func TestSummarize_IgnoresEarlierBatches(t *testing.T) {
	lines, err := ReadLog(strings.NewReader(twoBatchLog))
	require.NoError(t, err)

	var buf bytes.Buffer
	targets := []Target{{Task: "Printer Settings", Configuration: "Office A"}}
	require.NoError(t, Summarize(&buf, targets, ForBatch(lines, "b-new")))
	out := buf.String()

	assert.Contains(t, out, "SUCCESS: 2026-03-02 09:00:00 - INFO - Task 'Printer Settings' with Subtask 'Office A' executed successfully.")
	assert.NotContains(t, out, "ERROR")
	assert.NotContains(t, out, "WARNING")
}

func TestTargetsFromRecords(t *testing.T) {
	r := *sampleRecord()
	got := TargetsFromRecords([]taskdata.Record{r})
	assert.Equal(t, []Target{{Task: "Printer Settings", Configuration: "Office A"}}, got)
}
