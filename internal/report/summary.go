// File: internal/report/summary.go
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// notFoundWarning marks element lookup warnings, which are too noisy for
// the functional summary.
const notFoundWarning = "Could not find element with locator"

// SuccessMessage is the line the runner logs when a record's run completes.
func SuccessMessage(task, configuration string) string {
	return fmt.Sprintf("Task '%s' with Subtask '%s' executed successfully.", task, configuration)
}

// Target identifies one section of the functional summary.
type Target struct {
	Task          string
	Configuration string
}

// TargetsFromRecords lists one target per record, in record order.
func TargetsFromRecords(records []taskdata.Record) []Target {
	targets := make([]Target, 0, len(records))
	for _, r := range records {
		targets = append(targets, Target{Task: r.TaskName, Configuration: r.ConfigurationName})
	}
	return targets
}

// LogLine is the subset of a JSON log entry the summary needs.
type LogLine struct {
	Time          string `json:"ts"`
	Level         string `json:"level"`
	Message       string `json:"msg"`
	BatchID       string `json:"batch_id"`
	SubtaskID     string `json:"subtask_id"`
	Task          string `json:"task_name"`
	Configuration string `json:"configuration"`
	Locator       string `json:"locator"`
	Description   string `json:"description"`
	Error         string `json:"error"`
}

// ParseLogLine decodes one JSON log line. Non-JSON lines are reported as
// not ok.
func ParseLogLine(raw []byte) (LogLine, bool) {
	var l LogLine
	if len(raw) == 0 || raw[0] != '{' {
		return l, false
	}
	if err := json.Unmarshal(raw, &l); err != nil {
		return l, false
	}
	l.Level = strings.ToUpper(l.Level)
	return l, true
}

// ReadLog parses every JSON line of r, skipping lines that are not JSON.
func ReadLog(r io.Reader) ([]LogLine, error) {
	var lines []LogLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if l, ok := ParseLogLine(sc.Bytes()); ok {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return lines, nil
}

// LastBatch returns the batch id of the last line that carries one, or ""
// when no line does.
func LastBatch(lines []LogLine) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].BatchID != "" {
			return lines[i].BatchID
		}
	}
	return ""
}

// ForBatch keeps the lines logged by one batch. The log file is appended to
// across runs, so a summary must not see an earlier batch's errors. An
// empty batchID selects the last batch; a log without batch ids is
// returned whole.
func ForBatch(lines []LogLine, batchID string) []LogLine {
	if batchID == "" {
		batchID = LastBatch(lines)
		if batchID == "" {
			return lines
		}
	}
	var out []LogLine
	for _, l := range lines {
		if l.BatchID == batchID {
			out = append(out, l)
		}
	}
	return out
}

// String renders the line the way it appears in the summary.
func (l LogLine) String() string {
	var b strings.Builder
	if l.Time != "" {
		b.WriteString(l.Time)
		b.WriteString(" - ")
	}
	b.WriteString(l.Level)
	b.WriteString(" - ")
	b.WriteString(l.Message)
	var extras []string
	for _, kv := range [][2]string{
		{observability.FieldSubtaskID, l.SubtaskID},
		{observability.FieldLocator, l.Locator},
		{observability.FieldDescription, l.Description},
		{"error", l.Error},
	} {
		if kv[1] != "" {
			extras = append(extras, kv[0]+"="+kv[1])
		}
	}
	if len(extras) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(extras, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Notable reports whether a line belongs in a live WARN/ERROR stream.
func (l LogLine) Notable() bool {
	return l.Level == "ERROR" || (l.Level == "WARN" && !strings.Contains(l.Message, notFoundWarning))
}

// scoped reports whether the line carries record identification.
func (l LogLine) scoped() bool { return l.Task != "" || l.Configuration != "" }

func (l LogLine) concerns(t Target) bool {
	if l.Task != "" && l.Task == t.Task {
		return true
	}
	if t.Configuration != "None" && l.Configuration != "" && l.Configuration == t.Configuration {
		return true
	}
	return strings.Contains(l.Message, "Task '"+t.Task+"'") ||
		(t.Configuration != "None" && strings.Contains(l.Message, "Configuration '"+t.Configuration+"'"))
}

// Summarize writes the functional summary: one section per target with its
// warnings, errors and success line. A target with neither a success line
// nor an error gets an explicit failure line.
func Summarize(w io.Writer, targets []Target, lines []LogLine) error {
	bw := bufio.NewWriter(w)
	seenWarnings := map[string]bool{}

	for _, t := range targets {
		if strings.TrimSpace(t.Configuration) == "" {
			t.Configuration = "None"
		}
		fmt.Fprintf(bw, "\n--- Task: %s | Configuration: %s ---\n", t.Task, t.Configuration)

		errorFound, successFound := false, false
		success := SuccessMessage(t.Task, t.Configuration)
		for _, l := range lines {
			rendered := l.String()
			switch {
			case l.Level == "WARN" && !strings.Contains(l.Message, notFoundWarning):
				if (!l.scoped() || l.concerns(t)) && !seenWarnings[rendered] {
					seenWarnings[rendered] = true
					fmt.Fprintf(bw, "    WARNING: %s\n", rendered)
				}
			case l.Level == "ERROR" && l.concerns(t):
				fmt.Fprintf(bw, "    ERROR: %s\n", rendered)
				errorFound = true
			}
			if l.Message == success {
				if !errorFound {
					fmt.Fprintf(bw, "    SUCCESS: %s\n", rendered)
					successFound = true
				}
				break
			}
		}
		if !successFound && !errorFound {
			fmt.Fprintf(bw, "    ERROR: Task '%s' did not execute successfully.\n", t.Task)
		}
	}
	return bw.Flush()
}
