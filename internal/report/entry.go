// File: internal/report/entry.go
package report

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

// Result values written to the report.
const (
	ResultSuccess = "Success"
	ResultFailed  = "Failed"
	ResultSkipped = "Skipped"
)

// ColumnChange is one updated column of a record: its name, the value read
// before the update, and the value written.
type ColumnChange struct {
	Updated string
	OldData string
	NewData string
}

// Entry is one row of the output report.
type Entry struct {
	SubtaskID     string
	Task          string
	Action        string
	Configuration string
	Columns       [taskdata.MaxColumns]ColumnChange
	Result        string
	Comment       string
}

// NewEntry prepares the report row for a record before it runs.
func NewEntry(rec *taskdata.Record) Entry {
	e := Entry{
		SubtaskID:     rec.SubtaskID,
		Task:          rec.TaskName,
		Configuration: rec.ConfigurationName,
	}
	names := make([]string, taskdata.MaxColumns)
	for i, c := range rec.Columns {
		e.Columns[i] = ColumnChange{Updated: c.Name, NewData: c.Value}
		names[i] = c.Name
	}
	e.Action = fmt.Sprintf("Updating Configuration %s Updating Column %s", rec.ConfigurationName, strings.Join(names, " , "))
	return e
}

// OldValueKey is the output field that fills Old_DataN, n starting at 1.
func OldValueKey(n int) string { return fmt.Sprintf("old_value_column%d", n) }

// Merge copies retrieved old values from a run's output into the entry.
func (e *Entry) Merge(output map[string]string) {
	for i := range e.Columns {
		if v, ok := output[OldValueKey(i+1)]; ok {
			e.Columns[i].OldData = v
		}
	}
}

// Header is the report's column layout.
func Header() []string {
	h := []string{"Task", "Action", "Configuration"}
	for n := 1; n <= taskdata.MaxColumns; n++ {
		h = append(h,
			fmt.Sprintf("Updated_Column%d", n),
			fmt.Sprintf("Old_Data%d", n),
			fmt.Sprintf("New_Data%d", n),
		)
	}
	return append(h, "Result", "Comment")
}

// Row flattens the entry in Header order.
func (e *Entry) Row() []string {
	row := []string{e.Task, e.Action, e.Configuration}
	for _, c := range e.Columns {
		row = append(row, c.Updated, c.OldData, c.NewData)
	}
	return append(row, e.Result, e.Comment)
}
