// File: internal/taskdata/record.go
package taskdata

import (
	"fmt"
	"strings"
)

// MaxColumns is the number of (column name, value) pairs a record carries.
const MaxColumns = 4

// Header names of the input sheet. They double as the keys of Record.Fields.
const (
	HeaderSubtaskID         = "Subtask ID"
	HeaderTaskName          = "Task Name"
	HeaderConfigurationName = "Configuration Name"
)

// Column is one (name, value) pair of a task record.
type Column struct {
	Name  string
	Value string
}

// Record is one row of per-run input data. It is read once and never
// modified afterwards.
type Record struct {
	SubtaskID         string
	TaskName          string
	ConfigurationName string
	Columns           [MaxColumns]Column
	// Row is the 1-based sheet row the record was read from, 0 when the
	// record did not come from a sheet.
	Row int
}

// ColumnNameHeader returns the header of the n-th column name, n starting at 1.
func ColumnNameHeader(n int) string { return fmt.Sprintf("Column Name%d", n) }

// ValueHeader returns the header of the n-th value, n starting at 1.
func ValueHeader(n int) string { return fmt.Sprintf("Value%d", n) }

// Fields returns the record keyed by the original sheet headers. Empty
// columns are included with empty values so lookups never miss on shape.
func (r *Record) Fields() map[string]string {
	fields := map[string]string{
		HeaderSubtaskID:         r.SubtaskID,
		HeaderTaskName:          r.TaskName,
		HeaderConfigurationName: r.ConfigurationName,
	}
	for i, c := range r.Columns {
		fields[ColumnNameHeader(i+1)] = c.Name
		fields[ValueHeader(i+1)] = c.Value
	}
	return fields
}

// Field looks a value up by sheet header first and by normalized key second,
// so both "Value1" and "value1" resolve.
func (r *Record) Field(name string) (string, bool) {
	if v, ok := r.Fields()[name]; ok {
		return v, true
	}
	v, ok := BuildContext(r)[NormalizeKey(name)]
	return v, ok
}

// UpdatedColumns lists the non-empty column names, in order.
func (r *Record) UpdatedColumns() []string {
	var names []string
	for _, c := range r.Columns {
		if strings.TrimSpace(c.Name) != "" {
			names = append(names, c.Name)
		}
	}
	return names
}
