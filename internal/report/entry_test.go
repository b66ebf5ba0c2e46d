// File: internal/report/entry_test.go
package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

func sampleRecord() *taskdata.Record {
	return &taskdata.Record{
		SubtaskID:         "42",
		TaskName:          "Printer Settings",
		ConfigurationName: "Office A",
		Columns: [taskdata.MaxColumns]taskdata.Column{
			{Name: "Timeout", Value: "30"},
			{Name: "Mode", Value: "Duplex"},
		},
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(sampleRecord())

	assert.Equal(t, "Printer Settings", e.Task)
	assert.Equal(t, "Office A", e.Configuration)
	assert.Equal(t, "Updating Configuration Office A Updating Column Timeout , Mode ,  , ", e.Action)
	assert.Equal(t, ColumnChange{Updated: "Timeout", NewData: "30"}, e.Columns[0])
	assert.Equal(t, ColumnChange{}, e.Columns[3])
	assert.Empty(t, e.Result)
}

func TestEntryMerge(t *testing.T) {
	e := NewEntry(sampleRecord())
	e.Merge(map[string]string{
		OldValueKey(1):    "15",
		OldValueKey(3):    "x",
		"retrieved_value": "ignored",
	})

	assert.Equal(t, "15", e.Columns[0].OldData)
	assert.Empty(t, e.Columns[1].OldData)
	assert.Equal(t, "x", e.Columns[2].OldData)
}

func TestHeaderAndRow(t *testing.T) {
	h := Header()
	require.Len(t, h, 3+3*taskdata.MaxColumns+2)
	assert.Equal(t, []string{"Task", "Action", "Configuration", "Updated_Column1", "Old_Data1", "New_Data1"}, h[:6])
	assert.Equal(t, []string{"Result", "Comment"}, h[len(h)-2:])

	e := NewEntry(sampleRecord())
	e.Merge(map[string]string{OldValueKey(2): "Simplex"})
	e.Result = ResultSuccess
	row := e.Row()
	require.Len(t, row, len(h))

	want := []string{
		"Printer Settings", e.Action, "Office A",
		"Timeout", "", "30",
		"Mode", "Simplex", "Duplex",
		"", "", "",
		"", "", "",
		"Success", "",
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}
