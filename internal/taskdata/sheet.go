// File: internal/taskdata/sheet.go
package taskdata

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetColumns is the fixed column layout of the input sheet, A through K.
var sheetColumns = []string{
	HeaderSubtaskID, HeaderTaskName, HeaderConfigurationName,
	"Column Name1", "Value1",
	"Column Name2", "Value2",
	"Column Name3", "Value3",
	"Column Name4", "Value4",
}

// ReadSheet loads task records from the named sheet of an xlsx workbook.
// The first row is a header and is skipped. Rows with no Subtask ID are
// ignored.
func ReadSheet(path, sheet string) ([]Record, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook '%s': %w", path, err)
	}
	defer r.Close()
	records, err := ReadSheetFrom(r, sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook '%s': %w", path, err)
	}
	return records, nil
}

// ReadSheetFrom is ReadSheet for an already open stream.
func ReadSheetFrom(r io.Reader, sheet string) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()
	return readRecords(f, sheet)
}

func readRecords(f *excelize.File, sheet string) ([]Record, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet '%s' not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet '%s': %w", sheet, err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		id := normalizeID(cell(0))
		if id == "" {
			continue
		}
		rec := Record{
			SubtaskID:         id,
			TaskName:          cell(1),
			ConfigurationName: cell(2),
			Row:               i + 1,
		}
		for n := 0; n < MaxColumns; n++ {
			rec.Columns[n] = Column{Name: cell(3 + 2*n), Value: cell(4 + 2*n)}
		}
		records = append(records, rec)
	}
	return records, nil
}

// normalizeID turns numeric cell text such as "42.0" into "42" so ids match
// the keys of the action configuration.
func normalizeID(raw string) string {
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return raw
}

// WriteSheet writes records to a new workbook in the input layout. It is the
// inverse of ReadSheet and is used to produce templates and fixtures.
func WriteSheet(w io.Writer, sheet string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	header := make([]interface{}, len(sheetColumns))
	for i, h := range sheetColumns {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		row := []interface{}{r.SubtaskID, r.TaskName, r.ConfigurationName}
		for _, c := range r.Columns {
			row = append(row, c.Name, c.Value)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}
