// File: internal/report/workbook.go
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	maxColumnWidth = 80
	stripeFill     = "D9D9D9"
)

// WriteWorkbook saves entries to path in the named sheet. An existing
// workbook keeps its other sheets; the target sheet is replaced.
func WriteWorkbook(path, sheet string, entries []Entry) error {
	f, fresh, err := openOrCreate(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fill(f, sheet, entries, fresh); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report '%s': %w", path, err)
	}
	return nil
}

// Encode writes entries as a standalone workbook to w.
func Encode(w io.Writer, sheet string, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := fill(f, sheet, entries, true); err != nil {
		return err
	}
	return f.Write(w)
}

func openOrCreate(path string) (f *excelize.File, fresh bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		if f, err = excelize.OpenFile(path); err != nil {
			return nil, false, fmt.Errorf("failed to open report '%s': %w", path, err)
		}
		return f, false, nil
	}
	return excelize.NewFile(), true, nil
}

// fill replaces sheet with the header and one row per entry.
func fill(f *excelize.File, sheet string, entries []Entry, fresh bool) error {
	idx, _ := f.GetSheetIndex(sheet)
	if idx >= 0 {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
		}
		for r := len(rows); r >= 1; r-- {
			if err := f.RemoveRow(sheet, r); err != nil {
				return fmt.Errorf("failed to clear sheet '%s': %w", sheet, err)
			}
		}
	} else {
		var err error
		if idx, err = f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet '%s': %w", sheet, err)
		}
	}
	f.SetActiveSheet(idx)
	// A fresh workbook comes with an empty Sheet1 we do not need.
	if fresh && sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
		idx, _ = f.GetSheetIndex(sheet)
		f.SetActiveSheet(idx)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	header := Header()
	widths := make([]int, len(header))
	if err := writeRow(f, sheet, 1, header, styles.header, widths); err != nil {
		return err
	}
	for i := range entries {
		style := styles.body
		if i%2 == 1 {
			style = styles.stripe
		}
		if err := writeRow(f, sheet, i+2, entries[i].Row(), style, widths); err != nil {
			return err
		}
	}

	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := float64(w+2) * 1.2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []string, style int, widths []int) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
		if n := utf8.RuneCountInString(v); n > widths[i] {
			widths[i] = n
		}
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return f.SetCellStyle(sheet, start, end, style)
}

type sheetStyles struct {
	header, body, stripe int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	if s.body, err = f.NewStyle(&excelize.Style{Border: border}); err != nil {
		return s, fmt.Errorf("failed to create body style: %w", err)
	}
	if s.stripe, err = f.NewStyle(&excelize.Style{
		Border: border,
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripeFill}},
	}); err != nil {
		return s, fmt.Errorf("failed to create stripe style: %w", err)
	}
	return s, nil
}
