// Package excel emits normalized tables as an .xlsx workbook.
package excel

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"tablemail/internal/tables"
)

// Writer turns a normalized table document into a workbook, one sheet per
// table. Sheets are named Table1, Table2, … in discovery order; the numbering
// is positional, not derived from table content.
type Writer struct {
	logger *log.Logger
}

func NewWriter(logger *log.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write saves doc to path. doc is expected to be rectangular already (see
// tables.Normalize); headers become row 1 and nil cells stay blank.
func (w *Writer) Write(doc tables.Document, path string) error {
	if len(doc.Tables) == 0 {
		return tables.ErrNoTables
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, t := range doc.Tables {
		sheet := fmt.Sprintf("Table%d", i+1)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		for col, h := range t.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return fmt.Errorf("header cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return fmt.Errorf("set header: %w", err)
			}
		}
		for r, row := range t.Rows {
			for col, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(col+1, r+2)
				if err != nil {
					return fmt.Errorf("data cell: %w", err)
				}
				if err := f.SetCellValue(sheet, cell, *v); err != nil {
					return fmt.Errorf("set cell: %w", err)
				}
			}
		}
		w.logger.Info("sheet written", "sheet", sheet, "rows", len(t.Rows), "cols", len(t.Headers))
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Info("workbook saved", "file", path)
	return nil
}
