package excel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"tablemail/internal/tables"
)

func testLogger() *log.Logger {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.ErrorLevel)
	return logger
}

func s(v string) *string { return &v }

func TestWrite_MultiSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	doc := tables.Document{Tables: []tables.Table{
		{
			Headers: []string{"name", "qty"},
			Rows:    [][]*string{{s("apple"), s("3")}, {s("pear"), nil}},
		},
		{
			Headers: []string{"col_1"},
			Rows:    [][]*string{{s("only")}},
		},
	}}

	if err := NewWriter(testLogger()).Write(doc, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Table1" || sheets[1] != "Table2" {
		t.Fatalf("sheets = %v, want [Table1 Table2]", sheets)
	}

	checks := []struct {
		sheet, cell, want string
	}{
		{"Table1", "A1", "name"},
		{"Table1", "B1", "qty"},
		{"Table1", "A2", "apple"},
		{"Table1", "B2", "3"},
		{"Table1", "A3", "pear"},
		{"Table1", "B3", ""}, // nil cell stays blank
		{"Table2", "A1", "col_1"},
		{"Table2", "A2", "only"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s): %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Errorf("%s!%s = %q, want %q", c.sheet, c.cell, got, c.want)
		}
	}
}

func TestWrite_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	err := NewWriter(testLogger()).Write(tables.Document{}, path)
	if !errors.Is(err, tables.ErrNoTables) {
		t.Fatalf("err = %v, want ErrNoTables", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("workbook should not exist after validation failure")
	}
}
