// Package tables holds the table shapes exchanged between the inference step
// and the spreadsheet writer, and the normalization that turns ragged model
// output into rectangular sheets.
package tables

import (
	"errors"
	"strconv"
)

// ErrNoTables is returned when a document carries no tables at all. An empty
// result from the inference step is a hard error, not an empty workbook.
var ErrNoTables = errors.New("document contains no tables")

// Document is the JSON shape the inference step must return. Cells are
// *string so that null survives decoding.
type Document struct {
	Tables []Table `json:"tables"`
}

// Table is one extracted table: header strings (possibly empty) and rows that
// are not guaranteed to match the header length until normalized.
type Table struct {
	Headers []string    `json:"headers"`
	Rows    [][]*string `json:"rows"`
}

// Normalize makes every table in doc rectangular: the column count N comes
// from the headers when present, otherwise from the widest row. Short rows are
// right-padded with nulls, long rows truncated, long headers truncated, and
// absent headers synthesized as col_1..col_N. It fails with ErrNoTables before
// touching any table if doc has none; there is no partial output.
func Normalize(doc Document) (Document, error) {
	if len(doc.Tables) == 0 {
		return Document{}, ErrNoTables
	}

	out := Document{Tables: make([]Table, 0, len(doc.Tables))}
	for _, t := range doc.Tables {
		out.Tables = append(out.Tables, normalizeTable(t))
	}
	return out, nil
}

func normalizeTable(t Table) Table {
	n := len(t.Headers)
	if n == 0 {
		for _, row := range t.Rows {
			if len(row) > n {
				n = len(row)
			}
		}
	}

	rows := make([][]*string, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := make([]*string, n)
		copy(r, row)
		rows = append(rows, r)
	}

	headers := t.Headers
	if len(headers) > n {
		headers = headers[:n]
	}
	if len(headers) == 0 {
		headers = make([]string, n)
		for i := range headers {
			headers[i] = colName(i + 1)
		}
	}

	return Table{Headers: headers, Rows: rows}
}

func colName(i int) string {
	return "col_" + strconv.Itoa(i)
}
