// Package export assembles garansi and order records into typed tables that
// the renderer turns into spreadsheets and PDFs.
package export

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type CellKind string

const (
	KindText  CellKind = "text"
	KindInt   CellKind = "int"
	KindMoney CellKind = "money"
)

// Cell is one typed table value.
type Cell struct {
	Kind  CellKind
	Text  string
	Value int64
}

func Text(s string) Cell { return Cell{Kind: KindText, Text: s} }
func Int(n int64) Cell   { return Cell{Kind: KindInt, Value: n} }
func Money(n int64) Cell { return Cell{Kind: KindMoney, Value: n} }

// String renders the cell for text based outputs.
func (c Cell) String() string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Value, 10)
	case KindMoney:
		return FormatRupiah(c.Value)
	default:
		return c.Text
	}
}

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah formats n as "Rp 1.000.000".
func FormatRupiah(n int64) string {
	return idPrinter.Sprintf("Rp %d", n)
}

// Table is a titled grid with an optional image side table keyed by row.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]Cell
	// Images maps a row index to local file paths shown in ImageColumn.
	Images      map[int][]string
	ImageColumn int
	// Footer rows are rendered after the data rows, label in the column
	// before the last one.
	Footer [][]Cell
}

// HasImages reports whether any row carries a picture.
func (t Table) HasImages() bool {
	for _, paths := range t.Images {
		if len(paths) > 0 {
			return true
		}
	}
	return false
}
