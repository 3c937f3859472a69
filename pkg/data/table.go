package data

import "math"

// Table is an in-memory numeric dataset addressed by column name.
// Missing cells are stored as NaN.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// NewTable builds a table, copying nothing.
func NewTable(columns []string, rows [][]float64) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column, or nil if it is absent.
func (t *Table) Column(name string) []float64 {
	j := t.Index(name)
	if j < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]float64(nil), r...)
	}
	return &Table{Columns: cols, Rows: rows}
}

// HasMissing reports whether any cell is NaN.
func (t *Table) HasMissing() bool {
	for _, row := range t.Rows {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}
