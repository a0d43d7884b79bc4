package domain

// Table is a loosely typed tabular dataset as produced by ingestion.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row/column, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Select returns a table holding only the given rows, in the given order.
// Row slices are shared with the receiver.
func (t *Table) Select(rows []int) *Table {
	out := &Table{
		Columns: t.Columns,
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		if r >= 0 && r < len(t.Rows) {
			out.Rows = append(out.Rows, t.Rows[r])
		}
	}
	return out
}
