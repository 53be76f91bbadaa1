package stats

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Table is the tabular result of a report
type Table struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Column returns the index of the named column, or -1
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// String formats a cell for display
func (t *Table) String(row, col int) string {
	return FormatValue(t.Rows[row][col])
}

// Float returns a numeric cell as float64. Non-numeric cells yield 0.
func (t *Table) Float(row, col int) float64 {
	switch v := t.Rows[row][col].(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// FormatValue renders a scanned value the way it is shown in the result table
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprint(val)
	}
}

// scanTable reads every row into a table with the given header
func scanTable(rows *sqlx.Rows, title string, columns []string) (*Table, error) {
	defer rows.Close()

	table := &Table{Title: title, Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(values) != len(columns) {
			return nil, fmt.Errorf("query returned %d columns, expected %d", len(values), len(columns))
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return table, nil
}

// normalize maps driver-specific value types onto string, int64 and float64
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	}
	return v
}
