// Package data loads the tabular inputs: the hourly timeseries and the
// techno-economic cost and capacity tables.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ohowland/cgc_planner/internal/pkg/errs"
)

// Table is a float table keyed by row and column name. Empty cells read as NaN.
type Table struct {
	rows  []string
	cols  []string
	cells map[string]map[string]float64
}

// LoadTableFile reads a table from a CSV file.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadTable reads a CSV whose header names the columns and whose first
// column names the rows.
func LoadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 || len(raw[0]) < 2 {
		return nil, fmt.Errorf("table needs a header and at least one row")
	}

	t := &Table{cells: make(map[string]map[string]float64)}
	for _, c := range raw[0][1:] {
		t.cols = append(t.cols, strings.TrimSpace(c))
	}
	for i, rec := range raw[1:] {
		name := strings.TrimSpace(rec[0])
		if name == "" {
			return nil, fmt.Errorf("row %d has no name", i+1)
		}
		if _, exists := t.cells[name]; exists {
			return nil, fmt.Errorf("row %q appears twice", name)
		}
		row := make(map[string]float64, len(t.cols))
		for j, col := range t.cols {
			v := math.NaN()
			if j+1 < len(rec) && strings.TrimSpace(rec[j+1]) != "" {
				v, err = strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
				if err != nil {
					return nil, fmt.Errorf("row %q column %q: %w", name, col, err)
				}
			}
			row[col] = v
		}
		t.rows = append(t.rows, name)
		t.cells[name] = row
	}
	return t, nil
}

// Rows returns the row names in file order.
func (t *Table) Rows() []string {
	return append([]string(nil), t.rows...)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// Has reports whether the cell exists and holds a number.
func (t *Table) Has(row, col string) bool {
	v, ok := t.cells[row][col]
	return ok && !math.IsNaN(v)
}

// Get returns a cell. A missing or empty cell is an InvalidParameter error
// naming the row as unit and the column as field.
func (t *Table) Get(row, col string) (float64, error) {
	r, ok := t.cells[row]
	if !ok {
		return 0, errs.Invalid(row, col, "no row %q in table", row)
	}
	v, ok := r[col]
	if !ok {
		return 0, errs.Invalid(row, col, "no column %q in table", col)
	}
	if math.IsNaN(v) {
		return 0, errs.Invalid(row, col, "cell is empty")
	}
	return v, nil
}

// Transpose swaps rows and columns, for sheets that list parameters as rows
// and technologies as columns.
func (t *Table) Transpose() *Table {
	out := &Table{
		rows:  append([]string(nil), t.cols...),
		cols:  append([]string(nil), t.rows...),
		cells: make(map[string]map[string]float64, len(t.cols)),
	}
	for _, c := range t.cols {
		out.cells[c] = make(map[string]float64, len(t.rows))
	}
	for r, row := range t.cells {
		for c, v := range row {
			out.cells[c][r] = v
		}
	}
	return out
}
