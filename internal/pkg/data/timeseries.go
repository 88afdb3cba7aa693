package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
	"gonum.org/v1/gonum/mat"
)

// timeLayouts are the timestamp formats accepted in the first column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Timeseries holds hourly profiles, one column per series.
type Timeseries struct {
	horizon timeindex.Horizon
	names   []string
	col     map[string]int
	values  *mat.Dense // timesteps × series
}

// LoadTimeseriesFile reads a timeseries from a CSV file.
func LoadTimeseriesFile(path string, progress func(int)) (*Timeseries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ts, err := LoadTimeseries(f, progress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// LoadTimeseries reads a CSV with a timestamp column followed by one column
// per series. The index must be strictly increasing and hourly without gaps.
// progress, when non-nil, is called after every row with the row count so far.
func LoadTimeseries(r io.Reader, progress func(int)) (*Timeseries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 || len(raw[0]) < 2 {
		return nil, fmt.Errorf("timeseries needs a header, one series and at least one row")
	}

	names := raw[0][1:]
	col := make(map[string]int, len(names))
	for j, n := range names {
		n = strings.TrimSpace(n)
		if _, exists := col[n]; exists {
			return nil, fmt.Errorf("series %q appears twice", n)
		}
		names[j] = n
		col[n] = j
	}

	rows := raw[1:]
	index := make([]time.Time, len(rows))
	values := mat.NewDense(len(rows), len(names), nil)
	for i, rec := range rows {
		index[i], err = parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for j := range names {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d series %q: %w", i+1, names[j], err)
			}
			values.Set(i, j, v)
		}
		if progress != nil {
			progress(i + 1)
		}
	}

	h, err := timeindex.FromIndex(index)
	if err != nil {
		return nil, err
	}
	return &Timeseries{horizon: h, names: append([]string(nil), names...), col: col, values: values}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// Horizon is the validated time index.
func (ts *Timeseries) Horizon() timeindex.Horizon {
	return ts.horizon
}

// Names returns the series names in file order.
func (ts *Timeseries) Names() []string {
	return append([]string(nil), ts.names...)
}

// Series returns a copy of the named column.
func (ts *Timeseries) Series(name string) ([]float64, error) {
	j, ok := ts.col[name]
	if !ok {
		return nil, fmt.Errorf("no series %q in timeseries", name)
	}
	return mat.Col(nil, j, ts.values), nil
}

// Head returns the first n timesteps. It returns ts when n is not below
// the current length.
func (ts *Timeseries) Head(n int) (*Timeseries, error) {
	if n <= 0 {
		return nil, fmt.Errorf("head needs at least one timestep, got %d", n)
	}
	if n >= ts.horizon.Len() {
		return ts, nil
	}
	h, err := timeindex.New(ts.horizon.Start(), ts.horizon.Step(), n)
	if err != nil {
		return nil, err
	}
	values := mat.DenseCopyOf(ts.values.Slice(0, n, 0, len(ts.names)))
	return &Timeseries{horizon: h, names: ts.names, col: ts.col, values: values}, nil
}
