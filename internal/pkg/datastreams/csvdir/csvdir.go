// Package csvdir writes run results to a directory of CSV files: one file of
// series per unit, plus capacities, prices and a run summary.
package csvdir

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
)

// File names written next to the per-unit files.
const (
	CapacitiesFile = "capacities.csv"
	PricesFile     = "prices.csv"
	SummaryFile    = "summary.csv"
)

// Writer is a datastreams.Writer that ignores everything but results.
type Writer struct {
	dir string
}

// New creates dir when missing.
func New(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("csvdir: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "csvdir" }

// Write writes r's files when m carries results.
func (w *Writer) Write(_ context.Context, m msg.Msg) error {
	r, ok := m.Payload().(*results.Results)
	if !ok {
		return nil
	}
	return WriteResults(w.dir, r)
}

// Close is a no-op.
func (w *Writer) Close(context.Context) error { return nil }

// WriteResults writes every results file into dir, overwriting earlier runs.
func WriteResults(dir string, r *results.Results) error {
	for _, u := range r.Units {
		if err := writeUnit(dir, r.Index, u); err != nil {
			return err
		}
	}
	if err := writeCapacities(dir, r.Units); err != nil {
		return err
	}
	if len(r.Prices) > 0 {
		if err := writePrices(dir, r.Index, r.Prices); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, SummaryFile), [][]string{
		{"run_id", "model_id", "status", "objective"},
		{r.RunID.String(), r.ModelID.String(), r.Status, num(r.Objective)},
	})
}

// writeUnit writes the unit's series by timestep. Storage levels carry one
// value more than the index; the extra row is labelled "end".
func writeUnit(dir string, index []time.Time, u results.Unit) error {
	names := u.SeriesNames()
	rows := len(index)
	for _, n := range names {
		if len(u.Series[n]) > rows {
			rows = len(u.Series[n])
		}
	}

	records := [][]string{append([]string{"timeindex"}, names...)}
	for t := 0; t < rows; t++ {
		rec := make([]string, 0, len(names)+1)
		rec = append(rec, stamp(index, t))
		for _, n := range names {
			s := u.Series[n]
			if t < len(s) {
				rec = append(rec, num(s[t]))
			} else {
				rec = append(rec, "")
			}
		}
		records = append(records, rec)
	}
	return writeFile(filepath.Join(dir, u.Label+".csv"), records)
}

func writeCapacities(dir string, units []results.Unit) error {
	records := [][]string{{"label", "tech", "carrier", "capacity", "invest", "storage_capacity", "storage_invest"}}
	for _, u := range units {
		records = append(records, []string{
			u.Label, u.Tech, u.Carrier,
			num(u.Capacity), num(u.Invest), num(u.StorageCapacity), num(u.StorageInvest),
		})
	}
	return writeFile(filepath.Join(dir, CapacitiesFile), records)
}

func writePrices(dir string, index []time.Time, prices map[string][]float64) error {
	buses := make([]string, 0, len(prices))
	for b := range prices {
		buses = append(buses, b)
	}
	sort.Strings(buses)

	records := [][]string{append([]string{"timeindex"}, buses...)}
	for t := range index {
		rec := []string{stamp(index, t)}
		for _, b := range buses {
			rec = append(rec, num(prices[b][t]))
		}
		records = append(records, rec)
	}
	return writeFile(filepath.Join(dir, PricesFile), records)
}

func writeFile(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func stamp(index []time.Time, t int) string {
	if t < len(index) {
		return index[t].Format(time.RFC3339)
	}
	return "end"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
