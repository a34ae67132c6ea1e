package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/rustyeddy/fxpilot/pkg/id"
)

var (
	orderHeader  = []string{"id", "time", "instrument", "direction", "units", "price", "stop_price", "target_price", "fill_price", "trade_id", "client_id", "accepted", "reason"}
	closeHeader  = []string{"id", "time", "instrument", "trade_id", "units", "exit_price", "stop_price", "target_price", "realized_pl", "reason"}
	equityHeader = []string{"time", "balance", "unrealized_pl", "equity", "return_pct"}
	killHeader   = []string{"id", "time", "ok", "closed", "realized_pl", "error"}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// CSV appends each record kind to its own file in a directory. Existing
// files are appended to; new ones get a header row.
type CSV struct {
	mu     sync.Mutex
	orders csvFile
	closes csvFile
	equity csvFile
	kills  csvFile
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &CSV{}
	files := []struct {
		dst    *csvFile
		name   string
		header []string
	}{
		{&j.orders, "orders.csv", orderHeader},
		{&j.closes, "closes.csv", closeHeader},
		{&j.equity, "equity.csv", equityHeader},
		{&j.kills, "kills.csv", killHeader},
	}
	for _, spec := range files {
		cf, err := openCSV(filepath.Join(dir, spec.name), spec.header)
		if err != nil {
			_ = j.Close()
			return nil, err
		}
		*spec.dst = cf
	}
	return j, nil
}

func openCSV(path string, header []string) (csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return csvFile{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return csvFile{}, err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return csvFile{}, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return csvFile{}, fmt.Errorf("write header %s: %w", path, err)
		}
	}
	return csvFile{f: f, w: w}, nil
}

func (j *CSV) write(cf csvFile, row []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := cf.w.Write(row); err != nil {
		return err
	}
	cf.w.Flush()
	return cf.w.Error()
}

func (j *CSV) RecordOrder(o OrderRecord) error {
	if o.ID == "" {
		o.ID = id.NewAt(o.Time)
	}
	return j.write(j.orders, []string{
		o.ID,
		ts(o.Time),
		o.Instrument,
		o.Direction,
		f(o.Units),
		f(o.Price),
		f(o.StopPrice),
		f(o.TargetPrice),
		f(o.FillPrice),
		o.TradeID,
		o.ClientID,
		strconv.FormatBool(o.Accepted),
		o.Reason,
	})
}

func (j *CSV) RecordClose(c CloseRecord) error {
	if c.ID == "" {
		c.ID = id.NewAt(c.Time)
	}
	return j.write(j.closes, []string{
		c.ID,
		ts(c.Time),
		c.Instrument,
		c.TradeID,
		f(c.Units),
		f(c.ExitPrice),
		f(c.StopPrice),
		f(c.TargetPrice),
		f(c.RealizedPL),
		c.Reason,
	})
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	return j.write(j.equity, []string{
		ts(e.Time),
		f(e.Balance),
		f(e.UnrealizedPL),
		f(e.Equity),
		f(e.ReturnPct),
	})
}

func (j *CSV) RecordKill(k KillRecord) error {
	if k.ID == "" {
		k.ID = id.NewAt(k.Time)
	}
	return j.write(j.kills, []string{
		k.ID,
		ts(k.Time),
		strconv.FormatBool(k.OK),
		strconv.Itoa(k.Closed),
		f(k.RealizedPL),
		k.Error,
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var err error
	for _, cf := range []csvFile{j.orders, j.closes, j.equity, j.kills} {
		if cf.f == nil {
			continue
		}
		cf.w.Flush()
		err = multierr.Append(err, cf.w.Error())
		err = multierr.Append(err, cf.f.Close())
	}
	return err
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
