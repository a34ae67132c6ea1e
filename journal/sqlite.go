package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/fxpilot/pkg/id"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	if o.ID == "" {
		o.ID = id.NewAt(o.Time)
	}
	_, err := j.db.Exec(`
		INSERT INTO orders
		(id, time, instrument, direction, units, price, stop_price, target_price, fill_price, trade_id, client_id, accepted, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Time, o.Instrument, o.Direction, o.Units, o.Price, o.StopPrice,
		o.TargetPrice, o.FillPrice, o.TradeID, o.ClientID, o.Accepted, o.Reason,
	)
	return err
}

func (j *SQLite) RecordClose(c CloseRecord) error {
	if c.ID == "" {
		c.ID = id.NewAt(c.Time)
	}
	_, err := j.db.Exec(`
		INSERT INTO closes
		(id, time, instrument, trade_id, units, exit_price, stop_price, target_price, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Time, c.Instrument, c.TradeID, c.Units, c.ExitPrice,
		c.StopPrice, c.TargetPrice, c.RealizedPL, c.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, unrealized_pl, equity, return_pct)
		VALUES (?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.UnrealizedPL, e.Equity, e.ReturnPct,
	)
	return err
}

func (j *SQLite) RecordKill(k KillRecord) error {
	if k.ID == "" {
		k.ID = id.NewAt(k.Time)
	}
	_, err := j.db.Exec(`
		INSERT INTO kills
		(id, time, ok, closed, realized_pl, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.Time, k.OK, k.Closed, k.RealizedPL, k.Error,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
