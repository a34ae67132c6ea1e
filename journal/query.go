package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const closeColumns = `id, time, instrument, trade_id, units, exit_price, stop_price, target_price, realized_pl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanClose(s scanner) (CloseRecord, error) {
	var rec CloseRecord
	err := s.Scan(
		&rec.ID,
		&rec.Time,
		&rec.Instrument,
		&rec.TradeID,
		&rec.Units,
		&rec.ExitPrice,
		&rec.StopPrice,
		&rec.TargetPrice,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

// GetClose returns a single close record by ID.
func (j *SQLite) GetClose(closeID string) (CloseRecord, error) {
	row := j.db.QueryRow(`SELECT `+closeColumns+` FROM closes WHERE id = ?`, closeID)
	rec, err := scanClose(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CloseRecord{}, fmt.Errorf("close %q not found", closeID)
		}
		return CloseRecord{}, err
	}
	return rec, nil
}

// ListClosesBetween returns closes whose time is within [start, end).
func (j *SQLite) ListClosesBetween(start, end time.Time) ([]CloseRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+closeColumns+`
		FROM closes
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CloseRecord
	for rows.Next() {
		rec, err := scanClose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders returns the most recent orders, newest first. limit <= 0
// returns all of them.
func (j *SQLite) ListOrders(limit int) ([]OrderRecord, error) {
	q := `
		SELECT id, time, instrument, direction, units, price, stop_price, target_price,
		       fill_price, trade_id, client_id, accepted, reason
		FROM orders
		ORDER BY time DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.ID, &o.Time, &o.Instrument, &o.Direction, &o.Units, &o.Price,
			&o.StopPrice, &o.TargetPrice, &o.FillPrice, &o.TradeID, &o.ClientID,
			&o.Accepted, &o.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity snapshots within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, unrealized_pl, equity, return_pct
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Balance, &e.UnrealizedPL, &e.Equity, &e.ReturnPct); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary aggregates realized results over a set of closes.
type Summary struct {
	Closes       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64
	NetPL        float64
	ProfitFactor float64
}

func Summarize(closes []CloseRecord) Summary {
	var s Summary
	for _, c := range closes {
		s.Closes++
		s.NetPL += c.RealizedPL
		switch {
		case c.RealizedPL > 0:
			s.Wins++
			s.GrossProfit += c.RealizedPL
		case c.RealizedPL < 0:
			s.Losses++
			s.GrossLoss -= c.RealizedPL
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
