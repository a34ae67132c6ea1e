package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{orderHeader}, readCSV(t, filepath.Join(dir, "orders.csv")))
	assert.Equal(t, [][]string{closeHeader}, readCSV(t, filepath.Join(dir, "closes.csv")))
	assert.Equal(t, [][]string{equityHeader}, readCSV(t, filepath.Join(dir, "equity.csv")))
	assert.Equal(t, [][]string{killHeader}, readCSV(t, filepath.Join(dir, "kills.csv")))
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.RecordOrder(OrderRecord{
		ID: "O1", Time: at, Instrument: "EUR_USD", Direction: "BUY", Units: 9091,
		Price: 1.1, StopPrice: 1.089, TargetPrice: 1.111, FillPrice: 1.1002,
		TradeID: "T1", ClientID: "c-1", Accepted: true,
	}))
	require.NoError(t, j.RecordClose(CloseRecord{
		ID: "C1", Time: at, Instrument: "EUR_USD", TradeID: "T1", Units: 9091,
		ExitPrice: 1.111, StopPrice: 1.089, TargetPrice: 1.111, RealizedPL: 98.9, Reason: "take_profit",
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: at, Balance: 10000, UnrealizedPL: -5, Equity: 9995, ReturnPct: -0.05}))
	require.NoError(t, j.RecordKill(KillRecord{Time: at, OK: false, Closed: 1, Error: "gateway down"}))
	require.NoError(t, j.Close())

	orders := readCSV(t, filepath.Join(dir, "orders.csv"))
	require.Len(t, orders, 2)
	assert.Equal(t, []string{"O1", "2024-01-02T03:04:05Z", "EUR_USD", "BUY", "9091.000000", "1.100000",
		"1.089000", "1.111000", "1.100200", "T1", "c-1", "true", ""}, orders[1])

	closes := readCSV(t, filepath.Join(dir, "closes.csv"))
	require.Len(t, closes, 2)
	assert.Equal(t, "take_profit", closes[1][9])
	assert.Equal(t, "98.900000", closes[1][8])

	kills := readCSV(t, filepath.Join(dir, "kills.csv"))
	require.Len(t, kills, 2)
	assert.Len(t, kills[1][0], 26, "generated ULID")
	assert.Equal(t, "false", kills[1][2])
	assert.Equal(t, "gateway down", kills[1][5])
}

func TestCSVJournalAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		j, err := NewCSV(dir)
		require.NoError(t, err)
		require.NoError(t, j.RecordEquity(EquitySnapshot{Time: time.Now(), Balance: float64(i)}))
		require.NoError(t, j.Close())
	}

	rows := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, equityHeader, rows[0])
}

func TestOpen(t *testing.T) {
	t.Parallel()

	j, err := Open("none", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, j)
	assert.NoError(t, j.RecordKill(KillRecord{}))

	j, err = Open("csv", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, j)
	assert.NoError(t, j.Close())

	j, err = Open("sqlite", filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, j)
	assert.NoError(t, j.Close())

	_, err = Open("postgres", "")
	assert.Error(t, err)
}
