// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	units REAL NOT NULL,
	price REAL NOT NULL,
	stop_price REAL NOT NULL,
	target_price REAL NOT NULL,
	fill_price REAL NOT NULL,
	trade_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	accepted INTEGER NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS closes (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	units REAL NOT NULL,
	exit_price REAL NOT NULL,
	stop_price REAL NOT NULL,
	target_price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	equity REAL NOT NULL,
	return_pct REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS kills (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	ok INTEGER NOT NULL,
	closed INTEGER NOT NULL,
	realized_pl REAL NOT NULL,
	error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_time ON orders(time);
CREATE INDEX IF NOT EXISTS idx_closes_time ON closes(time);
CREATE INDEX IF NOT EXISTS idx_closes_instrument ON closes(instrument);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
