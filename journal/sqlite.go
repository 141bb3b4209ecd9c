package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a single-file journal. Writes happen on the coordinator loop, so
// no extra locking is needed beyond database/sql's own.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, ticket, symbol, side, volume, entry_price, stop_loss, take_profit, confidence, reasoning, open_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Ticket, t.Symbol, t.Side, t.Volume, t.EntryPrice,
		t.StopLoss, t.TakeProfit, t.Confidence, t.Reasoning, t.OpenTime,
	)
	return err
}

func (j *SQLite) RecordDecision(d DecisionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(id, symbol, decision, confidence, code, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Symbol, d.Decision, d.Confidence, d.Code, d.Reason, d.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, free_margin, margin_level, open_trades)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.FreeMargin, e.MarginLevel, e.OpenTrades,
	)
	return err
}

// TradesSince returns executed trades at or after the cutoff, newest first.
func (j *SQLite) TradesSince(cutoff time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, ticket, symbol, side, volume, entry_price, stop_loss, take_profit, confidence, reasoning, open_time
		FROM trades WHERE open_time >= ? ORDER BY open_time DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.Ticket, &t.Symbol, &t.Side, &t.Volume,
			&t.EntryPrice, &t.StopLoss, &t.TakeProfit, &t.Confidence, &t.Reasoning, &t.OpenTime); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DecisionsSince returns rejection records at or after the cutoff.
func (j *SQLite) DecisionsSince(cutoff time.Time) ([]DecisionRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, symbol, decision, confidence, code, reason, time
		FROM decisions WHERE time >= ? ORDER BY time DESC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Decision, &d.Confidence, &d.Code, &d.Reason, &d.Time); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
