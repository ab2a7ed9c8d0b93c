// Package persistence provides SQLite-based storage for lookup tables and
// prediction history.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/talgya/stalk-market/internal/market"
)

// ErrNoTable is returned when no lookup table is stored for a buy price.
var ErrNoTable = errors.New("persistence: no table for buy price")

// DB wraps a SQLite connection for table and prediction storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps WAL mode free of SQLITE_BUSY under the sweep.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lookup_tables (
		buy_price INTEGER NOT NULL,
		pattern INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		combinations INTEGER NOT NULL,
		tree BLOB NOT NULL,
		built_at INTEGER NOT NULL,
		PRIMARY KEY (buy_price, pattern)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		buy_price INTEGER NOT NULL,
		observed TEXT NOT NULL,
		surviving INTEGER NOT NULL,
		source TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_buy ON predictions(buy_price);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveTable writes every pattern tree of t, replacing any earlier build for
// the same buy price.
func (db *DB) SaveTable(runID string, t market.Table) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	size := 0
	for _, p := range market.Patterns {
		blob, err := msgpack.Marshal(t.Trees[p])
		if err != nil {
			return fmt.Errorf("encode %s tree: %w", p, err)
		}
		size += len(blob)

		_, err = tx.Exec(`INSERT OR REPLACE INTO lookup_tables
			(buy_price, pattern, run_id, combinations, tree, built_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.Buy, int(p), runID, t.Trees[p].Combinations(), blob, now,
		)
		if err != nil {
			return fmt.Errorf("insert table %d/%s: %w", t.Buy, p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("table saved", "buy_price", t.Buy, "size", humanize.Bytes(uint64(size)))
	return nil
}

type tableRow struct {
	Pattern int    `db:"pattern"`
	Tree    []byte `db:"tree"`
}

// LoadTable reads the stored table for buy.
func (db *DB) LoadTable(buy int) (market.Table, error) {
	var rows []tableRow
	err := db.conn.Select(&rows,
		"SELECT pattern, tree FROM lookup_tables WHERE buy_price = ? ORDER BY pattern",
		buy,
	)
	if err != nil {
		return market.Table{}, fmt.Errorf("select table %d: %w", buy, err)
	}
	if len(rows) != market.PatternCount {
		return market.Table{}, fmt.Errorf("%w %d", ErrNoTable, buy)
	}

	t := market.Table{Buy: buy}
	for _, r := range rows {
		p := market.Pattern(r.Pattern)
		if !p.Valid() {
			return market.Table{}, fmt.Errorf("table %d: unknown pattern %d", buy, r.Pattern)
		}
		var n market.Node
		if err := msgpack.Unmarshal(r.Tree, &n); err != nil {
			return market.Table{}, fmt.Errorf("decode %s tree: %w", p, err)
		}
		t.Trees[p] = &n
	}
	return t, nil
}

// TableBuyPrices returns the buy prices with a complete stored table.
func (db *DB) TableBuyPrices() ([]int, error) {
	var prices []int
	err := db.conn.Select(&prices,
		"SELECT buy_price FROM lookup_tables GROUP BY buy_price HAVING COUNT(*) = ? ORDER BY buy_price",
		market.PatternCount,
	)
	return prices, err
}

// HasTables reports whether every buy price in [lo, hi] has a stored table.
func (db *DB) HasTables(lo, hi int) (bool, error) {
	prices, err := db.TableBuyPrices()
	if err != nil {
		return false, err
	}
	have := make(map[int]bool, len(prices))
	for _, p := range prices {
		have[p] = true
	}
	for buy := lo; buy <= hi; buy++ {
		if !have[buy] {
			return false, nil
		}
	}
	return true, nil
}

// PredictionRecord is one stored prediction.
type PredictionRecord struct {
	ID        string `db:"id" json:"id"`
	Buy       int    `db:"buy_price" json:"buy_price"`
	Observed  string `db:"observed" json:"observed"`
	Surviving int    `db:"surviving" json:"surviving"`
	Source    string `db:"source" json:"source"`
	Result    string `db:"result_json" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Prediction decodes the stored result.
func (r PredictionRecord) Prediction() (market.Prediction, error) {
	var pred market.Prediction
	if err := json.Unmarshal([]byte(r.Result), &pred); err != nil {
		return market.Prediction{}, fmt.Errorf("decode prediction %s: %w", r.ID, err)
	}
	return pred, nil
}

// SavePrediction stores pred and returns its new id. Source names the path
// that answered it ("live" or "table").
func (db *DB) SavePrediction(source string, pred market.Prediction) (string, error) {
	result, err := json.Marshal(pred)
	if err != nil {
		return "", fmt.Errorf("encode prediction: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(`INSERT INTO predictions
		(id, buy_price, observed, surviving, source, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, pred.Buy, pred.Observed.String(), pred.Surviving(), source, string(result), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert prediction: %w", err)
	}
	return id, nil
}

// RecentPredictions returns the most recent N predictions, newest first.
func (db *DB) RecentPredictions(limit int) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := db.conn.Select(&records,
		`SELECT id, buy_price, observed, surviving, source, result_json, created_at
		FROM predictions ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	return records, err
}

// Stats summarizes what the database holds.
type Stats struct {
	Tables      int    `json:"tables"`
	TableBytes  int64  `json:"table_bytes"`
	Predictions int    `json:"predictions"`
	LastRun     string `json:"last_run,omitempty"`
}

// Stats counts stored tables and predictions.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	prices, err := db.TableBuyPrices()
	if err != nil {
		return s, err
	}
	s.Tables = len(prices)
	if err := db.conn.Get(&s.TableBytes, "SELECT COALESCE(SUM(LENGTH(tree)), 0) FROM lookup_tables"); err != nil {
		return s, err
	}
	if err := db.conn.Get(&s.Predictions, "SELECT COUNT(*) FROM predictions"); err != nil {
		return s, err
	}
	s.LastRun, _ = db.GetMeta(MetaLastRun)
	return s, nil
}

// MetaLastRun is the meta key holding the id of the last completed sweep.
const MetaLastRun = "last_run"

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
