package meter

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// CostSummary aggregates recorded usage for one model or for everything.
type CostSummary struct {
	TotalRecords      int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCost         float64
	Currency          string
}

// CostStore mirrors ledger entries into sqlite so hosts can query aggregate
// spend without parsing the text ledger.
type CostStore struct {
	db *sql.DB
}

// NewCostStore opens (or creates) the cost database at dbPath.
func NewCostStore(dbPath string) (*CostStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cost database: %w", err)
	}

	store := &CostStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create costs table: %w", err)
	}
	return store, nil
}

func (s *CostStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		request_id TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		currency TEXT NOT NULL,
		cost_total REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_costs_model ON costs(model);
	CREATE INDEX IF NOT EXISTS idx_costs_timestamp ON costs(timestamp);
	`
	_, err := s.db.Exec(query)
	return err
}

// Record inserts one metered call.
func (s *CostStore) Record(entry Entry, currency string) error {
	query := `
	INSERT INTO costs (timestamp, request_id, model, input_tokens, output_tokens, currency, cost_total)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		entry.Timestamp,
		uuid.NewString(),
		entry.ModelName,
		entry.InputTokens,
		entry.OutputTokens,
		currency,
		entry.EstimatedCost,
	)
	return err
}

// Summary aggregates all records for a model; an empty model aggregates
// everything.
func (s *CostStore) Summary(model string) (CostSummary, error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		COALESCE(SUM(cost_total), 0),
		COALESCE(MAX(currency), 'USD')
	FROM costs
	`
	args := []any{}
	if model != "" {
		query += " WHERE model = ?"
		args = append(args, model)
	}

	var summary CostSummary
	err := s.db.QueryRow(query, args...).Scan(
		&summary.TotalRecords,
		&summary.TotalInputTokens,
		&summary.TotalOutputTokens,
		&summary.TotalCost,
		&summary.Currency,
	)
	if err != nil {
		return CostSummary{}, err
	}
	return summary, nil
}

// Since returns the total cost recorded at or after the given time.
func (s *CostStore) Since(t time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(cost_total), 0) FROM costs WHERE timestamp >= ?`, t,
	).Scan(&total)
	return total, err
}

// Close closes the database.
func (s *CostStore) Close() error {
	return s.db.Close()
}
