package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/internal/strategyconfig"
	"github.com/ss3211545/stock-web-app/pkg/database"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// schema keeps the archive self-installing: one table, append-only.
const schema = `
CREATE TABLE IF NOT EXISTS screen_runs (
	run_id       TEXT PRIMARY KEY,
	market       TEXT        NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	status       TEXT        NOT NULL,
	partial      BOOLEAN     NOT NULL,
	max_step     INT         NOT NULL,
	result_count INT         NOT NULL,
	config_hash  TEXT        NOT NULL,
	variant      TEXT        NOT NULL,
	outcome      JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS screen_runs_ts_idx ON screen_runs (ts DESC);
`

// Archiver persists finished run outcomes for later review. The archive
// is optional: when no database is configured the runner simply gets a
// nil archiver.
// ⭐ SSOT: 选股结果落库只在这里
type Archiver struct {
	db     *database.DB
	logger *logger.Logger
}

// NewArchiver installs the schema and returns the archiver.
func NewArchiver(ctx context.Context, db *database.DB, log *logger.Logger) (*Archiver, error) {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("install archive schema: %w", err)
	}
	return &Archiver{db: db, logger: log}, nil
}

// Archive appends one outcome. Failures are the caller's to log; a
// failed archive never fails the run itself.
func (a *Archiver) Archive(ctx context.Context, outcome *contracts.Outcome, snap *strategyconfig.RunSnapshot) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	configHash, variant := "", ""
	if snap != nil {
		configHash, variant = snap.ConfigHash, snap.Variant
	}

	_, err = a.db.Pool.Exec(ctx,
		`INSERT INTO screen_runs
		 (run_id, market, ts, status, partial, max_step, result_count, config_hash, variant, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id) DO NOTHING`,
		outcome.RunID,
		string(outcome.Market),
		outcome.Timestamp,
		string(outcome.Status),
		outcome.PartialMatch,
		outcome.MaxStepReached,
		len(outcome.Results),
		configHash,
		variant,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", outcome.RunID, err)
	}
	return nil
}

// RunSummary is one archived run without the full outcome payload.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Market      string    `json:"market"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Partial     bool      `json:"partial"`
	MaxStep     int       `json:"max_step"`
	ResultCount int       `json:"result_count"`
	ConfigHash  string    `json:"config_hash"`
	Variant     string    `json:"variant"`
}

// Recent lists the latest archived runs, newest first.
func (a *Archiver) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.Pool.Query(ctx,
		`SELECT run_id, market, ts, status, partial, max_step, result_count, config_hash, variant
		 FROM screen_runs ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.Market, &s.Timestamp, &s.Status, &s.Partial,
			&s.MaxStep, &s.ResultCount, &s.ConfigHash, &s.Variant); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads one archived outcome by run id.
func (a *Archiver) Get(ctx context.Context, runID string) (*contracts.Outcome, error) {
	var payload []byte
	err := a.db.Pool.QueryRow(ctx,
		`SELECT outcome FROM screen_runs WHERE run_id = $1`, runID).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var outcome contracts.Outcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return &outcome, nil
}
