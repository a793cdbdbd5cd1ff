package journal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/cityweather/internal/domain/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS lookup_failures (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL,
	kind        TEXT NOT NULL,
	endpoint    TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS lookup_failures_created_at_idx ON lookup_failures (created_at DESC);
`

// PostgresJournal implements weather.FailureJournal using pgx.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal constructs the journal.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

// EnsureSchema creates the failure table when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, schema)
	return err
}

// RecordFailure inserts one failure row.
func (j *PostgresJournal) RecordFailure(ctx context.Context, record weather.FailureRecord) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO lookup_failures (id, session_id, city, stage, kind, endpoint, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.SessionID, record.City, string(record.Stage), string(record.Kind), record.Endpoint, record.Detail, record.CreatedAt)
	return err
}

// RecentFailures returns up to limit rows, newest first.
func (j *PostgresJournal) RecentFailures(ctx context.Context, limit int) ([]weather.FailureRecord, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id, session_id, city, stage, kind, endpoint, detail, created_at
		FROM lookup_failures
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, scanFailureRecord)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []weather.FailureRecord{}
	}
	return records, nil
}

// Close releases the pool.
func (j *PostgresJournal) Close() {
	j.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFailureRecord(row pgx.CollectableRow) (weather.FailureRecord, error) {
	return scanRecord(row)
}

func scanRecord(row rowScanner) (weather.FailureRecord, error) {
	var (
		record weather.FailureRecord
		stage  string
		kind   string
	)
	if err := row.Scan(&record.ID, &record.SessionID, &record.City, &stage, &kind, &record.Endpoint, &record.Detail, &record.CreatedAt); err != nil {
		return weather.FailureRecord{}, err
	}
	record.Stage = weather.State(stage)
	record.Kind = weather.FailureKind(kind)
	return record, nil
}

var _ weather.FailureJournal = (*PostgresJournal)(nil)
