package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"research_runs",
		"run_events",
		"run_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) CreateRun(ctx context.Context, run store.Run) error {
	status := strings.TrimSpace(run.Status)
	if status == "" {
		status = store.StatusRunning
	}
	seeds, err := json.Marshal(nonNil(run.SeedKeywords))
	if err != nil {
		return err
	}
	competitors, err := json.Marshal(nonNil(run.Competitors))
	if err != nil {
		return err
	}
	config := []byte(run.Config)
	if len(config) == 0 {
		config = []byte("{}")
	}
	const query = `
		INSERT INTO research_runs (
			id,
			status,
			country,
			seed_keywords,
			competitors,
			config,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		run.ID,
		status,
		run.Country,
		seeds,
		competitors,
		config,
		parseTimestampValue(run.CreatedAt),
		parseTimestampValue(run.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) CompleteRun(ctx context.Context, runID string, result json.RawMessage, updatedAt string) error {
	const query = `
		UPDATE research_runs
		SET status = $2, result = $3, error = NULL, updated_at = $4
		WHERE id = $1
	`
	var resultValue any
	if len(result) > 0 {
		resultValue = []byte(result)
	}
	_, err := p.db.ExecContext(ctx, query, runID, store.StatusCompleted, resultValue, parseTimestampValue(updatedAt))
	return err
}

func (p *PostgresStore) FailRun(ctx context.Context, runID string, message string, updatedAt string) error {
	const query = `
		UPDATE research_runs
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1
	`
	_, err := p.db.ExecContext(ctx, query, runID, store.StatusFailed, nullString(message), parseTimestampValue(updatedAt))
	return err
}

const runColumns = `id, status, country, seed_keywords, competitors, config, result, error, created_at, updated_at`

func (p *PostgresStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM research_runs WHERE id = $1", runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (p *PostgresStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT "+runColumns+" FROM research_runs ORDER BY updated_at DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.Run, error) {
	var run store.Run
	var seeds []byte
	var competitors []byte
	var config []byte
	var result []byte
	var errText sql.NullString
	var createdAt time.Time
	var updatedAt time.Time
	if err := row.Scan(
		&run.ID,
		&run.Status,
		&run.Country,
		&seeds,
		&competitors,
		&config,
		&result,
		&errText,
		&createdAt,
		&updatedAt,
	); err != nil {
		return store.Run{}, err
	}
	run.SeedKeywords = decodeStringSlice(seeds)
	run.Competitors = decodeStringSlice(competitors)
	if len(config) > 0 {
		run.Config = json.RawMessage(config)
	}
	if len(result) > 0 {
		run.Result = json.RawMessage(result)
	}
	if errText.Valid {
		run.Error = errText.String
	}
	run.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	run.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return run, nil
}

func (p *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM run_event_sequences WHERE run_id = $1", runID); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, "DELETE FROM research_runs WHERE id = $1", runID)
	return err
}

func (p *PostgresStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	const query = `
		INSERT INTO run_event_sequences (run_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (run_id)
		DO UPDATE SET last_seq = run_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, runID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendEvent inserts the event and, for started, completed and failed
// events, moves a non-terminal run to the matching status in the same
// transaction.
func (p *PostgresStore) AppendEvent(ctx context.Context, event store.RunEvent) (err error) {
	event.Type = store.NormalizeEventType(event.Type)
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timestamp := parseTimestampValue(event.Timestamp)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `
		INSERT INTO run_events (run_id, seq, type, timestamp, source, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err = tx.ExecContext(ctx, insert, event.RunID, event.Seq, event.Type, timestamp, event.Source, encoded); err != nil {
		return err
	}
	if status, ok := store.StatusForEvent(event.Type); ok {
		errorText, _ := payload["error"].(string)
		const update = `
			UPDATE research_runs
			SET status = $2,
				error = COALESCE($3, error),
				updated_at = $4
			WHERE id = $1 AND status NOT IN ('completed', 'failed')
		`
		if _, err = tx.ExecContext(ctx, update, event.RunID, status, nullString(errorText), timestamp); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	const query = `
		SELECT run_id, seq, type, timestamp, source, payload
		FROM run_events
		WHERE run_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, runID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.RunEvent{}
	for rows.Next() {
		var payloadBytes []byte
		var timestamp time.Time
		var event store.RunEvent
		if err := rows.Scan(&event.RunID, &event.Seq, &event.Type, &timestamp, &event.Source, &payloadBytes); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		event.Payload = map[string]any{}
		if len(payloadBytes) > 0 {
			if err := json.Unmarshal(payloadBytes, &event.Payload); err != nil {
				return nil, err
			}
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func decodeStringSlice(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	values := []string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
