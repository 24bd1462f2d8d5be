package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type payloadRepository struct {
	pool *pgxpool.Pool
}

// NewPayloadRepository instantiates the Postgres payload store.
func NewPayloadRepository(pool *pgxpool.Pool) PayloadStore {
	return &payloadRepository{pool: pool}
}

func (r *payloadRepository) ListEpics(ctx context.Context) ([]EpicRecord, error) {
	const query = `SELECT key, payload, updated_at FROM epics ORDER BY key`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EpicRecord
	for rows.Next() {
		var (
			rec     EpicRecord
			payload []byte
		)
		if err := rows.Scan(&rec.Key, &payload, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Payload = json.RawMessage(payload)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *payloadRepository) GetEpic(ctx context.Context, key string) (*EpicRecord, error) {
	const query = `SELECT key, payload, updated_at FROM epics WHERE key=$1`
	var (
		rec     EpicRecord
		payload []byte
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &payload, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEpicNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

func (r *payloadRepository) UpsertEpics(ctx context.Context, records []EpicRecord) error {
	if len(records) == 0 {
		return nil
	}
	const query = `
        INSERT INTO epics (key, payload, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.Key, string(rec.Payload))
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *payloadRepository) ReplaceIssues(ctx context.Context, epicKey string, payloads []json.RawMessage) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM epics WHERE key=$1)`, epicKey).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrEpicNotFound
	}

	if _, err = tx.Exec(ctx, `DELETE FROM issue_payloads WHERE epic_key=$1`, epicKey); err != nil {
		return err
	}

	const insert = `
        INSERT INTO issue_payloads (epic_key, issue_key, position, payload, fetched_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (epic_key, issue_key) DO UPDATE SET position = EXCLUDED.position, payload = EXCLUDED.payload`
	batch := &pgx.Batch{}
	for i, payload := range payloads {
		key, keyErr := KeyOf(payload)
		if keyErr != nil {
			err = fmt.Errorf("issue payload %d: %w", i, keyErr)
			return err
		}
		batch.Queue(insert, epicKey, key, i, string(payload))
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if _, err = tx.Exec(ctx, `UPDATE epics SET updated_at = NOW() WHERE key=$1`, epicKey); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *payloadRepository) ListIssues(ctx context.Context, epicKey string) ([]json.RawMessage, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM epics WHERE key=$1)`, epicKey).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEpicNotFound
	}

	const query = `SELECT payload FROM issue_payloads WHERE epic_key=$1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, epicKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []json.RawMessage{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result = append(result, json.RawMessage(payload))
	}
	return result, rows.Err()
}

func (r *payloadRepository) RecordSync(ctx context.Context, run SyncRun) error {
	const query = `
        INSERT INTO sync_runs (id, epic_key, started_at, finished_at, issue_count, skipped, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.EpicKey,
		run.StartedAt,
		run.FinishedAt,
		run.IssueCount,
		run.Skipped,
		run.Error,
	)
	return err
}

func (r *payloadRepository) ListSyncRuns(ctx context.Context, epicKey string, limit int) ([]SyncRun, error) {
	const query = `
        SELECT id, epic_key, started_at, finished_at, issue_count, skipped, error
        FROM sync_runs WHERE epic_key=$1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, epicKey, syncRunLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(
			&run.ID,
			&run.EpicKey,
			&run.StartedAt,
			&run.FinishedAt,
			&run.IssueCount,
			&run.Skipped,
			&run.Error,
		); err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}
