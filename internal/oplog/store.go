package oplog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists oplog rows in Postgres.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewStore wraps a pgx pool. maxRetries caps RETRY cycles before a row goes
// terminal FAILED.
func NewStore(pool *pgxpool.Pool, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Store{pool: pool, maxRetries: maxRetries}
}

// EnsureSchema creates the oplog table and its claim-scan index when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ai_oplog (
			id BIGSERIAL PRIMARY KEY,
			entity_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			target_index TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			retry_count INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			error_message TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create ai_oplog: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS ai_oplog_claim_idx
		ON ai_oplog (status, next_attempt_at)`)
	if err != nil {
		return fmt.Errorf("create claim index: %w", err)
	}
	return nil
}

// Enqueue inserts a PENDING row unless an equivalent non-completed row
// already exists, keeping pass 1 idempotent under replay.
func (s *Store) Enqueue(ctx context.Context, entityID, taskType string, payload Payload, targetIndex string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal oplog payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ai_oplog (entity_id, task_type, payload, target_index)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM ai_oplog
			WHERE entity_id = $1
			  AND task_type = $2
			  AND target_index IS NOT DISTINCT FROM $4
			  AND status <> 'COMPLETED'
		)`, entityID, taskType, data, nullable(targetIndex))
	if err != nil {
		return fmt.Errorf("enqueue oplog row for %s: %w", entityID, err)
	}
	return nil
}

// Claim atomically moves up to limit due rows to PROCESSING and returns
// them. SKIP LOCKED keeps concurrent workers on disjoint batches.
func (s *Store) Claim(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE ai_oplog
		SET status = 'PROCESSING', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM ai_oplog
			WHERE status IN ('PENDING', 'RETRY')
			  AND next_attempt_at <= NOW()
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING id, entity_id, task_type, payload, retry_count, target_index`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim oplog rows: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			payloadJSON []byte
			targetIndex *string
		)
		if err := rows.Scan(&e.ID, &e.EntityID, &e.TaskType, &payloadJSON, &e.RetryCount, &targetIndex); err != nil {
			return nil, fmt.Errorf("scan oplog row: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode oplog payload %d: %w", e.ID, err)
		}
		if targetIndex != nil {
			e.TargetIndex = *targetIndex
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim oplog rows: %w", err)
	}
	return entries, nil
}

// Complete marks a claimed row done.
func (s *Store) Complete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ai_oplog SET status = 'COMPLETED', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete oplog row %d: %w", id, err)
	}
	return nil
}

// Fail reschedules a claimed row with exponential backoff, or moves it to
// FAILED once the retry cap is reached.
func (s *Store) Fail(ctx context.Context, e Entry, jobErr error) error {
	retryCount := e.RetryCount + 1
	if retryCount > s.maxRetries {
		_, err := s.pool.Exec(ctx, `
			UPDATE ai_oplog
			SET status = 'FAILED', error_message = $1, updated_at = NOW()
			WHERE id = $2`, jobErr.Error(), e.ID)
		if err != nil {
			return fmt.Errorf("fail oplog row %d: %w", e.ID, err)
		}
		return nil
	}
	delay := Backoff(retryCount)
	_, err := s.pool.Exec(ctx, `
		UPDATE ai_oplog
		SET status = 'RETRY',
		    retry_count = $1,
		    next_attempt_at = NOW() + ($2 || ' seconds')::interval,
		    error_message = $3,
		    updated_at = NOW()
		WHERE id = $4`, retryCount, fmt.Sprint(int(delay.Seconds())), jobErr.Error(), e.ID)
	if err != nil {
		return fmt.Errorf("reschedule oplog row %d: %w", e.ID, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
