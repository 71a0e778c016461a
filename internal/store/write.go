package store

import (
	"context"
	"fmt"
	"time"
)

// CreateRun inserts a run. An empty Status is stored as STARTED.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = RunStarted
	}
	tagsJSON, err := marshalTags(run.Tags)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	selectionJSON, err := marshalSelection(run.AssetSelection)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	created := toUnixNano(run.CreatedAt)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, status, partition_key, asset_selection, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		string(run.Status),
		run.PartitionKey,
		selectionJSON,
		tagsJSON,
		created,
		created,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

// FinishRun sets the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ?
	`, string(status), toUnixNano(at), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// RecordEvent appends an event and returns its storage id.
// The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordEvent(ctx context.Context, ev Event) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_logs
		(run_id, event_type, asset_key, partition_key, code_version, data_version, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.RunID,
		string(ev.Type),
		string(ev.AssetKey),
		ev.PartitionKey,
		ev.CodeVersion,
		ev.DataVersion,
		ev.Message,
		toUnixNano(ev.Timestamp),
	)
	if err != nil {
		return 0, fmt.Errorf("record %s event for %s: %w", ev.Type, ev.AssetKey, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record %s event for %s: %w", ev.Type, ev.AssetKey, err)
	}
	return id, nil
}
