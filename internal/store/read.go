package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CiderSlime/dagster/internal/asset"
)

const eventColumns = `storage_id, run_id, event_type, asset_key, partition_key, code_version, data_version, message, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (Event, error) {
	var (
		ev        Event
		eventType string
		key       string
		ts        int64
	)
	err := row.Scan(&ev.StorageID, &ev.RunID, &eventType, &key, &ev.PartitionKey,
		&ev.CodeVersion, &ev.DataVersion, &ev.Message, &ts)
	if err != nil {
		return Event{}, err
	}
	ev.Type = EventType(eventType)
	ev.AssetKey = asset.Key(key)
	ev.Timestamp = fromUnixNano(ts)
	return ev, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestMaterialization returns the newest materialization of one asset
// partition. ok is false when it has never been materialized.
func (s *Store) LatestMaterialization(ctx context.Context, key asset.Key, partition string) (Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM event_logs
		WHERE asset_key = ? AND partition_key = ? AND event_type = ?
		ORDER BY storage_id DESC
		LIMIT 1
	`, string(key), partition, string(EventMaterialization))

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("latest materialization of %s[%s]: %w", key, partition, err)
	}
	return ev, true, nil
}

// LatestMaterializations returns the newest materialization of every
// partition of key, keyed by partition key ("" for unpartitioned).
func (s *Store) LatestMaterializations(ctx context.Context, key asset.Key) (map[string]Event, error) {
	events, err := s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM event_logs
		WHERE asset_key = ? AND event_type = ?
		ORDER BY storage_id ASC
	`, string(key), string(EventMaterialization))
	if err != nil {
		return nil, fmt.Errorf("latest materializations of %s: %w", key, err)
	}
	latest := make(map[string]Event, len(events))
	for _, ev := range events {
		latest[ev.PartitionKey] = ev
	}
	return latest, nil
}

// PreviousMaterialization returns the newest materialization of the asset
// partition strictly before storage id before.
func (s *Store) PreviousMaterialization(ctx context.Context, key asset.Key, partition string, before int64) (Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM event_logs
		WHERE asset_key = ? AND partition_key = ? AND event_type = ? AND storage_id < ?
		ORDER BY storage_id DESC
		LIMIT 1
	`, string(key), partition, string(EventMaterialization), before)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("previous materialization of %s[%s]: %w", key, partition, err)
	}
	return ev, true, nil
}

// EventsAfter returns every event with storage id greater than after.
func (s *Store) EventsAfter(ctx context.Context, after int64) ([]Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM event_logs
		WHERE storage_id > ?
		ORDER BY storage_id ASC
	`, after)
}

// RunEvents returns the events of one run in storage order.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM event_logs
		WHERE run_id = ?
		ORDER BY storage_id ASC
	`, runID)
}

// MaxStorageID returns the highest storage id, 0 for an empty log.
func (s *Store) MaxStorageID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(storage_id), 0) FROM event_logs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("max storage id: %w", err)
	}
	return id, nil
}

// CountEvents counts events of one type.
func (s *Store) CountEvents(ctx context.Context, t EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_logs WHERE event_type = ?`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", t, err)
	}
	return n, nil
}

const runColumns = `rowid, run_id, status, partition_key, asset_selection, tags, created_at, updated_at`

func scanRun(row scanner) (Run, error) {
	var (
		run              Run
		status           string
		selection, tags  string
		created, updated int64
	)
	if err := row.Scan(&run.Seq, &run.RunID, &status, &run.PartitionKey, &selection, &tags, &created, &updated); err != nil {
		return Run{}, err
	}
	var err error
	if run.AssetSelection, err = unmarshalSelection(selection); err != nil {
		return Run{}, err
	}
	if run.Tags, err = unmarshalTags(tags); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.CreatedAt = fromUnixNano(created)
	run.UpdatedAt = fromUnixNano(updated)
	return run, nil
}

// GetRun returns one run or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns every run in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
