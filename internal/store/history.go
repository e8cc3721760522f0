package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/anchorkeep/internal/anchor"
)

// LoadHistory returns the retained history entries, oldest first.
func (s *Store) LoadHistory(ctx context.Context) ([]anchor.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cloud_anchor_id, name, created_at
		FROM history
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []anchor.HistoryEntry{}
	for rows.Next() {
		var (
			e         anchor.HistoryEntry
			createdAt int64
		)
		if err := rows.Scan(&e.CloudID, &e.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// AppendHistory records a hosted anchor and drops the oldest entries beyond
// the history limit. A cloud id already in history is left unchanged.
//
// Lock contention is retried with exponential backoff; other errors are
// returned immediately.
func (s *Store) AppendHistory(ctx context.Context, entry anchor.HistoryEntry) error {
	op := func() (struct{}, error) {
		err := s.appendHistory(ctx, entry)
		if err != nil && !isBusy(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	if err != nil {
		return fmt.Errorf("append history %s: %w", entry.CloudID, err)
	}
	return nil
}

func (s *Store) appendHistory(ctx context.Context, entry anchor.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (cloud_anchor_id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cloud_anchor_id) DO NOTHING
	`, entry.CloudID, entry.Name, entry.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}

	if s.historyLimit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM history
			WHERE seq NOT IN (
				SELECT seq FROM history ORDER BY seq DESC LIMIT ?
			)
		`, s.historyLimit)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ClearHistory deletes every history entry.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}
