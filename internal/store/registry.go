package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/anchorkeep/internal/anchor"
)

// RegisterCloudAnchor records a hosted cloud anchor until expiresAt.
func (s *Store) RegisterCloudAnchor(ctx context.Context, cloudID string, handle anchor.Handle, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cloud_anchors (cloud_anchor_id, handle, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cloud_anchor_id) DO UPDATE SET
			handle = excluded.handle,
			expires_at = excluded.expires_at
	`, cloudID, string(handle), expiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("register cloud anchor %s: %w", cloudID, err)
	}
	return nil
}

// LookupCloudAnchor reports whether cloudID is registered and unexpired at now.
func (s *Store) LookupCloudAnchor(ctx context.Context, cloudID string, now time.Time) (bool, error) {
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT expires_at FROM cloud_anchors WHERE cloud_anchor_id = ?
	`, cloudID).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup cloud anchor %s: %w", cloudID, err)
	}
	return now.UnixMilli() < expiresAt, nil
}

// PurgeExpired deletes cloud anchors that expired before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cloud_anchors WHERE expires_at <= ?
	`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge cloud anchors: %w", err)
	}
	return res.RowsAffected()
}
