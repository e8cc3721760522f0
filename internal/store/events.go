package store

import (
	"context"
	"fmt"

	"github.com/roach88/anchorkeep/internal/trace"
)

// SessionSummary describes one recorded manager session.
type SessionSummary struct {
	Session string `json:"session"`
	Events  int    `json:"events"`
	LastSeq int64  `json:"last_seq"`
}

// WriteEvent appends an event record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate ids are ignored.
func (s *Store) WriteEvent(ctx context.Context, rec trace.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, session, seq, kind, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Session, rec.Seq, rec.Kind, string(rec.Payload))
	if err != nil {
		return fmt.Errorf("write event %d: %w", rec.Seq, err)
	}
	return nil
}

// ReadEvents returns the events of one session ordered by seq.
// Returns an empty slice (not nil) for an unknown session.
func (s *Store) ReadEvents(ctx context.Context, session string) ([]trace.Record, error) {
	return s.QueryEvents(ctx, EventQuery{Filter: SessionIs(session)})
}

// ReadSessions lists recorded sessions, oldest first.
func (s *Store) ReadSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, COUNT(*), MAX(seq)
		FROM events
		GROUP BY session
		ORDER BY MIN(rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Session, &sum.Events, &sum.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session, or "" if the
// event log is empty.
func (s *Store) LatestSession(ctx context.Context) (string, error) {
	sessions, err := s.ReadSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", nil
	}
	return sessions[len(sessions)-1].Session, nil
}
