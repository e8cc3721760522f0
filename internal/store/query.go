package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/anchorkeep/internal/trace"
)

// Predicate filters event log rows.
//
// This is a sealed interface: only types in this package implement it, so
// compilePredicate can switch over every case.
type Predicate interface {
	predicateNode()
}

// SessionIs matches events of one session.
type SessionIs string

// KindIn matches events whose kind is one of the listed kinds. An empty
// list matches nothing.
type KindIn []string

// SeqAfter matches events with seq strictly greater than the value.
type SeqAfter int64

// And matches rows that satisfy every predicate. An empty And matches all.
type And []Predicate

func (SessionIs) predicateNode() {}
func (KindIn) predicateNode()    {}
func (SeqAfter) predicateNode()  {}
func (And) predicateNode()       {}

// EventQuery selects events from the log.
type EventQuery struct {
	Filter Predicate // nil matches every event
	Limit  int       // 0 means no limit
}

// QueryEvents returns the events matching q ordered by session start, then
// seq.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]trace.Record, error) {
	query, params, err := compileEventQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []trace.Record{}
	for rows.Next() {
		var (
			rec     trace.Record
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &rec.Kind, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// eventSelect reads events with the rowid of each session's first event,
// so sessions come back in the order ReadSessions lists them.
const eventSelect = `SELECT id, session, seq, kind, payload FROM (
	SELECT e.*, MIN(e.rowid) OVER (PARTITION BY e.session) AS session_started
	FROM events e
)`

// compileEventQuery builds parameterized SQL for q. Values are never
// interpolated, and every query carries a total ORDER BY.
func compileEventQuery(q EventQuery) (string, []any, error) {
	if q.Limit < 0 {
		return "", nil, fmt.Errorf("negative limit %d", q.Limit)
	}

	var b strings.Builder
	b.WriteString(eventSelect)

	var params []any
	if q.Filter != nil {
		where, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}

	b.WriteString(" ORDER BY session_started ASC, seq ASC, id COLLATE BINARY ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case SessionIs:
		return "session = ?", []any{string(pred)}, nil
	case SeqAfter:
		return "seq > ?", []any{int64(pred)}, nil
	case KindIn:
		if len(pred) == 0 {
			return "1 = 0", nil, nil
		}
		params := make([]any, len(pred))
		for i, k := range pred {
			params[i] = k
		}
		return "kind IN (?" + strings.Repeat(", ?", len(pred)-1) + ")", params, nil
	case And:
		if len(pred) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred))
		var params []any
		for _, sub := range pred {
			if sub == nil {
				return "", nil, fmt.Errorf("nil predicate in And")
			}
			sql, p, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
