package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// DomainEvent prefixes event hashes. The version suffix allows a future
// change of encoding without id collisions.
const DomainEvent = "anchorkeep/event/v1"

// Record is one persisted event.
type Record struct {
	ID      string `json:"id"`
	Session string `json:"session"`
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Payload []byte `json:"-"` // canonical JSON object
}

// NewRecord canonicalizes payload and derives the event id.
func NewRecord(session string, seq int64, kind string, payload map[string]any) (Record, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return Record{}, fmt.Errorf("event %d payload: %w", seq, err)
	}
	id, err := EventID(session, seq, kind, canonical)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:      id,
		Session: session,
		Seq:     seq,
		Kind:    kind,
		Payload: canonical,
	}, nil
}

// EventID computes the content-addressed id of an event.
// Format: SHA256(domain + 0x00 + canonical({session, seq, kind, payload})).
func EventID(session string, seq int64, kind string, canonicalPayload []byte) (string, error) {
	head, err := MarshalCanonical(map[string]any{
		"session": session,
		"seq":     seq,
		"kind":    kind,
	})
	if err != nil {
		return "", fmt.Errorf("event id: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainEvent))
	h.Write([]byte{0x00})
	h.Write(head)
	h.Write([]byte{0x00})
	h.Write(canonicalPayload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Micro converts a float to integer millionths. Canonical JSON carries no
// floats, so poses are stored in micro-units.
func Micro(f float64) int64 {
	return int64(math.Round(f * 1e6))
}

// FromMicro is the inverse of Micro.
func FromMicro(n int64) float64 {
	return float64(n) / 1e6
}
