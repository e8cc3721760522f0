package anchor

import "fmt"

// Store is the ordered record table.
//
// INVARIANTS:
//   - order lists every ID in records exactly once, in placement order
//   - at most one record is StatusAwaitingName (enforced by the manager)
//   - IDs are never reused while the sequence has not been rewound
type Store struct {
	records map[ID]*Record
	order   []ID
	nextID  ID
}

// NewStore creates an empty store whose first record gets ID 1.
func NewStore() *Store {
	return &Store{
		records: make(map[ID]*Record),
		nextID:  1,
	}
}

// Add creates a record in StatusPlaced at the next placement index.
func (s *Store) Add(pose Pose, handle Handle) Record {
	id := s.nextID
	s.nextID++

	rec := &Record{
		ID:     id,
		Name:   "",
		Pose:   pose,
		Status: StatusPlaced,
		Handle: handle,
		Artifacts: Artifacts{
			Object:    fmt.Sprintf("anchor-%d/object", id),
			Indicator: fmt.Sprintf("anchor-%d/indicator", id),
		},
	}
	s.records[id] = rec
	s.order = append(s.order, id)
	return *rec
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id ID) (Record, bool) {
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Update applies fn to the stored record. Returns false if the record is gone.
func (s *Store) Update(id ID, fn func(*Record)) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Remove deletes the record and its artifacts.
func (s *Store) Remove(id ID) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Rollback removes the most recently added record and rewinds the sequence so
// the store is exactly as it was before that Add. Any other ID is refused.
func (s *Store) Rollback(id ID) bool {
	if id != s.nextID-1 {
		return false
	}
	if !s.Remove(id) {
		return false
	}
	s.nextID--
	return true
}

// Reset drops every record and restarts the sequence at 1.
func (s *Store) Reset() {
	s.records = make(map[ID]*Record)
	s.order = nil
	s.nextID = 1
}

// All returns copies of every record in placement order.
func (s *Store) All() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// WithStatus returns copies of the records in the given status, in placement order.
func (s *Store) WithStatus(status Status) []Record {
	var out []Record
	for _, id := range s.order {
		if rec := s.records[id]; rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out
}

// Count returns how many records are in any of the given statuses.
// With no statuses it counts every record.
func (s *Store) Count(statuses ...Status) int {
	if len(statuses) == 0 {
		return len(s.order)
	}
	n := 0
	for _, rec := range s.records {
		for _, st := range statuses {
			if rec.Status == st {
				n++
				break
			}
		}
	}
	return n
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.order)
}

// NextID returns the ID the next Add will assign.
func (s *Store) NextID() ID {
	return s.nextID
}
