package cloudsim

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/anchorkeep/internal/anchor"
)

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	anchors map[string]time.Time
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{anchors: make(map[string]time.Time)}
}

// RegisterCloudAnchor implements Registry.
func (r *MemoryRegistry) RegisterCloudAnchor(_ context.Context, cloudID string, _ anchor.Handle, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anchors[cloudID] = expiresAt
	return nil
}

// LookupCloudAnchor implements Registry. Expired anchors are not found.
func (r *MemoryRegistry) LookupCloudAnchor(_ context.Context, cloudID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expires, ok := r.anchors[cloudID]
	return ok && now.Before(expires), nil
}
