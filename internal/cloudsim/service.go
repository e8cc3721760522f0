package cloudsim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/cloud"
)

// Registry stores hosted cloud anchors so they can be resolved later,
// possibly by another process sharing the same database.
type Registry interface {
	RegisterCloudAnchor(ctx context.Context, cloudID string, handle anchor.Handle, expiresAt time.Time) error
	LookupCloudAnchor(ctx context.Context, cloudID string, now time.Time) (bool, error)
}

// Config controls simulated latency and request quota.
type Config struct {
	HostLatency       time.Duration
	ResolveLatency    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Service is a cloud.Service that completes calls on background goroutines
// after a fixed latency. Requests over the quota complete at issue time with
// StateErrorResourceExhausted.
//
// Safe for concurrent use. Close waits for outstanding calls.
type Service struct {
	cfg      Config
	limiter  *rate.Limiter
	registry Registry
	ids      IDGenerator
	handles  IDGenerator
	now      func() time.Time
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	closeOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDs sets the generator for new cloud anchor ids.
func WithIDs(g IDGenerator) ServiceOption {
	return func(s *Service) { s.ids = g }
}

// WithHandles sets the generator for resolved anchor handles.
func WithHandles(g IDGenerator) ServiceOption {
	return func(s *Service) { s.handles = g }
}

// WithClock overrides the wall clock used for TTL expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a simulated service backed by the registry.
func NewService(cfg Config, registry Registry, opts ...ServiceOption) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		registry: registry,
		ids:      UUIDv7Generator{},
		handles:  UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HostAsync implements cloud.Service.
func (s *Service) HostAsync(handle anchor.Handle, ttlDays int) cloud.Promise[cloud.HostResult] {
	if ttlDays < cloud.MinTTLDays || ttlDays > cloud.MaxTTLDays {
		return donePromise(cloud.HostResult{State: cloud.StateErrorInternal})
	}
	if !s.limiter.Allow() {
		return donePromise(cloud.HostResult{State: cloud.StateErrorResourceExhausted})
	}

	p := newPromise[cloud.HostResult]()
	pctx := s.track(p)
	s.wg.Go(func() {
		if !sleep(pctx, s.cfg.HostLatency) {
			return
		}
		cloudID := s.ids.Generate()
		expires := s.now().Add(time.Duration(ttlDays) * 24 * time.Hour)
		if err := s.registry.RegisterCloudAnchor(pctx, cloudID, handle, expires); err != nil {
			s.logger.Error("register hosted anchor", "handle", handle, "error", err)
			p.complete(cloud.HostResult{State: cloud.StateErrorInternal})
			return
		}
		p.complete(cloud.HostResult{State: cloud.StateSuccess, CloudID: cloudID})
	})
	return p
}

// ResolveAsync implements cloud.Service.
func (s *Service) ResolveAsync(cloudID string) cloud.Promise[cloud.ResolveResult] {
	if !s.limiter.Allow() {
		return donePromise(cloud.ResolveResult{State: cloud.StateErrorResourceExhausted})
	}

	p := newPromise[cloud.ResolveResult]()
	pctx := s.track(p)
	s.wg.Go(func() {
		if !sleep(pctx, s.cfg.ResolveLatency) {
			return
		}
		found, err := s.registry.LookupCloudAnchor(pctx, cloudID, s.now())
		switch {
		case err != nil:
			s.logger.Error("lookup cloud anchor", "cloud_id", cloudID, "error", err)
			p.complete(cloud.ResolveResult{State: cloud.StateErrorInternal})
		case !found:
			p.complete(cloud.ResolveResult{State: cloud.StateErrorResolvingCloudIDNotFound})
		default:
			p.complete(cloud.ResolveResult{
				State:  cloud.StateSuccess,
				Anchor: anchor.Handle(s.handles.Generate()),
			})
		}
	})
	return p
}

// Close abandons outstanding calls and waits for their goroutines.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// track derives a per-call context cancelled by the promise's Cancel.
func (s *Service) track(p interface{ setOnCancel(func()) }) context.Context {
	pctx, pcancel := context.WithCancel(s.ctx)
	p.setOnCancel(pcancel)
	return pctx
}

// sleep waits d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
