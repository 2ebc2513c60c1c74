package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/fetch"
	"github.com/samirrijal/soundlines/internal/core/messaging"
	"github.com/samirrijal/soundlines/internal/core/ports"
	"github.com/samirrijal/soundlines/internal/pkg/metrics"
)

// Refresh kinds accepted by ViewerService.Refresh.
const (
	RefreshAll      = "all"
	RefreshEntities = "entities"
	RefreshCells    = "cells"
)

const eventBuffer = 16

// ErrAlreadyRun is returned by Run when the viewer has been run before.
var ErrAlreadyRun = errors.New("viewer already ran")

// Invalidator drops cached data ahead of an explicit refresh.
type Invalidator interface {
	Invalidate(ctx context.Context, kind string) error
}

// ViewerConfig tunes the owning-side loop.
type ViewerConfig struct {
	TickInterval    time.Duration
	RefreshInterval time.Duration // 0 disables periodic refresh
	ShutdownTimeout time.Duration
}

// ViewerService is the owning side of the fetch worker. It requests both
// collections at start, polls one result per tick and keeps the latest
// snapshot of each collection for readers.
type ViewerService struct {
	client      *fetch.Client
	publisher   ports.SnapshotPublisher
	invalidator Invalidator
	cfg         ViewerConfig
	logger      *slog.Logger

	snapshot  atomic.Pointer[domain.Snapshot]
	startOnce sync.Once
	ran       atomic.Bool

	eventsMu     sync.Mutex
	eventsClosed bool
	events       chan domain.SnapshotEvent
}

// NewViewerService creates a ViewerService. publisher and invalidator may
// be nil.
func NewViewerService(client *fetch.Client, publisher ports.SnapshotPublisher, invalidator Invalidator, cfg ViewerConfig) *ViewerService {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second / 60
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &ViewerService{
		client:      client,
		publisher:   publisher,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      slog.Default().With("component", "viewer"),
		events:      make(chan domain.SnapshotEvent, eventBuffer),
	}
	s.snapshot.Store(&domain.Snapshot{
		Entities: []domain.Entity{},
		Cells:    []domain.Cell{},
	})
	return s
}

// Snapshot returns the current snapshot. The value must not be modified.
func (s *ViewerService) Snapshot() *domain.Snapshot {
	return s.snapshot.Load()
}

// WorkerState reports the state of the fetch worker.
func (s *ViewerService) WorkerState() fetch.State {
	return s.client.State()
}

// Pending reports queued requests and unread results.
func (s *ViewerService) Pending() (requests, results int) {
	return s.client.Pending()
}

// Start requests entities then cells and launches the worker. Later calls
// do nothing.
func (s *ViewerService) Start() {
	s.startOnce.Do(func() {
		s.client.RequestEntities()
		s.client.RequestCells()
		s.client.Start()
	})
}

// Refresh enqueues fetch requests for kind. It never blocks on the fetch.
func (s *ViewerService) Refresh(ctx context.Context, kind string) error {
	if kind == "" {
		kind = RefreshAll
	}
	if kind != RefreshAll && kind != RefreshEntities && kind != RefreshCells {
		return fmt.Errorf("unknown refresh kind %q", kind)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, kind); err != nil {
			s.logger.Warn("cache invalidation failed", "kind", kind, "error", err)
		}
	}

	if kind != RefreshCells {
		s.client.RequestEntities()
	}
	if kind != RefreshEntities {
		s.client.RequestCells()
	}
	return nil
}

// Tick polls at most one result and applies it. It reports whether the
// snapshot changed.
func (s *ViewerService) Tick() bool {
	msg, ok := s.client.PollResult()
	if !ok {
		return false
	}
	a := &applier{s: s}
	msg.Accept(a)
	return a.changed
}

// Run drives Tick at the configured rate until ctx is cancelled, then
// stops the worker and waits for it within ShutdownTimeout. A viewer runs
// once; later calls return ErrAlreadyRun. Tick stays usable after Run
// returns to drain late results, but their events are no longer published.
func (s *ViewerService) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	s.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.publishEvents()
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	var refresh <-chan time.Time
	if s.cfg.RefreshInterval > 0 {
		rt := time.NewTicker(s.cfg.RefreshInterval)
		defer rt.Stop()
		refresh = rt.C
	}

	s.logger.Info("viewer running", "tick", s.cfg.TickInterval, "refresh", s.cfg.RefreshInterval)

	for {
		select {
		case <-ctx.Done():
			err := s.shutdown()
			s.closeEvents()
			wg.Wait()
			return err
		case <-refresh:
			_ = s.Refresh(ctx, RefreshAll)
		case <-ticker.C:
			s.Tick()
			requests, results := s.Pending()
			metrics.QueueDepth.WithLabelValues("requests").Set(float64(requests))
			metrics.QueueDepth.WithLabelValues("results").Set(float64(results))
		}
	}
}

func (s *ViewerService) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("fetch worker did not stop in time", "timeout", s.cfg.ShutdownTimeout, "error", err)
		return err
	}
	s.logger.Info("fetch worker stopped")
	return nil
}

func (s *ViewerService) closeEvents() {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.eventsClosed = true
	close(s.events)
}

func (s *ViewerService) publishEvents() {
	for ev := range s.events {
		if s.publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.publisher.PublishSnapshotEvent(ctx, ev); err != nil {
			s.logger.Warn("publish snapshot event failed", "kind", ev.Kind, "error", err)
		}
		cancel()
	}
}

// replace installs a copy of the current snapshot modified by update.
func (s *ViewerService) replace(kind string, count int, update func(*domain.Snapshot)) {
	cur := s.snapshot.Load()
	next := *cur
	update(&next)
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	s.snapshot.Store(&next)

	metrics.SnapshotSize.WithLabelValues(kind).Set(float64(count))
	metrics.SnapshotReplacements.WithLabelValues(kind).Inc()
	s.logger.Debug("snapshot replaced", "kind", kind, "count", count, "version", next.Version)

	if s.publisher == nil {
		return
	}
	ev := domain.SnapshotEvent{Kind: kind, Count: count, Version: next.Version, UpdatedAt: next.UpdatedAt}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.eventsClosed {
		s.logger.Debug("viewer stopped, snapshot event not published", "kind", kind, "version", next.Version)
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("snapshot event dropped", "kind", kind, "version", next.Version)
	}
}

// applier handles results on the owning side.
type applier struct {
	s       *ViewerService
	changed bool
}

func (a *applier) VisitEntitiesReady(m messaging.EntitiesReady) {
	entities := m.Entities()
	a.s.replace(RefreshEntities, len(entities), func(snap *domain.Snapshot) {
		snap.Entities = entities
	})
	a.changed = true
}

func (a *applier) VisitCellsReady(m messaging.CellsReady) {
	cells := m.Cells()
	a.s.replace(RefreshCells, len(cells), func(snap *domain.Snapshot) {
		snap.Cells = cells
	})
	a.changed = true
}

// Request kinds never travel on the result channel.
func (a *applier) VisitStop(messaging.Stop)                   {}
func (a *applier) VisitFetchEntities(messaging.FetchEntities) {}
func (a *applier) VisitFetchCells(messaging.FetchCells)       {}
