package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/samirrijal/soundlines/internal/core/fetch"
	"github.com/samirrijal/soundlines/internal/core/usecases"
)

func newViewer(src *mockSource, pub *mockPublisher, inv usecases.Invalidator) *usecases.ViewerService {
	cfg := usecases.ViewerConfig{
		TickInterval:    time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	}
	if pub == nil {
		return usecases.NewViewerService(fetch.NewClient(src), nil, inv, cfg)
	}
	return usecases.NewViewerService(fetch.NewClient(src), pub, inv, cfg)
}

// tickUntil ticks until n results have been applied or the deadline passes.
func tickUntil(t *testing.T, v *usecases.ViewerService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	applied := 0
	for applied < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %d of %d results", applied, n)
		}
		if v.Tick() {
			applied++
			continue
		}
		time.Sleep(time.Millisecond)
	}
}

func stopViewer(t *testing.T, v *usecases.ViewerService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Run(ctx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func seoulSource() *mockSource {
	return &mockSource{
		entitiesFn: func(ctx context.Context) ([]byte, error) {
			return []byte(`{"entities":[{"id":1,"point":[127.0,37.57]},{"id":2,"point":[127.01,37.575]}]}`), nil
		},
		cellsFn: func(ctx context.Context) ([]byte, error) {
			return []byte(`{"cells":[{"id":9,"geom":[[127,37.58],[127,37.57],[127.01,37.57],[127.01,37.58]]}]}`), nil
		},
	}
}

func TestViewerService_InitialSnapshotEmpty(t *testing.T) {
	v := newViewer(&mockSource{}, nil, nil)
	snap := v.Snapshot()
	if snap == nil || snap.Version != 0 || len(snap.Entities) != 0 || len(snap.Cells) != 0 {
		t.Errorf("unexpected initial snapshot %+v", snap)
	}
	if v.Tick() {
		t.Error("tick before start must not change the snapshot")
	}
	if v.WorkerState() != fetch.StateCreated {
		t.Errorf("expected created worker, got %s", v.WorkerState())
	}
}

func TestViewerService_StartFetchesBoth(t *testing.T) {
	v := newViewer(seoulSource(), nil, nil)
	v.Start()
	v.Start()
	tickUntil(t, v, 2)

	snap := v.Snapshot()
	if len(snap.Entities) != 2 || len(snap.Cells) != 1 {
		t.Fatalf("expected 2 entities and 1 cell, got %d/%d", len(snap.Entities), len(snap.Cells))
	}
	if snap.Version != 2 {
		t.Errorf("expected version 2, got %d", snap.Version)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	if v.Tick() {
		t.Error("duplicate Start must not enqueue more requests")
	}
	stopViewer(t, v)
}

func TestViewerService_SnapshotIsReplacedNotMutated(t *testing.T) {
	v := newViewer(seoulSource(), nil, nil)
	v.Start()
	tickUntil(t, v, 2)
	before := v.Snapshot()
	entities := before.Entities

	if err := v.Refresh(context.Background(), usecases.RefreshEntities); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, v, 1)

	after := v.Snapshot()
	if after == before {
		t.Fatal("expected a new snapshot value")
	}
	if before.Version != 2 || after.Version != 3 {
		t.Errorf("unexpected versions %d -> %d", before.Version, after.Version)
	}
	if diff := cmp.Diff(entities, before.Entities); diff != "" {
		t.Errorf("previous snapshot was mutated:\n%s", diff)
	}
	if len(after.Cells) != 1 {
		t.Error("cells must carry over an entities-only refresh")
	}
	stopViewer(t, v)
}

func TestViewerService_RefreshKinds(t *testing.T) {
	src := seoulSource()
	cache := newMockCache()
	cs := usecases.NewCachedSource(src, cache, 60)
	v := usecases.NewViewerService(fetch.NewClient(cs), nil, cs, usecases.ViewerConfig{})
	v.Start()
	tickUntil(t, v, 2)

	if err := v.Refresh(context.Background(), "vehicles"); err == nil {
		t.Error("expected error for unknown kind")
	}

	if err := v.Refresh(context.Background(), usecases.RefreshCells); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, v, 1)
	if n := src.cellCalls.Load(); n != 2 {
		t.Errorf("explicit refresh must bypass the cache, got %d cell queries", n)
	}
	if n := src.entityCalls.Load(); n != 1 {
		t.Errorf("cells refresh must not fetch entities, got %d", n)
	}

	if err := v.Refresh(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, v, 2)
	if v.Snapshot().Version != 5 {
		t.Errorf("expected version 5, got %d", v.Snapshot().Version)
	}
	stopViewer(t, v)
}

func TestViewerService_FailedFetchKeepsSnapshot(t *testing.T) {
	src := &mockSource{
		entitiesFn: func(ctx context.Context) ([]byte, error) {
			return []byte(`not json`), nil
		},
	}
	v := newViewer(src, nil, nil)
	v.Start()
	tickUntil(t, v, 1) // only cells arrive

	snap := v.Snapshot()
	if snap.Version != 1 || len(snap.Entities) != 0 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	stopViewer(t, v)
}

func TestViewerService_RunPublishesAndStops(t *testing.T) {
	pub := &mockPublisher{}
	v := newViewer(seoulSource(), pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for v.Snapshot().Version < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for snapshot")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	if v.WorkerState() != fetch.StateStopped {
		t.Errorf("expected stopped worker, got %s", v.WorkerState())
	}
	if diff := cmp.Diff([]string{"entities", "cells"}, pub.kinds()); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}
}

func TestViewerService_PeriodicRefresh(t *testing.T) {
	src := seoulSource()
	v := usecases.NewViewerService(fetch.NewClient(src), nil, nil, usecases.ViewerConfig{
		TickInterval:    time.Millisecond,
		RefreshInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for src.entityCalls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("expected periodic refresh to re-fetch entities")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestViewerService_RunTwice(t *testing.T) {
	v := newViewer(seoulSource(), &mockPublisher{}, nil)
	stopViewer(t, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Run(ctx); !errors.Is(err, usecases.ErrAlreadyRun) {
		t.Fatalf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestViewerService_TickAfterRunDrainsLateResults(t *testing.T) {
	// Hold both fetches until shutdown has begun so no result can be
	// applied while Run is still ticking.
	release := make(chan struct{})
	src := seoulSource()
	entities, cells := src.entitiesFn, src.cellsFn
	src.entitiesFn = func(ctx context.Context) ([]byte, error) {
		<-release
		return entities(ctx)
	}
	src.cellsFn = func(ctx context.Context) ([]byte, error) {
		<-release
		return cells(ctx)
	}
	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	pub := &mockPublisher{}
	v := newViewer(src, pub, nil)
	v.Start()
	stopViewer(t, v)

	// Both fetches were queued ahead of Stop, so their results are still
	// waiting on the result channel.
	tickUntil(t, v, 2)

	snap := v.Snapshot()
	if snap.Version != 2 || len(snap.Entities) != 2 || len(snap.Cells) != 1 {
		t.Errorf("unexpected snapshot after drain: version=%d entities=%d cells=%d",
			snap.Version, len(snap.Entities), len(snap.Cells))
	}
	if got := pub.kinds(); len(got) != 0 {
		t.Errorf("expected no events after shutdown, got %v", got)
	}
	if v.Tick() {
		t.Error("tick with nothing pending must not change the snapshot")
	}
}
