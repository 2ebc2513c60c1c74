package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

func mustWKB(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	raw, err := wkb.Marshal(g)
	if err != nil {
		t.Fatalf("marshal wkb: %v", err)
	}
	return raw
}

func TestPointFromWKB(t *testing.T) {
	want := orb.Point{127.001, 37.571}
	got, err := pointFromWKB(mustWKB(t, want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := pointFromWKB(mustWKB(t, orb.LineString{{0, 0}, {1, 1}})); err == nil {
		t.Error("expected error for non-point geometry")
	}
	if _, err := pointFromWKB([]byte{0x01}); err == nil {
		t.Error("expected error for truncated wkb")
	}
}

func TestCornersFromWKB(t *testing.T) {
	ring := orb.Ring{{0, 1}, {0, 0}, {1, 0}, {1, 1}, {0, 1}}
	got, err := cornersFromWKB(mustWKB(t, orb.Polygon{ring}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [4]orb.Point{{0, 1}, {0, 0}, {1, 0}, {1, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("corners mismatch (-want +got):\n%s", diff)
	}

	short := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {0, 0}}}
	if _, err := cornersFromWKB(mustWKB(t, short)); err == nil {
		t.Error("expected error for degenerate ring")
	}
	if _, err := cornersFromWKB(mustWKB(t, orb.Point{1, 2})); err == nil {
		t.Error("expected error for non-polygon geometry")
	}
}

func TestSource_FetchBeforeInitialize(t *testing.T) {
	s := NewSource("postgres://unused", 1, 0)

	if _, err := s.FetchEntitiesRaw(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.FetchCellsRaw(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from Ping, got %v", err)
	}
	if s.Stat() != nil {
		t.Error("expected nil stats before Initialize")
	}
	s.Close()
}

func TestSource_InitializeBadDSN(t *testing.T) {
	s := NewSource("postgres://localhost:notaport/soundlines", 1, 0)
	if err := s.Initialize(context.Background()); err == nil {
		t.Fatal("expected error for invalid DSN")
	}
	if _, err := s.FetchEntitiesRaw(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("failed Initialize must leave source unconnected, got %v", err)
	}
}

func TestMigrationFiles(t *testing.T) {
	up, err := MigrationFiles(Up)
	if err != nil {
		t.Fatal(err)
	}
	wantUp := []string{
		"migrations/001_init_extensions.up.sql",
		"migrations/002_core_tables.up.sql",
	}
	if diff := cmp.Diff(wantUp, up); diff != "" {
		t.Errorf("up order mismatch (-want +got):\n%s", diff)
	}

	down, err := MigrationFiles(Down)
	if err != nil {
		t.Fatal(err)
	}
	wantDown := []string{
		"migrations/002_core_tables.down.sql",
		"migrations/001_init_extensions.down.sql",
	}
	if diff := cmp.Diff(wantDown, down); diff != "" {
		t.Errorf("down order mismatch (-want +got):\n%s", diff)
	}
}
