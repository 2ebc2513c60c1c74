package geospatial

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"

	"github.com/samirrijal/soundlines/internal/core/domain"
)

var seoul = Viewport{
	Left: 126.989223, Top: 37.579291,
	Right: 127.015067, Bottom: 37.563660,
	Width: 1033, Height: 800,
}

var approx = cmpopts.EquateApprox(0, 1e-6)

func TestGeoToPixel_Corners(t *testing.T) {
	tests := []struct {
		name string
		in   orb.Point
		want Pixel
	}{
		{"top-left", orb.Point{seoul.Left, seoul.Top}, Pixel{0, 0}},
		{"bottom-right", orb.Point{seoul.Right, seoul.Bottom}, Pixel{1033, 800}},
		{"bottom-left", orb.Point{seoul.Left, seoul.Bottom}, Pixel{0, 800}},
		{"center", orb.Point{(seoul.Left + seoul.Right) / 2, (seoul.Top + seoul.Bottom) / 2}, Pixel{516.5, 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seoul.GeoToPixel(tt.in)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("GeoToPixel mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVisible(t *testing.T) {
	if !seoul.Visible(orb.Point{127.0, 37.57}) {
		t.Error("expected point inside viewport to be visible")
	}
	if seoul.Visible(orb.Point{127.1, 37.57}) {
		t.Error("expected point east of viewport to be hidden")
	}
	if seoul.Visible(orb.Point{127.0, 37.5}) {
		t.Error("expected point south of viewport to be hidden")
	}
}

func TestCellRect(t *testing.T) {
	w := (seoul.Right - seoul.Left) / 10
	h := (seoul.Top - seoul.Bottom) / 8
	left, top := seoul.Left, seoul.Top
	cell := domain.Cell{ID: 1, Geom: [4]orb.Point{
		{left, top},
		{left, top - h},
		{left + w, top - h},
		{left + w, top},
	}}

	got := seoul.CellRect(cell)
	want := Rect{X: 0, Y: 0, W: 103.3, H: 100}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("CellRect mismatch (-want +got):\n%s", diff)
	}
}

func TestFrame(t *testing.T) {
	snap := &domain.Snapshot{
		Version: 7,
		Entities: []domain.Entity{
			{ID: 1, Point: orb.Point{seoul.Left, seoul.Top}},
			{ID: 2, Point: orb.Point{seoul.Right, seoul.Bottom}},
			{ID: 3, Point: orb.Point{seoul.Left, seoul.Bottom}},
		},
	}

	f := seoul.Frame(snap, 2)
	if !f.Truncated {
		t.Error("expected frame to be truncated")
	}
	want := []Circle{
		{ID: 1, X: 0, Y: 0, Radius: EntityRadius},
		{ID: 2, X: 1033, Y: 800, Radius: EntityRadius},
	}
	if diff := cmp.Diff(want, f.Entities, approx); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if f.Version != 7 || len(f.Cells) != 0 {
		t.Errorf("unexpected frame header %+v", f)
	}

	if all := seoul.Frame(snap, 0); all.Truncated || len(all.Entities) != 3 {
		t.Errorf("expected unlimited frame, got %d entities", len(all.Entities))
	}

	snap.Entities = append(snap.Entities, domain.Entity{ID: 4, Point: orb.Point{127.2, 37.57}})
	if off := seoul.Frame(snap, 0).Offscreen; off != 1 {
		t.Errorf("expected 1 offscreen entity, got %d", off)
	}
}

func TestFrame_NilSnapshot(t *testing.T) {
	f := seoul.Frame(nil, 10)
	if f.Entities == nil || f.Cells == nil {
		t.Error("expected empty, non-nil slices")
	}
	if math.Abs(f.Width-1033) > 0 {
		t.Errorf("unexpected width %v", f.Width)
	}
}
