package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Entity is a single simulated organism placed on the map.
type Entity struct {
	ID     int64     `json:"id"`
	Point  orb.Point `json:"point"` // [lon, lat]
	Prefab string    `json:"prefab,omitempty"`
	CellID int64     `json:"cell_id,omitempty"`
}

// Cell is a quadrilateral grid cell. Geom corners are ordered so that
// 0 is the top-left corner, 1 the bottom-left, 2 the bottom-right and
// 3 the top-right; renderers rely on that order to rebuild the cell's
// axis-aligned rectangle.
type Cell struct {
	ID   int64        `json:"id"`
	Geom [4]orb.Point `json:"geom"`
}

// Bound returns the geographic bounding box of the cell corners.
func (c Cell) Bound() Bounds {
	return BoundsFromOrb(orb.MultiPoint(c.Geom[:]).Bound())
}

// Snapshot is the most recently committed view of both collections.
// Values are immutable once published; replacing a collection produces
// a new Snapshot.
type Snapshot struct {
	Entities  []Entity  `json:"entities"`
	Cells     []Cell    `json:"cells"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotEvent announces that one collection of the snapshot was replaced.
type SnapshotEvent struct {
	Kind      string    `json:"kind"` // "entities" | "cells"
	Count     int       `json:"count"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
