package domain

import "github.com/paulmach/orb"

// GeoPoint is a latitude/longitude pair (WGS 84) for API consumers that
// prefer named fields over the [lon, lat] array form.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoPointFrom converts an orb point ([lon, lat]) to a GeoPoint.
func GeoPointFrom(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsFromOrb converts an orb.Bound into Bounds.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

// Contains reports whether p lies inside the bounds (edges inclusive).
func (b Bounds) Contains(p orb.Point) bool {
	return p.Lat() >= b.MinLat && p.Lat() <= b.MaxLat &&
		p.Lon() >= b.MinLon && p.Lon() <= b.MaxLon
}
