package geospatial

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/soundlines/internal/core/domain"
)

// EntityRadius is the pixel radius entities are drawn with.
const EntityRadius = 2.0

// Viewport maps a geographic rectangle onto a Width x Height pixel canvas.
// Pixel y grows downwards, so Top maps to 0 and Bottom to Height.
type Viewport struct {
	Left   float64 `json:"geo_left"`
	Top    float64 `json:"geo_top"`
	Right  float64 `json:"geo_right"`
	Bottom float64 `json:"geo_bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixel is a position on the canvas.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Circle marks an entity on the canvas.
type Circle struct {
	ID     int64   `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// CellRect is the rectangle of a single cell.
type CellRect struct {
	ID int64 `json:"id"`
	Rect
}

// Frame is everything needed to draw one snapshot.
type Frame struct {
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Version   uint64     `json:"version"`
	Entities  []Circle   `json:"entities"`
	Cells     []CellRect `json:"cells"`
	Truncated bool       `json:"truncated"`
	Offscreen int        `json:"offscreen"` // entities projected outside the canvas
}

func lerp(v, from0, from1, to0, to1 float64) float64 {
	return to0 + (v-from0)*(to1-to0)/(from1-from0)
}

// GeoToPixel projects a [lon, lat] point onto the canvas.
func (v Viewport) GeoToPixel(p orb.Point) Pixel {
	return Pixel{
		X: lerp(p.Lon(), v.Left, v.Right, 0, v.Width),
		Y: v.Height - lerp(p.Lat(), v.Bottom, v.Top, 0, v.Height),
	}
}

// Bounds returns the geographic rectangle covered by the viewport.
func (v Viewport) Bounds() domain.Bounds {
	return domain.Bounds{
		MinLat: min(v.Top, v.Bottom),
		MinLon: min(v.Left, v.Right),
		MaxLat: max(v.Top, v.Bottom),
		MaxLon: max(v.Left, v.Right),
	}
}

// Visible reports whether p falls inside the viewport's geographic bounds.
func (v Viewport) Visible(p orb.Point) bool {
	return v.Bounds().Contains(p)
}

// CellRect rebuilds the pixel rectangle of c from its top-left (0),
// bottom-left (1) and top-right (3) corners.
func (v Viewport) CellRect(c domain.Cell) Rect {
	tl := v.GeoToPixel(c.Geom[0])
	bl := v.GeoToPixel(c.Geom[1])
	tr := v.GeoToPixel(c.Geom[3])
	return Rect{X: tl.X, Y: tl.Y, W: tr.X - tl.X, H: bl.Y - tl.Y}
}

// Frame projects a snapshot. At most maxEntities entities are included;
// maxEntities <= 0 means no limit.
func (v Viewport) Frame(s *domain.Snapshot, maxEntities int) Frame {
	f := Frame{
		Width:    v.Width,
		Height:   v.Height,
		Entities: []Circle{},
		Cells:    []CellRect{},
	}
	if s == nil {
		return f
	}
	f.Version = s.Version

	entities := s.Entities
	if maxEntities > 0 && len(entities) > maxEntities {
		entities = entities[:maxEntities]
		f.Truncated = true
	}

	bounds := v.Bounds()
	f.Entities = make([]Circle, 0, len(entities))
	for _, e := range entities {
		if !bounds.Contains(e.Point) {
			f.Offscreen++
		}
		px := v.GeoToPixel(e.Point)
		f.Entities = append(f.Entities, Circle{ID: e.ID, X: px.X, Y: px.Y, Radius: EntityRadius})
	}

	f.Cells = make([]CellRect, 0, len(s.Cells))
	for _, c := range s.Cells {
		f.Cells = append(f.Cells, CellRect{ID: c.ID, Rect: v.CellRect(c)})
	}
	return f
}
