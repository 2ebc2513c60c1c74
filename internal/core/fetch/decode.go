package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/soundlines/internal/core/domain"
)

var (
	// ErrEmptyPayload is returned for a nil or blank raw payload.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrMissingCollection is returned when the named array is absent or null.
	ErrMissingCollection = errors.New("collection missing or null")
	// ErrMalformedGeometry is returned for coordinates of the wrong shape.
	ErrMalformedGeometry = errors.New("malformed geometry")
)

// DecodeError reports a raw payload that could not be turned into a
// collection.
type DecodeError struct {
	Collection string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Collection, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// coord is a [x, y] pair that rejects any other arity.
type coord orb.Point

func (c *coord) UnmarshalJSON(data []byte) error {
	var xs []float64
	if err := json.Unmarshal(data, &xs); err != nil {
		return err
	}
	if len(xs) != 2 {
		return fmt.Errorf("%w: coordinate has %d values", ErrMalformedGeometry, len(xs))
	}
	*c = coord{xs[0], xs[1]}
	return nil
}

type entityRecord struct {
	ID     int64  `json:"id"`
	Point  *coord `json:"point"`
	Prefab string `json:"prefab"`
	CellID int64  `json:"cell_id"`
}

type cellRecord struct {
	ID   int64   `json:"id"`
	Geom []coord `json:"geom"`
}

// DecodeEntities parses {"entities":[...]} into entities, preserving order.
// Unknown fields are ignored. An empty array yields an empty, non-nil slice.
func DecodeEntities(raw []byte) ([]domain.Entity, error) {
	var records []entityRecord
	if err := decodeCollection(raw, "entities", &records); err != nil {
		return nil, &DecodeError{Collection: "entities", Err: err}
	}

	entities := make([]domain.Entity, 0, len(records))
	for i, r := range records {
		if r.Point == nil {
			return nil, &DecodeError{
				Collection: "entities",
				Err:        fmt.Errorf("%w: entity %d has no point", ErrMalformedGeometry, i),
			}
		}
		entities = append(entities, domain.Entity{
			ID:     r.ID,
			Point:  orb.Point(*r.Point),
			Prefab: r.Prefab,
			CellID: r.CellID,
		})
	}
	return entities, nil
}

// DecodeCells parses {"cells":[...]} into cells, preserving order. Each
// geom must hold four corners; a closed five-point ring whose last point
// repeats the first is accepted and trimmed.
func DecodeCells(raw []byte) ([]domain.Cell, error) {
	var records []cellRecord
	if err := decodeCollection(raw, "cells", &records); err != nil {
		return nil, &DecodeError{Collection: "cells", Err: err}
	}

	cells := make([]domain.Cell, 0, len(records))
	for i, r := range records {
		geom := r.Geom
		if len(geom) == 5 && geom[4] == geom[0] {
			geom = geom[:4]
		}
		if len(geom) != 4 {
			return nil, &DecodeError{
				Collection: "cells",
				Err:        fmt.Errorf("%w: cell %d has %d corners", ErrMalformedGeometry, i, len(r.Geom)),
			}
		}

		c := domain.Cell{ID: r.ID}
		for j := range geom {
			c.Geom[j] = orb.Point(geom[j])
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// decodeCollection extracts the named array field of a JSON object into out.
func decodeCollection(raw []byte, field string, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrEmptyPayload
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}

	items, ok := envelope[field]
	if !ok || bytes.Equal(bytes.TrimSpace(items), []byte("null")) {
		return ErrMissingCollection
	}
	return json.Unmarshal(items, out)
}

// EncodeEntities serializes entities in the shape DecodeEntities reads.
func EncodeEntities(entities []domain.Entity) ([]byte, error) {
	if entities == nil {
		entities = []domain.Entity{}
	}
	return json.Marshal(struct {
		Entities []domain.Entity `json:"entities"`
	}{entities})
}

// EncodeCells serializes cells in the shape DecodeCells reads.
func EncodeCells(cells []domain.Cell) ([]byte, error) {
	if cells == nil {
		cells = []domain.Cell{}
	}
	return json.Marshal(struct {
		Cells []domain.Cell `json:"cells"`
	}{cells})
}
