package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/fetch"
	"github.com/samirrijal/soundlines/internal/core/ports"
)

// ErrNotInitialized is returned by fetches issued before Initialize succeeded.
var ErrNotInitialized = errors.New("postgres: source not initialized")

// Source implements ports.DataSource on a PostGIS database. It connects
// lazily in Initialize so the fetch worker owns the connection lifecycle.
type Source struct {
	dsn          string
	maxConns     int32
	queryTimeout time.Duration

	mu sync.Mutex
	db *DB
}

var _ ports.DataSource = (*Source)(nil)

// NewSource creates a Source. queryTimeout <= 0 disables the per-query bound.
func NewSource(dsn string, maxConns int32, queryTimeout time.Duration) *Source {
	return &Source{dsn: dsn, maxConns: maxConns, queryTimeout: queryTimeout}
}

// Initialize connects once. After a successful call further calls are
// no-ops; a failed call leaves the source unconnected so it can be retried.
func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	db, err := New(ctx, s.dsn, s.maxConns)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Close releases the pool. The source may be initialized again afterwards.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

// Ping checks the connection for readiness probes.
func (s *Source) Ping(ctx context.Context) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Stat exposes pool statistics for metrics, or nil before Initialize.
func (s *Source) Stat() *pgxpool.Stat {
	pool, err := s.pool()
	if err != nil {
		return nil
	}
	return pool.Stat()
}

func (s *Source) pool() (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db.Pool, nil
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return context.WithCancel(ctx)
}

// FetchEntitiesRaw returns every entity as an {"entities": [...]} payload.
func (s *Source) FetchEntitiesRaw(ctx context.Context) ([]byte, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := pool.Query(ctx, `
		SELECT id, ST_AsBinary(point), COALESCE(prefab, ''), COALESCE(cell_id, 0)
		FROM entities
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []domain.Entity{}
	for rows.Next() {
		var (
			e   domain.Entity
			raw []byte
		)
		if err := rows.Scan(&e.ID, &raw, &e.Prefab, &e.CellID); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if e.Point, err = pointFromWKB(raw); err != nil {
			return nil, fmt.Errorf("entity %d: %w", e.ID, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	return fetch.EncodeEntities(entities)
}

// FetchCellsRaw returns every cell as a {"cells": [...]} payload.
func (s *Source) FetchCellsRaw(ctx context.Context) ([]byte, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := pool.Query(ctx, `SELECT id, ST_AsBinary(geom) FROM cells ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}

	cells, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Cell, error) {
		var (
			c   domain.Cell
			raw []byte
		)
		if err := row.Scan(&c.ID, &raw); err != nil {
			return c, fmt.Errorf("scan cell: %w", err)
		}
		geom, err := cornersFromWKB(raw)
		if err != nil {
			return c, fmt.Errorf("cell %d: %w", c.ID, err)
		}
		c.Geom = geom
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []domain.Cell{}
	}

	return fetch.EncodeCells(cells)
}

func pointFromWKB(raw []byte) (orb.Point, error) {
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return orb.Point{}, fmt.Errorf("decode point: %w", err)
	}
	p, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected point, got %s", g.GeoJSONType())
	}
	return p, nil
}

// cornersFromWKB takes the first four vertices of a polygon's exterior ring.
func cornersFromWKB(raw []byte) ([4]orb.Point, error) {
	var corners [4]orb.Point

	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return corners, fmt.Errorf("decode polygon: %w", err)
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return corners, fmt.Errorf("expected polygon, got %s", g.GeoJSONType())
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return corners, errors.New("polygon has fewer than four vertices")
	}
	copy(corners[:], poly[0][:4])
	return corners, nil
}
