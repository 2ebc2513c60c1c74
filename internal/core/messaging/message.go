package messaging

import "github.com/samirrijal/soundlines/internal/core/domain"

// Kind identifies a message variant.
type Kind int

const (
	KindStop Kind = iota
	KindFetchEntities
	KindFetchCells
	KindEntitiesReady
	KindCellsReady
)

func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindFetchEntities:
		return "fetch_entities"
	case KindFetchCells:
		return "fetch_cells"
	case KindEntitiesReady:
		return "entities_ready"
	case KindCellsReady:
		return "cells_ready"
	default:
		return "unknown"
	}
}

// Message is a value exchanged over a channel. The set of variants is
// closed: only the types in this file implement it.
type Message interface {
	Kind() Kind
	// Accept dispatches the message to the matching Visitor method.
	Accept(v Visitor)
	sealed()
}

// Visitor handles every message variant. Each consumer implements the
// full interface, so introducing a new variant breaks the build of every
// dispatch site until it is handled there.
type Visitor interface {
	VisitStop(Stop)
	VisitFetchEntities(FetchEntities)
	VisitFetchCells(FetchCells)
	VisitEntitiesReady(EntitiesReady)
	VisitCellsReady(CellsReady)
}

// Stop asks the worker to leave its loop.
type Stop struct{}

// FetchEntities asks the worker to fetch the entity collection.
type FetchEntities struct{}

// FetchCells asks the worker to fetch the cell collection.
type FetchCells struct{}

// EntitiesReady carries a freshly fetched entity collection. The payload
// belongs to whoever receives the message; the sender must not keep it.
type EntitiesReady struct {
	entities []domain.Entity
}

// NewEntitiesReady wraps entities in a result message. A nil slice is
// replaced by an empty one so receivers never see a missing collection.
func NewEntitiesReady(entities []domain.Entity) EntitiesReady {
	if entities == nil {
		entities = []domain.Entity{}
	}
	return EntitiesReady{entities: entities}
}

// Entities returns the payload.
func (m EntitiesReady) Entities() []domain.Entity { return m.entities }

// CellsReady carries a freshly fetched cell collection. Ownership rules
// match EntitiesReady.
type CellsReady struct {
	cells []domain.Cell
}

// NewCellsReady wraps cells in a result message.
func NewCellsReady(cells []domain.Cell) CellsReady {
	if cells == nil {
		cells = []domain.Cell{}
	}
	return CellsReady{cells: cells}
}

// Cells returns the payload.
func (m CellsReady) Cells() []domain.Cell { return m.cells }

func (Stop) Kind() Kind          { return KindStop }
func (FetchEntities) Kind() Kind { return KindFetchEntities }
func (FetchCells) Kind() Kind    { return KindFetchCells }
func (EntitiesReady) Kind() Kind { return KindEntitiesReady }
func (CellsReady) Kind() Kind    { return KindCellsReady }

func (m Stop) Accept(v Visitor)          { v.VisitStop(m) }
func (m FetchEntities) Accept(v Visitor) { v.VisitFetchEntities(m) }
func (m FetchCells) Accept(v Visitor)    { v.VisitFetchCells(m) }
func (m EntitiesReady) Accept(v Visitor) { v.VisitEntitiesReady(m) }
func (m CellsReady) Accept(v Visitor)    { v.VisitCellsReady(m) }

func (Stop) sealed()          {}
func (FetchEntities) sealed() {}
func (FetchCells) sealed()    {}
func (EntitiesReady) sealed() {}
func (CellsReady) sealed()    {}
