package messaging_test

import (
	"testing"

	"github.com/samirrijal/soundlines/internal/core/messaging"
)

type recordingVisitor struct {
	seen []string
}

func (r *recordingVisitor) VisitStop(messaging.Stop)                   { r.seen = append(r.seen, "stop") }
func (r *recordingVisitor) VisitFetchEntities(messaging.FetchEntities) { r.seen = append(r.seen, "fetch_entities") }
func (r *recordingVisitor) VisitFetchCells(messaging.FetchCells)       { r.seen = append(r.seen, "fetch_cells") }
func (r *recordingVisitor) VisitEntitiesReady(messaging.EntitiesReady) { r.seen = append(r.seen, "entities_ready") }
func (r *recordingVisitor) VisitCellsReady(messaging.CellsReady)       { r.seen = append(r.seen, "cells_ready") }

func TestAccept_DispatchesByVariant(t *testing.T) {
	msgs := []messaging.Message{
		messaging.Stop{},
		messaging.FetchEntities{},
		messaging.FetchCells{},
		messaging.NewEntitiesReady(nil),
		messaging.NewCellsReady(nil),
	}

	v := &recordingVisitor{}
	for _, m := range msgs {
		m.Accept(v)
	}

	for i, m := range msgs {
		if v.seen[i] != m.Kind().String() {
			t.Errorf("message %d: visited %s, kind %s", i, v.seen[i], m.Kind())
		}
	}
}

func TestKind_String(t *testing.T) {
	if got := messaging.Kind(99).String(); got != "unknown" {
		t.Errorf("expected unknown, got %s", got)
	}
}
