package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/soundlines/internal/adapters/postgres"
	"github.com/samirrijal/soundlines/internal/adapters/valkey"
	"github.com/samirrijal/soundlines/internal/core/usecases"
	"github.com/samirrijal/soundlines/internal/pkg/geospatial"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Viewer      *usecases.ViewerService
	Viewport    geospatial.Viewport
	MaxEntities int
	Source      *postgres.Source
	NATS        *nats.Conn
	Cache       *valkey.Cache
}
