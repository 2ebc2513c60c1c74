package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/usecases"
	"github.com/samirrijal/soundlines/internal/pkg/metrics"
)

// SnapshotInfo summarises the current snapshot without its payload.
type SnapshotInfo struct {
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Entities  int       `json:"entities"`
	Cells     int       `json:"cells"`
	Worker    string    `json:"worker"`
	Pending   struct {
		Requests int `json:"requests"`
		Results  int `json:"results"`
	} `json:"pending"`
}

func snapshotOf(deps *Dependencies) (*domain.Snapshot, bool) {
	if deps.Viewer == nil {
		return nil, false
	}
	return deps.Viewer.Snapshot(), true
}

// ListEntitiesHandler returns a page of the current entities.
func ListEntitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := snapshotOf(deps)
		if !ok {
			return errUnavailable(c, "viewer not running")
		}

		offset, limit := pageParams(c, len(snap.Entities))
		pg := Pagination{Offset: offset, Limit: limit, Total: len(snap.Entities)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{
			Data:       page(snap.Entities, offset, limit),
			Pagination: pg,
			Version:    snap.Version,
		})
	}
}

// ListCellsHandler returns a page of the current cells.
func ListCellsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := snapshotOf(deps)
		if !ok {
			return errUnavailable(c, "viewer not running")
		}

		offset, limit := pageParams(c, len(snap.Cells))
		pg := Pagination{Offset: offset, Limit: limit, Total: len(snap.Cells)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{
			Data:       page(snap.Cells, offset, limit),
			Pagination: pg,
			Version:    snap.Version,
		})
	}
}

// SnapshotHandler returns counts and version of the current snapshot.
func SnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := snapshotOf(deps)
		if !ok {
			return errUnavailable(c, "viewer not running")
		}

		info := SnapshotInfo{
			Version:   snap.Version,
			UpdatedAt: snap.UpdatedAt,
			Entities:  len(snap.Entities),
			Cells:     len(snap.Cells),
			Worker:    deps.Viewer.WorkerState().String(),
		}
		info.Pending.Requests, info.Pending.Results = deps.Viewer.Pending()

		if deps.Source != nil {
			if stat := deps.Source.Stat(); stat != nil {
				metrics.UpdateDBPoolMetrics(stat)
			}
		}
		return c.JSON(info)
	}
}

// FrameHandler projects the current snapshot onto the configured viewport.
// ?max overrides the entity cap up to the configured maximum.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, ok := snapshotOf(deps)
		if !ok {
			return errUnavailable(c, "viewer not running")
		}

		limit := deps.MaxEntities
		q := c.QueryInt("max", 0)
		if q < 0 {
			return errBadRequest(c, "max must be positive")
		}
		if q > 0 && (limit <= 0 || q < limit) {
			limit = q
		}

		return c.JSON(deps.Viewport.Frame(snap, limit))
	}
}

// RefreshHandler enqueues a re-fetch. kind is entities, cells or all (default).
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Viewer == nil {
			return errUnavailable(c, "viewer not running")
		}

		kind := c.Query("kind", usecases.RefreshAll)
		if err := deps.Viewer.Refresh(c.UserContext(), kind); err != nil {
			return errBadRequest(c, err.Error())
		}
		LoggerFromCtx(c.UserContext()).Info("refresh requested", "kind", kind)

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "accepted",
			"kind":   kind,
		})
	}
}
