package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/usecases"
)

var errViewerUnavailable = errors.New("viewer not running")

func entityMap(e domain.Entity) map[string]interface{} {
	return map[string]interface{}{
		"id":      e.ID,
		"lon":     e.Point.Lon(),
		"lat":     e.Point.Lat(),
		"prefab":  e.Prefab,
		"cell_id": e.CellID,
	}
}

func cellMap(c domain.Cell) map[string]interface{} {
	corners := make([]domain.GeoPoint, 0, len(c.Geom))
	for _, p := range c.Geom {
		corners = append(corners, domain.GeoPointFrom(p))
	}
	return map[string]interface{}{
		"id":      c.ID,
		"corners": corners,
		"bounds":  c.Bound(),
	}
}

// buildSchema creates the GraphQL schema wired to the viewer.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	snapshot := func() (*domain.Snapshot, error) {
		snap, ok := snapshotOf(deps)
		if !ok {
			return nil, errViewerUnavailable
		}
		return snap, nil
	}

	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	entityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Entity",
		Fields: graphql.Fields{
			"id":      &graphql.Field{Type: graphql.Int},
			"lon":     &graphql.Field{Type: graphql.Float},
			"lat":     &graphql.Field{Type: graphql.Float},
			"prefab":  &graphql.Field{Type: graphql.String},
			"cell_id": &graphql.Field{Type: graphql.Int},
		},
	})

	cellType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cell",
		Fields: graphql.Fields{
			"id":      &graphql.Field{Type: graphql.Int},
			"corners": &graphql.Field{Type: graphql.NewList(geoPointType)},
			"bounds":  &graphql.Field{Type: boundsType},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Snapshot",
		Fields: graphql.Fields{
			"version":    &graphql.Field{Type: graphql.Int},
			"updated_at": &graphql.Field{Type: graphql.String},
			"entities":   &graphql.Field{Type: graphql.Int},
			"cells":      &graphql.Field{Type: graphql.Int},
		},
	})

	pageArgs := graphql.FieldConfigArgument{
		"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPageLimit},
	}
	pageWindow := func(p graphql.ResolveParams) (int, int) {
		offset, _ := p.Args["offset"].(int)
		limit, _ := p.Args["limit"].(int)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > maxPageLimit {
			limit = defaultPageLimit
		}
		return offset, limit
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"snapshot": &graphql.Field{
				Type:        snapshotType,
				Description: "Version and size of the current snapshot",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := snapshot()
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"version":    int(snap.Version),
						"updated_at": snap.UpdatedAt.Format(time.RFC3339Nano),
						"entities":   len(snap.Entities),
						"cells":      len(snap.Cells),
					}, nil
				},
			},
			"entities": &graphql.Field{
				Type:        graphql.NewList(entityType),
				Description: "Entities of the current snapshot",
				Args:        pageArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := snapshot()
					if err != nil {
						return nil, err
					}
					offset, limit := pageWindow(p)
					window := page(snap.Entities, offset, limit)
					result := make([]map[string]interface{}, 0, len(window))
					for _, e := range window {
						result = append(result, entityMap(e))
					}
					return result, nil
				},
			},
			"entity": &graphql.Field{
				Type:        entityType,
				Description: "Get an entity by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := snapshot()
					if err != nil {
						return nil, err
					}
					id := int64(p.Args["id"].(int))
					for _, e := range snap.Entities {
						if e.ID == id {
							return entityMap(e), nil
						}
					}
					return nil, nil
				},
			},
			"cells": &graphql.Field{
				Type:        graphql.NewList(cellType),
				Description: "Cells of the current snapshot",
				Args:        pageArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := snapshot()
					if err != nil {
						return nil, err
					}
					offset, limit := pageWindow(p)
					window := page(snap.Cells, offset, limit)
					result := make([]map[string]interface{}, 0, len(window))
					for _, c := range window {
						result = append(result, cellMap(c))
					}
					return result, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"refresh": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Re-fetch entities, cells or all",
				Args: graphql.FieldConfigArgument{
					"kind": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: usecases.RefreshAll},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Viewer == nil {
						return nil, errViewerUnavailable
					}
					kind, _ := p.Args["kind"].(string)
					if err := deps.Viewer.Refresh(p.Context, kind); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
