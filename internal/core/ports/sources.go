package ports

import "context"

// DataSource is the backing collaborator the fetch worker queries.
// Initialize is called once before the first fetch and must be safe to
// call again; the fetch calls return a serialized collection object
// ({"entities":[...]} or {"cells":[...]}) and may block.
type DataSource interface {
	Initialize(ctx context.Context) error
	FetchEntitiesRaw(ctx context.Context) ([]byte, error)
	FetchCellsRaw(ctx context.Context) ([]byte, error)
}
