package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/soundlines/internal/core/messaging"
	"github.com/samirrijal/soundlines/internal/core/ports"
)

// Client is the owning side's handle on a channel pair and its worker.
// All methods except Stop return immediately and are safe to call from a
// render or update loop.
type Client struct {
	pair     *messaging.Pair
	worker   *Worker
	stopOnce sync.Once
}

// NewClient creates the channel pair and a worker bound to source. The
// worker does not run until Start.
func NewClient(source ports.DataSource, opts ...Option) *Client {
	pair := messaging.NewPair()
	return &Client{
		pair:   pair,
		worker: NewWorker(pair.Requests, pair.Results, source, opts...),
	}
}

// Start launches the worker. Requests sent before Start are kept and
// processed in order once it runs.
func (c *Client) Start() {
	c.worker.Start()
}

// RequestEntities enqueues a FetchEntities request.
func (c *Client) RequestEntities() {
	c.pair.Requests.Send(messaging.FetchEntities{})
}

// RequestCells enqueues a FetchCells request.
func (c *Client) RequestCells() {
	c.pair.Requests.Send(messaging.FetchCells{})
}

// PollResult returns the oldest pending result, or false when none is
// waiting. It never blocks and has no effect when the channel is empty.
func (c *Client) PollResult() (messaging.Message, bool) {
	return c.pair.Results.Poll()
}

// Stop enqueues a Stop request and waits for the worker to exit or for
// ctx to end. Requests queued before the Stop are still serviced; anything
// sent afterwards is never processed. A worker that was never started has
// nothing to wait for.
func (c *Client) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.pair.Requests.Send(messaging.Stop{})
	})

	if c.worker.State() == StateCreated {
		return nil
	}

	select {
	case <-c.worker.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fetch worker still running: %w", ctx.Err())
	}
}

// Done is closed when the worker has exited.
func (c *Client) Done() <-chan struct{} {
	return c.worker.Done()
}

// State reports the worker's lifecycle state.
func (c *Client) State() State {
	return c.worker.State()
}

// Pending reports queued requests and queued results.
func (c *Client) Pending() (requests, results int) {
	return c.pair.Requests.Len(), c.pair.Results.Len()
}
