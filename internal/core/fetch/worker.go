package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/messaging"
	"github.com/samirrijal/soundlines/internal/core/ports"
	"github.com/samirrijal/soundlines/internal/pkg/metrics"
)

const tracerName = "github.com/samirrijal/soundlines/internal/core/fetch"

// State is the lifecycle state of a Worker.
type State int32

const (
	// StateCreated means Start has not been called yet.
	StateCreated State = iota
	// StateRunning means the loop is consuming requests.
	StateRunning
	// StateStopped is terminal: a Stop request was consumed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithFetchTimeout bounds each data source call. Zero leaves timeouts to
// the data source.
func WithFetchTimeout(d time.Duration) Option {
	return func(w *Worker) { w.fetchTimeout = d }
}

// Worker serially consumes requests, performs the blocking fetch against a
// DataSource and sends one result per successful fetch. It runs on its own
// goroutine until it receives Stop; there is no other way to end it.
type Worker struct {
	requests *messaging.RequestChannel
	results  *messaging.ResultChannel
	source   ports.DataSource

	logger       *slog.Logger
	fetchTimeout time.Duration

	state       atomic.Int32
	initialized bool // touched only by the worker goroutine
	startOnce   sync.Once
	done        chan struct{}
}

// NewWorker creates a worker reading requests and writing results on the
// given channels. Nothing runs until Start.
func NewWorker(requests *messaging.RequestChannel, results *messaging.ResultChannel, source ports.DataSource, opts ...Option) *Worker {
	w := &Worker{
		requests: requests,
		results:  results,
		source:   source,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = w.logger.With("component", "fetch.worker")
	return w
}

// Start launches the worker goroutine. Later calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.state.Store(int32(StateRunning))
		go w.run()
	})
}

// Done is closed once the worker loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// State reports the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.state.Store(int32(StateStopped))

	metrics.WorkerRunning.Set(1)
	defer metrics.WorkerRunning.Set(0)

	w.initialize(context.Background())
	w.logger.Info("worker started")

	d := &dispatcher{w: w}
	for !d.stopped {
		msg, err := w.requests.Receive()
		if err != nil {
			w.logger.Warn("receive interrupted, waiting again", "error", err)
			continue
		}
		metrics.QueueDepth.WithLabelValues("requests").Set(float64(w.requests.Len()))
		msg.Accept(d)
	}

	w.logger.Info("worker stopped", "pending_requests", w.requests.Len())
}

// initialize prepares the data source. A failed attempt is retried before
// the next fetch; once it succeeds it is never repeated.
func (w *Worker) initialize(ctx context.Context) error {
	if w.initialized {
		return nil
	}
	if err := w.source.Initialize(ctx); err != nil {
		w.logger.Error("data source initialization failed", "error", err)
		return err
	}
	w.initialized = true
	return nil
}

func (w *Worker) fetchEntities() ([]domain.Entity, bool) {
	var entities []domain.Entity
	ok := w.fetch("entities", w.source.FetchEntitiesRaw, func(raw []byte) (err error) {
		entities, err = DecodeEntities(raw)
		if err == nil {
			metrics.FetchedItems.WithLabelValues("entities").Set(float64(len(entities)))
		}
		return err
	})
	return entities, ok
}

func (w *Worker) fetchCells() ([]domain.Cell, bool) {
	var cells []domain.Cell
	ok := w.fetch("cells", w.source.FetchCellsRaw, func(raw []byte) (err error) {
		cells, err = DecodeCells(raw)
		if err == nil {
			metrics.FetchedItems.WithLabelValues("cells").Set(float64(len(cells)))
		}
		return err
	})
	return cells, ok
}

// fetch runs query then decode. Any failure, including a panic inside the
// data source, is logged and reported as false.
func (w *Worker) fetch(collection string, query func(context.Context) ([]byte, error), decode func([]byte) error) (ok bool) {
	ctx, span := otel.Tracer(tracerName).Start(context.Background(), "fetch."+collection)
	span.SetAttributes(attribute.String("collection", collection))
	defer span.End()

	if w.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.fetchTimeout)
		defer cancel()
	}

	fail := func(stage string, err error) {
		metrics.FetchErrors.WithLabelValues(collection, stage).Inc()
		span.RecordError(err)
		w.logger.Error("fetch failed", "collection", collection, "stage", stage, "error", err)
	}

	defer func() {
		if r := recover(); r != nil {
			fail("source", fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	if err := w.initialize(ctx); err != nil {
		fail("init", err)
		return false
	}

	start := time.Now()
	raw, err := query(ctx)
	metrics.FetchDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if err != nil {
		fail("source", err)
		return false
	}

	if err := decode(raw); err != nil {
		fail("decode", err)
		return false
	}
	return true
}

func (w *Worker) send(collection string, msg messaging.Message) {
	w.results.Send(msg)
	metrics.ResultsSent.WithLabelValues(collection).Inc()
	metrics.QueueDepth.WithLabelValues("results").Set(float64(w.results.Len()))
	w.logger.Debug("result sent", "kind", msg.Kind().String())
}

// dispatcher is the worker's view of the request channel.
type dispatcher struct {
	w       *Worker
	stopped bool
}

func (d *dispatcher) VisitStop(messaging.Stop) {
	d.stopped = true
}

func (d *dispatcher) VisitFetchEntities(messaging.FetchEntities) {
	if entities, ok := d.w.fetchEntities(); ok {
		d.w.send("entities", messaging.NewEntitiesReady(entities))
	}
}

func (d *dispatcher) VisitFetchCells(messaging.FetchCells) {
	if cells, ok := d.w.fetchCells(); ok {
		d.w.send("cells", messaging.NewCellsReady(cells))
	}
}

// Results never belong on the request channel.
func (d *dispatcher) VisitEntitiesReady(messaging.EntitiesReady) {}
func (d *dispatcher) VisitCellsReady(messaging.CellsReady)       {}
