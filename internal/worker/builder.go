package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/clocksrc"
	"github.com/kosarica/durable/internal/randsrc"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/telemetry"
	"github.com/kosarica/durable/internal/wasmhost"
	"github.com/rs/zerolog"
)

// Builder constructs a Worker with functional-option overrides over
// production defaults, the Go analogue of original_source's WorkerBuilder
// (pool/event_source/client/wasmtime_config/plugins/migrate/validate
// fields set via chained methods).
type Builder struct {
	store  *store.Store
	cfg    config.WorkerConfig
	clock  clocksrc.Clock
	rand   randsrc.Source
	client *http.Client
	log    zerolog.Logger
	sched  Scheduler
}

// NewBuilder starts a Builder bound to s, with production defaults for
// every other collaborator.
func NewBuilder(s *store.Store, cfg config.WorkerConfig) *Builder {
	return &Builder{
		store:  s,
		cfg:    cfg,
		clock:  clocksrc.System{},
		rand:   randsrc.System{},
		client: &http.Client{Timeout: 30 * time.Second},
		log:    zerolog.Nop(),
		sched:  unthrottledScheduler{},
	}
}

// WithClock overrides the injected Clock seam (spec.md §9).
func (b *Builder) WithClock(c clocksrc.Clock) *Builder {
	b.clock = c
	return b
}

// WithEntropy overrides the injected randsrc.Source seam.
func (b *Builder) WithEntropy(r randsrc.Source) *Builder {
	b.rand = r
	return b
}

// WithHTTPClient overrides the shared outbound HTTP client.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.client = c
	return b
}

// WithLogger overrides the base logger every component derives from.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithScheduler overrides the executor-start gate, used by deterministic
// simulation tests to control interleaving.
func (b *Builder) WithScheduler(s Scheduler) *Builder {
	b.sched = s
	return b
}

// Build constructs the Worker, including a fresh wasmhost.Engine.
func (b *Builder) Build(ctx context.Context) (*Worker, error) {
	engine, err := wasmhost.NewEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker: build wasm engine: %w", err)
	}

	shared := &SharedState{
		Store:     b.store,
		Clock:     b.clock,
		Entropy:   b.rand,
		Config:    b.cfg,
		Engine:    engine,
		Client:    b.client,
		Metrics:   telemetry.NewMetricsRecorder(),
		Log:       b.log,
		scheduler: b.sched,
		shutdown:  newShutdownFlag(),
		leader:    newMailbox(-1),
		suspend:   make(chan struct{}, 1),
	}

	return &Worker{
		shared:    shared,
		executors: newExecutorSet(),
	}, nil
}
