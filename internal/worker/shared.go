// Package worker implements the durable worker runtime's process loop:
// the Worker Loop (spec.md §4.3), Task Spawner (§4.4), and Task Executor
// (§4.5), all generalized from original_source/crates/durable-runtime's
// worker.rs in the teacher's idiomatic-Go style.
package worker

import (
	"context"
	"net/http"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/clocksrc"
	"github.com/kosarica/durable/internal/randsrc"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/telemetry"
	"github.com/kosarica/durable/internal/wasmhost"
	"github.com/rs/zerolog"
)

// SharedState is the set of collaborators every loop and executor on one
// worker process needs, grounded on original_source's SharedState — but
// unlike the Rust struct, it holds no back-reference to Worker itself
// (spec.md §9's arena-for-cycles note): Executor only ever sees a
// *SharedState passed by value at construction.
type SharedState struct {
	Store   *store.Store
	Clock   clocksrc.Clock
	Entropy randsrc.Source
	Config  config.WorkerConfig
	Engine  *wasmhost.Engine
	Client  *http.Client
	Metrics *telemetry.MetricsRecorder
	Log     zerolog.Logger

	scheduler Scheduler
	shutdown  *shutdownFlag
	leader    *mailbox
	suspend   chan struct{} // buffered size 1, coalesces repeated wakeups

	// taskCtx is the context executors run under: independent of the
	// control loops' ctx so in-flight guests are not cut off the instant
	// shutdown begins — only once SuspendTimeout elapses (spec.md §4.3).
	taskCtx context.Context
}

// notifySuspend wakes the leader loop (when it is this worker) to recheck
// wakeup deadlines immediately instead of waiting out a stale timer — a
// task just suspended with a near-future wakeup_at.
func (s *SharedState) notifySuspend() {
	select {
	case s.suspend <- struct{}{}:
	default:
	}
}
