package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kosarica/durable/internal/durableerr"
	"github.com/kosarica/durable/internal/host"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/txn"
	"github.com/tetratelabs/wazero"
)

// moduleConfig is the wazero instantiation config shared by every task
// executor: guest stdout/stderr are not wired anywhere (workflows speak
// through the host plugins, not the console), so they are left discarded.
func moduleConfig() wazero.ModuleConfig {
	return wazero.NewModuleConfig()
}

// logErrorIndex/logPanicIndex mirror original_source's LOG_ERROR_INDEX /
// LOG_PANIC_INDEX: out-of-band log slots above any real event index, used
// for diagnostics that are never replayed.
const (
	logErrorIndex int32 = 1<<31 - 2
	logPanicIndex int32 = 1<<31 - 1
)

// status is an executor's outcome (spec.md §4.5 / original_source's
// TaskStatus), translated from a Rust enum into Go constants.
type status int

const (
	statusReleased status = iota // stolen mid-run; another worker now owns it
	statusSuspended
	statusComplete
	statusFailed
	statusUnavailable // a transient store error, not a guest fault; release for retry
)

// Executor implements the Task Executor (spec.md §4.5) for exactly one
// claimed task: load its event log, instantiate the wazero module bound to
// every host plugin, call the guest entry point, and translate the
// recovered panic (or normal return) into a terminal store write.
type Executor struct {
	shared   *SharedState
	task     store.ClaimedTask
	workerID int64
}

// NewExecutor builds an Executor for one claimed task row.
func NewExecutor(shared *SharedState, task store.ClaimedTask, workerID int64) *Executor {
	return &Executor{shared: shared, task: task, workerID: workerID}
}

// Run drives the executor to completion: replay-then-execute every
// transaction, and apply exactly one terminal store write (or none, for a
// steal) before returning.
func (e *Executor) Run(ctx context.Context) {
	if err := e.shared.scheduler.Acquire(ctx); err != nil {
		return
	}

	start := e.shared.Clock.Now()
	log := e.shared.Log.With().Int64("task_id", e.task.ID).Str("task_name", e.task.Name).Logger()

	st, runErr := e.runGuarded(ctx)
	duration := e.shared.Clock.Now().Sub(start)

	switch st {
	case statusReleased:
		log.Debug().Msg("task was claimed by another worker mid-run")
		e.shared.Metrics.RecordSteal(duration)

	case statusSuspended:
		log.Debug().Msg("task suspended")
		e.shared.Metrics.RecordSuspend(duration)

	case statusComplete:
		if err := e.shared.Store.Complete(ctx, e.task.ID, store.TaskComplete, e.shared.Clock.Now()); err != nil {
			log.Error().Err(err).Msg("failed to mark task complete")
		}
		e.shared.Metrics.RecordCompletion("complete", duration)

	case statusFailed:
		if runErr != nil {
			e.appendDiagnosticLog(ctx, logErrorIndex, fmt.Sprintf("%v\n", runErr))
			log.Error().Err(runErr).Msg("task executor failed")
		}
		if err := e.shared.Store.Complete(ctx, e.task.ID, store.TaskFailed, e.shared.Clock.Now()); err != nil {
			log.Error().Err(err).Msg("failed to mark task failed")
		}
		e.shared.Metrics.RecordCompletion("failed", duration)

	case statusUnavailable:
		log.Warn().Err(runErr).Msg("releasing task after transient store error")
		if err := e.shared.Store.ReleaseTask(ctx, e.task.ID); err != nil {
			log.Error().Err(err).Msg("failed to release task after store error")
		}
		e.shared.Metrics.RecordUnavailable(duration)
	}
}

// runGuarded recovers the typed panics thrown by internal/txn (Suspended,
// Stolen, DeterminismViolation) and by a genuine wasm trap, translating
// each into a status without letting one task's failure reach any other
// goroutine — this is the Go analogue of original_source's
// AssertUnwindSafe(...).catch_unwind() wrapper around run_task_impl.
func (e *Executor) runGuarded(ctx context.Context) (result status, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case txn.Suspended:
				result = statusSuspended
			case txn.Stolen:
				result = statusReleased
			case txn.DeterminismViolation:
				result = statusFailed
				err = fmt.Errorf("%w: %s", durableerr.ErrDeterminismViolation, v.Error())
			case error:
				if errors.Is(v, durableerr.ErrStoreUnavailable) {
					result = statusUnavailable
					err = v
				} else {
					result = statusFailed
					err = fmt.Errorf("%w: %v", durableerr.ErrWasmTrap, v)
				}
			default:
				result = statusFailed
				err = fmt.Errorf("%w: task panicked: %v", durableerr.ErrWasmTrap, v)
			}
		}
	}()

	return e.runOnce(ctx)
}

// runOnce loads the event log, instantiates the module against every host
// plugin, and calls the guest's exported run entry point. It returns
// normally only on success/guest-error; every other outcome unwinds via
// panic and is translated by runGuarded's recover.
func (e *Executor) runOnce(ctx context.Context) (status, error) {
	events, err := e.shared.Store.LoadEvents(ctx, e.task.ID)
	if err != nil {
		if errors.Is(err, durableerr.ErrStoreUnavailable) {
			return statusUnavailable, fmt.Errorf("load events: %w", err)
		}
		return statusFailed, fmt.Errorf("load events: %w", err)
	}

	wasm, err := e.shared.Store.GetWasm(ctx, e.task.WasmID)
	if err != nil {
		if errors.Is(err, durableerr.ErrStoreUnavailable) {
			return statusUnavailable, fmt.Errorf("load wasm: %w", err)
		}
		return statusFailed, fmt.Errorf("load wasm: %w", err)
	}

	compiled, err := e.shared.Engine.Compiled(ctx, wasm.ID, wasm.Binary, e.shared.Metrics.RecordWasmCompile)
	if err != nil {
		return statusFailed, fmt.Errorf("compile wasm: %w", err)
	}

	state := txn.NewState(e.shared.Store, e.task.ID, e.workerID, events)

	reg := host.NewRegistry()
	core := &host.CorePlugin{TaskID: e.task.ID, TaskName: e.task.Name, TaskData: e.task.Data, CreatedAt: e.shared.Clock.Now()}
	core.Register(reg)
	(&host.ClockPlugin{State: state}).Register(reg)
	(&host.RandomPlugin{TaskID: e.task.ID, TaskName: e.task.Name}).Register(reg)
	(&host.NotifyPlugin{Store: e.shared.Store, TaskID: e.task.ID, State: state}).Register(reg)
	httpPlugin := host.NewHTTPPlugin(state)
	httpPlugin.Client = e.shared.Client
	httpPlugin.Register(reg)
	(&host.SQLPlugin{State: state}).Register(reg)

	rt := e.shared.Engine.Runtime()
	if err := reg.Instantiate(ctx, rt); err != nil {
		return statusFailed, fmt.Errorf("instantiate host modules: %w", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, moduleConfig())
	if err != nil {
		return statusFailed, fmt.Errorf("instantiate guest module: %w", err)
	}
	defer mod.Close(ctx)

	run := mod.ExportedFunction("run")
	if run == nil {
		return statusFailed, fmt.Errorf("guest module does not export \"run\"")
	}

	results, err := run.Call(ctx)
	if err != nil {
		return statusFailed, fmt.Errorf("%w: %v", durableerr.ErrWasmTrap, err)
	}
	if len(results) > 0 && results[0] != 0 {
		return statusFailed, fmt.Errorf("%w: guest returned nonzero exit code", durableerr.ErrGuestError)
	}
	return statusComplete, nil
}

// appendDiagnosticLog records an out-of-band log line outside the replay
// index space, best-effort (a failure here must not mask the original
// error that triggered it).
func (e *Executor) appendDiagnosticLog(ctx context.Context, index int32, message string) {
	if err := e.shared.Store.AppendDiagnosticLog(ctx, e.task.ID, index, message); err != nil {
		e.shared.Log.Error().Err(err).Int64("task_id", e.task.ID).Msg("failed to save diagnostic log")
	}
}

// executorSet tracks in-flight executor goroutines, the Go analogue of
// original_source's tokio::JoinSet<()> usage in spawn_new_tasks/run_task.
type executorSet struct {
	mu    sync.Mutex
	wg    sync.WaitGroup
	count int
}

func newExecutorSet() *executorSet {
	return &executorSet{}
}

// Len reports how many executors are currently running.
func (s *executorSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Go launches fn in its own goroutine, tracked until it returns.
func (s *executorSet) Go(fn func()) {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.count--
			s.mu.Unlock()
		}()
		fn()
	}()
}

// Wait blocks until every tracked executor has returned, or ctx is done
// first (spec.md §4.3's suspend_timeout-bounded shutdown grace period).
func (s *executorSet) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
