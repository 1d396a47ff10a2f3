package worker

import (
	"context"
	"fmt"
)

// Spawner implements the Task Spawner (spec.md §4.4): claim as many ready
// tasks as there is room for, launch a Task Executor per row, and release
// any excess claim back if the claim query overshot max_tasks (which can
// happen because the claim's LIMIT races against this worker's own
// in-flight executor count).
type Spawner struct {
	shared    *SharedState
	workerID  int64
	executors *executorSet

	// blocked mirrors original_source's self.blocked: set when the last
	// Poll found no room or released an overshooting claim, cleared by a
	// Poll that had room and did not overshoot. The dispatch loop reads it
	// only to skip TaskReady events hinted at another worker while full.
	// Nothing polls again when an executor finishes: a blocked worker
	// claims more work on its next TaskReady that is unowned or hinted at
	// it, or on a Lagged sentinel.
	blocked bool
}

// NewSpawner builds a Spawner bound to one worker's shared state.
func NewSpawner(shared *SharedState, workerID int64, executors *executorSet) *Spawner {
	return &Spawner{shared: shared, workerID: workerID, executors: executors}
}

// Blocked reports whether the last Poll found no room to claim more tasks.
func (s *Spawner) Blocked() bool { return s.blocked }

// Poll claims as many ready tasks as there is room for and launches an
// executor per row, mirroring original_source's spawn_new_tasks.
func (s *Spawner) Poll(ctx context.Context) error {
	available := s.shared.Config.MaxTasks - s.executors.Len()
	if available <= 0 {
		s.blocked = true
		return nil
	}

	claimed, err := s.shared.Store.ClaimReadyTasks(ctx, s.workerID, available)
	if err != nil {
		return fmt.Errorf("spawner: claim ready tasks: %w", err)
	}

	// The claim query and this worker's own launched-but-not-yet-counted
	// executors can race; if accepting every claimed row would overshoot
	// max_tasks, release the excess back rather than run over budget.
	if len(claimed)+s.executors.Len() > s.shared.Config.MaxTasks {
		keep := s.shared.Config.MaxTasks - s.executors.Len()
		if keep < 0 {
			keep = 0
		}
		for _, t := range claimed[keep:] {
			if err := s.shared.Store.ReleaseTask(ctx, t.ID); err != nil {
				s.shared.Log.Error().Err(err).Int64("task_id", t.ID).Msg("failed to release excess claim")
			}
		}
		claimed = claimed[:keep]
		s.blocked = true
	} else {
		s.blocked = false
	}

	if len(claimed) > 0 {
		s.shared.Log.Info().Int("count", len(claimed)).Msg("launching tasks")
	}

	for _, t := range claimed {
		s.shared.Metrics.RecordClaim()
		task := t
		exec := NewExecutor(s.shared, task, s.workerID)
		s.executors.Go(func() { exec.Run(s.shared.taskCtx) })
	}

	return nil
}
