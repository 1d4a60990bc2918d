package scheduler

import (
	"context"
	"time"

	"github.com/cuemby/canic/pkg/log"
)

// Name identifies one of the framework's named timer slots (spec.md §5).
type Name string

const (
	NameReserveRefill Name = "reserve_refill"
	NameCycleTracker  Name = "cycle_tracker"
	NameLogRetention  Name = "log_retention"
	NameEntropyReseed Name = "entropy_reseed"
	NameShardPool     Name = "shard_pool"
)

// Task is a named recurring job: its delay before the first run, its
// steady-state interval, and the function it runs on each tick. Errors
// are the task's own responsibility to log and absorb (spec.md §7 — the
// reserve-refill and log-retention timers "absorb their own errors").
type Task struct {
	Name         Name
	InitialDelay time.Duration
	Interval     time.Duration
	Run          func(ctx context.Context) error
}

// Scheduler owns one GuardedSlot per named task and starts/stops them
// together.
type Scheduler struct {
	slots map[Name]*GuardedSlot
	tasks []Task
}

// New builds a Scheduler over the given tasks. Starting the same
// Scheduler twice is safe: the second Start is a no-op per task, since
// each task's slot is already occupied.
func New(tasks []Task) *Scheduler {
	slots := make(map[Name]*GuardedSlot, len(tasks))
	for _, t := range tasks {
		slots[t.Name] = &GuardedSlot{}
	}
	return &Scheduler{slots: slots, tasks: tasks}
}

// Start installs every task into its guarded slot. Tasks already running
// are left untouched.
func (s *Scheduler) Start() {
	for _, t := range s.tasks {
		task := t
		slot := s.slots[task.Name]
		started := slot.SetGuardedInterval(task.InitialDelay, task.Interval, func(ctx context.Context) {
			if err := task.Run(ctx); err != nil {
				logger := log.WithTopic(log.TopicScheduler)
				logger.Error().
					Err(err).
					Str("task", string(task.Name)).
					Msg("scheduler: task tick failed, will retry next interval")
			}
		})
		if !started {
			logger := log.WithTopic(log.TopicScheduler)
			logger.Debug().Str("task", string(task.Name)).Msg("scheduler: task already running")
		}
	}
}

// Stop clears every task's slot, blocking until each has exited.
func (s *Scheduler) Stop() {
	for _, slot := range s.slots {
		slot.Clear()
	}
}

// Active reports whether the named task's slot currently holds a running
// timer.
func (s *Scheduler) Active(name Name) bool {
	slot, ok := s.slots[name]
	if !ok {
		return false
	}
	return slot.Active()
}
