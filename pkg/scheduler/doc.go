/*
Package scheduler implements the per-unit guarded timer slots of
spec.md §5: a slot holds at most one active timer, installs are
idempotent, and a one-shot installer can atomically hand off to a
recurring interval timer once its initial delay fires. It hosts the
concrete timers the framework runs: reserve refill, cycle tracker, log
retention, and entropy reseed.

Grounded on original_source's ops/model/memory/reserve.rs thread-local
TIMER guard (register-if-empty, clear-replaces) and spec.md §9's "atomic
interval handover" framing; the start/stop loop shape is modeled on
cuemby-warren's scheduler.Scheduler and reconciler.Reconciler
(time.Ticker plus a stop channel, one goroutine per task).
*/
package scheduler
