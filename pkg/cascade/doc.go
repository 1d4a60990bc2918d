/*
Package cascade implements the State & Topology Cascade protocol of
spec.md §4.6: the flood by which root's authoritative mutations (app
state, subnet state, the two directory snapshots, and topology snapshots)
propagate down the unit tree, with per-child failure logging rather than
aborting the whole cascade, and idempotent non-root replay.

Grounded on original_source's workflow/cascade/state.rs (StateBundle,
root_cascade_state, nonroot_cascade_state, its compact debug() tracing)
and workflow/cascade/snapshot/mod.rs (TopologySnapshotBuilder). Per-child
failure counting mirrors the "log and continue" shape of
cuemby-warren's scheduler.schedule() loop.
*/
package cascade
