/*
Package intent implements the Intent Record capacity-reservation
aggregate: a resource_key-scoped Reserve/Commit/Abort lifecycle whose
per-key totals (pending_count, reserved_qty, committed_qty) stay
consistent with the underlying pending/committed record sets
(spec.md §8 invariant 10).

Grounded directly on original_source's storage/stable/intent.rs
(IntentRecord, IntentResourceTotals, IntentPendingEntry, the separate
records/totals/pending collections under one schema). The mechanical
invariants it enforces (uniqueness of in-flight ids, monotonic
Pending->{Committed,Aborted} transitions, aggregate consistency) are
exactly the ones intent.rs's doc comment assigns to this layer, with
policy and capacity decisions left to callers.
*/
package intent
