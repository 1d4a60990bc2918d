/*
Package logstore implements the framework's own in-band log (spec.md §3,
§8 invariant 8) and the per-unit cycle-balance tracker, both backed by a
Stable Store region.

Grounded directly on original_source's model/memory/log.rs: the
append/truncate-at-append shape, the retention fast path (no age filter
and already within the entry limit), and the UTF-8-boundary-safe message
truncation with its "...[truncated]" suffix are all translated closely,
including the max_entries==0 disables-logging special case. The cycle
tracker reuses the same bounded-append-then-prune shape for its own
region (26-35 observability, per spec.md §6's memory map).
*/
package logstore
