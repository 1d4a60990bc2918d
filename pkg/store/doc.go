/*
Package store implements the Stable Store: durable typed key-value regions
keyed by a globally unique, non-reusable region ID, backed by BoltDB.

Regions are declared once, at build time, via RegisterRegion; Open then
creates one bucket per registered region and fails a region registration
that overlaps or duplicates an existing ID, mirroring the framework's
build-time MemoryRegistryError rule.
*/
package store
