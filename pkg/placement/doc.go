// Package placement implements the Placement Policy: pure, deterministic
// rules for deciding where a partition key should be placed within a
// shard pool.
//
// Nothing here performs I/O, reads the clock, or consumes randomness
// beyond the HRW hash (itself a deterministic digest, not an RNG). Every
// function takes its inputs explicitly and returns a Plan; callers own
// turning that Plan into a registry mutation.
package placement
