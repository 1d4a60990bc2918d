// Package sharding implements the Sharding Registry: the assignment
// authority for tenant placement. It owns ShardEntry records (one per
// shard, slot-unique within a pool), the ShardKey→shard assignment map,
// and the derived per-shard count that must always equal the number of
// assignments pointing at it.
package sharding
