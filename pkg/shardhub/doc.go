// Package shardhub runs the shard-hub side of the placement engine: it
// turns a pure placement Plan into sharding-registry and lifecycle
// mutations, creating new shard units through root when the plan calls
// for one. The hub owns its pool's registry subset; root is only
// involved when a unit has to be created.
package shardhub
