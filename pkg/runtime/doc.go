// Package runtime declares the narrow collaborator interfaces canic needs
// from its host: the replicated-execution platform, in spec.md terms
// (consensus, scheduling, certified data, management-canister operations,
// replicated randomness). The core packages (orchestrator, capability,
// scheduler) depend only on these interfaces, never on a concrete host
// client, mirroring how cuemby-warren's pkg/api.Server depends on
// *manager.Manager as a narrow collaborator rather than reaching into
// Raft directly. pkg/devnet supplies the reference implementation used by
// tests and cmd/canic-devnet; a production host adapter implements the
// same interfaces against the real replicated-execution runtime.
package runtime
