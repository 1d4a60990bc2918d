// Package api is the endpoint-surface facade described by spec.md §6: it
// composes every core package (registry, sharding, lifecycle, reserve,
// pool, intent, logstore, scheduler, orchestrator, capability, cascade)
// behind the small set of query and update operations a canic unit
// exposes, the way cuemby-warren's pkg/api/server.go composes its
// manager/FSM/metrics behind gRPC handlers. Unlike warren, canic has no
// wire-format boundary of its own here: pkg/rpc already owns the
// cross-unit gRPC envelope. Server is instead the in-process object a
// host binding (pkg/devnet, or an eventual IC canister shim) drives
// directly, plus the rpc.StateReceiver implementation that lets cascade
// deliveries reach it.
package api
