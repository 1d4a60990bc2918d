// Package devnet is the reference host runtime: a single-process,
// Raft-replicated stand-in for the IC management canister that
// pkg/runtime.ManagementClient abstracts over. It is grounded on
// cuemby-warren's pkg/manager (raft.NewRaft wired to a BoltDB log/stable
// store and a file snapshot store) and pkg/manager/fsm.go (a
// Command{Op,Data} JSON log applied by a single switch), generalized from
// warren's node/service/task domain to canic's canister-registry domain:
// create_canister, install_code, uninstall_code, set_controllers, and
// mint_cycles replace create_node/create_service/create_task.
//
// devnet keeps its own BoltDB file entirely separate from pkg/store's
// per-unit Stable Store: pkg/store's region numbering (5-60) models one
// canister's own memory, while devnet models the host substrate underneath
// every canister in a local cluster, a layer the real IC replica occupies
// and spec.md never asks canic itself to implement.
//
// devnet also implements runtime.CertifiedDataStore by staging signatures
// and only exposing them after an explicit Certify call, simulating the
// real host's message-boundary certification pass (spec.md §9) closely
// enough to exercise the certified-data retry loop in pkg/capability.
package devnet
