package api

import (
	"context"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/canpool"
	"github.com/cuemby/canic/pkg/capability"
	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/config"
	"github.com/cuemby/canic/pkg/env"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/intent"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/logstore"
	"github.com/cuemby/canic/pkg/orchestrator"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/cuemby/canic/pkg/scheduler"
	"github.com/cuemby/canic/pkg/security"
	"github.com/cuemby/canic/pkg/sharding"
	"github.com/cuemby/canic/pkg/store"
)

// PageSize is the fixed page length every paginated query endpoint uses
// (spec.md §6 leaves the page size to the implementation; a fixed size
// keeps cursor math simple for canicctl and pkg/client alike).
const PageSize = 50

// ModuleArtifact is the installable code root holds for one canister
// role: the wasm bytes and the hash the registry/orchestrator compare
// against to decide whether an Upgrade is a no-op.
type ModuleArtifact struct {
	Wasm []byte
	Hash []byte
}

// PoolPolicy is the per-pool sharding ceiling a canic_pool_admin/
// placement.Assign call enforces, mirroring config.PolicySpec once
// loaded and validated.
type PoolPolicy struct {
	MaxShards uint32
	Capacity  uint32
}

// Server is the endpoint-surface facade for one running unit: every
// core package view scoped to that unit's own Stable Store, plus the
// identity and host-collaborator context an endpoint needs to decide
// whether to act and who to log as having acted.
type Server struct {
	Self ids.Principal
	Env  *env.Environment

	Store        *store.Store
	Registry     *registrystore.Registry
	Sharding     *sharding.Registry
	Lifecycle    *lifecycle.Index
	Reserve      *reserve.Reserve
	Pool         *canpool.Pool
	Intent       *intent.Store
	Logs         *logstore.Store
	Cycles       *logstore.CycleTracker
	Scheduler    *scheduler.Scheduler
	Orchestrator *orchestrator.Orchestrator
	Issuer       *capability.Issuer
	Signer       *security.Signer

	Transport  cascade.Transport
	Management runtime.ManagementClient
	Clock      runtime.Clock
	Config     *config.Config

	Modules         map[ids.CanisterRole]ModuleArtifact
	PoolControllers []ids.Principal
}

var _ interface {
	ReceiveState(ctx context.Context, caller ids.Principal, bundle cascade.Bundle) error
	ReceiveTopology(ctx context.Context, caller ids.Principal, snapshot cascade.TopologySnapshot) error
} = (*Server)(nil)

// requireRoot rejects an endpoint call on any non-root unit
// (spec.md §6's root-only guard, the same shape as warren's ensureLeader).
func (srv *Server) requireRoot(op string) error {
	if !srv.Env.IsRoot() {
		return canicerr.New(canicerr.KindOps, op, "operation requires the cluster root", nil)
	}
	return nil
}

func paginate[T any](items []T, page uint32) []T {
	start := int(page) * PageSize
	if start >= len(items) {
		return nil
	}
	end := start + PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// managementSettings adapts a runtime.ManagementClient to canpool.Settings:
// the two interfaces name the same uninstall operation differently
// (Uninstall vs UninstallCode) because canpool was grounded independently
// on the reset-sequence description in spec.md §4.5 before runtime.go's
// interface existed.
type managementSettings struct {
	mgmt runtime.ManagementClient
}

func (m managementSettings) SetControllers(ctx context.Context, pid ids.Principal, controllers []ids.Principal) error {
	return m.mgmt.SetControllers(ctx, pid, controllers)
}

func (m managementSettings) UninstallCode(ctx context.Context, pid ids.Principal) error {
	return m.mgmt.Uninstall(ctx, pid)
}

func (m managementSettings) CycleBalance(ctx context.Context, pid ids.Principal) (uint64, error) {
	return m.mgmt.CycleBalance(ctx, pid)
}

// poolSettings returns srv.Management wrapped as canpool.Settings, the
// surface canpool.ResetIntoPool needs.
func (srv *Server) poolSettings() canpool.Settings {
	return managementSettings{mgmt: srv.Management}
}

// ReceiveState implements rpc.StateReceiver: it is the non-root handler
// for an inbound canic_sync_state call from this unit's parent, applying
// the bundle locally and forwarding it down to this unit's own children
// (spec.md §4.6).
func (srv *Server) ReceiveState(ctx context.Context, caller ids.Principal, bundle cascade.Bundle) error {
	if srv.Env.ParentPID == nil {
		return cascade.ErrWrongParent
	}
	children, err := srv.Registry.Children(srv.Self)
	if err != nil {
		return err
	}
	_, err = cascade.ReplayState(ctx, *srv.Env.ParentPID, caller, bundle, &stateApplier{srv: srv}, srv.Transport, children)
	return err
}

// ReceiveTopology implements rpc.StateReceiver for canic_sync_topology.
func (srv *Server) ReceiveTopology(ctx context.Context, caller ids.Principal, snapshot cascade.TopologySnapshot) error {
	if srv.Env.ParentPID == nil {
		return cascade.ErrWrongParent
	}
	children, err := srv.Registry.Children(srv.Self)
	if err != nil {
		return err
	}
	_, err = cascade.ReplayTopology(ctx, *srv.Env.ParentPID, caller, snapshot, &topologyApplier{srv: srv}, srv.Transport, children)
	return err
}
