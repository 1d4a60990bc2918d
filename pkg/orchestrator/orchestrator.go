package orchestrator

import (
	"bytes"
	"context"

	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/log"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/runtime"
)

// Orchestrator executes the root-only Create and Upgrade workflows. It
// composes the host's management-canister surface, the registry, the
// reserve, and the cascade transport; it holds no state of its own.
type Orchestrator struct {
	Reg           *registrystore.Registry
	Reserve       *reserve.Reserve
	Management    runtime.ManagementClient
	Transport     cascade.Transport
	Clock         runtime.Clock
	InitialCycles uint64
}

// CreateInput is everything Create needs beyond what the orchestrator
// already has access to.
type CreateInput struct {
	Role            ids.CanisterRole
	Parent          ids.Principal
	ExtraArg        []byte
	ModuleWasm      []byte
	ModuleHash      []byte
	Env             []byte
	AppState        []byte
	SubnetState     []byte
	AppDirectory    directory.Snapshot
	SubnetDirectory directory.Snapshot
}

// Create provisions a unit, installs its module, registers it under
// parent, and cascades the resulting topology and state to it
// (spec.md §4.4). Any step failing aborts the whole workflow; the
// registry and the cascade are only mutated after the host install call
// succeeds, so a failed Create never leaves partial state visible.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput) (ids.Principal, error) {
	logger := log.WithTopic(log.TopicOrchestrator)

	if _, err := o.Reg.Get(in.Parent); err != nil {
		return ids.Principal{}, ErrParentNotFound
	}

	pid, err := o.provision(ctx)
	if err != nil {
		return ids.Principal{}, err
	}

	appDirBytes, err := encodeDirectory(in.AppDirectory)
	if err != nil {
		return ids.Principal{}, err
	}
	subnetDirBytes, err := encodeDirectory(in.SubnetDirectory)
	if err != nil {
		return ids.Principal{}, err
	}
	installArgs := runtime.InstallArgs{
		Env:             in.Env,
		AppDirectory:    appDirBytes,
		SubnetDirectory: subnetDirBytes,
		UserArg:         in.ExtraArg,
	}
	if err := o.Management.InstallCode(ctx, pid, in.ModuleWasm, installArgs, false); err != nil {
		return ids.Principal{}, err
	}

	parent := in.Parent
	if err := o.Reg.Register(pid, registrystore.Record{
		Role:       in.Role,
		ParentPID:  &parent,
		ModuleHash: in.ModuleHash,
		CreatedAt:  o.Clock.Now().Unix(),
	}); err != nil {
		return ids.Principal{}, err
	}

	rec, err := o.Reg.Get(pid)
	if err != nil {
		return ids.Principal{}, err
	}
	if rec.ParentPID == nil || *rec.ParentPID != in.Parent {
		return ids.Principal{}, ErrParentMismatch
	}

	snapshot, err := cascade.BuildTopologySnapshot(o.Reg, pid)
	if err != nil {
		return ids.Principal{}, err
	}
	if err := o.Transport.SyncTopology(ctx, pid, *snapshot); err != nil {
		return ids.Principal{}, err
	}

	bundle := cascade.Bundle{
		AppState:        in.AppState,
		SubnetState:     in.SubnetState,
		AppDirectory:    &in.AppDirectory,
		SubnetDirectory: &in.SubnetDirectory,
	}
	if !bundle.IsEmpty() {
		if err := o.Transport.SyncState(ctx, pid, bundle); err != nil {
			return ids.Principal{}, err
		}
	}

	logger.Info().Str("pid", pid.String()).Str("role", string(in.Role)).Str("parent", in.Parent.String()).Msg("orchestrator: created unit")
	return pid, nil
}

// provision draws an already-created empty unit from the reserve, or
// falls back to creating a fresh one (spec.md §4.4 step 2, §4.5).
func (o *Orchestrator) provision(ctx context.Context) (ids.Principal, error) {
	if pid, _, ok, err := o.Reserve.PopFirst(); err != nil {
		return ids.Principal{}, err
	} else if ok {
		return pid, nil
	}
	return o.Management.CreateCanister(ctx, o.InitialCycles)
}

// UpgradeInput is everything Upgrade needs.
type UpgradeInput struct {
	PID              ids.Principal
	ExpectedParent   *ids.Principal
	ModuleWasm       []byte
	TargetModuleHash []byte
	Env              []byte
	ExtraArg         []byte
	AppDirectory     directory.Snapshot
	SubnetDirectory  directory.Snapshot
}

// Upgrade installs a target module on an existing unit, no-opping when
// the unit already runs it (spec.md §4.4).
func (o *Orchestrator) Upgrade(ctx context.Context, in UpgradeInput) error {
	logger := log.WithTopic(log.TopicOrchestrator)

	rec, err := o.Reg.Get(in.PID)
	if err != nil {
		return err
	}
	if in.ExpectedParent != nil {
		if rec.ParentPID == nil || *rec.ParentPID != *in.ExpectedParent {
			return ErrParentMismatch
		}
	}

	liveHash, err := o.Management.ModuleHash(ctx, in.PID)
	if err != nil {
		return err
	}
	if bytes.Equal(liveHash, in.TargetModuleHash) {
		logger.Debug().Str("pid", in.PID.String()).Msg("orchestrator: upgrade no-op, module hash already current")
		return o.Reg.UpdateModuleHash(in.PID, in.TargetModuleHash)
	}

	appDirBytes, err := encodeDirectory(in.AppDirectory)
	if err != nil {
		return err
	}
	subnetDirBytes, err := encodeDirectory(in.SubnetDirectory)
	if err != nil {
		return err
	}
	installArgs := runtime.InstallArgs{
		Env:             in.Env,
		AppDirectory:    appDirBytes,
		SubnetDirectory: subnetDirBytes,
		UserArg:         in.ExtraArg,
	}
	if err := o.Management.InstallCode(ctx, in.PID, in.ModuleWasm, installArgs, true); err != nil {
		return err
	}
	if err := o.Reg.UpdateModuleHash(in.PID, in.TargetModuleHash); err != nil {
		return err
	}

	postHash, err := o.Management.ModuleHash(ctx, in.PID)
	if err != nil {
		return err
	}
	if !bytes.Equal(postHash, in.TargetModuleHash) {
		return ErrPostConditionFailed
	}

	logger.Info().Str("pid", in.PID.String()).Msg("orchestrator: upgraded unit")
	return nil
}
