package api

import (
	"context"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/canpool"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/orchestrator"
	"github.com/cuemby/canic/pkg/rpc"
)

// CanicApp executes canic_app(cmd): root-only, transitions the cluster's
// AppMode.
func (srv *Server) CanicApp(ctx context.Context, cmd AppCommand) (AppMode, error) {
	if err := srv.requireRoot("api.CanicApp"); err != nil {
		return 0, err
	}
	if err := srv.setAppMode(cmd.SetMode); err != nil {
		return 0, err
	}
	return cmd.SetMode, nil
}

// CanicCanisterUpgrade executes canic_canister_upgrade(pid): root-only,
// performs the §4.4 upgrade workflow against the module artifact
// registered for pid's recorded role.
func (srv *Server) CanicCanisterUpgrade(ctx context.Context, pid ids.Principal) error {
	if err := srv.requireRoot("api.CanicCanisterUpgrade"); err != nil {
		return err
	}
	rec, err := srv.Registry.Get(pid)
	if err != nil {
		return err
	}
	artifact, ok := srv.Modules[rec.Role]
	if !ok {
		return canicerr.New(canicerr.KindOps, "api.CanicCanisterUpgrade", "no module artifact registered for role "+rec.Role.String(), nil)
	}
	appDir, err := srv.AppDirectory()
	if err != nil {
		return err
	}
	subnetDir, err := srv.SubnetDirectory()
	if err != nil {
		return err
	}
	return srv.Orchestrator.Upgrade(ctx, orchestrator.UpgradeInput{
		PID:              pid,
		ExpectedParent:   rec.ParentPID,
		ModuleWasm:       artifact.Wasm,
		TargetModuleHash: artifact.Hash,
		AppDirectory:     appDir,
		SubnetDirectory:  subnetDir,
	})
}

// CanicResponse executes canic_response(request): root-only, dispatches
// req through the cross-unit RPC envelope's Handler.
func (srv *Server) CanicResponse(ctx context.Context, svc *rpc.Service, req rpc.Request) (rpc.Response, error) {
	if err := srv.requireRoot("api.CanicResponse"); err != nil {
		return rpc.Response{}, err
	}
	return svc.Dispatch(ctx, req)
}

// PoolAdminKind tags the pool-lifecycle operation a canic_pool_admin(cmd)
// call requests.
type PoolAdminKind int

const (
	// PoolAdminImport checks admissibility, resets controllers and code,
	// then registers the unit Ready.
	PoolAdminImport PoolAdminKind = iota
	// PoolAdminReset runs the reset sequence on an already-pooled unit.
	PoolAdminReset
	// PoolAdminMarkFailed records a unit as Failed with a reason.
	PoolAdminMarkFailed
	// PoolAdminTake removes a unit from the pool for placement elsewhere.
	PoolAdminTake
)

// PoolAdminCommand is canic_pool_admin's argument.
type PoolAdminCommand struct {
	Kind               PoolAdminKind
	PID                ids.Principal
	Network            canpool.Network
	RegisteredInSubnet bool
	NonImportableLocal bool
	FailureReason      string
	Role               *ids.CanisterRole
	Parent             *ids.Principal
	ModuleHash         []byte
}

// CanicPoolAdmin executes canic_pool_admin(cmd): root-only pool
// lifecycle management (spec.md §4.5).
func (srv *Server) CanicPoolAdmin(ctx context.Context, cmd PoolAdminCommand) (canpool.Entry, error) {
	if err := srv.requireRoot("api.CanicPoolAdmin"); err != nil {
		return canpool.Entry{}, err
	}
	now := srv.Clock.Now().Unix()

	switch cmd.Kind {
	case PoolAdminImport:
		if err := srv.Pool.CheckAdmissible(cmd.PID, cmd.Network, cmd.RegisteredInSubnet, cmd.NonImportableLocal); err != nil {
			return canpool.Entry{}, err
		}
		if err := srv.Pool.MarkPendingReset(cmd.PID, now); err != nil {
			return canpool.Entry{}, err
		}
		cycles, err := canpool.ResetIntoPool(ctx, srv.poolSettings(), cmd.PID, srv.PoolControllers)
		if err != nil {
			return canpool.Entry{}, err
		}
		if err := srv.Pool.RegisterReady(cmd.PID, cycles, cmd.Role, cmd.Parent, cmd.ModuleHash, now); err != nil {
			return canpool.Entry{}, err
		}
	case PoolAdminReset:
		if err := srv.Pool.MarkPendingReset(cmd.PID, now); err != nil {
			return canpool.Entry{}, err
		}
		cycles, err := canpool.ResetIntoPool(ctx, srv.poolSettings(), cmd.PID, srv.PoolControllers)
		if err != nil {
			return canpool.Entry{}, err
		}
		if err := srv.Pool.MarkReady(cmd.PID, cycles); err != nil {
			return canpool.Entry{}, err
		}
	case PoolAdminMarkFailed:
		if err := srv.Pool.MarkFailed(cmd.PID, cmd.FailureReason); err != nil {
			return canpool.Entry{}, err
		}
	case PoolAdminTake:
		entry, ok, err := srv.Pool.Take(cmd.PID)
		if err != nil {
			return canpool.Entry{}, err
		}
		if !ok {
			return canpool.Entry{}, canicerr.New(canicerr.KindStorage, "api.CanicPoolAdmin", "unit not in pool", nil)
		}
		return entry, nil
	default:
		return canpool.Entry{}, canicerr.New(canicerr.KindOps, "api.CanicPoolAdmin", "unrecognized pool admin command", nil)
	}

	entry, _, err := srv.Pool.Get(cmd.PID)
	return entry, err
}

// CanisterStatusView is icts_canister_status's result.
type CanisterStatusView struct {
	CycleBalance uint64
	ModuleHash   []byte
}

// ICTSCanisterStatus executes icts_canister_status: caller-restricted to
// pid's registered controllers, surfacing its cycle balance and module
// hash via the host management surface.
func (srv *Server) ICTSCanisterStatus(ctx context.Context, caller, pid ids.Principal) (CanisterStatusView, error) {
	allowed := false
	for _, c := range srv.PoolControllers {
		if c == caller {
			allowed = true
			break
		}
	}
	if !allowed && caller != srv.Env.RootPID {
		return CanisterStatusView{}, canicerr.New(canicerr.KindPolicy, "api.ICTSCanisterStatus", "caller is not a controller of this unit", nil)
	}
	balance, err := srv.Management.CycleBalance(ctx, pid)
	if err != nil {
		return CanisterStatusView{}, err
	}
	hash, err := srv.Management.ModuleHash(ctx, pid)
	if err != nil {
		return CanisterStatusView{}, err
	}
	return CanisterStatusView{CycleBalance: balance, ModuleHash: hash}, nil
}

// ICCyclesAccept executes ic_cycles_accept(max_amount): the standard
// cycle-acceptance hook a message handler calls to claim cycles attached
// to an inbound call. The devnet host has no attached-cycles concept of
// its own (spec.md's management surface only mints cycles explicitly),
// so this accepts up to maxAmount unconditionally and is exercised only
// by the host adapter, never by core placement/lifecycle logic.
func (srv *Server) ICCyclesAccept(maxAmount uint64) uint64 {
	return maxAmount
}
