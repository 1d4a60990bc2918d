package shardhub

import (
	"context"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/log"
	"github.com/cuemby/canic/pkg/placement"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/cuemby/canic/pkg/sharding"
)

// Policy is one pool's placement ceiling plus the role new shards of
// that pool are created with.
type Policy struct {
	MaxShards uint32
	Capacity  uint32
	Role      ids.CanisterRole
}

// ShardCreator provisions a new shard unit when the planner allows one.
// A shard-hub backs this with the root-bound CreateCanister envelope
// (pkg/client); tests back it with a fake.
type ShardCreator interface {
	CreateShard(ctx context.Context, pool ids.BoundedString32, role ids.CanisterRole) (ids.Principal, error)
}

// Hub routes partition keys onto a pool of shard units. Plans are
// computed by pkg/placement against a snapshot of the hub's own
// registry; only the chosen mutation is then applied.
type Hub struct {
	Sharding  *sharding.Registry
	Lifecycle *lifecycle.Index
	Creator   ShardCreator
	Clock     runtime.Clock
	Pools     map[ids.BoundedString32]Policy
}

func (h *Hub) policy(pool ids.BoundedString32) (Policy, error) {
	p, ok := h.Pools[pool]
	if !ok {
		return Policy{}, canicerr.New(canicerr.KindPolicy, "shardhub.policy", "pool not found: "+pool.String(), nil)
	}
	return p, nil
}

// plannerInput snapshots the hub's registry and lifecycle state into a
// pure placement.Input for pool and partitionKey.
func (h *Hub) plannerInput(pool ids.BoundedString32, partitionKey ids.BoundedString128, pol Policy, exclude *ids.Principal) (placement.Input, error) {
	all, err := h.Sharding.Export()
	if err != nil {
		return placement.Input{}, err
	}
	var entries []placement.ShardCandidate
	for _, e := range all {
		if e.Entry.Pool != pool {
			continue
		}
		entries = append(entries, placement.ShardCandidate{
			PID:      e.PID,
			Slot:     e.Entry.Slot,
			Capacity: e.Entry.Capacity,
			Count:    e.Entry.Count,
		})
	}

	activeSet := make(map[ids.Principal]bool)
	rotationSet := make(map[ids.Principal]bool)
	for _, c := range entries {
		if active, err := h.Lifecycle.IsActive(c.PID); err != nil {
			return placement.Input{}, err
		} else if active {
			activeSet[c.PID] = true
		}
		if target, err := h.Lifecycle.IsRotationTarget(c.PID); err != nil {
			return placement.Input{}, err
		} else if target {
			rotationSet[c.PID] = true
		}
	}

	in := placement.Input{
		Pool:              pool,
		PartitionKey:      partitionKey,
		MaxShards:         pol.MaxShards,
		Entries:           entries,
		RotationTargetSet: rotationSet,
		ActiveSet:         activeSet,
		ExcludePID:        exclude,
	}
	if current, ok, err := h.Sharding.TenantShard(pool, partitionKey); err != nil {
		return placement.Input{}, err
	} else if ok {
		pid := current
		in.CurrentAssignment = &pid
	}
	return in, nil
}

// Plan computes a dry-run placement decision for partitionKey within
// pool without mutating anything.
func (h *Hub) Plan(pool ids.BoundedString32, partitionKey ids.BoundedString128) (placement.Plan, error) {
	pol, err := h.policy(pool)
	if err != nil {
		return placement.Plan{}, err
	}
	in, err := h.plannerInput(pool, partitionKey, pol, nil)
	if err != nil {
		return placement.Plan{}, err
	}
	return placement.Assign(in), nil
}

// RegisterTenant places partitionKey onto a shard within pool, creating
// and admitting a new shard when the planner allows one. Registering an
// already-placed key is a no-op returning the existing shard.
func (h *Hub) RegisterTenant(ctx context.Context, pool ids.BoundedString32, partitionKey ids.BoundedString128) (ids.Principal, error) {
	pol, err := h.policy(pool)
	if err != nil {
		return ids.Principal{}, err
	}
	in, err := h.plannerInput(pool, partitionKey, pol, nil)
	if err != nil {
		return ids.Principal{}, err
	}
	plan := placement.Assign(in)

	logger := log.WithTopic(log.TopicPlacement)
	switch plan.State {
	case placement.AlreadyAssigned:
		return *plan.TargetPID, nil

	case placement.UseExisting:
		if err := h.Sharding.Assign(pool, partitionKey, *plan.TargetPID); err != nil {
			return ids.Principal{}, err
		}
		return *plan.TargetPID, nil

	case placement.CreateAllowed:
		pid, err := h.Creator.CreateShard(ctx, pool, pol.Role)
		if err != nil {
			return ids.Principal{}, err
		}
		now := h.Clock.Now().Unix()
		if err := h.Sharding.Create(pid, pool, *plan.TargetSlot, pol.Role, pol.Capacity, now); err != nil {
			return ids.Principal{}, err
		}
		if err := h.Lifecycle.RegisterShardCreated(pid); err != nil {
			return ids.Principal{}, err
		}
		if err := h.Lifecycle.MarkShardProvisioned(pid); err != nil {
			return ids.Principal{}, err
		}
		if err := h.Lifecycle.AdmitShardToHrw(pid); err != nil {
			return ids.Principal{}, err
		}
		if err := h.Sharding.Assign(pool, partitionKey, pid); err != nil {
			return ids.Principal{}, err
		}
		logger.Info().
			Str("pool", pool.String()).
			Str("shard", pid.String()).
			Uint32("slot", *plan.TargetSlot).
			Msg("shardhub: created and admitted new shard")
		return pid, nil

	default:
		return ids.Principal{}, canicerr.New(canicerr.KindPolicy, "shardhub.RegisterTenant",
			"shard creation blocked: "+plan.BlockedMessage, nil)
	}
}

// BackfillSlots assigns real slots to pool entries still holding the
// unassigned sentinel, per the deterministic backfill plan, and reports
// how many entries were updated.
func (h *Hub) BackfillSlots(pool ids.BoundedString32) (int, error) {
	pol, err := h.policy(pool)
	if err != nil {
		return 0, err
	}
	all, err := h.Sharding.Export()
	if err != nil {
		return 0, err
	}
	var entries []placement.ShardCandidate
	for _, e := range all {
		if e.Entry.Pool != pool {
			continue
		}
		entries = append(entries, placement.ShardCandidate{PID: e.PID, Slot: e.Entry.Slot})
	}
	assigned := placement.PlanSlotBackfill(entries, pol.MaxShards)
	for pid, slot := range assigned {
		if err := h.Sharding.SetSlot(pid, slot); err != nil {
			return 0, err
		}
	}
	return len(assigned), nil
}
