package lifecycle

import (
	"fmt"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// Phase is a shard's position in the lifecycle state machine.
type Phase byte

const (
	PhaseCreated Phase = iota + 1
	PhaseProvisioned
	PhaseActive
	PhaseRetiring
	PhaseRevoked
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseProvisioned:
		return "provisioned"
	case PhaseActive:
		return "active"
	case PhaseRetiring:
		return "retiring"
	case PhaseRevoked:
		return "revoked"
	default:
		return "absent"
	}
}

// Index tracks the lifecycle phase per shard plus the derived active and
// rotation-target sets, backed by three Stable Store regions.
type Index struct {
	s              *store.Store
	phaseRegion    store.RegionID
	activeRegion   store.RegionID
	rotationRegion store.RegionID
}

// New wraps s with the lifecycle Index view over the given regions.
func New(s *store.Store, phaseRegion, activeRegion, rotationRegion store.RegionID) *Index {
	return &Index{s: s, phaseRegion: phaseRegion, activeRegion: activeRegion, rotationRegion: rotationRegion}
}

// State returns the recorded phase for pid, or false if absent.
func (idx *Index) State(pid ids.Principal) (Phase, bool, error) {
	data, err := idx.s.Get(idx.phaseRegion, pid.Bytes())
	if err != nil {
		return 0, false, canicerr.New(canicerr.KindInfra, "lifecycle.State", "read phase", err)
	}
	if data == nil {
		return 0, false, nil
	}
	return Phase(data[0]), true, nil
}

func (idx *Index) setPhase(pid ids.Principal, phase Phase) error {
	return idx.s.Put(idx.phaseRegion, pid.Bytes(), []byte{byte(phase)})
}

func (idx *Index) setMember(region store.RegionID, pid ids.Principal) error {
	return idx.s.Put(region, pid.Bytes(), []byte{1})
}

func (idx *Index) clearMember(region store.RegionID, pid ids.Principal) error {
	return idx.s.Delete(region, pid.Bytes())
}

func (idx *Index) isMember(region store.RegionID, pid ids.Principal) (bool, error) {
	data, err := idx.s.Get(region, pid.Bytes())
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// IsActive reports whether pid is in the active set.
func (idx *Index) IsActive(pid ids.Principal) (bool, error) {
	return idx.isMember(idx.activeRegion, pid)
}

// IsRotationTarget reports whether pid is in the rotation-target set.
func (idx *Index) IsRotationTarget(pid ids.Principal) (bool, error) {
	return idx.isMember(idx.rotationRegion, pid)
}

func (idx *Index) members(region store.RegionID) ([]ids.Principal, error) {
	var out []ids.Principal
	err := idx.s.ForEach(region, func(k, v []byte) error {
		pid, err := ids.PrincipalFromBytes(k)
		if err != nil {
			return err
		}
		out = append(out, pid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids.SortPrincipals(out)
	return out, nil
}

// ActiveSet returns every shard principal currently in the active set.
func (idx *Index) ActiveSet() ([]ids.Principal, error) {
	return idx.members(idx.activeRegion)
}

// RotationTargetSet returns every shard principal currently in the
// rotation-target set.
func (idx *Index) RotationTargetSet() ([]ids.Principal, error) {
	return idx.members(idx.rotationRegion)
}

// ErrInvalidTransition reports a transition not permitted by the state
// machine.
type ErrInvalidTransition struct {
	PID  ids.Principal
	From Phase
	To   Phase
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition pid=%s from=%s to=%s", e.PID, e.From, e.To)
}

func invalidTransition(pid ids.Principal, from, to Phase) error {
	return canicerr.New(canicerr.KindWorkflow, "lifecycle.transition", "invalid shard lifecycle transition",
		&ErrInvalidTransition{PID: pid, From: from, To: to})
}

func notRegistered(pid ids.Principal) error {
	return canicerr.New(canicerr.KindWorkflow, "lifecycle.transition", fmt.Sprintf("shard lifecycle state missing for pid=%s", pid), nil)
}

// RegisterShardCreated transitions absent→Created. Idempotent once
// Created.
func (idx *Index) RegisterShardCreated(pid ids.Principal) error {
	phase, ok, err := idx.State(pid)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		return idx.setPhase(pid, PhaseCreated)
	case phase == PhaseCreated:
		return nil
	default:
		return invalidTransition(pid, phase, PhaseCreated)
	}
}

// MarkShardProvisioned transitions Created→Provisioned. Idempotent once
// Provisioned.
func (idx *Index) MarkShardProvisioned(pid ids.Principal) error {
	phase, ok, err := idx.State(pid)
	if err != nil {
		return err
	}
	if !ok {
		return notRegistered(pid)
	}
	switch phase {
	case PhaseCreated:
		return idx.setPhase(pid, PhaseProvisioned)
	case PhaseProvisioned:
		return nil
	default:
		return invalidTransition(pid, phase, PhaseProvisioned)
	}
}

// AdmitShardToHrw transitions Provisioned/Active→Active, adding pid to
// both the active and rotation-target sets.
func (idx *Index) AdmitShardToHrw(pid ids.Principal) error {
	phase, ok, err := idx.State(pid)
	if err != nil {
		return err
	}
	if !ok {
		return notRegistered(pid)
	}
	switch phase {
	case PhaseProvisioned, PhaseActive:
		if err := idx.setPhase(pid, PhaseActive); err != nil {
			return err
		}
		if err := idx.setMember(idx.activeRegion, pid); err != nil {
			return err
		}
		return idx.setMember(idx.rotationRegion, pid)
	default:
		return invalidTransition(pid, phase, PhaseActive)
	}
}

// RetireShard transitions Active/Retiring→Retiring, removing pid from
// both the active and rotation-target sets.
func (idx *Index) RetireShard(pid ids.Principal) error {
	phase, ok, err := idx.State(pid)
	if err != nil {
		return err
	}
	if !ok {
		return notRegistered(pid)
	}
	switch phase {
	case PhaseActive, PhaseRetiring:
		if err := idx.setPhase(pid, PhaseRetiring); err != nil {
			return err
		}
		if err := idx.clearMember(idx.activeRegion, pid); err != nil {
			return err
		}
		return idx.clearMember(idx.rotationRegion, pid)
	default:
		return invalidTransition(pid, phase, PhaseRetiring)
	}
}

// RevokeShard transitions any phase→Revoked (terminal short-circuit),
// removing pid from both sets. It fails only when pid was never
// registered.
func (idx *Index) RevokeShard(pid ids.Principal) error {
	phase, ok, err := idx.State(pid)
	if err != nil {
		return err
	}
	if !ok {
		return notRegistered(pid)
	}
	if phase != PhaseRevoked {
		if err := idx.setPhase(pid, PhaseRevoked); err != nil {
			return err
		}
	}
	if err := idx.clearMember(idx.activeRegion, pid); err != nil {
		return err
	}
	return idx.clearMember(idx.rotationRegion, pid)
}
