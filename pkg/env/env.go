package env

import (
	"fmt"

	"github.com/cuemby/canic/pkg/ids"
)

// Environment is the immutable per-unit identity tuple captured at init.
// SubnetPID and CanisterRole are the only fields that may change after
// construction: SubnetPID may resolve asynchronously on non-IC networks,
// and CanisterRole is restored on upgrade.
type Environment struct {
	PrimeRootPID ids.Principal
	RootPID      ids.Principal
	SubnetPID    ids.Principal
	SubnetRole   ids.CanisterRole
	CanisterRole ids.CanisterRole
	ParentPID    *ids.Principal
}

// Config is the bootstrap payload a unit is constructed from (mirrors the
// CanisterInitPayload.env the framework hands every non-root unit at
// creation time).
type Config struct {
	PrimeRootPID ids.Principal
	RootPID      ids.Principal
	SubnetPID    ids.Principal
	SubnetRole   ids.CanisterRole
	CanisterRole ids.CanisterRole
	ParentPID    *ids.Principal
}

// New validates cfg and constructs the unit's Environment. Only the root
// unit may have a nil ParentPID.
func New(cfg Config) (*Environment, error) {
	if err := cfg.CanisterRole.Validate(); err != nil {
		return nil, fmt.Errorf("env: canister_role: %w", err)
	}
	if err := cfg.SubnetRole.Validate(); err != nil {
		return nil, fmt.Errorf("env: subnet_role: %w", err)
	}
	if cfg.ParentPID == nil && !cfg.CanisterRole.IsRoot() {
		return nil, fmt.Errorf("env: non-root unit with role %q must have a parent_pid", cfg.CanisterRole)
	}
	if cfg.ParentPID != nil && cfg.CanisterRole.IsRoot() {
		return nil, fmt.Errorf("env: root unit must not have a parent_pid")
	}
	return &Environment{
		PrimeRootPID: cfg.PrimeRootPID,
		RootPID:      cfg.RootPID,
		SubnetPID:    cfg.SubnetPID,
		SubnetRole:   cfg.SubnetRole,
		CanisterRole: cfg.CanisterRole,
		ParentPID:    cfg.ParentPID,
	}, nil
}

// IsRoot reports whether this unit is the cluster root.
func (e *Environment) IsRoot() bool {
	return e.CanisterRole.IsRoot()
}

// ResolveSubnetPID updates SubnetPID once it becomes known; this is the
// one field besides CanisterRole allowed to change post-init.
func (e *Environment) ResolveSubnetPID(pid ids.Principal) {
	e.SubnetPID = pid
}

// RestoreCanisterRole sets CanisterRole after an upgrade restores it from
// stable storage.
func (e *Environment) RestoreCanisterRole(role ids.CanisterRole) error {
	if err := role.Validate(); err != nil {
		return fmt.Errorf("env: restore canister_role: %w", err)
	}
	e.CanisterRole = role
	return nil
}
