package registrystore

import "github.com/cuemby/canic/pkg/ids"

// Record is a Canister Record: the registry's per-unit entry. ParentPID is
// nil only for the root record.
type Record struct {
	Role       ids.CanisterRole
	ParentPID  *ids.Principal
	ModuleHash []byte
	CreatedAt  int64
}

// IsRoot reports whether r has no parent, i.e. is the tree root.
func (r Record) IsRoot() bool {
	return r.ParentPID == nil
}
