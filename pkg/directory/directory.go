package directory

import (
	"sort"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/registrystore"
)

// Entry is one (role, principal) pair in a Snapshot.
type Entry struct {
	Role      ids.CanisterRole
	Principal ids.Principal
}

// Snapshot is a Directory Snapshot: an ordered sequence of (role,
// principal) pairs, unique by role.
type Snapshot struct {
	Entries []Entry
}

// ResolveSubnet derives the subnet directory from a subnet's own registry
// entries: one entry per distinct role. A role is expected to be a
// singleton within a subnet (root enforces this at registration); on a
// role collision the entry belonging to the most recently created
// canister wins, so the resolver itself stays total and pure.
func ResolveSubnet(entries []registrystore.Entry) Snapshot {
	byRole := make(map[ids.CanisterRole]registrystore.Entry, len(entries))
	createdAt := make(map[ids.CanisterRole]int64, len(entries))
	for _, e := range entries {
		if existing, ok := createdAt[e.Rec.Role]; !ok || e.Rec.CreatedAt >= existing {
			byRole[e.Rec.Role] = e
			createdAt[e.Rec.Role] = e.Rec.CreatedAt
		}
	}

	out := make([]Entry, 0, len(byRole))
	for role, e := range byRole {
		out = append(out, Entry{Role: role, Principal: e.PID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return Snapshot{Entries: out}
}

// MergeApp derives the app directory: the deduped, cross-subnet union of
// one or more subnet directories. The first occurrence of each role
// (subnets given in priority order) wins.
func MergeApp(subnets ...Snapshot) Snapshot {
	seen := make(map[ids.CanisterRole]bool)
	var out []Entry
	for _, snap := range subnets {
		for _, e := range snap.Entries {
			if seen[e.Role] {
				continue
			}
			seen[e.Role] = true
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return Snapshot{Entries: out}
}

// Lookup returns the principal registered for role within s, if any.
func (s Snapshot) Lookup(role ids.CanisterRole) (ids.Principal, bool) {
	for _, e := range s.Entries {
		if e.Role == role {
			return e.Principal, true
		}
	}
	return ids.Principal{}, false
}
