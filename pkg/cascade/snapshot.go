package cascade

import (
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/registrystore"
)

// TopologySnapshot is the topology snapshot for a target unit P: the
// parent chain from root to P (ordered, root first), and for each node in
// that chain its direct children list (spec.md §4.6).
type TopologySnapshot struct {
	Target      ids.Principal
	ParentChain []ids.Principal
	Children    map[ids.Principal][]ids.Principal
}

// BuildTopologySnapshot computes the TopologySnapshot for target from reg.
func BuildTopologySnapshot(reg *registrystore.Registry, target ids.Principal) (*TopologySnapshot, error) {
	chain, err := reg.ParentChain(target)
	if err != nil {
		return nil, err
	}
	children := make(map[ids.Principal][]ids.Principal, len(chain))
	for _, pid := range chain {
		kids, err := reg.Children(pid)
		if err != nil {
			return nil, err
		}
		children[pid] = kids
	}
	return &TopologySnapshot{Target: target, ParentChain: chain, Children: children}, nil
}

// ChildrenOf returns the direct children recorded for pid within the
// snapshot, or nil if pid isn't part of the chain this snapshot covers.
func (s TopologySnapshot) ChildrenOf(pid ids.Principal) []ids.Principal {
	return s.Children[pid]
}
