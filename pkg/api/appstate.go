package api

import (
	"encoding/json"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// AppMode is the cluster-wide operating mode root's canic_app update
// transitions between: the Go analogue of a wasm build's feature-gated
// app state machine, tracked here as a one-byte stable-store cell so the
// devnet harness and canicctl both have something concrete to drive.
type AppMode byte

const (
	AppModeInit AppMode = iota
	AppModeRunning
	AppModeMaintenance
)

func (m AppMode) String() string {
	switch m {
	case AppModeRunning:
		return "running"
	case AppModeMaintenance:
		return "maintenance"
	default:
		return "init"
	}
}

// AppCommand is canic_app's single argument: set the cluster's AppMode.
type AppCommand struct {
	SetMode AppMode
}

var (
	keyAppState    = []byte("state")
	keySubnetState = []byte("state")
	keyAppMode     = []byte("mode")
	keySnapshot    = []byte("snapshot")
	keyTopology    = []byte("topology")
)

// AppState returns the raw app_state bytes last replicated to this unit.
func (srv *Server) AppState() ([]byte, error) {
	return srv.Store.Get(store.RegionAppState, keyAppState)
}

func (srv *Server) setAppStateBytes(data []byte) error {
	return srv.Store.Put(store.RegionAppState, keyAppState, data)
}

// SubnetState returns the raw subnet_state bytes last replicated to this
// unit.
func (srv *Server) SubnetState() ([]byte, error) {
	return srv.Store.Get(store.RegionSubnetState, keySubnetState)
}

func (srv *Server) setSubnetStateBytes(data []byte) error {
	return srv.Store.Put(store.RegionSubnetState, keySubnetState, data)
}

// AppModeValue returns the cluster's current AppMode, defaulting to
// AppModeInit before the first canic_app call.
func (srv *Server) AppModeValue() (AppMode, error) {
	data, err := srv.Store.Get(store.RegionAppState, keyAppMode)
	if err != nil {
		return AppModeInit, err
	}
	if data == nil {
		return AppModeInit, nil
	}
	return AppMode(data[0]), nil
}

func (srv *Server) setAppMode(mode AppMode) error {
	return srv.Store.Put(store.RegionAppState, keyAppMode, []byte{byte(mode)})
}

type wireDirectoryEntry struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

func encodeDirectorySnapshot(snap directory.Snapshot) ([]byte, error) {
	out := make([]wireDirectoryEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		out = append(out, wireDirectoryEntry{Role: string(e.Role), Principal: e.Principal.String()})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "api.encodeDirectorySnapshot", "encode directory snapshot", err)
	}
	return data, nil
}

func decodeDirectorySnapshot(data []byte) (directory.Snapshot, error) {
	if len(data) == 0 {
		return directory.Snapshot{}, nil
	}
	var wire []wireDirectoryEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return directory.Snapshot{}, canicerr.New(canicerr.KindInfra, "api.decodeDirectorySnapshot", "decode directory snapshot", err)
	}
	entries := make([]directory.Entry, 0, len(wire))
	for _, w := range wire {
		pid, err := ids.ParsePrincipal(w.Principal)
		if err != nil {
			return directory.Snapshot{}, err
		}
		entries = append(entries, directory.Entry{Role: ids.CanisterRole(w.Role), Principal: pid})
	}
	return directory.Snapshot{Entries: entries}, nil
}

// AppDirectory returns the app directory snapshot last replicated to
// this unit.
func (srv *Server) AppDirectory() (directory.Snapshot, error) {
	data, err := srv.Store.Get(store.RegionAppDirectory, keySnapshot)
	if err != nil {
		return directory.Snapshot{}, err
	}
	return decodeDirectorySnapshot(data)
}

func (srv *Server) setAppDirectory(snap directory.Snapshot) error {
	data, err := encodeDirectorySnapshot(snap)
	if err != nil {
		return err
	}
	return srv.Store.Put(store.RegionAppDirectory, keySnapshot, data)
}

// SubnetDirectory returns the subnet directory snapshot last replicated
// to this unit.
func (srv *Server) SubnetDirectory() (directory.Snapshot, error) {
	data, err := srv.Store.Get(store.RegionSubnetDirectory, keySnapshot)
	if err != nil {
		return directory.Snapshot{}, err
	}
	return decodeDirectorySnapshot(data)
}

func (srv *Server) setSubnetDirectory(snap directory.Snapshot) error {
	data, err := encodeDirectorySnapshot(snap)
	if err != nil {
		return err
	}
	return srv.Store.Put(store.RegionSubnetDirectory, keySnapshot, data)
}

type wireTopology struct {
	Target      string              `json:"target"`
	ParentChain []string            `json:"parent_chain"`
	Children    map[string][]string `json:"children"`
}

func encodeTopologySnapshot(snap cascade.TopologySnapshot) ([]byte, error) {
	w := wireTopology{
		Target:      snap.Target.String(),
		ParentChain: make([]string, len(snap.ParentChain)),
		Children:    make(map[string][]string, len(snap.Children)),
	}
	for i, pid := range snap.ParentChain {
		w.ParentChain[i] = pid.String()
	}
	for pid, kids := range snap.Children {
		ks := make([]string, len(kids))
		for i, k := range kids {
			ks[i] = k.String()
		}
		w.Children[pid.String()] = ks
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "api.encodeTopologySnapshot", "encode topology snapshot", err)
	}
	return data, nil
}

func decodeTopologySnapshot(data []byte) (cascade.TopologySnapshot, error) {
	if len(data) == 0 {
		return cascade.TopologySnapshot{}, nil
	}
	var w wireTopology
	if err := json.Unmarshal(data, &w); err != nil {
		return cascade.TopologySnapshot{}, canicerr.New(canicerr.KindInfra, "api.decodeTopologySnapshot", "decode topology snapshot", err)
	}
	target, err := ids.ParsePrincipal(w.Target)
	if err != nil {
		return cascade.TopologySnapshot{}, err
	}
	chain := make([]ids.Principal, len(w.ParentChain))
	for i, s := range w.ParentChain {
		pid, err := ids.ParsePrincipal(s)
		if err != nil {
			return cascade.TopologySnapshot{}, err
		}
		chain[i] = pid
	}
	children := make(map[ids.Principal][]ids.Principal, len(w.Children))
	for s, kids := range w.Children {
		pid, err := ids.ParsePrincipal(s)
		if err != nil {
			return cascade.TopologySnapshot{}, err
		}
		ks := make([]ids.Principal, len(kids))
		for i, k := range kids {
			kp, err := ids.ParsePrincipal(k)
			if err != nil {
				return cascade.TopologySnapshot{}, err
			}
			ks[i] = kp
		}
		children[pid] = ks
	}
	return cascade.TopologySnapshot{Target: target, ParentChain: chain, Children: children}, nil
}

// TopologySnapshot returns the topology snapshot last replicated to this
// unit.
func (srv *Server) TopologySnapshot() (cascade.TopologySnapshot, error) {
	data, err := srv.Store.Get(store.RegionChildren, keyTopology)
	if err != nil {
		return cascade.TopologySnapshot{}, err
	}
	return decodeTopologySnapshot(data)
}

func (srv *Server) setTopologySnapshot(snap cascade.TopologySnapshot) error {
	data, err := encodeTopologySnapshot(snap)
	if err != nil {
		return err
	}
	return srv.Store.Put(store.RegionChildren, keyTopology, data)
}

// stateApplier implements cascade.StateApplier over Server: importing a
// Bundle's populated sections is idempotent by construction, since each
// setter simply overwrites its cell (spec.md §8 invariant 6).
type stateApplier struct{ srv *Server }

func (a *stateApplier) ApplyState(bundle cascade.Bundle) error {
	if len(bundle.AppState) > 0 {
		if err := a.srv.setAppStateBytes(bundle.AppState); err != nil {
			return err
		}
	}
	if len(bundle.SubnetState) > 0 {
		if err := a.srv.setSubnetStateBytes(bundle.SubnetState); err != nil {
			return err
		}
	}
	if bundle.AppDirectory != nil {
		if err := a.srv.setAppDirectory(*bundle.AppDirectory); err != nil {
			return err
		}
	}
	if bundle.SubnetDirectory != nil {
		if err := a.srv.setSubnetDirectory(*bundle.SubnetDirectory); err != nil {
			return err
		}
	}
	return nil
}

// topologyApplier implements cascade.TopologyApplier over Server.
type topologyApplier struct{ srv *Server }

func (a *topologyApplier) ApplyTopology(snapshot cascade.TopologySnapshot) error {
	return a.srv.setTopologySnapshot(snapshot)
}
