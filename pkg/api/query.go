package api

import (
	"sort"

	"github.com/cuemby/canic/pkg/canpool"
	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/logstore"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/sharding"
	"github.com/cuemby/canic/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// StandardEntry is one (name, url) pair returned by icrc10_supported_standards.
type StandardEntry struct {
	Name string
	URL  string
}

// ICRC10SupportedStandards lists the wire-level standards this unit
// advertises, following the ICRC-10 discovery convention the IC
// ecosystem uses.
func (srv *Server) ICRC10SupportedStandards() []StandardEntry {
	return []StandardEntry{
		{Name: "ICRC-10", URL: "https://github.com/dfinity/ICRC/blob/main/ICRCs/ICRC-10"},
		{Name: "ICRC-21", URL: "https://github.com/dfinity/ICRC/blob/main/ICRCs/ICRC-21"},
	}
}

// ConsentMessageRequest is icrc21_canister_call_consent_message's input:
// the method about to be called and its raw candid/JSON argument.
type ConsentMessageRequest struct {
	Method    string
	Arg       []byte
	Principal ids.Principal
}

// ConsentMessageResponse is the structured consent message a wallet
// would render before letting the caller's principal sign off on Method.
type ConsentMessageResponse struct {
	Message  string
	Language string
}

// ICRC21ConsentMessage builds a human-readable consent message for an
// impending call to req.Method, satisfying ICRC-21's generic-display
// fallback (canic does not implement markdown rendering per method; it
// states the method and caller plainly).
func (srv *Server) ICRC21ConsentMessage(req ConsentMessageRequest) ConsentMessageResponse {
	return ConsentMessageResponse{
		Message:  "Call " + req.Method + " as " + req.Principal.String() + " on " + srv.Self.String(),
		Language: "en",
	}
}

// ICTSName, ICTSVersion, ICTSDescription identify this unit's running
// software, the minimal identity a cluster dashboard needs.
func (srv *Server) ICTSName() string        { return "canic" }
func (srv *Server) ICTSVersion() string     { return "0.1.0" }
func (srv *Server) ICTSDescription() string { return "canic hierarchical canister-cluster runtime" }

// ICTSMetadata returns free-form key/value metadata about this unit.
func (srv *Server) ICTSMetadata() map[string]string {
	return map[string]string{
		"role":   string(srv.Env.CanisterRole),
		"subnet": srv.Env.SubnetRole.String(),
	}
}

// EnvView is canic_env's result: the unit's identity tuple.
type EnvView struct {
	PrimeRootPID ids.Principal
	RootPID      ids.Principal
	SubnetPID    ids.Principal
	SubnetRole   ids.CanisterRole
	CanisterRole ids.CanisterRole
	ParentPID    *ids.Principal
}

// CanicEnv returns this unit's environment tuple.
func (srv *Server) CanicEnv() EnvView {
	return EnvView{
		PrimeRootPID: srv.Env.PrimeRootPID,
		RootPID:      srv.Env.RootPID,
		SubnetPID:    srv.Env.SubnetPID,
		SubnetRole:   srv.Env.SubnetRole,
		CanisterRole: srv.Env.CanisterRole,
		ParentPID:    srv.Env.ParentPID,
	}
}

// CanicAppRegistry returns every record in this unit's registry view.
// canic runs a single subnet per cluster root in this implementation
// (spec.md's Non-goals exclude cross-subnet federation), so the app
// registry and subnet registry coincide; a federated deployment would
// instead merge one registrystore.Registry per subnet here.
func (srv *Server) CanicAppRegistry() ([]registrystore.Entry, error) {
	return srv.Registry.All()
}

// CanicSubnetRegistry returns every record in this unit's own subnet.
func (srv *Server) CanicSubnetRegistry() ([]registrystore.Entry, error) {
	return srv.Registry.All()
}

// CanicAppDirectory returns one page of the cached app directory.
func (srv *Server) CanicAppDirectory(page uint32) ([]directoryEntryView, error) {
	snap, err := srv.AppDirectory()
	if err != nil {
		return nil, err
	}
	return paginate(toDirectoryView(snap.Entries), page), nil
}

// CanicSubnetDirectory returns one page of the cached subnet directory.
func (srv *Server) CanicSubnetDirectory(page uint32) ([]directoryEntryView, error) {
	snap, err := srv.SubnetDirectory()
	if err != nil {
		return nil, err
	}
	return paginate(toDirectoryView(snap.Entries), page), nil
}

type directoryEntryView struct {
	Role      ids.CanisterRole
	Principal ids.Principal
}

func toDirectoryView(entries []directory.Entry) []directoryEntryView {
	out := make([]directoryEntryView, len(entries))
	for i, e := range entries {
		out[i] = directoryEntryView{Role: e.Role, Principal: e.Principal}
	}
	return out
}

// ScalingRegistryView summarizes the units available for new placements:
// the reserve (empty, provisioned units) and the pool (reset, ready
// units), neither of which has a single backing component of its own in
// spec.md — this is the facade's own read-model composing both.
type ScalingRegistryView struct {
	ReserveSize int
	PoolCounts  canpool.StatusCounts
}

// CanicScalingRegistry summarizes the reserve and pool.
func (srv *Server) CanicScalingRegistry() (ScalingRegistryView, error) {
	reserveLen, err := srv.Reserve.Len()
	if err != nil {
		return ScalingRegistryView{}, err
	}
	counts, err := srv.Pool.Counts()
	if err != nil {
		return ScalingRegistryView{}, err
	}
	return ScalingRegistryView{ReserveSize: reserveLen, PoolCounts: counts}, nil
}

// ReserveEntries returns every reserve entry (a companion read used by
// canicctl's reserve inspection; spec.md's canic_scaling_registry
// summarizes counts only, this gives the detail).
func (srv *Server) ReserveEntries() ([]reserve.ExportedEntry, error) {
	return srv.Reserve.Export()
}

// CanicShardingRegistry returns every shard entry across every pool.
func (srv *Server) CanicShardingRegistry() ([]sharding.ExportedEntry, error) {
	return srv.Sharding.Export()
}

// CanicShardingTenants lists every tenant currently assigned to shard
// within pool.
func (srv *Server) CanicShardingTenants(pool ids.BoundedString32, shard ids.Principal) ([]ids.BoundedString128, error) {
	return srv.Sharding.TenantsInShard(pool, shard)
}

// CanicPoolList returns every pool entry.
func (srv *Server) CanicPoolList() ([]canpool.ExportedEntry, error) {
	return srv.Pool.Export()
}

// CanicLifecycle returns the recorded lifecycle phase for pid.
func (srv *Server) CanicLifecycle(pid ids.Principal) (lifecycle.Phase, bool, error) {
	return srv.Lifecycle.State(pid)
}

// CanicMemoryRegistry returns every declared stable-memory region.
func (srv *Server) CanicMemoryRegistry() []store.RegionInfo {
	return store.RegisteredRegions()
}

// CanicCycleTracker returns one page of recorded cycle samples.
func (srv *Server) CanicCycleTracker(page uint32) ([]logstore.CycleSample, error) {
	samples, err := srv.Cycles.Snapshot()
	if err != nil {
		return nil, err
	}
	return paginate(samples, page), nil
}

// CanicLog returns one page of the in-band log, filtered by crate/topic/
// minimum level (spec.md §6's canic_log(crate?, topic?, min_level?, page)).
func (srv *Server) CanicLog(crate, topic string, minLevel string, page uint32) ([]logstore.Entry, error) {
	entries, err := srv.Logs.Snapshot()
	if err != nil {
		return nil, err
	}
	var filtered []logstore.Entry
	for _, e := range entries {
		if crate != "" && e.Crate != crate {
			continue
		}
		if topic != "" && e.Topic != topic {
			continue
		}
		if minLevel != "" && levelRank(string(e.Level)) < levelRank(minLevel) {
			continue
		}
		filtered = append(filtered, e)
	}
	return paginate(filtered, page), nil
}

func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

// metricFamilies gathers the process's registered Prometheus metrics
// filtered to those whose name starts with any of prefixes, the shared
// implementation behind every canic_metrics_* endpoint: canic exposes
// one Prometheus registry (pkg/metrics) rather than duplicating each
// counter/gauge behind a second in-process aggregate.
func metricFamilies(prefixes ...string) ([]*dto.MetricFamily, error) {
	all, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	var out []*dto.MetricFamily
	for _, fam := range all {
		for _, p := range prefixes {
			if len(fam.GetName()) >= len(p) && fam.GetName()[:len(p)] == p {
				out = append(out, fam)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out, nil
}

// CanicMetricsSystem returns one page of process-health metric families.
func (srv *Server) CanicMetricsSystem(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_units_total", "canic_stable_bytes_used")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsICC returns one page of cross-unit RPC metric families.
func (srv *Server) CanicMetricsICC(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_icc_")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsHTTP returns one page of endpoint-surface metric families.
func (srv *Server) CanicMetricsHTTP(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_http_")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsTimer returns one page of scheduler metric families.
func (srv *Server) CanicMetricsTimer(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_timer_")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsAccess returns one page of root-guard metric families.
func (srv *Server) CanicMetricsAccess(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_access_")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsPerf returns one page of placement/orchestrator/cascade
// timing metric families.
func (srv *Server) CanicMetricsPerf(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_placement_", "canic_orchestrator_", "canic_cascade_")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}

// CanicMetricsEndpointHealth returns one page of endpoint-health metric
// families.
func (srv *Server) CanicMetricsEndpointHealth(page uint32) ([]*dto.MetricFamily, error) {
	fams, err := metricFamilies("canic_endpoint_health")
	if err != nil {
		return nil, err
	}
	return paginate(fams, page), nil
}
