package cascade

import (
	"context"
	"errors"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/log"
	"github.com/cuemby/canic/pkg/registrystore"
)

// ErrWrongParent is returned by replay when the caller does not match the
// unit's recorded parent (spec.md §4.6 step (a)).
var ErrWrongParent = errors.New("cascade: caller is not the recorded parent")

// Transport delivers a Bundle or TopologySnapshot to a single direct
// child over the cross-unit RPC envelope (pkg/rpc implements this).
type Transport interface {
	SyncState(ctx context.Context, child ids.Principal, bundle Bundle) error
	SyncTopology(ctx context.Context, child ids.Principal, snapshot TopologySnapshot) error
}

// StateApplier imports a Bundle's populated sections into local stable
// storage. Applying the same bundle twice must leave state identical
// (sections overwrite; an absent section is a no-op) — spec.md §8
// invariant 6.
type StateApplier interface {
	ApplyState(bundle Bundle) error
}

// TopologyApplier imports a TopologySnapshot into local stable storage.
type TopologyApplier interface {
	ApplyTopology(snapshot TopologySnapshot) error
}

// Result records the outcome of cascading to one direct child.
type Result struct {
	Child ids.Principal
	Err   error
}

func logResults(topic log.Topic, op string, results []Result) {
	for _, r := range results {
		if r.Err != nil {
			logger := log.WithTopic(topic)
			logger.Error().
				Err(r.Err).
				Str("child", r.Child.String()).
				Msg(op + ": cascade to child failed, continuing")
		}
	}
}

// RootCascadeState fans bundle out to every direct child of root, in
// registry-iteration order. A single child's failure is logged and does
// not abort the cascade for the remaining children (spec.md §4.6). An
// empty bundle is a no-op.
func RootCascadeState(ctx context.Context, reg *registrystore.Registry, rootPID ids.Principal, transport Transport, bundle Bundle) ([]Result, error) {
	if bundle.IsEmpty() {
		return nil, nil
	}
	children, err := reg.Children(rootPID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(children))
	for _, child := range children {
		logger := log.WithTopic(log.TopicSync)
		logger.Info().
			Str("bundle", bundle.DebugString()).
			Str("child", child.String()).
			Msg("sync.state")
		err := transport.SyncState(ctx, child, bundle)
		results = append(results, Result{Child: child, Err: err})
	}
	logResults(log.TopicCascade, "cascade.RootCascadeState", results)
	return results, nil
}

// RootCascadeTopology fans snapshot out to every direct child of root.
func RootCascadeTopology(ctx context.Context, reg *registrystore.Registry, rootPID ids.Principal, transport Transport, snapshot TopologySnapshot) ([]Result, error) {
	children, err := reg.Children(rootPID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(children))
	for _, child := range children {
		logger := log.WithTopic(log.TopicSync)
		logger.Info().
			Str("target", snapshot.Target.String()).
			Str("child", child.String()).
			Msg("sync.topology")
		err := transport.SyncTopology(ctx, child, snapshot)
		results = append(results, Result{Child: child, Err: err})
	}
	logResults(log.TopicCascade, "cascade.RootCascadeTopology", results)
	return results, nil
}

// ReplayState is the non-root handler for an inbound canic_sync_state
// call: it validates the caller is this unit's recorded parent, imports
// the bundle, then forwards the same bundle to this unit's own direct
// children (spec.md §4.6 non-root replay).
func ReplayState(ctx context.Context, parentPID, caller ids.Principal, bundle Bundle, applier StateApplier, transport Transport, children []ids.Principal) ([]Result, error) {
	if caller != parentPID {
		return nil, ErrWrongParent
	}
	if err := applier.ApplyState(bundle); err != nil {
		return nil, err
	}
	if bundle.IsEmpty() {
		return nil, nil
	}
	results := make([]Result, 0, len(children))
	for _, child := range children {
		logger := log.WithTopic(log.TopicSync)
		logger.Info().
			Str("bundle", bundle.DebugString()).
			Str("child", child.String()).
			Msg("sync.state")
		err := transport.SyncState(ctx, child, bundle)
		results = append(results, Result{Child: child, Err: err})
	}
	logResults(log.TopicCascade, "cascade.ReplayState", results)
	return results, nil
}

// ReplayTopology is the non-root handler for an inbound
// canic_sync_topology call.
func ReplayTopology(ctx context.Context, parentPID, caller ids.Principal, snapshot TopologySnapshot, applier TopologyApplier, transport Transport, children []ids.Principal) ([]Result, error) {
	if caller != parentPID {
		return nil, ErrWrongParent
	}
	if err := applier.ApplyTopology(snapshot); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(children))
	for _, child := range children {
		logger := log.WithTopic(log.TopicSync)
		logger.Info().
			Str("target", snapshot.Target.String()).
			Str("child", child.String()).
			Msg("sync.topology")
		err := transport.SyncTopology(ctx, child, snapshot)
		results = append(results, Result{Child: child, Err: err})
	}
	logResults(log.TopicCascade, "cascade.ReplayTopology", results)
	return results, nil
}
