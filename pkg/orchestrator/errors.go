package orchestrator

import "errors"

// ErrParentNotFound is TopologyError::ParentNotFound (spec.md §4.4 step 1).
var ErrParentNotFound = errors.New("orchestrator: parent not found in registry")

// ErrParentMismatch fires when a freshly registered (or upgrading) unit's
// recorded parent disagrees with the parent the caller asserted.
var ErrParentMismatch = errors.New("orchestrator: unit's registered parent does not match the requested parent")

// ErrPostConditionFailed fires when, after a successful host install, the
// live module hash still disagrees with the one just persisted.
var ErrPostConditionFailed = errors.New("orchestrator: post-upgrade module hash does not match target")
