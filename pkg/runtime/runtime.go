package runtime

import (
	"context"
	"time"

	"github.com/cuemby/canic/pkg/ids"
)

// InstallArgs carries the bootstrap payload handed to a newly created
// unit's canister_init (spec.md §6): the environment tuple and both
// directory snapshots, plus an optional opaque application argument.
type InstallArgs struct {
	Env             []byte
	AppDirectory    []byte
	SubnetDirectory []byte
	UserArg         []byte
}

// ManagementClient is the subset of IC-style management-canister
// operations the Lifecycle Orchestrator needs: creating units, installing
// and upgrading module code, reading module hashes, and minting cycles.
// canic never talks to a concrete container/VM runtime; this is the whole
// of its "compute" dependency.
type ManagementClient interface {
	// CreateCanister provisions a fresh, empty unit and returns its
	// principal. initialCycles is the starting cycle balance.
	CreateCanister(ctx context.Context, initialCycles uint64) (ids.Principal, error)

	// InstallCode installs moduleWasm on pid with the given install args,
	// either as a fresh install or, when upgrade is true, as an in-place
	// upgrade that preserves stable memory.
	InstallCode(ctx context.Context, pid ids.Principal, moduleWasm []byte, args InstallArgs, upgrade bool) error

	// ModuleHash returns the hash of the module currently installed on
	// pid, or nil if pid has no installed code.
	ModuleHash(ctx context.Context, pid ids.Principal) ([]byte, error)

	// SetControllers replaces the controller list of pid.
	SetControllers(ctx context.Context, pid ids.Principal, controllers []ids.Principal) error

	// Uninstall removes installed code from pid, clearing its heap but
	// leaving stable memory and cycle balance untouched.
	Uninstall(ctx context.Context, pid ids.Principal) error

	// CycleBalance reads pid's current cycle balance.
	CycleBalance(ctx context.Context, pid ids.Principal) (uint64, error)

	// MintCycles credits amount cycles to pid. Only root may legitimately
	// call this; the caller (pkg/orchestrator, pkg/rpc) enforces that.
	MintCycles(ctx context.Context, pid ids.Principal, amount uint64) error
}

// CertifiedDataStore models the host's process-wide certified-data cell
// (spec.md §5, §9): a signature map whose root hash becomes visible to
// queries only once the host certifies it at message-boundary time.
type CertifiedDataStore interface {
	// SetSignature stages sig under key in the signature map and updates
	// the certified-data root accordingly. The update is not visible to
	// queries until the host's next certification pass.
	SetSignature(key []byte, sig []byte) error

	// Signature retrieves the CBOR-encoded signature certificate for key.
	// It returns ErrCertifiedDataStale when the host has not yet
	// certified the write from SetSignature; callers retry in a short
	// bounded loop (spec.md §9).
	Signature(key []byte) ([]byte, error)

	// Clear drops all staged signatures, used in canic's post-upgrade
	// handler since the signature map is heap-only and does not survive
	// upgrade.
	Clear()
}

// ErrCertifiedDataStale is returned by CertifiedDataStore.Signature when
// the certified root has not yet caught up with a prior SetSignature.
// It is the sole legitimate source of this transient error (spec.md §9).
var ErrCertifiedDataStale = certifiedDataStaleError{}

type certifiedDataStaleError struct{}

func (certifiedDataStaleError) Error() string { return "runtime: certified data stale" }

// RandomSource supplies entropy for request-id generation (spec.md §4.8).
// The host-supplied replicated-randomness beacon is the normal
// implementation; pkg/rpc falls back to a deterministic SHA-256 construction
// when a RandomSource is unavailable.
type RandomSource interface {
	// Random32 returns 32 bytes of entropy, or an error if the host's
	// randomness beacon could not be reached this round.
	Random32(ctx context.Context) ([32]byte, error)
}

// Clock abstracts wall-clock reads so pure packages never call time.Now
// directly and tests can inject deterministic time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
