package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/runtime"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RequestID is the 32-byte identifier every root-bound request carries
// (spec.md §4.8).
type RequestID [32]byte

// RootRequestMetadata is the envelope header attached to every
// root-bound request. IssuedAt is the sender's clock reading at send
// time; it is informational (logs, dedup-window diagnostics) and never
// used to reject a request, since ttl is advisory to the receiver.
type RootRequestMetadata struct {
	RequestID  RequestID
	TTLSeconds int64
	IssuedAt   *timestamppb.Timestamp
}

// Kind tags which Request/Response variant an envelope carries.
type Kind int

const (
	KindCreateCanister Kind = iota
	KindUpgradeCanister
	KindCycles
	KindIssueDelegation
)

// CreateCanisterRequest mirrors orchestrator.CreateInput's externally
// visible fields.
type CreateCanisterRequest struct {
	Role     ids.CanisterRole
	Parent   ids.Principal
	ExtraArg []byte
}

// CreateCanisterResponse carries the newly created unit's principal.
type CreateCanisterResponse struct {
	PID ids.Principal
}

// UpgradeCanisterRequest asks root to upgrade pid.
type UpgradeCanisterRequest struct {
	PID ids.Principal
}

// UpgradeCanisterResponse is empty on success; failure is carried in the
// envelope's Err field.
type UpgradeCanisterResponse struct{}

// CyclesRequest asks root to mint amount cycles for pid.
type CyclesRequest struct {
	PID    ids.Principal
	Amount uint64
}

// CyclesResponse is empty on success.
type CyclesResponse struct{}

// IssueDelegationRequest asks root to issue a capability.Proof to the
// requesting shard-hub.
type IssueDelegationRequest struct {
	ShardPID   ids.Principal
	Audiences  []string
	Scopes     []string
	TTLSeconds int64
}

// IssueDelegationResponse carries the canonical-JSON-encoded
// capability.Proof (the capability package owns (de)serialization; rpc
// only moves bytes).
type IssueDelegationResponse struct {
	ProofJSON []byte
}

// Request is the tagged envelope a client sends to root. Exactly one of
// the typed fields is populated, selected by Kind.
type Request struct {
	Meta            RootRequestMetadata
	Kind            Kind
	CreateCanister  *CreateCanisterRequest
	UpgradeCanister *UpgradeCanisterRequest
	Cycles          *CyclesRequest
	IssueDelegation *IssueDelegationRequest
}

// Response is the tagged envelope root sends back. ErrMessage is
// non-empty iff the request failed; a non-matching response variant for
// a given request Kind is a protocol violation (ErrInvalidResponseType).
type Response struct {
	Kind            Kind
	CreateCanister  *CreateCanisterResponse
	UpgradeCanister *UpgradeCanisterResponse
	Cycles          *CyclesResponse
	IssueDelegation *IssueDelegationResponse
	ErrMessage      string
}

// ErrInvalidResponseType is returned by callers when a Response's
// populated variant doesn't match the Kind of the Request it answers.
var ErrInvalidResponseType = errors.New("rpc: response variant does not match request kind")

// CheckResponseKind validates resp answers a request of kind k.
func CheckResponseKind(k Kind, resp Response) error {
	if resp.Kind != k {
		return ErrInvalidResponseType
	}
	switch k {
	case KindCreateCanister:
		if resp.CreateCanister == nil && resp.ErrMessage == "" {
			return ErrInvalidResponseType
		}
	case KindUpgradeCanister:
		if resp.UpgradeCanister == nil && resp.ErrMessage == "" {
			return ErrInvalidResponseType
		}
	case KindCycles:
		if resp.Cycles == nil && resp.ErrMessage == "" {
			return ErrInvalidResponseType
		}
	case KindIssueDelegation:
		if resp.IssueDelegation == nil && resp.ErrMessage == "" {
			return ErrInvalidResponseType
		}
	}
	return nil
}

// NewRequestID produces a request id from the host's replicated-randomness
// beacon when available, falling back to a deterministic SHA-256
// construction over (now, nonce, caller, self) otherwise (spec.md §4.8,
// §8 invariant 9).
func NewRequestID(ctx context.Context, src runtime.RandomSource, now int64, nonce uint64, caller, self ids.Principal) (RequestID, error) {
	if src != nil {
		if b, err := src.Random32(ctx); err == nil {
			return RequestID(b), nil
		}
	}
	return deterministicRequestID(now, nonce, caller, self), nil
}

func deterministicRequestID(now int64, nonce uint64, caller, self ids.Principal) RequestID {
	h := sha256.New()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(now))
	binary.BigEndian.PutUint64(buf[8:16], nonce)
	h.Write(buf[:])
	h.Write(caller.Bytes())
	h.Write(self.Bytes())
	var out RequestID
	copy(out[:], h.Sum(nil))
	return out
}
