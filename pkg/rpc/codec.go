package rpc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cuemby/canic/pkg/capability"
	"google.golang.org/grpc/encoding"
)

// codecName is registered as the gRPC wire codec name for this module's
// single hand-registered service, standing in for the "proto" codec a
// generated client/server pair would normally negotiate.
const codecName = "json"

// jsonCodec implements grpc/encoding.Codec over encoding/json. canic has no
// .proto/codegen pipeline (spec.md §1 leaves the wire format unspecified),
// so the gRPC service below is registered by hand against this codec
// rather than generated marshal/unmarshal code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Fingerprint returns a stable digest of req's payload, used by Dedup to
// detect a request_id replayed with a different request (spec.md §4.8).
// The envelope header is excluded: a retry carries the same request_id
// but may restamp IssuedAt, and that alone must not read as a conflict.
func Fingerprint(req Request) (string, error) {
	req.Meta = RootRequestMetadata{}
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("rpc: encode request for fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// proofJSON encodes a capability.Proof for carriage inside an
// IssueDelegationResponse; pkg/rpc stays ignorant of how the capability
// package itself (de)serializes a Proof for signing, this is purely a
// transport encoding.
func proofJSON(proof *capability.Proof) ([]byte, error) {
	return json.Marshal(proof)
}
