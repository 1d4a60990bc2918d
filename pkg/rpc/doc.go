/*
Package rpc implements the Cross-unit RPC Envelope of spec.md §4.8: the
request-id-bearing, TTL-advised envelope every root-bound request
carries, its dedup window, and the gRPC transport that carries cascade
bundles/snapshots and envelope requests between units.

Grounded on original_source's ops/command/request.rs (RootRequestMetadata,
the entropy-then-deterministic-fallback request_id construction, the
dedup-by-window framing) and cuemby-warren's pkg/api.Server/pkg/client.Client
for the gRPC wiring shape (grpc.NewServer, grpc.Dial, a small typed
envelope over the wire). Since no .proto/codegen pipeline is part of this
module and the wire codec is explicitly out of scope (spec.md §1), the
service is registered by hand via a literal grpc.ServiceDesc with a JSON
encoding.Codec standing in for a generated one.
*/
package rpc
