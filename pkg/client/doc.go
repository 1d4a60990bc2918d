// Package client wraps the root-bound cross-unit RPC envelope (pkg/rpc)
// behind one typed Go method per canic.RPC/Dispatch operation, the same
// shape cuemby-warren's pkg/client/client.go gives its generated
// WarrenAPIClient stub: a context-scoped timeout per call, a thin request
// struct built from plain arguments, and a typed response unwrapped from
// the envelope.
//
// canic has no protobuf codegen (pkg/rpc registers its service by hand
// against a JSON wire codec), so Client dials with grpc.NewClient and
// calls rpc.Dispatch directly rather than through a generated stub.
//
// Client only reaches canic_response's four envelope Kinds
// (create/upgrade/cycles/delegation): the read-only canic_* query
// surface (pkg/api's Query methods) is a facade meant to be driven
// in-process by whatever ingress a host exposes (an HTTP handler, a
// candid-style message router), not by this internal RPC channel, so it
// has no wire form here. canicctl talks to a devnet host's own HTTP
// query port for those (see cmd/canicctl, cmd/canic-devnet).
package client
