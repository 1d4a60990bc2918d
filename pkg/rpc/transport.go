package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/ids"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// AddressResolver maps a child unit's principal to the network address its
// gRPC server listens on. A devnet harness backs this with a static map;
// a real deployment would resolve it from the registry's own metadata or a
// service directory.
type AddressResolver interface {
	Address(pid ids.Principal) (string, bool)
}

// ClientTransport implements cascade.Transport over gRPC client
// connections, dialed lazily and cached per child principal.
type ClientTransport struct {
	Resolver    AddressResolver
	DialOptions []grpc.DialOption
	Self        ids.Principal

	mu    sync.Mutex
	conns map[ids.Principal]*grpc.ClientConn
}

var _ cascade.Transport = (*ClientTransport)(nil)

// NewClientTransport builds a ClientTransport resolving addresses via
// resolver. Connections are insecure-transport by default; callers needing
// mTLS pass grpc.WithTransportCredentials as an extra DialOption.
func NewClientTransport(resolver AddressResolver, self ids.Principal, extra ...grpc.DialOption) *ClientTransport {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, extra...)
	return &ClientTransport{Resolver: resolver, DialOptions: opts, Self: self, conns: make(map[ids.Principal]*grpc.ClientConn)}
}

func (t *ClientTransport) connFor(pid ids.Principal) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[pid]; ok {
		return conn, nil
	}
	addr, ok := t.Resolver.Address(pid)
	if !ok {
		return nil, fmt.Errorf("rpc: no known address for %s", pid)
	}
	conn, err := grpc.NewClient(addr, t.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	t.conns[pid] = conn
	return conn, nil
}

// SyncState sends bundle to child over its gRPC connection.
func (t *ClientTransport) SyncState(ctx context.Context, child ids.Principal, bundle cascade.Bundle) error {
	conn, err := t.connFor(child)
	if err != nil {
		return err
	}
	var reply empty
	return conn.Invoke(ctx, "/canic.RPC/SyncState", syncStateCall{Caller: t.Self, Bundle: bundle}, &reply)
}

// SyncTopology sends snapshot to child over its gRPC connection.
func (t *ClientTransport) SyncTopology(ctx context.Context, child ids.Principal, snapshot cascade.TopologySnapshot) error {
	conn, err := t.connFor(child)
	if err != nil {
		return err
	}
	var reply empty
	return conn.Invoke(ctx, "/canic.RPC/SyncTopology", syncTopologyCall{Caller: t.Self, Snapshot: snapshot}, &reply)
}

// Dispatch sends an envelope Request to root over conn and returns its
// Response, checking the response variant matches the request Kind.
func Dispatch(ctx context.Context, conn *grpc.ClientConn, req Request) (Response, error) {
	var resp Response
	if err := conn.Invoke(ctx, "/canic.RPC/Dispatch", req, &resp); err != nil {
		return Response{}, err
	}
	if resp.ErrMessage == "" {
		if err := CheckResponseKind(req.Kind, resp); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}

// StaticResolver is an AddressResolver backed by a fixed map, used by
// devnet harnesses and tests.
type StaticResolver map[ids.Principal]string

// Address looks pid up in the map.
func (r StaticResolver) Address(pid ids.Principal) (string, bool) {
	addr, ok := r[pid]
	return addr, ok
}
