package rpc

import (
	"context"

	"github.com/cuemby/canic/pkg/cascade"
	"github.com/cuemby/canic/pkg/capability"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/orchestrator"
	"github.com/cuemby/canic/pkg/runtime"
	"google.golang.org/grpc"
)

// Handler executes the envelope kinds a Service dispatches. pkg/orchestrator
// and pkg/capability.Issuer each implement the subset of this interface
// their own Create/Upgrade/Issue methods satisfy; a root deployment wires
// all of Handler, a non-root unit only needs the cascade methods below.
type Handler interface {
	CreateCanister(ctx context.Context, req CreateCanisterRequest) (CreateCanisterResponse, error)
	UpgradeCanister(ctx context.Context, req UpgradeCanisterRequest) (UpgradeCanisterResponse, error)
	MintCycles(ctx context.Context, req CyclesRequest) (CyclesResponse, error)
	IssueDelegation(ctx context.Context, req IssueDelegationRequest) (IssueDelegationResponse, error)
}

// StateReceiver is the non-root side of the cascade: applying an inbound
// Bundle/TopologySnapshot and forwarding it to this unit's own children
// (cascade.ReplayState/ReplayTopology do the actual work; Service just
// carries the gRPC call to them).
type StateReceiver interface {
	ReceiveState(ctx context.Context, caller ids.Principal, bundle cascade.Bundle) error
	ReceiveTopology(ctx context.Context, caller ids.Principal, snapshot cascade.TopologySnapshot) error
}

// Service is the gRPC handler behind the hand-registered ServiceDesc. Root
// deployments set Handler; every unit (root and non-root alike) sets
// State to receive cascaded bundles/snapshots from its parent.
type Service struct {
	Handler Handler
	State   StateReceiver
	Dedup   *Dedup
	Clock   runtime.Clock
}

// Dispatch executes req, deduplicating by req.Meta.RequestID when s.Dedup
// is set (spec.md §4.8). A kind with no matching Handler method, or a
// Handler left nil on a non-root unit, fails with ErrInvalidResponseType.
func (s *Service) Dispatch(ctx context.Context, req Request) (Response, error) {
	var fingerprint string
	if s.Dedup != nil {
		fp, err := Fingerprint(req)
		if err != nil {
			return Response{}, err
		}
		fingerprint = fp
		if cached, hit, err := s.Dedup.Check(s.Clock.Now(), req.Meta.RequestID, fingerprint); err != nil {
			return Response{}, err
		} else if hit {
			return cached, nil
		}
	}

	resp, err := s.execute(ctx, req)
	if err != nil {
		resp = Response{Kind: req.Kind, ErrMessage: err.Error()}
	}
	if s.Dedup != nil {
		s.Dedup.Record(s.Clock.Now(), req.Meta.RequestID, fingerprint, req.Meta.TTLSeconds, resp)
	}
	return resp, nil
}

func (s *Service) execute(ctx context.Context, req Request) (Response, error) {
	if s.Handler == nil {
		return Response{}, ErrInvalidResponseType
	}
	switch req.Kind {
	case KindCreateCanister:
		if req.CreateCanister == nil {
			return Response{}, ErrInvalidResponseType
		}
		out, err := s.Handler.CreateCanister(ctx, *req.CreateCanister)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: req.Kind, CreateCanister: &out}, nil
	case KindUpgradeCanister:
		if req.UpgradeCanister == nil {
			return Response{}, ErrInvalidResponseType
		}
		out, err := s.Handler.UpgradeCanister(ctx, *req.UpgradeCanister)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: req.Kind, UpgradeCanister: &out}, nil
	case KindCycles:
		if req.Cycles == nil {
			return Response{}, ErrInvalidResponseType
		}
		out, err := s.Handler.MintCycles(ctx, *req.Cycles)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: req.Kind, Cycles: &out}, nil
	case KindIssueDelegation:
		if req.IssueDelegation == nil {
			return Response{}, ErrInvalidResponseType
		}
		out, err := s.Handler.IssueDelegation(ctx, *req.IssueDelegation)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: req.Kind, IssueDelegation: &out}, nil
	default:
		return Response{}, ErrInvalidResponseType
	}
}

// wireBundle/wireSnapshot are the over-the-wire shapes for SyncState/
// SyncTopology; cascade.Bundle/TopologySnapshot carry *directory.Snapshot
// and ids.Principal values the JSON codec can encode directly, so these
// exist only to name the gRPC call's request/response pair.
type syncStateCall struct {
	Caller ids.Principal
	Bundle cascade.Bundle
}

type syncTopologyCall struct {
	Caller   ids.Principal
	Snapshot cascade.TopologySnapshot
}

type empty struct{}

// SyncState is the server-side handler for an inbound canic_sync_state
// call from this unit's parent.
func (s *Service) SyncState(ctx context.Context, call syncStateCall) (empty, error) {
	if s.State == nil {
		return empty{}, ErrInvalidResponseType
	}
	return empty{}, s.State.ReceiveState(ctx, call.Caller, call.Bundle)
}

// SyncTopology is the server-side handler for an inbound
// canic_sync_topology call.
func (s *Service) SyncTopology(ctx context.Context, call syncTopologyCall) (empty, error) {
	if s.State == nil {
		return empty{}, ErrInvalidResponseType
	}
	return empty{}, s.State.ReceiveTopology(ctx, call.Caller, call.Snapshot)
}

// orchestratorHandler adapts *orchestrator.Orchestrator and a
// capability.Issuer to Handler, translating between the envelope's wire
// types and the packages' own input/output structs. It is the one place
// that knows both shapes.
type orchestratorHandler struct {
	Orchestrator *orchestrator.Orchestrator
	Issuer       *capability.Issuer
	Management   runtime.ManagementClient
}

// NewOrchestratorHandler builds a Handler backed by orch and issuer. The
// directory/state sections of the resulting CreateInput/UpgradeInput are
// left at their zero value: a caller needing those cascaded needs to call
// orchestrator.Orchestrator directly rather than through the envelope,
// since the envelope's CreateCanisterRequest carries no directory payload
// (spec.md §4.8 scopes the envelope to the four Kinds' own fields).
func NewOrchestratorHandler(orch *orchestrator.Orchestrator, issuer *capability.Issuer, mgmt runtime.ManagementClient) Handler {
	return &orchestratorHandler{Orchestrator: orch, Issuer: issuer, Management: mgmt}
}

func (h *orchestratorHandler) CreateCanister(ctx context.Context, req CreateCanisterRequest) (CreateCanisterResponse, error) {
	pid, err := h.Orchestrator.Create(ctx, orchestrator.CreateInput{
		Role:     req.Role,
		Parent:   req.Parent,
		ExtraArg: req.ExtraArg,
	})
	if err != nil {
		return CreateCanisterResponse{}, err
	}
	return CreateCanisterResponse{PID: pid}, nil
}

func (h *orchestratorHandler) UpgradeCanister(ctx context.Context, req UpgradeCanisterRequest) (UpgradeCanisterResponse, error) {
	if err := h.Orchestrator.Upgrade(ctx, orchestrator.UpgradeInput{PID: req.PID}); err != nil {
		return UpgradeCanisterResponse{}, err
	}
	return UpgradeCanisterResponse{}, nil
}

func (h *orchestratorHandler) MintCycles(ctx context.Context, req CyclesRequest) (CyclesResponse, error) {
	if err := h.Management.MintCycles(ctx, req.PID, req.Amount); err != nil {
		return CyclesResponse{}, err
	}
	return CyclesResponse{}, nil
}

func (h *orchestratorHandler) IssueDelegation(ctx context.Context, req IssueDelegationRequest) (IssueDelegationResponse, error) {
	proof, err := h.Issuer.Issue(ctx, req.ShardPID, req.Audiences, req.Scopes, req.TTLSeconds)
	if err != nil {
		return IssueDelegationResponse{}, err
	}
	data, err := proofJSON(proof)
	if err != nil {
		return IssueDelegationResponse{}, err
	}
	return IssueDelegationResponse{ProofJSON: data}, nil
}

// serviceDesc is the hand-registered grpc.ServiceDesc standing in for one a
// .proto/codegen pipeline would normally generate: a single bidirectional
// method (Call) multiplexing every envelope Kind plus the two cascade
// calls, all framed through jsonCodec rather than protobuf.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "canic.RPC",
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "SyncState", Handler: syncStateHandler},
		{MethodName: "SyncTopology", Handler: syncTopologyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "canic/rpc.proto",
}

// RegisterService attaches svc to server under the hand-registered
// ServiceDesc.
func RegisterService(server *grpc.Server, svc *Service) {
	server.RegisterService(&serviceDesc, svc)
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req Request
	if err := dec(&req); err != nil {
		return nil, err
	}
	svc := srv.(*Service)
	if interceptor == nil {
		return svc.Dispatch(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/canic.RPC/Dispatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return svc.Dispatch(ctx, req.(Request))
	}
	return interceptor(ctx, req, info, handler)
}

func syncStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var call syncStateCall
	if err := dec(&call); err != nil {
		return nil, err
	}
	svc := srv.(*Service)
	if interceptor == nil {
		return svc.SyncState(ctx, call)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/canic.RPC/SyncState"}
	handler := func(ctx context.Context, req any) (any, error) {
		return svc.SyncState(ctx, req.(syncStateCall))
	}
	return interceptor(ctx, call, info, handler)
}

func syncTopologyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var call syncTopologyCall
	if err := dec(&call); err != nil {
		return nil, err
	}
	svc := srv.(*Service)
	if interceptor == nil {
		return svc.SyncTopology(ctx, call)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/canic.RPC/SyncTopology"}
	handler := func(ctx context.Context, req any) (any, error) {
		return svc.SyncTopology(ctx, req.(syncTopologyCall))
	}
	return interceptor(ctx, call, info, handler)
}
