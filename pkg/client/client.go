package client

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/capability"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/log"
	"github.com/cuemby/canic/pkg/rpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// defaultTimeout bounds a single RPC call, the same per-call budget
// cuemby-warren's client.go hardcodes for every proto.WarrenAPIClient
// method.
const defaultTimeout = 10 * time.Second

// Client wraps one gRPC connection to a canic root unit, dispatching
// through the hand-registered canic.RPC/Dispatch method rather than a
// generated stub (pkg/rpc has no protobuf codegen).
type Client struct {
	conn *grpc.ClientConn
	self ids.Principal
	ttl  int64
	seq  uint64
}

// NewClient dials addr with the JSON wire codec canic's RPC service
// registers under. Callers needing mTLS should pass
// grpc.WithTransportCredentials as an extra option; insecure transport
// credentials are the default, matching the devnet harness's own loopback
// deployment.
func NewClient(addr string, self ids.Principal, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "client.NewClient", "dial "+addr, err)
	}
	return &Client{conn: conn, self: self, ttl: int64(defaultTimeout / time.Second)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) nextRequestID(caller ids.Principal) rpc.RequestID {
	nonce := atomic.AddUint64(&c.seq, 1)
	id, _ := rpc.NewRequestID(context.Background(), nil, time.Now().Unix(), nonce, caller, c.self)
	return id
}

func (c *Client) meta() rpc.RootRequestMetadata {
	return rpc.RootRequestMetadata{
		RequestID:  c.nextRequestID(c.self),
		TTLSeconds: c.ttl,
		IssuedAt:   timestamppb.New(time.Now()),
	}
}

func (c *Client) dispatch(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	// The correlation id ties this call's client-side log lines together;
	// it is log-only and never part of the wire envelope, unlike the
	// request_id dedup nonce.
	corr := uuid.NewString()
	logger := log.WithRequestID(corr)
	logger.Debug().Int("kind", int(req.Kind)).Msg("client: dispatching root-bound request")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	resp, err := rpc.Dispatch(ctx, c.conn, req)
	if err != nil {
		logger.Error().Err(err).Msg("client: dispatch failed")
		return rpc.Response{}, err
	}
	if resp.ErrMessage != "" {
		return rpc.Response{}, canicerr.New(canicerr.KindWorkflow, "client.dispatch", resp.ErrMessage, nil)
	}
	return resp, nil
}

// CreateCanister asks root to provision a unit of role under parent
// (spec.md §4.4).
func (c *Client) CreateCanister(ctx context.Context, role ids.CanisterRole, parent ids.Principal, extraArg []byte) (ids.Principal, error) {
	resp, err := c.dispatch(ctx, rpc.Request{
		Meta: c.meta(),
		Kind: rpc.KindCreateCanister,
		CreateCanister: &rpc.CreateCanisterRequest{
			Role:     role,
			Parent:   parent,
			ExtraArg: extraArg,
		},
	})
	if err != nil {
		return ids.Principal{}, err
	}
	return resp.CreateCanister.PID, nil
}

// UpgradeCanister asks root to upgrade pid to its currently registered
// target module.
func (c *Client) UpgradeCanister(ctx context.Context, pid ids.Principal) error {
	_, err := c.dispatch(ctx, rpc.Request{
		Meta:            c.meta(),
		Kind:            rpc.KindUpgradeCanister,
		UpgradeCanister: &rpc.UpgradeCanisterRequest{PID: pid},
	})
	return err
}

// MintCycles asks root to credit amount cycles to pid.
func (c *Client) MintCycles(ctx context.Context, pid ids.Principal, amount uint64) error {
	_, err := c.dispatch(ctx, rpc.Request{
		Meta:   c.meta(),
		Kind:   rpc.KindCycles,
		Cycles: &rpc.CyclesRequest{PID: pid, Amount: amount},
	})
	return err
}

// IssueDelegation asks root to mint a capability.Proof for shardPID over
// audiences/scopes, valid for ttlSeconds.
func (c *Client) IssueDelegation(ctx context.Context, shardPID ids.Principal, audiences, scopes []string, ttlSeconds int64) (*capability.Proof, error) {
	resp, err := c.dispatch(ctx, rpc.Request{
		Meta: c.meta(),
		Kind: rpc.KindIssueDelegation,
		IssueDelegation: &rpc.IssueDelegationRequest{
			ShardPID:   shardPID,
			Audiences:  audiences,
			Scopes:     scopes,
			TTLSeconds: ttlSeconds,
		},
	})
	if err != nil {
		return nil, err
	}
	var proof capability.Proof
	if err := json.Unmarshal(resp.IssueDelegation.ProofJSON, &proof); err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "client.IssueDelegation", "decode proof", err)
	}
	return &proof, nil
}
