// Command canic-devnet is the single-process reference deployment: it
// boots a pkg/devnet.Host as the management canister stand-in, wires
// every core package into a pkg/api.Server scoped to the root unit, and
// serves canic's hand-registered gRPC RPC service plus a Prometheus
// metrics endpoint, grounded on cuemby-warren's cmd/warren/main.go
// clusterInitCmd (manager bootstrap, scheduler/metrics startup, a
// background gRPC listener, then block on SIGINT/SIGTERM).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/canic/pkg/api"
	"github.com/cuemby/canic/pkg/canpool"
	"github.com/cuemby/canic/pkg/capability"
	"github.com/cuemby/canic/pkg/config"
	"github.com/cuemby/canic/pkg/devnet"
	"github.com/cuemby/canic/pkg/env"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/intent"
	"github.com/cuemby/canic/pkg/lifecycle"
	"github.com/cuemby/canic/pkg/log"
	"github.com/cuemby/canic/pkg/logstore"
	"github.com/cuemby/canic/pkg/metrics"
	"github.com/cuemby/canic/pkg/orchestrator"
	"github.com/cuemby/canic/pkg/registrystore"
	"github.com/cuemby/canic/pkg/reserve"
	"github.com/cuemby/canic/pkg/rpc"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/cuemby/canic/pkg/scheduler"
	"github.com/cuemby/canic/pkg/security"
	"github.com/cuemby/canic/pkg/sharding"
	"github.com/cuemby/canic/pkg/store"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "canic-devnet",
	Short:   "canic-devnet runs a single-node canic root unit against the devnet reference host",
	Version: Version,
}

func init() {
	startCmd.Flags().String("node-id", "devnet-0", "raft node id for the embedded devnet host")
	startCmd.Flags().String("raft-addr", "127.0.0.1:7100", "devnet host's raft bind address")
	startCmd.Flags().String("grpc-addr", "127.0.0.1:7000", "canic RPC gRPC listen address")
	startCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "metrics/health HTTP listen address")
	startCmd.Flags().String("data-dir", "./data/devnet", "data directory for the devnet host and this unit's Stable Store")
	startCmd.Flags().String("config", "", "path to a canic YAML config file (controllers, subnets, sharding pools); empty runs with an unconfigured root")
	startCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	startCmd.Flags().Bool("log-json", false, "emit logs as JSON")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(startCmd)
}

func initLogging() {
	level, _ := startCmd.Flags().GetString("log-level")
	jsonOut, _ := startCmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the devnet root unit",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	raftAddr, _ := cmd.Flags().GetString("raft-addr")
	grpcAddr, _ := cmd.Flags().GetString("grpc-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configPath, _ := cmd.Flags().GetString("config")

	logger := log.WithComponent("canic-devnet")
	logger.Info().Str("data_dir", dataDir).Msg("starting devnet host")

	host, err := devnet.NewHost(devnet.Config{NodeID: nodeID, BindAddr: raftAddr, DataDir: dataDir + "/raft"})
	if err != nil {
		return fmt.Errorf("canic-devnet: start devnet host: %w", err)
	}
	defer host.Shutdown()
	logger.Info().Str("node_id", nodeID).Str("raft_addr", raftAddr).Msg("devnet host bootstrapped")

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("canic-devnet: load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("canic-devnet: validate config: %w", err)
		}
	} else {
		cfg = &config.Config{}
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 5*time.Second)
	rootPID, err := host.CreateCanister(bootCtx, 0)
	bootCancel()
	if err != nil {
		return fmt.Errorf("canic-devnet: mint root principal: %w", err)
	}

	srv, err := buildServer(host, cfg, dataDir, rootPID)
	if err != nil {
		return err
	}
	logger.Info().Str("self", srv.Self.String()).Msg("root unit provisioned")

	entropyPool := rpc.NewEntropyPool(host)

	sched := buildScheduler(srv, entropyPool)
	sched.Start()
	defer sched.Stop()
	logger.Info().Msg("scheduler started")

	grpcServer := grpc.NewServer()
	rpc.RegisterService(grpcServer, &rpc.Service{
		Handler: rpc.NewOrchestratorHandler(srv.Orchestrator, srv.Issuer, srv.Management),
		State:   srv,
		Dedup:   rpc.NewDedup(60),
		Clock:   srv.Clock,
	})
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("canic-devnet: listen %s: %w", grpcAddr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	logger.Info().Str("addr", grpcAddr).Msg("canic.RPC gRPC server listening")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	_ = httpServer.Shutdown(ctx)
	return nil
}

// buildServer wires every core package into a root api.Server scoped to
// host, the same way cuemby-warren's clusterInitCmd wires manager.Manager
// into api.NewServer, but fanned out across canic's many narrower
// packages instead of one monolithic manager.
func buildServer(host *devnet.Host, cfg *config.Config, dataDir string, rootPID ids.Principal) (*api.Server, error) {
	s, err := store.Open(dataDir + "/unit")
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: open stable store: %w", err)
	}

	signer, err := security.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: generate root signer: %w", err)
	}

	environment, err := env.New(env.Config{
		PrimeRootPID: rootPID,
		RootPID:      rootPID,
		SubnetPID:    rootPID,
		SubnetRole:   ids.RoleRoot,
		CanisterRole: ids.RoleRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: construct environment: %w", err)
	}

	registry := registrystore.New(s, store.RegionRegistry)
	if err := registry.RegisterRoot(rootPID, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("canic-devnet: register root: %w", err)
	}

	shardRegistry := sharding.New(s, store.RegionShardRegistry, store.RegionAssignments)
	lifecycleIndex := lifecycle.New(s, store.RegionLifecyclePhase, store.RegionActiveSet, store.RegionRotationTargets)
	res := reserve.New(s, store.RegionReserve)
	pool := canpool.New(s, store.RegionPool)
	intentStore := intent.New(s, store.RegionIntent)

	logs, err := logstore.New(s, store.RegionLog, logstore.Config{MaxEntries: 10_000})
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: open log store: %w", err)
	}
	cycles, err := logstore.NewCycleTracker(s, store.RegionCycleTracker, 1_000)
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: open cycle tracker: %w", err)
	}

	controllers, err := cfg.ControllerPrincipals()
	if err != nil {
		return nil, fmt.Errorf("canic-devnet: parse config controllers: %w", err)
	}

	clock := runtime.SystemClock{}
	resolver := rpc.StaticResolver{}
	transport := rpc.NewClientTransport(resolver, rootPID)

	orch := &orchestrator.Orchestrator{
		Reg:        registry,
		Reserve:    res,
		Management: host,
		Transport:  transport,
		Clock:      clock,
	}

	issuer := &capability.Issuer{
		Signer:    signer,
		RootPID:   rootPID,
		Certified: host,
		Clock:     clock,
	}

	srv := &api.Server{
		Self:            rootPID,
		Env:             environment,
		Store:           s,
		Registry:        registry,
		Sharding:        shardRegistry,
		Lifecycle:       lifecycleIndex,
		Reserve:         res,
		Pool:            pool,
		Intent:          intentStore,
		Logs:            logs,
		Cycles:          cycles,
		Orchestrator:    orch,
		Issuer:          issuer,
		Signer:          signer,
		Transport:       transport,
		Management:      host,
		Clock:           clock,
		Config:          cfg,
		Modules:         map[ids.CanisterRole]api.ModuleArtifact{},
		PoolControllers: controllers,
	}
	return srv, nil
}

// reserveRefill tops the reserve up to minimum by minting and installing
// fresh empty units through srv's management client, the devnet harness's
// stand-in for the background refill timer spec.md §7 describes; it is a
// standalone function (not a Reserve method) because refilling needs the
// host's CreateCanister call, which pkg/reserve has no dependency on.
func reserveRefill(ctx context.Context, srv *api.Server, minimum uint8) error {
	if minimum == 0 {
		return nil
	}
	// At most 10 creations per tick; a still-short reserve catches up on
	// subsequent ticks.
	for spawned := 0; spawned < 10; spawned++ {
		n, err := srv.Reserve.Len()
		if err != nil {
			return err
		}
		if n >= int(minimum) {
			return nil
		}
		pid, err := srv.Management.CreateCanister(ctx, 0)
		if err != nil {
			return err
		}
		if err := srv.Reserve.Register(pid, reserve.Entry{CreatedAt: srv.Clock.Now().Unix()}); err != nil {
			return err
		}
	}
	return nil
}

// sampleCycles records one cycle-balance observation per registered unit,
// the devnet harness's backing for the cycle_tracker timer spec.md §5/§7
// names alongside reserve refill and log retention.
func sampleCycles(ctx context.Context, srv *api.Server) error {
	entries, err := srv.Registry.All()
	if err != nil {
		return err
	}
	now := srv.Clock.Now().Unix()
	for _, e := range entries {
		balance, err := srv.Management.CycleBalance(ctx, e.PID)
		if err != nil {
			return err
		}
		if err := srv.Cycles.Record(logstore.CycleSample{PID: e.PID, Balance: balance, RecordedAt: now}); err != nil {
			return err
		}
	}
	return nil
}

// buildScheduler wires the framework's named recurring jobs (spec.md §7)
// against srv, mirroring how cuemby-warren's clusterInitCmd starts its
// scheduler and reconciler as separate background loops. entropy keeps the
// replicated-randomness cache pkg/rpc.NewRequestID's entropy-preferred path
// reads from warm between reseeds (spec.md §4.8, §5).
func buildScheduler(srv *api.Server, entropy *rpc.EntropyPool) *scheduler.Scheduler {
	return scheduler.New([]scheduler.Task{
		{
			Name:         scheduler.NameReserveRefill,
			InitialDelay: 5 * time.Second,
			Interval:     30 * time.Second,
			Run: func(ctx context.Context) error {
				return reserveRefill(ctx, srv, srv.Config.ReserveMinimumSize(srv.Env.SubnetRole))
			},
		},
		{
			Name:         scheduler.NameLogRetention,
			InitialDelay: 10 * time.Second,
			Interval:     time.Minute,
			Run: func(ctx context.Context) error {
				_, err := srv.Logs.ApplyRetention(srv.Clock.Now().Unix())
				return err
			},
		},
		{
			Name:         scheduler.NameCycleTracker,
			InitialDelay: 15 * time.Second,
			Interval:     5 * time.Minute,
			Run: func(ctx context.Context) error {
				return sampleCycles(ctx, srv)
			},
		},
		{
			Name:         scheduler.NameEntropyReseed,
			InitialDelay: time.Second,
			Interval:     10 * time.Minute,
			Run:          entropy.Reseed,
		},
	})
}
