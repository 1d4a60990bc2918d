// Command canicctl is the operator CLI for a running canic cluster: it
// dials a root unit's gRPC endpoint and drives canic_response's four
// envelope operations, grounded on cuemby-warren's cmd/warren/main.go
// (a cobra.Command tree of resource-scoped subcommands, each dialing
// pkg/client fresh and closing it before returning).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/canic/pkg/client"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "canicctl",
	Short:   "canicctl manages a running canic cluster",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("root-addr", "127.0.0.1:7000", "root unit's gRPC address")
	rootCmd.PersistentFlags().String("self", "", "this caller's principal, hex-encoded (defaults to the all-zero principal)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(canisterCmd)
	canisterCmd.AddCommand(canisterCreateCmd, canisterUpgradeCmd, canisterMintCyclesCmd)
	rootCmd.AddCommand(delegationCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	log.Init(log.Config{Level: log.Level(level)})
}

func dial(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("root-addr")
	selfHex, _ := cmd.Flags().GetString("self")
	var self ids.Principal
	if selfHex != "" {
		raw, err := hexDecodePrincipal(selfHex)
		if err != nil {
			return nil, err
		}
		self = raw
	}
	return client.NewClient(addr, self)
}

func hexDecodePrincipal(s string) (ids.Principal, error) {
	// canicctl identifies itself by the same hex form ids.Principal.Hex
	// produces, matching the devnet harness's own log lines.
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ids.Principal{}, fmt.Errorf("canicctl: invalid --self principal %q: %w", s, err)
	}
	return ids.PrincipalFromBytes(raw)
}

var canisterCmd = &cobra.Command{
	Use:   "canister",
	Short: "Manage canisters through the cluster root",
}

var canisterCreateCmd = &cobra.Command{
	Use:   "create ROLE PARENT",
	Short: "Create a new canister of ROLE under PARENT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := ids.CanisterRole(args[0])
		parent, err := ids.ParsePrincipal(args[1])
		if err != nil {
			return fmt.Errorf("canicctl: invalid parent principal: %w", err)
		}

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("canicctl: connect to root: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		pid, err := c.CreateCanister(ctx, role, parent, nil)
		if err != nil {
			return fmt.Errorf("canicctl: create canister: %w", err)
		}
		fmt.Printf("created canister: %s\n", pid)
		return nil
	},
}

var canisterUpgradeCmd = &cobra.Command{
	Use:   "upgrade PID",
	Short: "Upgrade PID to its currently registered module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := ids.ParsePrincipal(args[0])
		if err != nil {
			return fmt.Errorf("canicctl: invalid principal: %w", err)
		}

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("canicctl: connect to root: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := c.UpgradeCanister(ctx, pid); err != nil {
			return fmt.Errorf("canicctl: upgrade canister: %w", err)
		}
		fmt.Println("upgrade requested")
		return nil
	},
}

var canisterMintCyclesCmd = &cobra.Command{
	Use:   "mint-cycles PID AMOUNT",
	Short: "Mint AMOUNT cycles for PID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := ids.ParsePrincipal(args[0])
		if err != nil {
			return fmt.Errorf("canicctl: invalid principal: %w", err)
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("canicctl: invalid amount %q: %w", args[1], err)
		}

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("canicctl: connect to root: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := c.MintCycles(ctx, pid, amount); err != nil {
			return fmt.Errorf("canicctl: mint cycles: %w", err)
		}
		fmt.Printf("minted %d cycles for %s\n", amount, pid)
		return nil
	},
}

var delegationCmd = &cobra.Command{
	Use:   "delegate SHARD_PID AUDIENCE,... SCOPE,... TTL_SECONDS",
	Short: "Issue a delegation proof to SHARD_PID",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		shardPID, err := ids.ParsePrincipal(args[0])
		if err != nil {
			return fmt.Errorf("canicctl: invalid principal: %w", err)
		}
		audiences := strings.Split(args[1], ",")
		scopes := strings.Split(args[2], ",")
		ttl, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("canicctl: invalid ttl %q: %w", args[3], err)
		}

		c, err := dial(cmd)
		if err != nil {
			return fmt.Errorf("canicctl: connect to root: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		proof, err := c.IssueDelegation(ctx, shardPID, audiences, scopes, ttl)
		if err != nil {
			return fmt.Errorf("canicctl: issue delegation: %w", err)
		}
		fmt.Printf("delegation issued: shard=%s audiences=%v scopes=%v expires_at=%d\n",
			proof.Cert.ShardPID, proof.Cert.Audiences, proof.Cert.Scopes, proof.Cert.ExpiresAt)
		return nil
	},
}
