// cmd/rename2pc-ctl is the CLI client, built with Cobra.
//
// Usage:
//
//	rename2pc-ctl lock 0                 --server http://localhost:8080
//	rename2pc-ctl lock-resp 0
//	rename2pc-ctl lock-ack 0 --success
//	rename2pc-ctl commit
//	rename2pc-ctl rename 0
//	rename2pc-ctl unlock 0
//	rename2pc-ctl crash
//	rename2pc-ctl recover
//	rename2pc-ctl state
//	rename2pc-ctl scenario happy-path
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rename2pc/internal/client"
	"rename2pc/internal/rename2pc"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "rename2pc-ctl",
		Short: "CLI client for the rename2pc control server",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "control server address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(
		stepCmd("lock", "Send a lock request to a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.SendLockReq(ctx, id)
		}),
		stepCmd("lock-resp", "Deliver a pending lock request at a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.StoreHandleLockReq(ctx, id)
		}),
		lockAckCmd(),
		noArgCmd("commit", "Decide to commit the transaction", func(c *client.Client, ctx context.Context) error {
			return c.DecideCommit(ctx)
		}),
		stepCmd("rename", "Send a rename request to a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.SendRenameReq(ctx, id)
		}),
		stepCmd("rename-resp", "Deliver a pending rename request at a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.StoreHandleRenameReq(ctx, id)
		}),
		stepCmd("rename-ack", "Receive a rename response at the coordinator", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.RecvRenameResp(ctx, id)
		}),
		stepCmd("unlock", "Send an unlock request to a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.SendUnlockReq(ctx, id)
		}),
		stepCmd("unlock-resp", "Deliver a pending unlock request at a store", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.StoreHandleUnlockReq(ctx, id)
		}),
		stepCmd("unlock-ack", "Receive an unlock response at the coordinator", func(c *client.Client, ctx context.Context, id rename2pc.StoreId) error {
			return c.RecvUnlockResp(ctx, id)
		}),
		noArgCmd("crash", "Crash the coordinator", func(c *client.Client, ctx context.Context) error {
			return c.Crash(ctx)
		}),
		noArgCmd("recover", "Recover the coordinator after a crash", func(c *client.Client, ctx context.Context) error {
			return c.Recover(ctx)
		}),
		loseCmd(),
		duplicateCmd(),
		stateCmd(),
		scenarioCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseStoreId(s string) (rename2pc.StoreId, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid store id %q: %w", s, err)
	}
	return rename2pc.StoreId(n), nil
}

func stepCmd(use, short string, fn func(*client.Client, context.Context, rename2pc.StoreId) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <store>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStoreId(args[0])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			return fn(c, context.Background(), id)
		},
	}
}

func noArgCmd(use, short string, fn func(*client.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			return fn(c, context.Background())
		},
	}
}

func lockAckCmd() *cobra.Command {
	var success bool
	cmd := &cobra.Command{
		Use:   "lock-ack <store>",
		Short: "Receive a lock response at the coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStoreId(args[0])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			return c.RecvLockResp(context.Background(), id, success)
		},
	}
	cmd.Flags().BoolVar(&success, "success", true, "whether the lock was granted")
	return cmd
}

func messageFromArgs(kindStr, storeStr, txnStr string) (rename2pc.Message, error) {
	kind, err := rename2pc.ParseMessageKind(kindStr)
	if err != nil {
		return rename2pc.Message{}, err
	}
	store, err := parseStoreId(storeStr)
	if err != nil {
		return rename2pc.Message{}, err
	}
	txn, err := strconv.ParseUint(txnStr, 10, 64)
	if err != nil {
		return rename2pc.Message{}, fmt.Errorf("invalid txn id %q: %w", txnStr, err)
	}
	return rename2pc.Message{Kind: kind, Store: store, TxnId: rename2pc.TxnId(txn)}, nil
}

func loseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lose <kind> <store> <txn>",
		Short: "Drop one in-flight copy of a message from the network",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := messageFromArgs(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			return c.NetLose(context.Background(), m)
		},
	}
}

func duplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <kind> <store> <txn>",
		Short: "Duplicate one in-flight copy of a message on the network",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := messageFromArgs(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			c := client.New(serverAddr, timeout)
			return c.NetDuplicate(context.Background(), m)
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print a snapshot of the full system state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			snap, err := c.State(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(snap)
			return nil
		},
	}
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
