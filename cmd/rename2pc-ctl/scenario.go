package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rename2pc/internal/client"
	"rename2pc/internal/rename2pc"
)

// scenarioCmd replays one of the canonical protocol walks against a live
// server, driving it store-by-store the way a real coordinator and its
// stores would exchange messages. It assumes a freshly started server
// with two stores, ids 0 and 1, both holding key A.
func scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Replay a canonical protocol scenario against a running server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "happy-path",
			Short: "Lock, commit, rename, and unlock every store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHappyPath(context.Background(), client.New(serverAddr, timeout))
			},
		},
		&cobra.Command{
			Use:   "crash-after-commit",
			Short: "Commit, crash, recover, then finish renaming and unlocking",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCrashAfterCommit(context.Background(), client.New(serverAddr, timeout))
			},
		},
		&cobra.Command{
			Use:   "lock-failure-abort",
			Short: "Lock store 0, fail it, and land in Cleanup without committing",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLockFailureAbort(context.Background(), client.New(serverAddr, timeout))
			},
		},
		&cobra.Command{
			Use:   "crash-before-commit",
			Short: "Crash while still Preparing and recover into Cleanup",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCrashBeforeCommit(context.Background(), client.New(serverAddr, timeout))
			},
		},
		&cobra.Command{
			Use:   "network-duplication",
			Short: "Duplicate an in-flight LockReq and show the duplicate response it produces",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runNetworkDuplication(context.Background(), client.New(serverAddr, timeout))
			},
		},
	)
	return cmd
}

var scenarioStores = []rename2pc.StoreId{0, 1}

func runHappyPath(ctx context.Context, c *client.Client) error {
	for _, id := range scenarioStores {
		if err := c.SendLockReq(ctx, id); err != nil {
			return fmt.Errorf("send lock req to store %d: %w", id, err)
		}
		if err := c.StoreHandleLockReq(ctx, id); err != nil {
			return fmt.Errorf("store %d handle lock req: %w", id, err)
		}
		if err := c.RecvLockResp(ctx, id, true); err != nil {
			return fmt.Errorf("recv lock resp from store %d: %w", id, err)
		}
	}
	if err := c.DecideCommit(ctx); err != nil {
		return fmt.Errorf("decide commit: %w", err)
	}
	for _, id := range scenarioStores {
		if err := c.SendRenameReq(ctx, id); err != nil {
			return fmt.Errorf("send rename req to store %d: %w", id, err)
		}
		if err := c.StoreHandleRenameReq(ctx, id); err != nil {
			return fmt.Errorf("store %d handle rename req: %w", id, err)
		}
		if err := c.RecvRenameResp(ctx, id); err != nil {
			return fmt.Errorf("recv rename resp from store %d: %w", id, err)
		}
	}
	for _, id := range scenarioStores {
		if err := c.SendUnlockReq(ctx, id); err != nil {
			return fmt.Errorf("send unlock req to store %d: %w", id, err)
		}
		if err := c.StoreHandleUnlockReq(ctx, id); err != nil {
			return fmt.Errorf("store %d handle unlock req: %w", id, err)
		}
		if err := c.RecvUnlockResp(ctx, id); err != nil {
			return fmt.Errorf("recv unlock resp from store %d: %w", id, err)
		}
	}

	snap, err := c.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scenario complete, coordinator phase: %s\n", snap.Coordinator.Phase)
	return nil
}

func runLockFailureAbort(ctx context.Context, c *client.Client) error {
	const store = rename2pc.StoreId(0)

	if err := c.SendLockReq(ctx, store); err != nil {
		return fmt.Errorf("send lock req: %w", err)
	}
	if err := c.StoreHandleLockReq(ctx, store); err != nil {
		return fmt.Errorf("store handle lock req: %w", err)
	}
	if err := c.RecvLockResp(ctx, store, false); err != nil {
		return fmt.Errorf("recv lock resp (failure): %w", err)
	}

	snap, err := c.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scenario complete, coordinator phase: %s (expected Cleanup)\n", snap.Coordinator.Phase)
	return nil
}

func runCrashBeforeCommit(ctx context.Context, c *client.Client) error {
	if err := c.SendLockReq(ctx, 0); err != nil {
		return fmt.Errorf("send lock req: %w", err)
	}
	if err := c.Crash(ctx); err != nil {
		return fmt.Errorf("crash: %w", err)
	}
	if err := c.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	snap, err := c.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scenario complete, txn %d, coordinator phase: %s (expected Cleanup)\n",
		snap.Coordinator.TxnId, snap.Coordinator.Phase)
	return nil
}

func runNetworkDuplication(ctx context.Context, c *client.Client) error {
	const store = rename2pc.StoreId(0)

	if err := c.SendLockReq(ctx, store); err != nil {
		return fmt.Errorf("send lock req: %w", err)
	}

	before, err := c.State(ctx)
	if err != nil {
		return err
	}
	msg := rename2pc.Message{Kind: rename2pc.LockReq, Store: store, TxnId: before.Coordinator.TxnId}
	if err := c.NetDuplicate(ctx, msg); err != nil {
		return fmt.Errorf("duplicate in-flight LockReq: %w", err)
	}

	if err := c.StoreHandleLockReq(ctx, store); err != nil {
		return fmt.Errorf("first store handle lock req: %w", err)
	}
	if err := c.StoreHandleLockReq(ctx, store); err != nil {
		return fmt.Errorf("second store handle lock req: %w", err)
	}

	snap, err := c.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scenario complete, network_len: %d (expected 2 LockResp copies in flight)\n", snap.NetworkLen)
	return nil
}

func runCrashAfterCommit(ctx context.Context, c *client.Client) error {
	for _, id := range scenarioStores {
		if err := c.SendLockReq(ctx, id); err != nil {
			return err
		}
		if err := c.StoreHandleLockReq(ctx, id); err != nil {
			return err
		}
		if err := c.RecvLockResp(ctx, id, true); err != nil {
			return err
		}
	}
	if err := c.DecideCommit(ctx); err != nil {
		return err
	}
	if err := c.Crash(ctx); err != nil {
		return fmt.Errorf("crash: %w", err)
	}
	if err := c.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	for _, id := range scenarioStores {
		if err := c.SendRenameReq(ctx, id); err != nil {
			return err
		}
		if err := c.StoreHandleRenameReq(ctx, id); err != nil {
			return err
		}
		if err := c.RecvRenameResp(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range scenarioStores {
		if err := c.SendUnlockReq(ctx, id); err != nil {
			return err
		}
		if err := c.StoreHandleUnlockReq(ctx, id); err != nil {
			return err
		}
		if err := c.RecvUnlockResp(ctx, id); err != nil {
			return err
		}
	}

	snap, err := c.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scenario complete, coordinator phase: %s\n", snap.Coordinator.Phase)
	return nil
}
