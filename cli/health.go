package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotReady = errors.New("node not ready")

func addrFlag(cmd *cobra.Command, addr *string) {
	cmd.Flags().StringVar(addr, "addr", defaultNodeAddr, "node API base URL")
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newHealthCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query node health summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newNodeClient(addr).Health(cmdContext(cmd))
			if err != nil {
				return err
			}
			if output, _ := cmd.Flags().GetString("output"); output == "json" {
				return printJSON(cmd.OutOrStdout(), h)
			}
			out := cmd.OutOrStdout()
			m := h.Metrics
			fmt.Fprintf(out, "Node Health: %s\n", h.Status)
			fmt.Fprintf(out, "Uptime: %ds\n", m.UptimeSeconds)
			fmt.Fprintf(out, "Records: %d\n", m.Records)
			fmt.Fprintf(out, "Audit Entries: %d (chain ok: %v)\n", m.AuditEntries, m.AuditChainOK)
			fmt.Fprintf(out, "Ledger Connected: %v\n", m.LedgerOnline)
			if m.LedgerWrites != "" {
				fmt.Fprintf(out, "Ledger Writes: %s\n", m.LedgerWrites)
			}
			fmt.Fprintf(out, "CPU Load: %.2f%%\n", m.CPULoadPercent)
			fmt.Fprintf(out, "Memory Usage: %.2f MB\n", m.MemoryMB)
			fmt.Fprintf(out, "Disk Free: %.2f MB\n", m.DiskFreeMB)
			if m.LastActivity != "" {
				fmt.Fprintf(out, "Last Activity: %s\n", m.LastActivity)
			}
			return nil
		},
	}
	addrFlag(cmd, &addr)
	return cmd
}

func newLivenessCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Check node liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alive, err := newNodeClient(addr).Liveness(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Liveness: %v\n", alive)
			return nil
		},
	}
	addrFlag(cmd, &addr)
	return cmd
}

func newReadinessCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Check node readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ready, err := newNodeClient(addr).Readiness(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Readiness: %v\n", ready)
			if !ready {
				return errNotReady
			}
			return nil
		},
	}
	addrFlag(cmd, &addr)
	return cmd
}
