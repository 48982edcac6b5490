package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local vault status",
		Example: `  iyacare status
  iyacare status --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			st := e.vault.Status()
			if g.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records: %d\nAudit Entries: %d\nKey: %s\n", st.Records, st.AuditEntries, st.KeyID)
			if !st.LastActivity.IsZero() {
				fmt.Fprintf(out, "Last Activity: %s\n", st.LastActivity.Format(time.RFC3339))
			}
			if st.Network == "" && st.Endpoint == "" && !st.Connected {
				fmt.Fprintln(out, "Ledger: not configured")
				return nil
			}
			fmt.Fprintf(out, "Ledger: %s (%s) connected=%v", st.Network, st.NetworkClass, st.Connected)
			if st.Endpoint != "" {
				fmt.Fprintf(out, " via %s", st.Endpoint)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
