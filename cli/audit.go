package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tripp808/iyacare-app-sub001/core/audit"
	"github.com/Tripp808/iyacare-app-sub001/core/config"
)

func newAuditCmd(g *globalFlags) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "audit [patientId]",
		Short: "Show the audit journal, optionally for one patient",
		Example: `  iyacare audit p1
  iyacare audit --verify --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			patientID := ""
			if len(args) == 1 {
				patientID = args[0]
			}

			// The chain only verifies over the unfiltered journal.
			all, err := audit.ReadJournal(cfg.JournalPath(), "")
			if err != nil {
				return err
			}
			if verify {
				if err := audit.VerifyChain(all); err != nil {
					return err
				}
			}
			entries := all
			if patientID != "" {
				entries = entries[:0:0]
				for _, e := range all {
					if e.PatientID == patientID {
						entries = append(entries, e)
					}
				}
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput() {
				return printJSON(out, entries)
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-6s %-12s %-10s authorized=%-5v %s\n",
					e.Timestamp.Format(time.RFC3339), e.Operation, e.PatientID, e.Actor, e.Authorized, e.Outcome)
			}
			if verify {
				fmt.Fprintf(out, "chain intact (%d entries)\n", len(all))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "check the hash chain of the whole journal")
	return cmd
}
