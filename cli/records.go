package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

// ErrIntegrity is returned by verify when a record fails its check, so the
// process exits non-zero.
var ErrIntegrity = errors.New("integrity check failed")

func newStoreCmd(g *globalFlags) *cobra.Command {
	var file, tierName string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Encrypt and store a patient record",
		Example: `  iyacare store --file patient.yaml --tier restricted
  cat patient.json | iyacare store --file - --tier confidential`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := record.ParseTier(tierName)
			if err != nil {
				return err
			}
			rec, err := readRecordFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			e, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			hash, err := e.vault.Store(g.ctx(cmd), rec, tier)
			if err != nil {
				return err
			}
			if g.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"patientId": rec.PatientID(), "contentHash": hash})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s at tier %s\nContent hash: %s\n", rec.PatientID(), tier, hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file (.json, .yaml) or - for stdin")
	cmd.Flags().StringVarP(&tierName, "tier", "t", "restricted", "disclosure tier: public|restricted|confidential")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRetrieveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "retrieve <patientId>",
		Short: "Decrypt and print a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			res, err := e.vault.Retrieve(g.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			if g.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			m := res.Metadata
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Patient: %s\nTier: %s\nVersion: %d\nHash: %s\n", args[0], m.Tier, m.Version, m.ContentHash)
			fmt.Fprintf(out, "Created: %s\nModified: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05Z07:00"), m.LastModifiedAt.Format("2006-01-02 15:04:05Z07:00"))
			if m.Remote != nil {
				fmt.Fprintf(out, "Ledger anchored: %v (matches: %v)\n", m.Remote.Anchored, m.Remote.Matches)
			}
			return printJSON(out, res.Record)
		},
	}
}

func newUpdateCmd(g *globalFlags) *cobra.Command {
	var file string
	var ifVersion uint64
	cmd := &cobra.Command{
		Use:   "update <patientId>",
		Short: "Merge changes into a stored record",
		Long: "Applies the change file as a JSON merge patch: fields are replaced, " +
			"nested objects merge, and null removes a field.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := readRecordFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			e, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			var hash string
			if ifVersion > 0 {
				hash, err = e.vault.UpdateIfVersion(g.ctx(cmd), args[0], ifVersion, changes)
			} else {
				hash, err = e.vault.Update(g.ctx(cmd), args[0], changes)
			}
			if err != nil {
				return err
			}
			if g.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"patientId": args[0], "contentHash": hash})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\nContent hash: %s\n", args[0], hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "change file (.json, .yaml) or - for stdin")
	cmd.Flags().Uint64Var(&ifVersion, "if-version", 0, "only update if the stored version matches")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <patientId>",
		Short: "Check a stored record against its content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd, false)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			report, err := e.vault.VerifyIntegrity(g.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			if g.jsonOutput() {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else if report.Verified {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: verified (version %d)\n", args[0], report.Version)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: NOT VERIFIED: %s\n", args[0], report.Reason)
			}
			if !report.Verified {
				return fmt.Errorf("%s: %w", args[0], ErrIntegrity)
			}
			return nil
		},
	}
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <patientId>",
		Short: "Request deletion (always refused and audited)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd, false)
			if err != nil {
				return err
			}
			defer e.vault.Close()
			return e.vault.RecordDeleteAttempt(g.ctx(cmd), args[0])
		},
	}
}
