// Package cli holds the iyacare command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tripp808/iyacare-app-sub001/core/config"
	"github.com/Tripp808/iyacare-app-sub001/core/logging"
	"github.com/Tripp808/iyacare-app-sub001/core/vault"
)

type globalFlags struct {
	configPath string
	actor      string
	output     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "iyacare",
		Short: "IyaCare patient-data vault",
		Long: "Encrypts, stores and audits maternal-health patient records, " +
			"mirroring content hashes to a ledger network when one is reachable.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (yaml)")
	root.PersistentFlags().StringVar(&g.actor, "actor", vault.DefaultActor, "who the audit log attributes this call to")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "plain", "Output format: plain|json")

	root.AddCommand(
		newServeCmd(g),
		newStoreCmd(g),
		newRetrieveCmd(g),
		newUpdateCmd(g),
		newVerifyCmd(g),
		newDeleteCmd(g),
		newAuditCmd(g),
		newStatusCmd(g),
		newHealthCmd(),
		newLivenessCmd(),
		newReadinessCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what a command needs to talk to the vault.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	vault  *vault.Vault
}

// open loads configuration and opens the vault. connect also attaches the
// ledger; a failure to do so only logs.
func (g *globalFlags) open(cmd *cobra.Command, connect bool) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	v, err := vault.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	if connect {
		if err := v.Connect(g.ctx(cmd)); err != nil {
			logger.Warn().Err(err).Msg("ledger not connected")
		}
	}
	return &env{cfg: cfg, logger: logger, vault: v}, nil
}

func (g *globalFlags) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return vault.WithActor(ctx, g.actor)
}

func (g *globalFlags) jsonOutput() bool { return g.output == "json" }

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
