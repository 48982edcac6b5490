package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tripp808/iyacare-app-sub001/api/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vault node with its status and health API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer e.vault.Close()

			if addr == "" {
				addr = e.cfg.HTTP.Addr
			}
			srv := server.NewServer(e.vault, server.Options{
				ListenAddr:   addr,
				DataDir:      e.cfg.DataDir,
				MinFreeBytes: e.cfg.Storage.MinFreeBytes,
				JWTSecret:    e.cfg.HTTP.JWTSecret,
				TLSCertFile:  e.cfg.HTTP.TLSCertFile,
				TLSKeyFile:   e.cfg.HTTP.TLSKeyFile,
				Logger:       e.logger,
			})

			ctx, stop := signal.NotifyContext(g.ctx(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			e.logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
