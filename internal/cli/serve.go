package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/wire"
)

// ServeCmd returns the HTTP server command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = wire.Config().HTTPAddr
			}

			server := wire.HTTPServer()
			logger := wire.Logger()
			defer wire.Services().Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Listen(addr)
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case err := <-errCh:
				return fmt.Errorf("http server stopped: %w", err)
			case s := <-sig:
				logger.WithField("signal", s.String()).Info("shutting down")
				return server.Shutdown()
			}
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	return cmd
}
