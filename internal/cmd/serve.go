package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inklift/inklift/internal/observability"
	"github.com/inklift/inklift/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job orchestration HTTP service",
	Long: `Starts the long-running orchestration service. Jobs are submitted,
tracked, cancelled, and retried via the HTTP API under /api/v1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}

		srv := server.New(a.cfg.Server.Host, a.cfg.Server.Port, a.orch, versionInfo.Version, observability.Logger)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
