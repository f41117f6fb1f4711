package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/gav/internal/http"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP control surface",
	Long: `Start a long-lived session and expose gather, verify, guard and cache
endpoints over HTTP, plus /health and /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	reg, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, reg)

	sc := reg.Config().Server
	srv, err := httpserver.NewServer(reg, reg.Logger().Named("http"), &httpserver.Config{
		Host:      sc.Host,
		Port:      sc.Port,
		RateLimit: sc.RateLimit,
		RateBurst: sc.RateBurst,
		Version:   version,
		Meter:     reg.Telemetry().Meter("gav/http"),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		reg.Logger().Warn(shutdownCtx, "http shutdown incomplete", zap.Error(err))
		return err
	}
	return <-errCh
}
