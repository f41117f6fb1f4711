// Package main implements the gav CLI: one-shot gather, verify and guard
// calls against a workspace, hook management, and the HTTP control surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gav/internal/config"
	"github.com/fyrsmithlabs/gav/internal/services"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	dotenvPath string
	workspace  string
	debug      bool
)

// errFailed reports a completed run whose verdict was negative. The
// verdict has already been printed.
var errFailed = errors.New("verification failed")

func main() {
	// Interrupts cancel the command context, which kills running hook and
	// check process groups before gav exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gav",
	Short: "Gather-act-verify control core for coding agents",
	Long: `gav gathers budgeted context for an agent's next action and verifies
the action's outcome with configured hooks and static checks.

Configuration is read from --config, then --dotenv, then GAV_* environment
variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".gav/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&dotenvPath, "dotenv", ".env", "dotenv file loaded before GAV_* variables")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "C", "", "workspace root (overrides context.workspace_root)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write gather and verify diagnostics to stderr")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gav by Fyrsmith Labs\n")
		cmd.Printf("Version:    %s\n", version)
		cmd.Printf("Commit:     %s\n", gitCommit)
		cmd.Printf("Build Date: %s\n", buildDate)
	},
}

// loadConfig applies the persistent flags on top of the layered config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{Path: configPath, DotEnv: dotenvPath})
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		cfg.Context.WorkspaceRoot = workspace
	}
	if debug && cfg.Logging.Level > zapcore.DebugLevel {
		cfg.Logging.Level = zapcore.DebugLevel
	}
	return cfg, nil
}

// openRuntime builds a session runtime; callers must Close it with
// closeRuntime.
func openRuntime(cmd *cobra.Command) (services.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reg, err := services.New(cmd.Context(), cfg, services.Options{})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return reg, nil
}

// closeRuntime flushes the session even when the command was interrupted.
func closeRuntime(cmd *cobra.Command, reg services.Registry) {
	_ = reg.Close(context.WithoutCancel(cmd.Context()))
}
