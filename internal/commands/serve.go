package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/server"
)

// NewServeCmd creates the command that runs the stub backend
func NewServeCmd(deps *Dependencies, global *globalFlags) *cobra.Command {
	deps = deps.withDefaults()
	if global == nil {
		global = &globalFlags{}
	}

	cfg := server.DefaultConfig()
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the stub query backend",
		Long: `Run a stub backend that implements /chat, /analyze, /stream and /health.

It echoes every query back as the summary. Queries mentioning "chart" or
"plot" also get a generated bar chart. Queries starting with /fail make
it report an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, deps, global)
			if err != nil {
				return err
			}

			// Request logs go to the terminal running the server
			logger := newLogger(deps, settings, "stderr")
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			srv := server.New(cfg, server.EchoResponder{Delay: delay}, logger)
			fmt.Fprintf(deps.Stderr, "Serving stub backend on %s (Ctrl+C to stop)\n", srv.Addr())
			if err := srv.ListenAndServe(ctx); err != nil {
				logger.Error("server stopped", zap.Error(err))
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	f.Float64Var(&cfg.RatePerSecond, "rate", cfg.RatePerSecond, "Requests per second per host (0 disables limiting)")
	f.IntVar(&cfg.Burst, "burst", cfg.Burst, "Request burst per host")
	f.DurationVar(&delay, "delay", 0, "Artificial delay before each answer")

	return cmd
}
