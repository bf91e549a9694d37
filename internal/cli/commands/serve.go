package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sieveworks/sieve/internal/cli/config"
	"github.com/sieveworks/sieve/internal/rules"
	"github.com/sieveworks/sieve/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve the quality gate over HTTP: trace queries, ad-hoc batch
evaluation, rule metadata and run summaries. With --watch, rule files are
recompiled on change without restarting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			logger := config.GetLogger(cmd.Context())

			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stageFiles := make([]rules.StageFile, len(cfg.Pipeline))
			for i, stage := range cfg.Pipeline {
				stageFiles[i] = rules.StageFile{Stage: stage.Stage, Path: stage.Rules}
			}

			srv, err := server.NewServer(server.Config{
				Store:               store,
				StageFiles:          stageFiles,
				QuarantineThreshold: cfg.Threshold(),
				Workers:             cfg.Workers,
				Port:                cfg.HTTPPort,
				Watch:               watch,
				Environment:         cfg.Environment,
				Logger:              logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", config.DefaultHTTPPort, "Port to listen on")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload rule files on change")

	return cmd
}
