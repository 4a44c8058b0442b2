package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/config"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/logging"
	"github.com/acolita/hydra-sh/internal/recording"
	"github.com/acolita/hydra-sh/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions, info BuildInfo) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve terminal tabs to browser clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cfg, info)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}

func serve(ctx context.Context, opts *globalOptions, cfg *config.Config, info BuildInfo) error {
	logger := setupLogging(cfg)
	logger.Info("starting hydra",
		slog.String("version", info.Version),
		slog.String("listen", cfg.Server.Listen))

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.History.RetentionDays > 0 {
		pruner, err := history.NewPruner(store, cfg.History.RetentionDays, cfg.History.PruneSchedule, realclock.New(), logger)
		if err != nil {
			return err
		}
		if _, err := pruner.RunOnce(); err != nil {
			logger.Warn("initial history prune failed", slog.String("error", err.Error()))
		}
		pruner.Start()
		defer pruner.Stop()
	}

	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}
	connector, err := newConnector(cfg, logger)
	if err != nil {
		return err
	}

	var recordings *recording.Manager
	if cfg.Recording.Enabled {
		recordings = recording.NewManager(cfg.Recording.Path, cfg.SSH.Term)
		logger.Info("recording enabled", slog.String("path", cfg.Recording.Path))
	}

	srv := server.New(server.Options{
		History:    store,
		Profiles:   openProfiles(cfg),
		Auditor:    newAuditor(cfg, logger),
		Connector:  connector,
		Recordings: recordings,
		Detector:   detector,
		Logger:     logger,
		Settings:   serverSettings(cfg),
	})

	watcher, err := config.Watch(ctx, opts.path(), func(newCfg *config.Config) {
		opts.override(newCfg)
		logging.SetLevel(newCfg.Logging.Level)
		store.SetMaxPerDay(newCfg.History.MaxPerDay)
		srv.ApplySettings(serverSettings(newCfg))
	}, config.WithWatchLogger(logger))
	if err != nil {
		logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
	} else {
		defer watcher.Close()
		logger.Info("config hot-reload enabled", slog.String("path", opts.path()))
	}

	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}
