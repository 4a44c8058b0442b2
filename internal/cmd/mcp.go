package cmd

import (
	"log/slog"

	"github.com/acolita/hydra-sh/internal/adapters/realdialog"
	"github.com/acolita/hydra-sh/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *globalOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve history, profiles and the audit assistant over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := setupLogging(cfg)

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := mcp.NewServer(store, info.Version,
				mcp.WithProfiles(openProfiles(cfg)),
				mcp.WithAuditor(newAuditor(cfg, logger)),
				mcp.WithDialogProvider(realdialog.New()),
			)
			logger.Info("starting hydra mcp", slog.String("version", info.Version))
			return srv.Run()
		},
	}
}
