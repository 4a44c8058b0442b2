// Package cmd implements the hydra command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

type globalOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hydra",
		Short: "Multi-session SSH terminal gateway with command capture",
		Long: "hydra serves browser terminal tabs over SSH, directly or through a jump host, " +
			"and records every command typed in them with its output, duration and execution type.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (default $XDG_CONFIG_HOME/hydra/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts, info),
		newMCPCmd(opts, info),
		newProfileCmd(opts),
		newVersionCmd(info),
	)
	return rootCmd
}
