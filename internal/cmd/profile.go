package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/acolita/hydra-sh/internal/adapters/realdialog"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/spf13/cobra"
)

func newProfileCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage saved connection profiles",
	}
	cmd.AddCommand(
		newProfileAddCmd(opts, realdialog.New()),
		newProfileListCmd(opts),
		newProfileRmCmd(opts),
	)
	return cmd
}

func newProfileAddCmd(opts *globalOptions, dialog ports.DialogProvider) *cobra.Command {
	var prefill ports.ProfileFormData

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a connection profile with an interactive form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := profiles.Open(cfg.Profiles.Path)
			if err := store.Err(); err != nil {
				return fmt.Errorf("%w: %v", profiles.ErrReadOnly, err)
			}

			saved, ok, err := store.AddInteractive(dialog, prefill)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			fmt.Fprintf(out, "Saved %s (%s) to %s\n", saved.Name, saved.ID, store.Path())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&prefill.Name, "name", "", "Connection name")
	f.StringVar(&prefill.Host, "host", "", "SSH host")
	f.IntVar(&prefill.Port, "port", ssh.DefaultPort, "SSH port")
	f.StringVar(&prefill.Username, "user", "", "SSH username")
	f.StringVar(&prefill.AuthType, "auth", profiles.AuthPassword, "Authentication: password or agent")
	f.StringVar(&prefill.JumpName, "jump", "", "Name of a saved jump host profile")
	f.BoolVar(&prefill.IsJump, "is-jump", false, "Offer this profile as a jump host")
	return cmd
}

func newProfileListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List connection profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := profiles.Open(cfg.Profiles.Path)
			if err := store.Err(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", store.Path(), err)
			}
			list := store.List()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved connections.")
				return nil
			}
			return printProfiles(cmd.OutOrStdout(), list)
		},
	}
}

func printProfiles(w io.Writer, list []ssh.ConnectionConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tUSER\tAUTH\tJUMP\tID")
	for _, p := range list {
		auth := profiles.AuthPassword
		if p.UseAgent {
			auth = profiles.AuthAgent
		}
		jump := "-"
		if p.HasJump() {
			jump = p.JumpConfig.DisplayName()
		}
		if p.IsJump {
			auth += " (jump host)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.DisplayName(), p.Addr(), p.Username, auth, jump, p.ID)
	}
	return tw.Flush()
}

func newProfileRmCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name|id>",
		Aliases: []string{"remove"},
		Short:   "Remove a connection profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := profiles.Open(cfg.Profiles.Path)

			p, err := store.Find(args[0])
			if errors.Is(err, profiles.ErrNotFound) {
				return fmt.Errorf("no connection named %s", strconv.Quote(args[0]))
			}
			if err != nil {
				return err
			}
			if err := store.Delete(p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", p.DisplayName())
			return nil
		},
	}
}
