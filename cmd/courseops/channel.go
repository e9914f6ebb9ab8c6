package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/tabular"
)

func channelCmd(opts *rootOptions) *cobra.Command {
	var (
		name         string
		purpose      string
		topic        string
		private      bool
		invitesPath  string
		inviteColumn string
		worksheet    string
	)

	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Create a workspace channel and invite users from a roster file",
		Long: `Channel creates a public or private workspace channel, invites every
user listed in the roster file, sets the channel purpose and topic, and
prints the finished channel. A flat pause follows every API call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}
			account, err := workspaceAccount(cfg, logger)
			if err != nil {
				return err
			}

			var invitees []string
			if invitesPath != "" {
				roster, err := os.Open(invitesPath)
				if err != nil {
					return fmt.Errorf("open roster file: %w", err)
				}
				defer roster.Close()

				var records *tabular.Records
				if isXLSX(invitesPath) {
					records, err = tabular.ReadRecordsXLSX(roster, inviteColumn, worksheet)
				} else {
					records, err = tabular.ReadRecords(roster, inviteColumn)
				}
				if err != nil {
					return err
				}
				invitees = records.Keys()
			}

			info, err := account.CreateAndSetupChannel(cmd.Context(), name, invitees, purpose, topic, !private)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "channel %s (%s) ready: purpose=%q topic=%q\n",
				info.Name, info.ID, info.Purpose.Value, info.Topic.Value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Channel name")
	cmd.Flags().StringVar(&purpose, "purpose", "", "Channel purpose")
	cmd.Flags().StringVar(&topic, "topic", "", "Channel topic")
	cmd.Flags().BoolVar(&private, "private", false, "Create a private channel")
	cmd.Flags().StringVar(&invitesPath, "invites", "", "Roster file (.csv or .xlsx) of usernames to invite")
	cmd.Flags().StringVar(&inviteColumn, "invite-column", "", "Username column in the roster (default: leftmost)")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx rosters (default: first sheet)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
