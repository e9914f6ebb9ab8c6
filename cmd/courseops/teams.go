package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/config"
	"github.com/c360studio/courseops/orghost"
	"github.com/c360studio/courseops/tabular"
)

// orgClient builds the code-hosting organization client from
// configuration.
func orgClient(cfg *config.Config, logger *slog.Logger) (*orghost.Organization, error) {
	if cfg.Org.Name == "" {
		return nil, fmt.Errorf("no organization configured")
	}
	token, err := cfg.OrgToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no organization token configured")
	}

	opts := []orghost.Option{orghost.WithLogger(logger)}
	if cfg.Org.BaseURL != "" {
		opts = append(opts, orghost.WithBaseURL(cfg.Org.BaseURL))
	}
	return orghost.New(cfg.Org.Name, token, opts...), nil
}

func teamsCmd(opts *rootOptions) *cobra.Command {
	var (
		dataPath      string
		teamColumn    string
		memberColumn  string
		worksheet     string
		createMissing bool
	)

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Sync organization team membership from a roster file",
		Long: `Teams reads a roster file mapping team names to member usernames and
adds each member to their team, optionally creating teams that do not
exist yet. Memberships are additive; nobody is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}
			org, err := orgClient(cfg, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			roster, err := os.Open(dataPath)
			if err != nil {
				return fmt.Errorf("open roster file: %w", err)
			}
			defer roster.Close()

			var members *tabular.Multimap
			if isXLSX(dataPath) {
				members, err = tabular.ReadMultimapXLSX(roster, teamColumn, memberColumn, worksheet, false)
			} else {
				members, err = tabular.ReadMultimap(roster, teamColumn, memberColumn, false)
			}
			if err != nil {
				return err
			}

			ids, err := org.TeamIDsByName(ctx)
			if err != nil {
				return err
			}

			added := 0
			for _, teamName := range members.Keys() {
				teamID, ok := ids[teamName]
				if !ok {
					if !createMissing {
						return fmt.Errorf("team %q not found (use --create-missing to create it)", teamName)
					}
					team, err := org.CreateTeam(ctx, orghost.TeamInput{Name: teamName, Privacy: "closed"})
					if err != nil {
						return err
					}
					teamID = team.ID
					ids[teamName] = teamID
				}

				for _, member := range members.Values(teamName) {
					if err := org.SetTeamMembership(ctx, teamID, member); err != nil {
						return fmt.Errorf("after %d memberships: %w", added, err)
					}
					added++
				}
			}

			logger.Info("team memberships set", "teams", members.Len(), "memberships", added)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Roster file (.csv or .xlsx)")
	cmd.Flags().StringVar(&teamColumn, "team-column", "", "Team name column (default: leftmost)")
	cmd.Flags().StringVar(&memberColumn, "member-column", "Username", "Member username column")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx rosters (default: first sheet)")
	cmd.Flags().BoolVar(&createMissing, "create-missing", false, "Create teams that do not exist yet")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}
