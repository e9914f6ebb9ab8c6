package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/config"
	"github.com/c360studio/courseops/workspace"
)

// workspaceAccount builds the chat-workspace client from configuration.
func workspaceAccount(cfg *config.Config, logger *slog.Logger) (*workspace.Account, error) {
	token, err := cfg.WorkspaceToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no workspace token configured")
	}

	opts := []workspace.Option{workspace.WithLogger(logger)}
	if cfg.Workspace.BaseURL != "" {
		opts = append(opts, workspace.WithBaseURL(cfg.Workspace.BaseURL))
	}
	if cfg.Workspace.SleepTime > 0 {
		opts = append(opts, workspace.WithSleepTime(cfg.Workspace.SleepTime))
	}
	return workspace.New(token, opts...), nil
}

func notifyCmd(opts *rootOptions) *cobra.Command {
	var (
		templatePath string
		dataPath     string
		keyColumn    string
		worksheet    string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Mail-merge a template and direct-message each result to its user",
		Long: `Notify renders the template once per data record, keyed by username,
and sends each rendered text as a direct message to that user in the
chat workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}

			result, err := renderFromFiles(templatePath, dataPath, keyColumn, worksheet)
			if err != nil {
				return err
			}

			messages := make(map[string]string, result.Len())
			for _, username := range result.Keys() {
				text, _ := result.Get(username)
				messages[username] = text
			}

			if dryRun {
				for _, username := range result.Keys() {
					fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n%s\n", username, messages[username])
				}
				return nil
			}

			account, err := workspaceAccount(cfg, logger)
			if err != nil {
				return err
			}

			start := time.Now()
			sent, err := account.DirectMessageByUsername(cmd.Context(), messages)
			if err != nil {
				return fmt.Errorf("after %d of %d messages: %w", len(sent), len(messages), err)
			}
			logger.Info("direct messages sent", "count", len(sent), "elapsed", time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file with named placeholders")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Data file (.csv, .xlsx, .yaml) keyed by username")
	cmd.Flags().StringVarP(&keyColumn, "key", "k", "", "Username column (default: leftmost column)")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx data (default: first sheet)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rendered messages instead of sending them")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}
