// Package main provides the courseops binary entry point.
// Courseops automates recurring course-operations chores: mail-merging
// per-student data into templates and pushing the results to the
// gradebook, chat workspace, and code-hosting organization.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "courseops"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// setupLogging installs the default logger at the requested level.
func (o *rootOptions) setupLogging() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads an explicit config file when one is named, otherwise
// the layered user/project configuration.
func (o *rootOptions) loadConfig(logger *slog.Logger) (*config.Config, error) {
	if o.configPath != "" {
		cfg, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "courseops",
		Short: "Course operations automation toolkit",
		Long: `Courseops automates recurring course-operations chores.

It provides:
- Mail merge of tabular or YAML student data into text templates
- Course calendar generation from a weekly schedule spreadsheet
- Direct-message fan-out to a chat workspace
- Gradebook column creation and batch grade entry
- Channel setup and team-membership sync for a course organization`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.setupLogging()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(
		mergeCmd(opts),
		calendarCmd(opts),
		notifyCmd(opts),
		gradesCmd(opts),
		channelCmd(opts),
		teamsCmd(opts),
	)

	return cmd
}

// writeOutput writes content to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
