package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/calendar"
)

func calendarCmd(opts *rootOptions) *cobra.Command {
	var (
		dataPath      string
		startDate     string
		itemDelimiter string
		weekColumn    string
		worksheet     string
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Build a YAML course calendar from a weekly schedule file",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return fmt.Errorf("parse start date: %w", err)
			}

			data, err := os.Open(dataPath)
			if err != nil {
				return fmt.Errorf("open schedule file: %w", err)
			}
			defer data.Close()

			var out string
			if strings.ToLower(filepath.Ext(dataPath)) == ".xlsx" {
				out, err = calendar.BuildFromXLSX(data, start, itemDelimiter, weekColumn, worksheet)
			} else {
				out, err = calendar.BuildFromCSV(data, start, itemDelimiter, weekColumn)
			}
			if err != nil {
				return err
			}

			return writeOutput(cmd, outputPath, out)
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Schedule file (.csv or .xlsx) with a week-number column")
	cmd.Flags().StringVarP(&startDate, "start", "s", "", "Date inside the course's first week (YYYY-MM-DD)")
	cmd.Flags().StringVar(&itemDelimiter, "delimiter", "|", "Delimiter between items within one schedule cell")
	cmd.Flags().StringVar(&weekColumn, "week-column", "Week", "Column holding the 1-based week number")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx data (default: first sheet)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}
