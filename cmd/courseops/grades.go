package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/config"
	"github.com/c360studio/courseops/gradebook"
	"github.com/c360studio/courseops/mailmerge"
	"github.com/c360studio/courseops/tabular"
)

func isXLSX(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".xlsx"
}

// gradebookCourse builds the gradebook client from configuration.
func gradebookCourse(cfg *config.Config, logger *slog.Logger) (*gradebook.Course, error) {
	if cfg.Gradebook.Server == "" {
		return nil, fmt.Errorf("no gradebook server configured")
	}
	return gradebook.New(
		cfg.Gradebook.CourseID,
		cfg.Gradebook.Server,
		cfg.Gradebook.ApplicationKey,
		cfg.Gradebook.ApplicationSecret,
		gradebook.WithLogger(logger),
	), nil
}

func gradesCmd(opts *rootOptions) *cobra.Command {
	var (
		dataPath     string
		keyColumn    string
		scoreColumn  string
		columnName   string
		create       bool
		dueDate      string
		description  string
		feedbackPath string
		worksheet    string
		overwrite    bool
	)

	cmd := &cobra.Command{
		Use:   "grades",
		Short: "Batch-set grades in a gradebook column from a data file",
		Long: `Grades reads a data file keyed by username, resolves the target
gradebook column by name (optionally creating it), and sets one grade
per record in file order. An optional feedback template is mail-merged
against the same records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			cfg, err := opts.loadConfig(logger)
			if err != nil {
				return err
			}
			course, err := gradebookCourse(cfg, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			data, err := os.Open(dataPath)
			if err != nil {
				return fmt.Errorf("open data file: %w", err)
			}
			defer data.Close()

			var records *tabular.Records
			if isXLSX(dataPath) {
				records, err = tabular.ReadRecordsXLSX(data, keyColumn, worksheet)
			} else {
				records, err = tabular.ReadRecords(data, keyColumn)
			}
			if err != nil {
				return err
			}

			var feedback *mailmerge.Result
			if feedbackPath != "" {
				feedback, err = renderFromFiles(feedbackPath, dataPath, keyColumn, worksheet)
				if err != nil {
					return fmt.Errorf("render feedback: %w", err)
				}
			}

			columnID, err := resolveColumn(ctx, course, columnName, create, dueDate, description)
			if err != nil {
				return err
			}

			grades := make([]gradebook.UserGrade, 0, records.Len())
			for _, username := range records.Keys() {
				row, _ := records.Get(username)
				grade := gradebook.UserGrade{
					UserName: username,
					Score:    row[scoreColumn],
				}
				if feedback != nil {
					grade.Feedback, _ = feedback.Get(username)
				}
				grades = append(grades, grade)
			}

			results, err := course.SetGradesInColumn(ctx, columnID, grades, overwrite)
			if err != nil {
				return fmt.Errorf("after %d of %d grades: %w", len(results), len(grades), err)
			}
			logger.Info("grades set", "column", columnName, "count", len(results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Data file (.csv or .xlsx) keyed by username")
	cmd.Flags().StringVarP(&keyColumn, "key", "k", "", "Username column (default: leftmost column)")
	cmd.Flags().StringVar(&scoreColumn, "score-column", "Score", "Column holding each user's score")
	cmd.Flags().StringVar(&columnName, "column", "", "Gradebook column name")
	cmd.Flags().BoolVar(&create, "create", false, "Create the column if it does not exist")
	cmd.Flags().StringVar(&dueDate, "due", "", "Due date for a created column (RFC 3339)")
	cmd.Flags().StringVar(&description, "description", "", "Description for a created column")
	cmd.Flags().StringVar(&feedbackPath, "feedback-template", "", "Template mail-merged into per-user feedback")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx data (default: first sheet)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing scores")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}

// resolveColumn maps a column name to its primary id, creating the
// column first when asked to and it is absent.
func resolveColumn(ctx context.Context, course *gradebook.Course, name string, create bool, dueDate, description string) (string, error) {
	ids, err := course.ColumnIDsByName(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := ids[name]; ok {
		return id, nil
	}
	if !create {
		return "", fmt.Errorf("gradebook column %q not found (use --create to create it)", name)
	}

	column, err := course.CreateColumn(ctx, gradebook.ColumnInput{
		Name:        name,
		DueDate:     dueDate,
		Description: description,
	})
	if err != nil {
		return "", err
	}
	return column.ID, nil
}
