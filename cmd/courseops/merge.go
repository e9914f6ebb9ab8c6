package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/courseops/mailmerge"
)

// renderFromFiles mail-merges a template file against a data file,
// picking the reader by the data file's extension.
func renderFromFiles(templatePath, dataPath, keyColumn, worksheet string) (*mailmerge.Result, error) {
	template, err := os.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer template.Close()

	data, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer data.Close()

	switch strings.ToLower(filepath.Ext(dataPath)) {
	case ".xlsx":
		return mailmerge.RenderFromXLSX(template, data, keyColumn, worksheet)
	case ".yaml", ".yml":
		return mailmerge.RenderFromYAML(template, data)
	default:
		return mailmerge.RenderFromCSV(template, data, keyColumn)
	}
}

func mergeCmd(opts *rootOptions) *cobra.Command {
	var (
		templatePath string
		dataPath     string
		keyColumn    string
		worksheet    string
		kvSep        string
		itemSep      string
		reverse      bool
		suppressKeys bool
		outputPath   string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Mail-merge a template against a data file into a flattened report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(slog.Default())
			if err != nil {
				return err
			}

			result, err := renderFromFiles(templatePath, dataPath, keyColumn, worksheet)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("kv-sep") {
				kvSep = cfg.Render.KeyValueSeparator
			}
			if !cmd.Flags().Changed("item-sep") {
				itemSep = cfg.Render.ItemSeparator
			}

			var flattenOpts []mailmerge.FlattenOption
			if reverse {
				flattenOpts = append(flattenOpts, mailmerge.Reverse())
			}
			if suppressKeys {
				flattenOpts = append(flattenOpts, mailmerge.SuppressKeys())
			}

			report := mailmerge.Flatten(result, kvSep, itemSep, flattenOpts...)
			return writeOutput(cmd, outputPath, report)
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template file with named placeholders")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "Data file (.csv, .xlsx, .yaml)")
	cmd.Flags().StringVarP(&keyColumn, "key", "k", "", "Key column (default: leftmost column)")
	cmd.Flags().StringVar(&worksheet, "worksheet", "", "Worksheet name for .xlsx data (default: first sheet)")
	cmd.Flags().StringVar(&kvSep, "kv-sep", "", "Separator between a key and its rendered value")
	cmd.Flags().StringVar(&itemSep, "item-sep", "", "Separator preceding each entry")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Sort entries in descending key order")
	cmd.Flags().BoolVar(&suppressKeys, "suppress-keys", false, "Omit keys from the report")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}
