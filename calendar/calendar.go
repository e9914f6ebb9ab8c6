// Package calendar derives a week/weekday-keyed activity calendar from
// a tabular source and serializes it to YAML.
package calendar

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/courseops/tabular"
)

// dateFormat renders dates as DDMMMYYYY; the formatted value is
// uppercased afterwards (02JAN2018).
const dateFormat = "02Jan2006"

// weekdayNames in ISO 8601 order, Monday through Sunday. Column names
// are matched against these case-insensitively.
var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// BuildFromXLSX converts a spreadsheet of week-numbered activity rows
// into a YAML calendar string. Week numbers are 1-based relative to the
// Monday of startDate's week, so any startDate within one ISO week
// produces identical output. Columns whose names are weekday names get
// a computed Date plus an Activities list split on itemDelimiter; other
// columns keep their split list under their own name. Blank cells
// produce no entry.
func BuildFromXLSX(r io.Reader, startDate time.Time, itemDelimiter, weekNumberColumn, worksheet string) (string, error) {
	records, err := tabular.ReadRecordsXLSX(r, weekNumberColumn, worksheet)
	if err != nil {
		return "", err
	}
	return build(records, startDate, itemDelimiter, weekNumberColumn)
}

// BuildFromCSV is the delimited-source variant of BuildFromXLSX.
func BuildFromCSV(r io.Reader, startDate time.Time, itemDelimiter, weekNumberColumn string) (string, error) {
	records, err := tabular.ReadRecords(r, weekNumberColumn)
	if err != nil {
		return "", err
	}
	return build(records, startDate, itemDelimiter, weekNumberColumn)
}

func build(records *tabular.Records, startDate time.Time, itemDelimiter, weekNumberColumn string) (string, error) {
	monday := mondayOf(startDate)

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range records.Keys() {
		week, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return "", fmt.Errorf("week number %q is not an integer: %w", key, err)
		}
		row, _ := records.Get(key)

		weekNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, column := range records.Columns() {
			if column == weekNumberColumn {
				continue
			}
			cell := row[column]
			if cell == "" {
				continue
			}
			activities := sequenceNode(strings.Split(cell, itemDelimiter))

			if offset, ok := weekdayOffset(column); ok {
				date := monday.AddDate(0, 0, 7*(week-1)+offset)
				day := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
				appendPair(day, scalarString("Date"), scalarString(strings.ToUpper(date.Format(dateFormat))))
				appendPair(day, scalarString("Activities"), activities)
				appendPair(weekNode, scalarString(column), day)
				continue
			}
			appendPair(weekNode, scalarString(column), activities)
		}
		appendPair(root, scalarInt(week), weekNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return buf.String(), nil
}

// mondayOf rounds a date down to the Monday of its ISO week.
func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// weekdayOffset matches a column name against the weekday names,
// returning its 0-based offset from Monday.
func weekdayOffset(column string) (int, bool) {
	lower := strings.ToLower(column)
	for i, name := range weekdayNames {
		if lower == name {
			return i, true
		}
	}
	return 0, false
}

func scalarString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func scalarInt(n int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)}
}

func sequenceNode(items []string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, item := range items {
		node.Content = append(node.Content, scalarString(item))
	}
	return node
}

func appendPair(mapping *yaml.Node, key, value *yaml.Node) {
	mapping.Content = append(mapping.Content, key, value)
}
