// Package mailmerge renders a template once per keyed record and
// flattens the results into delimited report strings.
package mailmerge

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/c360studio/courseops/tabular"
)

// Result is a merge result map: one rendered string per input key, in
// the input's iteration order.
type Result struct {
	keys []string
	vals map[string]string
}

// Keys returns the result keys in input order.
func (r *Result) Keys() []string {
	return r.keys
}

// Get returns the rendered text for key.
func (r *Result) Get(key string) (string, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Len returns the number of rendered entries.
func (r *Result) Len() int {
	return len(r.keys)
}

// Set appends or replaces one entry, keeping a pre-existing key's
// position.
func (r *Result) Set(key, value string) {
	if r.vals == nil {
		r.vals = make(map[string]string)
	}
	if _, seen := r.vals[key]; !seen {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = value
}

// RenderPerKey loads a template once and renders it against each
// record's fields. Each render is independent; the first rendering error
// propagates with no partial results.
func RenderPerKey(template io.Reader, records *tabular.Records) (*Result, error) {
	tpl, err := loadTemplate(template)
	if err != nil {
		return nil, err
	}

	result := &Result{vals: make(map[string]string, records.Len())}
	for _, key := range records.Keys() {
		row, _ := records.Get(key)
		bindings := make(pongo2.Context, len(row))
		for name, value := range row {
			bindings[name] = value
		}
		rendered, err := tpl.Execute(bindings)
		if err != nil {
			return nil, fmt.Errorf("render record %q: %w", key, err)
		}
		result.Set(key, rendered)
	}
	return result, nil
}

// RenderFromCSV composes delimited ingestion with RenderPerKey. An empty
// keyColumn selects the leftmost column.
func RenderFromCSV(template, data io.Reader, keyColumn string) (*Result, error) {
	records, err := tabular.ReadRecords(data, keyColumn)
	if err != nil {
		return nil, err
	}
	return RenderPerKey(template, records)
}

// RenderFromXLSX composes spreadsheet ingestion with RenderPerKey. An
// empty worksheet selects the workbook's first sheet.
func RenderFromXLSX(template, data io.Reader, keyColumn, worksheet string) (*Result, error) {
	records, err := tabular.ReadRecordsXLSX(data, keyColumn, worksheet)
	if err != nil {
		return nil, err
	}
	return RenderPerKey(template, records)
}

// FlattenOption adjusts Flatten's behavior.
type FlattenOption func(*flattenOptions)

type flattenOptions struct {
	reverse      bool
	suppressKeys bool
}

// Reverse sorts the entries in descending key order.
func Reverse() FlattenOption {
	return func(o *flattenOptions) { o.reverse = true }
}

// SuppressKeys omits each key and its separator, emitting values only.
func SuppressKeys() FlattenOption {
	return func(o *flattenOptions) { o.suppressKeys = true }
}

// Flatten collapses a merge result into one report string. Entries are
// sorted by key. The items separator is prepended before the first entry
// and between entries, but never appended after the last:
//
//	itemsSep + k0 + kvSep + v0 + itemsSep + k1 + kvSep + v1 + ...
//
// An empty result degenerates to the bare items separator.
func Flatten(result *Result, keyValueSeparator, itemsSeparator string, opts ...FlattenOption) string {
	var options flattenOptions
	for _, opt := range opts {
		opt(&options)
	}

	keys := append([]string(nil), result.Keys()...)
	sort.Strings(keys)
	if options.reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	var sb strings.Builder
	sb.WriteString(itemsSeparator)
	for n, key := range keys {
		if !options.suppressKeys {
			sb.WriteString(key)
			sb.WriteString(keyValueSeparator)
		}
		value, _ := result.Get(key)
		sb.WriteString(value)
		if n < len(keys)-1 {
			sb.WriteString(itemsSeparator)
		}
	}
	return sb.String()
}

// loadTemplate reads and compiles a template source.
func loadTemplate(r io.Reader) (*pongo2.Template, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	tpl, err := pongo2.FromString(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tpl, nil
}
