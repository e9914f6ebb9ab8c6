// Package tabular reads delimited and spreadsheet sources into keyed
// record maps and multimaps for the merge pipeline and the service
// clients.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrMissingKeyColumn is returned when the named key (or values) column
// is absent from the source's header row.
var ErrMissingKeyColumn = errors.New("key column not in header row")

// Row holds one record's cells, keyed by column name. The key column's
// cell is included.
type Row map[string]string

// Records is a keyed record map built from a tabular source. Keys keep
// the source's row order; a duplicated key keeps its first position but
// takes the last row's cells.
type Records struct {
	columns []string
	keys    []string
	rows    map[string]Row
}

// Columns returns the header row's column names in source order.
func (r *Records) Columns() []string {
	return r.columns
}

// Keys returns the record keys in source order.
func (r *Records) Keys() []string {
	return r.keys
}

// Get returns the record for key.
func (r *Records) Get(key string) (Row, bool) {
	row, ok := r.rows[key]
	return row, ok
}

// Len returns the number of records.
func (r *Records) Len() int {
	return len(r.keys)
}

// Multimap fans one designated value column out per key. Keys keep
// first-seen order. With accumulation enabled, repeated keys grow an
// ordered value list; otherwise the last-seen value replaces prior ones.
type Multimap struct {
	keys   []string
	values map[string][]string
}

// Keys returns the keys in first-seen order.
func (m *Multimap) Keys() []string {
	return m.keys
}

// Values returns all values recorded for key, in first-seen order.
func (m *Multimap) Values(key string) []string {
	return m.values[key]
}

// Value returns the last value recorded for key, or "" when the key is
// unknown.
func (m *Multimap) Value(key string) string {
	vs := m.values[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

// Len returns the number of distinct keys.
func (m *Multimap) Len() int {
	return len(m.keys)
}

// ReadRecords parses a delimited source whose first row is a header row
// into a keyed record map. An empty keyColumn selects the leftmost
// column.
func ReadRecords(r io.Reader, keyColumn string) (*Records, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return buildRecords(header, rows, keyColumn)
}

// ReadMultimap parses a delimited source into a multimap from keyColumn
// to valuesColumn. When overwrite is true, a repeated key keeps only its
// last value; otherwise values accumulate in first-seen order.
func ReadMultimap(r io.Reader, keyColumn, valuesColumn string, overwrite bool) (*Multimap, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return buildMultimap(header, rows, keyColumn, valuesColumn, overwrite)
}

// readCSV splits a delimited source into its header row and data rows.
// Short rows are padded so every record covers the full column set.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read delimited source: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("read delimited source: no header row")
	}
	return all[0], all[1:], nil
}

func buildRecords(header []string, rows [][]string, keyColumn string) (*Records, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header row", ErrMissingKeyColumn)
	}
	if keyColumn == "" {
		keyColumn = header[0]
	}
	keyIndex := columnIndex(header, keyColumn)
	if keyIndex < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingKeyColumn, keyColumn)
	}

	records := &Records{
		columns: append([]string(nil), header...),
		rows:    make(map[string]Row, len(rows)),
	}
	for _, cells := range rows {
		row := make(Row, len(header))
		for i, name := range header {
			row[name] = cell(cells, i)
		}
		key := cell(cells, keyIndex)
		if _, seen := records.rows[key]; !seen {
			records.keys = append(records.keys, key)
		}
		records.rows[key] = row
	}
	return records, nil
}

func buildMultimap(header []string, rows [][]string, keyColumn, valuesColumn string, overwrite bool) (*Multimap, error) {
	keyIndex := columnIndex(header, keyColumn)
	if keyIndex < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingKeyColumn, keyColumn)
	}
	valuesIndex := columnIndex(header, valuesColumn)
	if valuesIndex < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingKeyColumn, valuesColumn)
	}

	m := &Multimap{values: make(map[string][]string)}
	for _, cells := range rows {
		key := cell(cells, keyIndex)
		value := cell(cells, valuesIndex)
		if _, seen := m.values[key]; !seen {
			m.keys = append(m.keys, key)
		}
		if overwrite {
			m.values[key] = []string{value}
		} else {
			m.values[key] = append(m.values[key], value)
		}
	}
	return m, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
