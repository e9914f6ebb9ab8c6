package tabular

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrUnknownWorksheet is returned when the named worksheet does not
// exist in the workbook.
var ErrUnknownWorksheet = errors.New("worksheet not in workbook")

// ReadRecordsXLSX parses a spreadsheet source into a keyed record map.
// An empty worksheet selects the workbook's first sheet; an empty
// keyColumn selects the leftmost column. Formula cells contribute their
// last computed value, not the formula text.
func ReadRecordsXLSX(r io.Reader, keyColumn, worksheet string) (*Records, error) {
	header, rows, err := readXLSX(r, worksheet)
	if err != nil {
		return nil, err
	}
	return buildRecords(header, rows, keyColumn)
}

// ReadMultimapXLSX parses a spreadsheet source into a multimap, with the
// same accumulate-or-overwrite semantics as ReadMultimap.
func ReadMultimapXLSX(r io.Reader, keyColumn, valuesColumn, worksheet string, overwrite bool) (*Multimap, error) {
	header, rows, err := readXLSX(r, worksheet)
	if err != nil {
		return nil, err
	}
	return buildMultimap(header, rows, keyColumn, valuesColumn, overwrite)
}

// readXLSX loads the selected worksheet into a header row plus data
// rows.
func readXLSX(r io.Reader, worksheet string) ([]string, [][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	if worksheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("%w: workbook has no sheets", ErrUnknownWorksheet)
		}
		worksheet = sheets[0]
	} else if index, err := book.GetSheetIndex(worksheet); err != nil || index < 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownWorksheet, worksheet)
	}

	rows, err := book.GetRows(worksheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read worksheet %q: %w", worksheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read worksheet %q: no header row", worksheet)
	}
	return rows[0], rows[1:], nil
}
