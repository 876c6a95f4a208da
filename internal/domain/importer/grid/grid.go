// Package grid reduces uploaded spreadsheet files (CSV/TSV/XLSX) to a plain
// 2-D grid of cell text so layout detection and parsing are format-agnostic.
package grid

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnknownFormat   = errors.New("unsupported file format")
	ErrNoDelimiter     = errors.New("could not detect valid delimiter")
	candidateDelims    = []rune{';', '\t', ',', '|'}
	delimiterScanLines = 25
)

// FromFile dispatches on the file name extension.
func FromFile(filename string, data []byte) ([][]string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
		return FromXLSX(data)
	case strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".tsv") || strings.HasSuffix(lower, ".txt"):
		return FromCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
	}
}

// FromCSV detects the delimiter and decodes the whole file into rows.
// Statement exports are small; the file is read eagerly.
func FromCSV(data []byte) ([][]string, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	data = normalizeEncoding(data)

	delimiter, err := detectDelimiter(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed lines become single-cell rows so row indices stay
			// aligned with the source file.
			rows = append(rows, []string{})
			continue
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return rows, nil
}

// FromXLSX extracts the first sheet of an Excel workbook.
func FromXLSX(data []byte) ([][]string, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return rows, nil
}

// detectDelimiter picks the candidate that appears consistently across the
// densest lines of the file.
func detectDelimiter(data []byte) (rune, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) > delimiterScanLines {
		lines = lines[:delimiterScanLines]
	}

	bestDelim := rune(0)
	bestCount := 0
	for _, d := range candidateDelims {
		maxInLine := 0
		for _, line := range lines {
			if count := strings.Count(line, string(d)); count > maxInLine {
				maxInLine = count
			}
		}
		if maxInLine > bestCount {
			bestCount = maxInLine
			bestDelim = d
		}
	}

	if bestCount < 1 {
		return 0, ErrNoDelimiter
	}
	return bestDelim, nil
}

// normalizeEncoding converts Latin-1 exports (common from Spanish banks) to
// UTF-8 and strips a UTF-8 BOM when present.
func normalizeEncoding(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if utf8.Valid(data) {
		return data
	}

	buf := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b < 0x80 {
			buf = append(buf, b)
		} else {
			buf = utf8.AppendRune(buf, rune(b))
		}
	}
	return buf
}
