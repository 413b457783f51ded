// Package items reads the input list of item codes.
package items

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	errs "prodfetch/pkg/errors"
)

// CodeColumn is the required header column of the input CSV
const CodeColumn = "Item Code"

// Row is one data row of the input list
type Row struct {
	// Line is the 1-based line number in the file
	Line int
	// Code is the trimmed item code; it may be empty
	Code string
}

// Load reads every data row of the CSV at path, in file order. A missing
// file yields an error wrapping os.ErrNotExist.
func Load(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads rows from CSV data whose header includes CodeColumn
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errs.New(errs.ErrorTypeInput, 0, "input file is empty")
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInput, 0, "failed to read input header", err)
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == CodeColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errs.New(errs.ErrorTypeInput, 0, fmt.Sprintf("input header has no %q column", CodeColumn))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInput, 0, "failed to read input row", err)
		}

		line, _ := reader.FieldPos(0)
		row := Row{Line: line}
		if col < len(record) {
			row.Code = strings.TrimSpace(record[col])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Source loads rows from a fixed path
type Source struct {
	Path string
}

// Load implements the driver's item source
func (s Source) Load() ([]Row, error) {
	return Load(s.Path)
}
