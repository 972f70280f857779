package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a decoded upload: a header row plus data rows. Rows may be ragged;
// consumers treat missing trailing cells as empty.
type Table struct {
	Columns []string
	Rows    [][]string
}

// supportedExtensions are the upload formats we can decode.
var supportedExtensions = []string{".csv", ".xlsx", ".xls"}

// ValidFormat reports whether the filename has a supported extension.
func ValidFormat(filename string) bool {
	if filename == "" {
		return false
	}
	lower := strings.ToLower(filename)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ReadTable decodes an uploaded file into a Table, choosing the decoder by
// file extension. The first row is always treated as the header.
func ReadTable(filename string, r io.Reader) (*Table, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return readCSV(r)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return readExcel(r)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filename)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(all) == 0 {
		return nil, errors.New("file contains no rows")
	}

	return &Table{Columns: all[0], Rows: all[1:]}, nil
}

func readExcel(r io.Reader) (*Table, error) {
	// excelize needs a ReaderAt-ish source; buffer the upload
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, errors.New("file contains no rows")
	}

	return &Table{Columns: rows[0], Rows: rows[1:]}, nil
}
