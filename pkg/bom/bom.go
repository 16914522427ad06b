// Package bom imports a bill of materials from CSV or XLSX and normalizes
// it into query parts, resolving the many spellings of the usual columns.
package bom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/partscope/partscope/pkg/parts"
)

// ErrNoHeader signals a file whose first row contains none of the columns we
// recognize.
var ErrNoHeader = errors.New("no recognizable header row")

var columnAliases = map[string][]string{
	"part_number": {"part number", "part_number", "partnumber", "part no", "part no.", "part#", "pn", "mpn", "manufacturer part number", "mfr part number", "mfr pn"},
	"description": {"description", "desc", "part description", "name", "part name", "component"},
	"quantity":    {"quantity", "qty", "qty.", "amount", "count", "pcs"},
}

// Parse reads a BOM file, dispatching on extension. Only .csv and .xlsx are
// supported.
func Parse(path string) ([]parts.Query, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseCSV(f)
	case ".xlsx":
		return ParseXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported BOM format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// ParseCSV reads a comma-separated BOM with a header row.
func ParseCSV(r io.Reader) ([]parts.Query, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are common in hand-edited BOMs

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var out []parts.Query
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if q, ok := buildQuery(row, cols); ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// ParseXLSX reads the first sheet of an Excel BOM.
func ParseXLSX(path string) ([]parts.Query, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var out []parts.Query
	for _, row := range rows[1:] {
		if q, ok := buildQuery(row, cols); ok {
			out = append(out, q)
		}
	}
	return out, nil
}

type columnIndex struct {
	partNumber  int
	description int
	quantity    int
}

func resolveColumns(header []string) (columnIndex, error) {
	cols := columnIndex{partNumber: -1, description: -1, quantity: -1}
	for i, h := range header {
		switch canonicalColumn(h) {
		case "part_number":
			if cols.partNumber == -1 {
				cols.partNumber = i
			}
		case "description":
			if cols.description == -1 {
				cols.description = i
			}
		case "quantity":
			if cols.quantity == -1 {
				cols.quantity = i
			}
		}
	}
	if cols.partNumber == -1 && cols.description == -1 {
		return cols, ErrNoHeader
	}
	return cols, nil
}

func canonicalColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	for canonical, aliases := range columnAliases {
		for _, a := range aliases {
			if h == a {
				return canonical
			}
		}
	}
	return ""
}

// buildQuery converts one data row; rows with neither a part number nor a
// description are dropped.
func buildQuery(row []string, cols columnIndex) (parts.Query, bool) {
	q := parts.Query{
		PartNumber:  cell(row, cols.partNumber),
		Description: cell(row, cols.description),
	}
	if q.PartNumber == "" && q.Description == "" {
		return parts.Query{}, false
	}
	if qty := cell(row, cols.quantity); qty != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(qty)); err == nil && n > 0 {
			q.Quantity = n
		}
	}
	return q, true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
