package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row is one record keyed by header name.
type Row map[string]string

// ResultTable is a materialized report result.
type ResultTable struct {
	// Header holds the unique column names in source order.
	Header []string

	// Rows holds the records in source order.
	Rows []Row
}

// ParseTable parses a CSV payload whose first line is the header.
//
// An empty or blank payload yields an empty header and zero rows. Duplicate
// header names get a numeric suffix ("Value", "Value_1"); short records are
// padded with empty strings and surplus fields are dropped.
//
// Parameters:
//   - payload: The delimited text returned by the results endpoint
//
// Returns:
//   - *ResultTable: The parsed table
//   - error: Any CSV syntax error
func ParseTable(payload string) (*ResultTable, error) {
	payload = strings.TrimPrefix(payload, "\ufeff")
	if strings.TrimSpace(payload) == "" {
		return &ResultTable{Header: []string{}, Rows: []Row{}}, nil
	}

	r := csv.NewReader(strings.NewReader(payload))
	r.FieldsPerRecord = -1
	// Bare quotes inside unquoted fields are kept as text.
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = uniqueHeader(header)

	rows := []Row{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return &ResultTable{Header: header, Rows: rows}, nil
}

func uniqueHeader(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 1; seen[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Records returns the rows as value slices in header order.
func (t *ResultTable) Records() [][]string {
	out := make([][]string, 0, t.Len())
	for _, row := range t.Rows {
		rec := make([]string, len(t.Header))
		for i, name := range t.Header {
			rec[i] = row[name]
		}
		out = append(out, rec)
	}
	return out
}

// Limit returns a copy holding at most n rows. n <= 0 returns all rows.
func (t *ResultTable) Limit(n int) *ResultTable {
	if t == nil {
		return nil
	}
	rows := t.Rows
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	return &ResultTable{Header: t.Header, Rows: append([]Row{}, rows...)}
}

// WriteCSV writes the header and rows to w.
func (t *ResultTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return cw.Error()
}
