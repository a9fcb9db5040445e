package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// table is a header-indexed view over one CSV extract. Column order in the
// files is not guaranteed, only column names are.
type table struct {
	dataset string
	cols    map[string]int
	rows    *csv.Reader
	line    int
}

func openTable(dataset string, r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", dataset, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if h != "" {
			cols[h] = i
		}
	}

	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("dataset %s: missing required column %s", dataset, c)
		}
	}

	return &table{dataset: dataset, cols: cols, rows: cr, line: 1}, nil
}

// next returns the raw fields of the next data row, or nil at EOF.
func (t *table) next() ([]string, error) {
	rec, err := t.rows.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %s line %d: %w", t.dataset, t.line+1, err)
	}
	t.line++
	return rec, nil
}

type row struct {
	t      *table
	fields []string
}

func (r row) str(col string) string {
	i, ok := r.t.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// requiredStr rejects the row when the field is blank.
func (r row) requiredStr(col string) (string, *MalformedRecordError) {
	v := r.str(col)
	if v == "" {
		return "", &MalformedRecordError{Dataset: r.t.dataset, Line: r.t.line, Field: col, Reason: "required field is empty"}
	}
	return v, nil
}

// intOr parses an integer field, returning def when blank. Non-numeric
// content is a type-constraint violation.
func (r row) intOr(col string, def int) (int, *MalformedRecordError) {
	v := r.str(col)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &MalformedRecordError{Dataset: r.t.dataset, Line: r.t.line, Field: col, Reason: "not a number: " + v}
	}
	return int(n), nil
}

// dateOr parses a YYYY-MM-DD field, returning the zero time when blank.
func (r row) dateOr(col string) (time.Time, *MalformedRecordError) {
	v := r.str(col)
	if v == "" {
		return time.Time{}, nil
	}
	// Some cleaned files carry a timestamp suffix; only the date matters.
	if len(v) > len(dateLayout) {
		v = v[:len(dateLayout)]
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Dataset: r.t.dataset, Line: r.t.line, Field: col, Reason: "not a date: " + v}
	}
	return d, nil
}

// boolOr maps the source's SI/NO style flags, returning def when blank or
// unrecognized.
func (r row) boolOr(col string, def bool) bool {
	switch strings.ToUpper(r.str(col)) {
	case "SI", "S", "1", "TRUE", "VERDADERO":
		return true
	case "NO", "N", "0", "FALSE", "FALSO":
		return false
	default:
		return def
	}
}
