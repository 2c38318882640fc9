package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFileSize is the default maximum CSV size (10MB).
var MaxFileSize int64 = 10 * 1024 * 1024

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
var MaxHeaderSearchRows = 20

// ContextCheckInterval is how often (in rows) to check for cancellation.
var ContextCheckInterval = 100

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseImport reads a CSV file for the layout registered under tableKey and
// builds its records.
//
// The file must fit in maxSize bytes (MaxFileSize when maxSize <= 0). The
// header row is searched for in the first MaxHeaderSearchRows rows and must
// contain every required column, in any order. Rows that fail validation or
// repeat a key already seen are skipped and listed in FailedRows with their
// 1-based line numbers. Nothing is written anywhere.
func ParseImport(ctx context.Context, tableKey, fileName string, r io.Reader, maxSize int64) (*ImportResult, error) {
	startTime := time.Now()

	def, ok := Get(tableKey)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", tableKey)
	}
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file too large: %s exceeds %d bytes", fileName, maxSize)
	}

	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty file")
	}

	records, lines, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	required := def.RequiredColumns()
	headerIdx := findHeaderInRecords(records, required)
	if headerIdx < 0 {
		return nil, fmt.Errorf("header not found (expected: %s)", strings.Join(required, ", "))
	}

	dataRows := records[headerIdx+1:]
	if len(dataRows) == 0 {
		return nil, errors.New("empty file: no data rows after header")
	}

	result := &ImportResult{
		TableKey: tableKey,
		FileName: fileName,
	}

	csvHeaderIdx := MakeHeaderIndex(records[headerIdx])
	validator := NewRowValidator(def.FieldSpecs, csvHeaderIdx)
	seen := make(map[string]int)

	for i, row := range dataRows {
		lineNum := lines[headerIdx+1+i]

		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("import cancelled: %w", err)
			}
		}

		if isEmptyRow(row) {
			continue
		}
		result.TotalRows++

		fail := func(reason string) {
			result.FailedRows = append(result.FailedRows, FailedRow{
				LineNumber: lineNum,
				Reason:     reason,
				Data:       row,
			})
		}

		if err := validator.ValidateRowFirst(row); err != nil {
			fail(err.Error())
			continue
		}

		rec, err := def.BuildRecord(row, csvHeaderIdx)
		if err != nil {
			fail(err.Error())
			continue
		}

		key, label := importKey(rec)
		if first, dup := seen[key]; dup && key != "" {
			fail(fmt.Sprintf("duplicate %s (first seen on line %d)", label, first))
			continue
		}
		seen[key] = lineNum

		switch v := rec.(type) {
		case PropertyFile:
			result.Files = append(result.Files, v)
		case User:
			result.Users = append(result.Users, v)
		default:
			fail(fmt.Sprintf("unsupported record type %T", rec))
			continue
		}
		result.Accepted++
	}

	result.Skipped = len(result.FailedRows)
	result.Duration = time.Since(startTime)
	return result, nil
}

// importKey returns the uniqueness key of a built record.
func importKey(rec any) (key, label string) {
	switch v := rec.(type) {
	case PropertyFile:
		return "file:" + strings.ToLower(v.FileNo), fmt.Sprintf("file number %q", v.FileNo)
	case User:
		if n := v.NormalizedCNIC(); n != "" {
			return "cnic:" + n, fmt.Sprintf("CNIC %q", v.CNIC)
		}
		return "email:" + strings.ToLower(v.Email), fmt.Sprintf("email %q", v.Email)
	}
	return "", ""
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// parseCSV reads every record along with the 1-based line it starts on.
// Blank lines are skipped by the reader, so line numbers are taken from the
// reader rather than from record positions.
func parseCSV(data []byte) ([][]string, []int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	var lines []int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, lines, nil
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
}

// findHeaderInRecords returns the index of the first row, within
// MaxHeaderSearchRows, that contains every required column.
func findHeaderInRecords(records [][]string, required []string) int {
	maxRows := min(MaxHeaderSearchRows, len(records))

	for i := 0; i < maxRows; i++ {
		if containsHeaders(records[i], required) {
			return i
		}
	}
	return -1
}

func containsHeaders(row, required []string) bool {
	if len(required) == 0 || len(row) < len(required) {
		return false
	}
	idx := MakeHeaderIndex(row)
	for _, col := range required {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			return false
		}
	}
	return true
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// TemplateCSV returns a header-only CSV for the layout, for download.
func TemplateCSV(def TableDefinition) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(def.Info.Columns)
	w.Flush()
	return buf.Bytes()
}
