package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Helpers
// ============================================================================

// registerTestLayout installs a small property file layout for the duration
// of the test.
func registerTestLayout(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	Register(TableDefinition{
		Info: TableInfo{Key: "test_files", Group: "test", Label: "Test Files"},
		FieldSpecs: []FieldSpec{
			{Name: "File No", Type: FieldText, Required: true},
			{Name: "Owner CNIC", Type: FieldCNIC, Required: true},
			{Name: "Plot Value", Type: FieldNumeric},
		},
		BuildRecord: func(row []string, idx HeaderIndex) (any, error) {
			value, _ := ParseAmount(idx.Cell(row, "Plot Value"))
			return PropertyFile{
				FileNo:    idx.Cell(row, "File No"),
				OwnerCNIC: idx.Cell(row, "Owner CNIC"),
				PlotValue: value,
			}, nil
		},
	})
}

// ============================================================================
// sanitizeUTF8 Tests
// ============================================================================

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{
			name:  "valid UTF-8 unchanged",
			input: []byte("hello world"),
			want:  []byte("hello world"),
		},
		{
			name:  "valid unicode",
			input: []byte("Lahore \xd9\x84\xd8\xa7\xdb\x81\xd9\x88\xd8\xb1"),
			want:  []byte("Lahore \xd9\x84\xd8\xa7\xdb\x81\xd9\x88\xd8\xb1"),
		},
		{
			name:  "invalid byte replaced with replacement char",
			input: []byte{0x80},
			want:  []byte("�"),
		},
		{
			name:  "mixed valid and invalid",
			input: []byte("block\x80A"),
			want:  []byte("block�A"),
		},
		{
			name:  "truncated multibyte sequence",
			input: []byte{0xc3},
			want:  []byte("�"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeUTF8(tt.input)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("sanitizeUTF8(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ============================================================================
// isEmptyRow Tests
// ============================================================================

func TestIsEmptyRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{"empty slice", []string{}, true},
		{"all empty strings", []string{"", "", ""}, true},
		{"whitespace only", []string{" ", "\t", "  "}, true},
		{"one value", []string{"", "F-101", ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyRow(tt.row); got != tt.want {
				t.Errorf("isEmptyRow(%q) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

// ============================================================================
// findHeaderInRecords Tests
// ============================================================================

func TestFindHeaderInRecords(t *testing.T) {
	tests := []struct {
		name     string
		records  [][]string
		required []string
		want     int
	}{
		{
			name: "header in first row",
			records: [][]string{
				{"File No", "Owner CNIC"},
				{"F-1", "12345-6789012-3"},
			},
			required: []string{"File No", "Owner CNIC"},
			want:     0,
		},
		{
			name: "header below a title row",
			records: [][]string{
				{"Registry Export"},
				{"File No", "Owner CNIC"},
			},
			required: []string{"File No", "Owner CNIC"},
			want:     1,
		},
		{
			name: "columns in any order with extras",
			records: [][]string{
				{"Notes", "Owner CNIC", "Block", "File No"},
			},
			required: []string{"File No", "Owner CNIC"},
			want:     0,
		},
		{
			name: "case insensitive match",
			records: [][]string{
				{"FILE NO", "owner cnic"},
			},
			required: []string{"File No", "Owner CNIC"},
			want:     0,
		},
		{
			name: "header not found",
			records: [][]string{
				{"File", "CNIC"},
			},
			required: []string{"File No", "Owner CNIC"},
			want:     -1,
		},
		{
			name:     "empty records",
			records:  [][]string{},
			required: []string{"File No"},
			want:     -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findHeaderInRecords(tt.records, tt.required)
			if got != tt.want {
				t.Errorf("findHeaderInRecords() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindHeaderInRecords_SearchLimit(t *testing.T) {
	records := make([][]string, 0, MaxHeaderSearchRows+1)
	for i := 0; i < MaxHeaderSearchRows; i++ {
		records = append(records, []string{"preamble"})
	}
	records = append(records, []string{"File No"})

	if got := findHeaderInRecords(records, []string{"File No"}); got != -1 {
		t.Errorf("findHeaderInRecords() = %d, want -1 past the search limit", got)
	}
}

// ============================================================================
// ParseImport Tests
// ============================================================================

func TestParseImport(t *testing.T) {
	registerTestLayout(t)

	csv := "\xEF\xBB\xBFRegistry Export\n" +
		"File No,Owner CNIC,Plot Value\n" +
		"F-101,12345-6789012-3,\"Rs 1,500,000\"\n" +
		",12345-6789012-3,100\n" +
		"\n" +
		"F-102,123,200\n" +
		"F-103,35202 1234567 1,abc\n" +
		"F-101,12345-6789012-3,300\n" +
		"F-104,3520212345671,(250.50)\n"

	result, err := ParseImport(context.Background(), "test_files", "files.csv", strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("ParseImport() error = %v", err)
	}

	if result.TotalRows != 6 {
		t.Errorf("TotalRows = %d, want 6", result.TotalRows)
	}
	if result.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", result.Accepted)
	}
	if result.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", result.Skipped)
	}

	wantLines := []int{4, 6, 7, 8}
	if len(result.FailedRows) != len(wantLines) {
		t.Fatalf("FailedRows = %+v, want lines %v", result.FailedRows, wantLines)
	}
	for i, want := range wantLines {
		if got := result.FailedRows[i].LineNumber; got != want {
			t.Errorf("FailedRows[%d].LineNumber = %d, want %d", i, got, want)
		}
	}
	if !strings.Contains(result.FailedRows[3].Reason, "duplicate") {
		t.Errorf("FailedRows[3].Reason = %q, want duplicate", result.FailedRows[3].Reason)
	}

	if len(result.Files) != 2 {
		t.Fatalf("Files = %d, want 2", len(result.Files))
	}
	if got := result.Files[0].PlotValue; !got.Equal(decimal.NewFromInt(1500000)) {
		t.Errorf("Files[0].PlotValue = %s, want 1500000", got)
	}
	if got := result.Files[1].PlotValue; !got.Equal(decimal.RequireFromString("-250.50")) {
		t.Errorf("Files[1].PlotValue = %s, want -250.50", got)
	}
}

func TestParseImport_Errors(t *testing.T) {
	registerTestLayout(t)

	tests := []struct {
		name     string
		key      string
		input    string
		maxSize  int64
		wantCode string
	}{
		{"unknown layout", "nope", "File No\nF-1\n", 0, "IMP006"},
		{"empty file", "test_files", "  \n", 0, "IMP004"},
		{"no data rows", "test_files", "File No,Owner CNIC\n", 0, "IMP004"},
		{"header missing", "test_files", "a,b\n1,2\n", 0, "IMP003"},
		{"file too large", "test_files", "File No,Owner CNIC\nF-1,3520212345671\n", 10, "IMP001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImport(context.Background(), tt.key, "x.csv", strings.NewReader(tt.input), tt.maxSize)
			if err == nil {
				t.Fatal("ParseImport() error = nil, want error")
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", err, got, tt.wantCode)
			}
		})
	}
}

func TestParseImport_Cancelled(t *testing.T) {
	registerTestLayout(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseImport(ctx, "test_files", "x.csv", strings.NewReader("File No,Owner CNIC\nF-1,3520212345671\n"), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ParseImport() error = %v, want context.Canceled", err)
	}
}

func TestTemplateCSV(t *testing.T) {
	registerTestLayout(t)

	def, _ := Get("test_files")
	got := string(TemplateCSV(def))
	if want := "File No,Owner CNIC,Plot Value\n"; got != want {
		t.Errorf("TemplateCSV() = %q, want %q", got, want)
	}
}
