package core

// convert.go turns raw CSV cells into typed values.
//
// Registry spreadsheets come from many offices and carry:
//   - several date formats (day-first, ISO, month names)
//   - currency markers (Rs, PKR) and thousands separators in amounts
//   - accounting negatives in parentheses
//   - Excel formula prefixes (="value") and stray quotes
//
// All ToPg* functions return pgtype values with Valid=false for empty or
// invalid input so that the column stores NULL.

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// currencyMarkers are stripped from amounts before parsing. Longer markers
// come first so that "PKR" is not left as "PK".
var currencyMarkers = []string{"PKR", "Rs.", "Rs", "₨", "$"}

// Registry dates are written day-first.
var dateLayouts = []string{
	"2006-01-02", "2006/01/02",
	"02-01-2006", "2-1-2006", "02/01/2006", "2/1/2006", "02.01.2006",
	"02-Jan-2006", "2-Jan-2006", "02 Jan 2006", "2 Jan 2006", "Jan 2, 2006",
	"02-Jan-06", "2-Jan-06",
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseDate parses a registry date in any accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToPgDate converts a string to pgtype.Date.
func ToPgDate(s string) pgtype.Date {
	t, ok := ParseDate(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// cleanAmount strips currency markers, separators and accounting
// parentheses. It returns "" when nothing numeric remains.
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, m := range currencyMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return ""
	}
	return s
}

// ToPgNumeric converts an amount to pgtype.Numeric.
func ToPgNumeric(s string) pgtype.Numeric {
	s = cleanAmount(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ParseAmount converts an amount to an exact decimal. Empty or invalid
// input yields zero and false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = cleanAmount(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		idx[key] = i
	}
	return idx
}

// Cell returns the cleaned value of column name in row, or "" when the
// column is absent.
func (h HeaderIndex) Cell(row []string, name string) string {
	pos, ok := h[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
