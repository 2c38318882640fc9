package tables

import (
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// yesNo maps spreadsheet spellings of a flag to the form shown on statements.
var yesNo = map[string]string{
	"y": "Yes", "yes": "Yes", "true": "Yes", "1": "Yes",
	"n": "No", "no": "No", "false": "No", "0": "No",
}

// NormalizeYesNo converts flag columns (park, corner, main boulevard) to
// "Yes" or "No". Unrecognized values are returned trimmed.
func NormalizeYesNo(s string) string {
	s = strings.TrimSpace(s)
	if v, ok := yesNo[strings.ToLower(s)]; ok {
		return v
	}
	return s
}

// FormatCNIC renders a CNIC in the standard 5-7-1 grouping when it has 13
// digits, and returns the input trimmed otherwise.
func FormatCNIC(s string) string {
	n := core.NormalizeCNIC(s)
	if len(n) != core.CNICDigits {
		return strings.TrimSpace(s)
	}
	return n[:5] + "-" + n[5:12] + "-" + n[12:]
}

// NormalizeRole upper-cases a role name so it matches the enum values.
func NormalizeRole(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeStatus title-cases a user status ("active" -> "Active").
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
