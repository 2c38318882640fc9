package core

import "regexp"

// nonDigit matches every character that is not an ASCII digit.
var nonDigit = regexp.MustCompile(`[^0-9]`)

// NormalizeCNIC removes every non-digit character from a national ID.
// "12345-6789012-3", "12345 6789012 3" and "1234567890123" all normalize to
// "1234567890123". Empty input yields empty output.
func NormalizeCNIC(cnic string) string {
	return nonDigit.ReplaceAllString(cnic, "")
}

// SameCNIC reports whether two national IDs refer to the same person
// regardless of formatting. Two IDs with no digits never match.
func SameCNIC(a, b string) bool {
	na := NormalizeCNIC(a)
	return na != "" && na == NormalizeCNIC(b)
}
