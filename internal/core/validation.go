package core

// validation.go checks CSV rows against an import layout before records are
// built.
//
// Validation happens at two levels:
//  1. Header validation: required columns are present
//  2. Row validation: each cell matches its FieldSpec (type, CNIC, email, enum)
//
// ValidateRow returns every problem in the row (for the import report);
// ValidateRowFirst stops at the first one.

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CNICDigits is the number of digits in a normalized CNIC.
const CNICDigits = 13

var cellValidator = validator.New()

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// RowValidator validates rows against a layout's field specifications.
type RowValidator struct {
	specs     []FieldSpec
	headerIdx HeaderIndex
}

// NewRowValidator creates a validator for the given field specs and header index.
func NewRowValidator(specs []FieldSpec, headerIdx HeaderIndex) *RowValidator {
	return &RowValidator{
		specs:     specs,
		headerIdx: headerIdx,
	}
}

// ValidateRow validates a single CSV row and returns all validation errors.
func (v *RowValidator) ValidateRow(row []string) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, spec := range v.specs {
		raw, present := v.cell(row, spec)
		if !present {
			if spec.Required {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   spec.Name,
					Message: "missing required column",
				})
			}
			continue
		}

		if raw == "" && spec.Required && !spec.AllowEmpty {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Message: "required field is empty",
			})
			continue
		}

		if err := ValidateCell(raw, spec); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Value:   raw,
				Message: err.Error(),
			})
		}
	}

	return result
}

// ValidateRowFirst validates a row and returns the first error only.
func (v *RowValidator) ValidateRowFirst(row []string) error {
	for _, spec := range v.specs {
		raw, present := v.cell(row, spec)
		if !present {
			if spec.Required {
				return fmt.Errorf("missing required column %q", spec.Name)
			}
			continue
		}

		if raw == "" && spec.Required && !spec.AllowEmpty {
			return fmt.Errorf("empty required field %q", spec.Name)
		}

		if err := ValidateCell(raw, spec); err != nil {
			return fmt.Errorf("invalid %s for %q: %q", fieldTypeName(spec.Type), spec.Name, raw)
		}
	}
	return nil
}

// cell returns the cleaned and normalized value for spec, and whether the
// column exists in the row.
func (v *RowValidator) cell(row []string, spec FieldSpec) (string, bool) {
	pos, ok := v.headerIdx[strings.ToLower(spec.Name)]
	if !ok || pos >= len(row) {
		return "", false
	}
	raw := CleanCell(row[pos])
	if spec.Normalizer != nil && raw != "" {
		raw = spec.Normalizer(raw)
	}
	return raw, true
}

// ValidateCell validates a single cell value against a field specification.
// Empty values are valid here; required-ness is checked by the caller.
func ValidateCell(value string, spec FieldSpec) error {
	if value == "" || value == Placeholder {
		return nil
	}

	switch spec.Type {
	case FieldNumeric:
		if !ToPgNumeric(value).Valid {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if !ToPgDate(value).Valid {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD or DD-MM-YYYY)")
		}
	case FieldBool:
		if !ToPgBool(value).Valid {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case FieldCNIC:
		if n := NormalizeCNIC(value); len(n) != CNICDigits {
			return fmt.Errorf("CNIC must have %d digits, got %d", CNICDigits, len(n))
		}
	case FieldEmail:
		if err := cellValidator.Var(value, "email"); err != nil {
			return fmt.Errorf("invalid email address")
		}
	case FieldEnum:
		if len(spec.EnumValues) > 0 {
			for _, ev := range spec.EnumValues {
				if strings.EqualFold(ev, value) {
					return nil
				}
			}
			return fmt.Errorf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
		}
	}
	return nil
}

// ValidateHeaders validates that all required columns exist in the CSV headers.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, spec := range specs {
		if spec.Required {
			if _, ok := idx[strings.ToLower(spec.Name)]; !ok {
				missing = append(missing, spec.Name)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return idx, nil
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	case FieldCNIC:
		return "CNIC"
	case FieldEmail:
		return "email"
	default:
		return "value"
	}
}
