package backend

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder accumulates positional SQL conditions. Empty values are
// skipped so optional filters can be added unconditionally.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n" when value is non-empty.
func (wb *WhereBuilder) Add(column, value string) *WhereBuilder {
	if value == "" {
		return wb
	}
	return wb.addExpr(column+" = $%d", value)
}

// AddSince appends "column >= $n" when since is set.
func (wb *WhereBuilder) AddSince(column string, since time.Time) *WhereBuilder {
	if since.IsZero() {
		return wb
	}
	return wb.addExpr(column+" >= $%d", since)
}

// AddSearch appends a case-insensitive match of term across columns.
func (wb *WhereBuilder) AddSearch(term string, columns ...string) *WhereBuilder {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return wb
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", c, wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
	wb.args = append(wb.args, "%"+term+"%")
	wb.argIndex++
	return wb
}

func (wb *WhereBuilder) addExpr(format string, value any) *WhereBuilder {
	wb.conditions = append(wb.conditions, fmt.Sprintf(format, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
	return wb
}

// NextArgIndex is the number of the next placeholder.
func (wb *WhereBuilder) NextArgIndex() int { return wb.argIndex }

// Build returns " WHERE ..." and its arguments, or "" and nil when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
