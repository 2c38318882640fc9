// Package views holds the server-rendered pages of the portal.
//
// Pages are written as .templ files; run `templ generate` after editing one.
package views

import (
	"net/url"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
)

type summaryRow struct {
	label  string
	amount decimal.Decimal
}

func summaryRows(f core.PropertyFile) []summaryRow {
	return []summaryRow{
		{"Plot value", f.PlotValue},
		{"Payment received", f.PaymentReceived},
		{"Receivable", f.Receivable},
		{"Total receivable", f.TotalReceivable},
		{"Surcharge", f.Surcharge},
		{"Overdue", f.Overdue},
		{"Balance", f.Balance},
	}
}

func documentURL(f core.PropertyFile) templ.SafeURL {
	return templ.URL("/api/files/" + url.PathEscape(f.FileNo) + "/document")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func plotFeatures(f core.PropertyFile) string {
	var out []string
	for _, feat := range []struct{ name, value string }{
		{"park", f.Park},
		{"corner", f.Corner},
		{"main boulevard", f.MainBoulevard},
	} {
		if isYes(feat.value) {
			out = append(out, feat.name)
		}
	}
	return strings.Join(out, ", ")
}

func isYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
