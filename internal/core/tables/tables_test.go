package tables

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/shopspring/decimal"
)

func TestLayoutsRegistered(t *testing.T) {
	for _, key := range []string{PropertyFilesKey, UsersKey} {
		def, ok := core.Get(key)
		if !ok {
			t.Fatalf("layout %q not registered", key)
		}
		if len(def.Info.Columns) != len(def.FieldSpecs) {
			t.Errorf("%s: Columns = %d, FieldSpecs = %d", key, len(def.Info.Columns), len(def.FieldSpecs))
		}
	}
	if got := len(core.All()); got != 2 {
		t.Errorf("All() = %d layouts, want 2", got)
	}
}

func TestPropertyFilesImport(t *testing.T) {
	csv := strings.Join([]string{
		"File No,Owner Name,Owner CNIC,Plot Value,Total Receivable,Park,Corner,Reg Date,Block",
		`DIN-001,Ayesha Khan,3520212345671,"4,500,000",,y,No,01/06/2021,C`,
		`DIN-002,Bilal Ahmed,61101-7654321-9,Rs 2500000,2600000,,maybe,,`,
		`DIN-003,,61101-7654321-9,100,,,,,`,
		`DIN-004,Sana Mir,61101 7654321 9,(100),,no,yes,garbage,A`,
	}, "\n")

	result, err := core.ParseImport(context.Background(), PropertyFilesKey, "inventory.csv", strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("ParseImport() error = %v", err)
	}

	if result.Accepted != 2 || result.Skipped != 2 {
		t.Fatalf("Accepted/Skipped = %d/%d, want 2/2 (failed: %+v)", result.Accepted, result.Skipped, result.FailedRows)
	}
	if result.FailedRows[0].LineNumber != 3 || result.FailedRows[1].LineNumber != 4 {
		t.Errorf("failed lines = %d, %d, want 3, 4", result.FailedRows[0].LineNumber, result.FailedRows[1].LineNumber)
	}

	f := result.Files[0]
	if f.FileNo != "DIN-001" {
		t.Errorf("FileNo = %q", f.FileNo)
	}
	if f.OwnerCNIC != "35202-1234567-1" {
		t.Errorf("OwnerCNIC = %q, want formatted", f.OwnerCNIC)
	}
	if !f.PlotValue.Equal(decimal.NewFromInt(4500000)) {
		t.Errorf("PlotValue = %s", f.PlotValue)
	}
	if f.Park != "Yes" || f.Corner != "No" {
		t.Errorf("Park/Corner = %q/%q, want Yes/No", f.Park, f.Corner)
	}
	if f.RegDate != "2021-06-01" {
		t.Errorf("RegDate = %q, want 2021-06-01", f.RegDate)
	}
	if f.FatherName != core.Placeholder || f.MainBoulevard != core.Placeholder {
		t.Errorf("missing columns should carry the placeholder: %+v", f)
	}
	if f.Transactions == nil {
		t.Error("Transactions should be an empty ledger, not nil")
	}

	// The zero total receivable falls back to the plot value once stored.
	rec := core.ToStore(f)
	if got := core.DecimalFromNumeric(rec.TotalReceivable); !got.Equal(f.PlotValue) {
		t.Errorf("stored total_receivable = %s, want %s", got, f.PlotValue)
	}

	g := result.Files[1]
	if g.FileNo != "DIN-004" || !g.PlotValue.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("second file = %s %s", g.FileNo, g.PlotValue)
	}
	if g.RegDate != "garbage" {
		t.Errorf("RegDate = %q, want unparsed value kept", g.RegDate)
	}
}

func TestUsersImport(t *testing.T) {
	csv := strings.Join([]string{
		"Name,Email,CNIC,Phone,Role,Status",
		"Ayesha Khan,Ayesha@Example.com,3520212345671,0300-1,admin,active",
		"Bilal Ahmed,bilal@example.com,61101-7654321-9,,,",
		"No Email,not-an-email,61101-7654321-8,,,",
		"Bad Role,x@example.com,61101-7654321-7,,owner,",
		"Dup Cnic,dup@example.com,35202 1234567 1,,,",
	}, "\n")

	result, err := core.ParseImport(context.Background(), UsersKey, "users.csv", strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("ParseImport() error = %v", err)
	}

	if len(result.Users) != 2 {
		t.Fatalf("Users = %d, want 2 (failed: %+v)", len(result.Users), result.FailedRows)
	}
	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}

	a := result.Users[0]
	if a.Role != core.RoleAdmin || a.Status != core.StatusActive || a.Email != "ayesha@example.com" {
		t.Errorf("first user = %+v", a)
	}
	b := result.Users[1]
	if b.Role != core.RoleClient || b.Status != core.StatusActive {
		t.Errorf("second user defaults = %+v", b)
	}
	if !strings.Contains(result.FailedRows[2].Reason, "duplicate") {
		t.Errorf("last failure = %q, want duplicate CNIC", result.FailedRows[2].Reason)
	}
}

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"yes", NormalizeYesNo, " Y ", "Yes"},
		{"no", NormalizeYesNo, "false", "No"},
		{"unknown flag", NormalizeYesNo, " maybe ", "maybe"},
		{"cnic grouped", FormatCNIC, "3520212345671", "35202-1234567-1"},
		{"cnic short kept", FormatCNIC, " 123 ", "123"},
		{"role", NormalizeRole, " admin ", "ADMIN"},
		{"email", NormalizeEmail, " A@B.Com ", "a@b.com"},
		{"status", NormalizeStatus, "SUSPENDED", "Suspended"},
		{"status empty", NormalizeStatus, "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
