package tables

import (
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/shopspring/decimal"
)

// PropertyFilesKey is the registry key of the property inventory layout.
const PropertyFilesKey = "property_files"

func init() {
	registerPropertyFiles()
}

func registerPropertyFiles() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         PropertyFilesKey,
			Group:       "Registry",
			Label:       "Property Files",
			Description: "One row per file number with owner, plot and ledger totals",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "File No", Type: core.FieldText, Required: true},
			{Name: "Owner Name", Type: core.FieldText, Required: true},
			{Name: "Owner CNIC", Type: core.FieldCNIC, Required: true},
			{Name: "Father Name", Type: core.FieldText},
			{Name: "Cell No", Type: core.FieldText},
			{Name: "Address", Type: core.FieldText},
			{Name: "Currency No", Type: core.FieldText},
			{Name: "Reg Date", Type: core.FieldText},
			{Name: "Plot No", Type: core.FieldText},
			{Name: "Plot Size", Type: core.FieldText},
			{Name: "Block", Type: core.FieldText},
			{Name: "Park", Type: core.FieldEnum, EnumValues: []string{"Yes", "No"}, Normalizer: NormalizeYesNo},
			{Name: "Corner", Type: core.FieldEnum, EnumValues: []string{"Yes", "No"}, Normalizer: NormalizeYesNo},
			{Name: "Main Boulevard", Type: core.FieldEnum, EnumValues: []string{"Yes", "No"}, Normalizer: NormalizeYesNo},
			{Name: "Plot Value", Type: core.FieldNumeric},
			{Name: "Total Receivable", Type: core.FieldNumeric},
			{Name: "Payment Received", Type: core.FieldNumeric},
			{Name: "Receivable", Type: core.FieldNumeric},
			{Name: "Balance", Type: core.FieldNumeric},
			{Name: "Surcharge", Type: core.FieldNumeric},
			{Name: "Overdue", Type: core.FieldNumeric},
		},
		BuildRecord: buildPropertyFile,
	})
}

func buildPropertyFile(row []string, idx core.HeaderIndex) (any, error) {
	text := func(name string) string { return viewText(idx.Cell(row, name)) }
	flag := func(name string) string { return viewText(NormalizeYesNo(idx.Cell(row, name))) }
	amount := func(name string) decimal.Decimal {
		d, _ := core.ParseAmount(idx.Cell(row, name))
		return d
	}

	return core.PropertyFile{
		FileNo:          idx.Cell(row, "File No"),
		OwnerName:       text("Owner Name"),
		OwnerCNIC:       FormatCNIC(idx.Cell(row, "Owner CNIC")),
		FatherName:      text("Father Name"),
		CellNo:          text("Cell No"),
		Address:         text("Address"),
		CurrencyNo:      text("Currency No"),
		RegDate:         regDate(idx.Cell(row, "Reg Date")),
		PlotNo:          text("Plot No"),
		PlotSize:        text("Plot Size"),
		Block:           text("Block"),
		Park:            flag("Park"),
		Corner:          flag("Corner"),
		MainBoulevard:   flag("Main Boulevard"),
		PlotValue:       amount("Plot Value"),
		TotalReceivable: amount("Total Receivable"),
		PaymentReceived: amount("Payment Received"),
		Receivable:      amount("Receivable"),
		Balance:         amount("Balance"),
		Surcharge:       amount("Surcharge"),
		Overdue:         amount("Overdue"),
		Transactions:    []core.Transaction{},
	}, nil
}

// viewText substitutes the display placeholder for empty cells.
func viewText(s string) string {
	if s == "" {
		return core.Placeholder
	}
	return s
}

// regDate stores registration dates as ISO dates when they parse and as
// entered otherwise.
func regDate(s string) string {
	if t, ok := core.ParseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return viewText(s)
}
