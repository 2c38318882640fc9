package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ToView converts a stored property record to its view shape.
//
// NULL text columns become Placeholder, NULL numerics become zero and a
// missing or malformed transactions column becomes an empty ledger. FileNo
// and the statement and notification references are never substituted.
func ToView(rec PropertyFileRecord) PropertyFile {
	f := PropertyFile{
		FileNo:          rec.FileNo,
		CurrencyNo:      textOrPlaceholder(rec.CurrencyNo),
		PlotSize:        textOrPlaceholder(rec.PlotSize),
		PlotValue:       numericToDecimal(rec.PlotValue),
		Balance:         numericToDecimal(rec.Balance),
		Receivable:      numericToDecimal(rec.Receivable),
		TotalReceivable: numericToDecimal(rec.TotalReceivable),
		PaymentReceived: numericToDecimal(rec.PaymentReceived),
		Surcharge:       numericToDecimal(rec.Surcharge),
		Overdue:         numericToDecimal(rec.Overdue),
		OwnerName:       textOrPlaceholder(rec.OwnerName),
		OwnerCNIC:       textOrPlaceholder(rec.OwnerCNIC),
		FatherName:      textOrPlaceholder(rec.FatherName),
		CellNo:          textOrPlaceholder(rec.CellNo),
		RegDate:         textOrPlaceholder(rec.RegDate),
		Address:         textOrPlaceholder(rec.Address),
		PlotNo:          textOrPlaceholder(rec.PlotNo),
		Block:           textOrPlaceholder(rec.Block),
		Park:            textOrPlaceholder(rec.Park),
		Corner:          textOrPlaceholder(rec.Corner),
		MainBoulevard:   textOrPlaceholder(rec.MainBoulevard),
		Transactions:    decodeTransactions(rec.Transactions),

		UploadedStatementURL:  rec.UploadedStatementURL.String,
		UploadedStatementName: rec.UploadedStatementName.String,
	}
	if rec.LastNotified.Valid {
		t := rec.LastNotified.Time
		f.LastNotified = &t
	}
	return f
}

// ToStore converts a view record to its stored shape.
//
// The normalized owner CNIC is derived from OwnerCNIC. A zero
// TotalReceivable falls back to PlotValue. Placeholder text is stored as
// NULL so that display defaults never reach the database.
func ToStore(f PropertyFile) PropertyFileRecord {
	total := f.TotalReceivable
	if total.IsZero() {
		total = f.PlotValue
	}

	rec := PropertyFileRecord{
		FileNo:              strings.TrimSpace(f.FileNo),
		CurrencyNo:          storeText(f.CurrencyNo),
		PlotSize:            storeText(f.PlotSize),
		PlotValue:           decimalToNumeric(f.PlotValue),
		Balance:             decimalToNumeric(f.Balance),
		Receivable:          decimalToNumeric(f.Receivable),
		TotalReceivable:     decimalToNumeric(total),
		PaymentReceived:     decimalToNumeric(f.PaymentReceived),
		Surcharge:           decimalToNumeric(f.Surcharge),
		Overdue:             decimalToNumeric(f.Overdue),
		OwnerName:           storeText(f.OwnerName),
		OwnerCNIC:           storeText(f.OwnerCNIC),
		OwnerCNICNormalized: ToPgText(NormalizeCNIC(f.OwnerCNIC)),
		FatherName:          storeText(f.FatherName),
		CellNo:              storeText(f.CellNo),
		RegDate:             storeText(f.RegDate),
		Address:             storeText(f.Address),
		PlotNo:              storeText(f.PlotNo),
		Block:               storeText(f.Block),
		Park:                storeText(f.Park),
		Corner:              storeText(f.Corner),
		MainBoulevard:       storeText(f.MainBoulevard),
		Transactions:        encodeTransactions(f.Transactions),

		UploadedStatementURL:  ToPgText(f.UploadedStatementURL),
		UploadedStatementName: ToPgText(f.UploadedStatementName),
	}
	if f.LastNotified != nil {
		rec.LastNotified = pgtype.Timestamptz{Time: f.LastNotified.UTC(), Valid: true}
	}
	return rec
}

// ToViews converts a slice of stored records. The result is never nil.
func ToViews(recs []PropertyFileRecord) []PropertyFile {
	out := make([]PropertyFile, 0, len(recs))
	for _, r := range recs {
		out = append(out, ToView(r))
	}
	return out
}

// ToStores converts a slice of view records.
func ToStores(files []PropertyFile) []PropertyFileRecord {
	out := make([]PropertyFileRecord, 0, len(files))
	for _, f := range files {
		out = append(out, ToStore(f))
	}
	return out
}

// ProfileToUser converts a stored profile to a User. Unknown roles fall
// back to RoleClient and a missing status to StatusActive.
func ProfileToUser(p Profile) User {
	role, err := ParseRole(p.Role.String)
	if err != nil {
		role = RoleClient
	}
	status := p.Status.String
	if status == "" {
		status = StatusActive
	}
	return User{
		ID:     p.ID,
		Name:   p.Name.String,
		Email:  p.Email.String,
		Phone:  p.Phone.String,
		CNIC:   p.CNIC.String,
		Role:   role,
		Status: status,
	}
}

// UserToProfile converts a User to its stored profile. The email is
// lowercased and cnic_normalized is attached when a CNIC is present.
func UserToProfile(u User) Profile {
	role := u.Role
	if role == "" {
		role = RoleClient
	}
	p := Profile{
		ID:     u.ID,
		Name:   ToPgText(u.Name),
		Email:  ToPgText(strings.ToLower(u.Email)),
		Phone:  ToPgText(u.Phone),
		CNIC:   ToPgText(u.CNIC),
		Role:   ToPgText(string(role)),
		Status: ToPgText(u.Status),
	}
	if p.CNIC.Valid {
		p.CNICNormalized = ToPgText(NormalizeCNIC(u.CNIC))
	}
	return p
}

func textOrPlaceholder(t pgtype.Text) string {
	if !t.Valid || t.String == "" {
		return Placeholder
	}
	return t.String
}

func storeText(s string) pgtype.Text {
	if strings.TrimSpace(s) == Placeholder {
		return pgtype.Text{}
	}
	return ToPgText(s)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// DecimalFromNumeric exposes the numeric conversion used by the mapper.
func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal { return numericToDecimal(n) }

func decodeTransactions(raw []byte) []Transaction {
	txs := []Transaction{}
	if len(raw) == 0 {
		return txs
	}
	if err := json.Unmarshal(raw, &txs); err != nil || txs == nil {
		return []Transaction{}
	}
	return txs
}

func encodeTransactions(txs []Transaction) []byte {
	if txs == nil {
		txs = []Transaction{}
	}
	b, err := json.Marshal(txs)
	if err != nil {
		return []byte("[]")
	}
	return b
}

// NotifiedAt returns t truncated to microseconds, the precision of a
// timestamptz column.
func NotifiedAt(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
