package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Money amounts travel as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Role is the portal role of a user.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
)

// ParseRole parses a role name case-insensitively.
// An empty string parses as RoleClient.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return RoleAdmin, nil
	case "CLIENT", "":
		return RoleClient, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsAdmin reports whether r grants administrative access.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// User status values.
const (
	StatusActive    = "Active"
	StatusSuspended = "Suspended"
)

// Defaults applied when a signed-in user has neither a profile value nor
// sign-up metadata for a field.
const (
	DefaultUserName = "Member"
	PendingCNIC     = "PENDING"
)

// Placeholder is shown for missing text fields of a property file.
const Placeholder = "-"

// Transaction is one line of a property file's account ledger.
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Type        string          `json:"type,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// PropertyFile is the view shape of a property record. All text fields are
// non-empty (missing values carry Placeholder) except FileNo and the
// statement references, and all money fields are exact decimals.
type PropertyFile struct {
	FileNo          string          `json:"fileNo"`
	CurrencyNo      string          `json:"currencyNo"`
	PlotSize        string          `json:"plotSize"`
	PlotValue       decimal.Decimal `json:"plotValue"`
	Balance         decimal.Decimal `json:"balance"`
	Receivable      decimal.Decimal `json:"receivable"`
	TotalReceivable decimal.Decimal `json:"totalReceivable"`
	PaymentReceived decimal.Decimal `json:"paymentReceived"`
	Surcharge       decimal.Decimal `json:"surcharge"`
	Overdue         decimal.Decimal `json:"overdue"`
	OwnerName       string          `json:"ownerName"`
	OwnerCNIC       string          `json:"ownerCNIC"`
	FatherName      string          `json:"fatherName"`
	CellNo          string          `json:"cellNo"`
	RegDate         string          `json:"regDate"`
	Address         string          `json:"address"`
	PlotNo          string          `json:"plotNo"`
	Block           string          `json:"block"`
	Park            string          `json:"park"`
	Corner          string          `json:"corner"`
	MainBoulevard   string          `json:"mainBoulevard"`
	Transactions    []Transaction   `json:"transactions"`

	UploadedStatementURL  string     `json:"uploadedStatementUrl,omitempty"`
	UploadedStatementName string     `json:"uploadedStatementName,omitempty"`
	LastNotified          *time.Time `json:"lastNotified,omitempty"`
}

// OwnedBy reports whether the file belongs to the holder of cnic.
func (f PropertyFile) OwnedBy(cnic string) bool {
	return SameCNIC(f.OwnerCNIC, cnic)
}

// PropertyFileRecord is the store shape of a row in property_files.
// Every column except FileNo is nullable. Transactions holds the raw JSON
// array column.
type PropertyFileRecord struct {
	FileNo              string
	CurrencyNo          pgtype.Text
	PlotSize            pgtype.Text
	PlotValue           pgtype.Numeric
	Balance             pgtype.Numeric
	Receivable          pgtype.Numeric
	TotalReceivable     pgtype.Numeric
	PaymentReceived     pgtype.Numeric
	Surcharge           pgtype.Numeric
	Overdue             pgtype.Numeric
	OwnerName           pgtype.Text
	OwnerCNIC           pgtype.Text
	OwnerCNICNormalized pgtype.Text
	FatherName          pgtype.Text
	CellNo              pgtype.Text
	RegDate             pgtype.Text
	Address             pgtype.Text
	PlotNo              pgtype.Text
	Block               pgtype.Text
	Park                pgtype.Text
	Corner              pgtype.Text
	MainBoulevard       pgtype.Text
	Transactions        []byte

	UploadedStatementURL  pgtype.Text
	UploadedStatementName pgtype.Text
	LastNotified          pgtype.Timestamptz
}

// User is a signed-in or administered portal user.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	CNIC   string `json:"cnic"`
	Role   Role   `json:"role"`
	Status string `json:"status"`
}

// NormalizedCNIC returns the digits-only form of the user's CNIC.
func (u User) NormalizedCNIC() string { return NormalizeCNIC(u.CNIC) }

// Profile is the store shape of a user in the profiles table.
type Profile struct {
	ID             string
	Name           pgtype.Text
	Email          pgtype.Text
	Phone          pgtype.Text
	CNIC           pgtype.Text
	CNICNormalized pgtype.Text
	Role           pgtype.Text
	Status         pgtype.Text
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// Notice is a broadcast announcement.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"date"`
}

// BroadcastRecipient addresses a message to every user.
const BroadcastRecipient = "ALL"

// Message is a point-to-point or broadcast secure message.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"timestamp"`
}

// AddressedTo reports whether the message is visible to userID.
func (m Message) AddressedTo(userID string) bool {
	for _, r := range m.Recipients {
		if r == BroadcastRecipient || r == userID {
			return true
		}
	}
	return m.SenderID == userID
}

// FieldType is the type of a CSV column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldCNIC
	FieldEmail
)

// FieldSpec describes one CSV column of an import layout.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool
	AllowEmpty bool
	EnumValues []string
	Normalizer func(string) string
}

// TableInfo describes an import layout.
type TableInfo struct {
	Key         string   `json:"key"`
	Group       string   `json:"group"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

// HeaderIndex maps lowercased column names to CSV positions.
type HeaderIndex map[string]int

// FailedRow is a CSV row rejected during import.
type FailedRow struct {
	LineNumber int      `json:"line"`
	Reason     string   `json:"reason"`
	Data       []string `json:"data,omitempty"`
}

// ImportResult is the outcome of parsing one CSV file.
type ImportResult struct {
	TableKey   string         `json:"tableKey"`
	FileName   string         `json:"fileName"`
	TotalRows  int            `json:"totalRows"`
	Accepted   int            `json:"accepted"`
	Skipped    int            `json:"skipped"`
	FailedRows []FailedRow    `json:"failedRows,omitempty"`
	Files      []PropertyFile `json:"-"`
	Users      []User         `json:"-"`
	Duration   time.Duration  `json:"duration"`
}
