package models

import (
	"github.com/shopspring/decimal"
)

// BankType identifies which gateway adapter created a record
type BankType string

const (
	BankTypePEC    BankType = "PEC"
	BankTypeSepehr BankType = "SEPEHR"
)

// Currency is an ISO 4217 currency code
type Currency string

const (
	CurrencyIRR Currency = "IRR"
)

// PaymentStatus is the lifecycle state of a payment attempt.
// Status only moves forward; COMPLETE, CANCEL_BY_USER and ERROR are terminal.
type PaymentStatus string

const (
	StatusInit             PaymentStatus = "INIT"
	StatusRedirectToBank   PaymentStatus = "REDIRECT_TO_BANK"
	StatusCallbackReceived PaymentStatus = "CALLBACK_RECEIVED"
	StatusComplete         PaymentStatus = "COMPLETE"
	StatusCancelByUser     PaymentStatus = "CANCEL_BY_USER"
	StatusError            PaymentStatus = "ERROR"
)

// IsTerminal reports whether no further bank-facing call is permitted
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusCancelByUser, StatusError:
		return true
	}
	return false
}

// Bank is the persisted state of one payment attempt
type Bank struct {
	BaseModel

	// Gateway selection; immutable after creation
	BankType             BankType `json:"bank_type" gorm:"not null;size:20;uniqueIndex:idx_bank_tracking"`
	BankChooseIdentifier string   `json:"bank_choose_identifier" gorm:"size:50"`

	// Merchant-side correlation identifier, unique per bank type
	TrackingCode string `json:"tracking_code" gorm:"not null;size:50;uniqueIndex:idx_bank_tracking"`

	// Bank-assigned token/receipt, set once the pay step succeeds.
	// Never overwritten once non-empty.
	ReferenceNumber string `json:"reference_number" gorm:"size:200;index"`

	Amount   decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Currency Currency        `json:"currency" gorm:"size:3;not null"`

	Status PaymentStatus `json:"status" gorm:"not null;size:20;index"`

	// Diagnostic text set on rejection/cancellation/error
	TransactionStatusText string `json:"transaction_status_text" gorm:"type:text"`

	// Adapter-specific raw fields preserved verbatim (RRN, trace number, masked card)
	ExtraInformation string `json:"extra_information" gorm:"type:text"`

	// Optional payer hint forwarded to the bank by some adapters
	MobileNumber string `json:"mobile_number" gorm:"size:20"`

	// Merchant's client-facing URL the payer is redirected to after the callback
	CallbackURL string `json:"callback_url" gorm:"type:varchar(500)"`
}

// TableName specifies the table name
func (Bank) TableName() string {
	return "banks"
}
