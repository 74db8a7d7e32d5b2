package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodRevolut      PaymentMethod = "revolut"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCardManual   PaymentMethod = "card_manual"
)

// ParseManualMethod accepts the methods an admin may record by hand.
func ParseManualMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case MethodCash, MethodBankTransfer, MethodCardManual:
		return m, true
	default:
		return "", false
	}
}

// ExternalStatus mirrors the processor's view of a gateway-backed entry.
type ExternalStatus string

const (
	ExternalPending   ExternalStatus = "pending"
	ExternalCompleted ExternalStatus = "completed"
	ExternalCancelled ExternalStatus = "cancelled"
	ExternalFailed    ExternalStatus = "failed"
)

func (s ExternalStatus) Terminal() bool {
	return s == ExternalCompleted || s == ExternalCancelled || s == ExternalFailed
}

// Voided statuses contribute nothing and zero the entry's amount.
func (s ExternalStatus) Voided() bool {
	return s == ExternalCancelled || s == ExternalFailed
}

// Payment is one ledger entry against a booking. ExternalOrderID and
// ExternalStatus are nil for manual entries.
type Payment struct {
	ID              int64           `json:"id"`
	BookingID       int64           `json:"booking_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Method          PaymentMethod   `json:"payment_method"`
	ExternalOrderID *string         `json:"external_order_id"`
	ExternalStatus  *ExternalStatus `json:"external_status"`
	Reference       string          `json:"reference"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Counts reports whether the entry contributes to the paid total.
func (p Payment) Counts() bool {
	return p.ExternalStatus == nil || *p.ExternalStatus == ExternalCompleted
}
