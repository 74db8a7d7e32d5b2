package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus is the aggregate over a booking's ledger. Only the
// reconciliation routine writes it.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Booking is a reservation together with its payment lifecycle fields.
type Booking struct {
	ID               int64           `json:"id"`
	TripID           int64           `json:"trip_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	Adults           int             `json:"adults"`
	Children         int             `json:"children"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
	Status           BookingStatus   `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	CompletionToken  string          `json:"-"`
	TokenExpiresAt   time.Time       `json:"token_expires_at"`
	DetailsCompleted bool            `json:"details_completed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (b Booking) PassengerCount() int {
	return b.Adults + b.Children
}

// Passenger holds the per-traveller details collected after payment.
type Passenger struct {
	ID             int64  `json:"id,omitempty"`
	BookingID      int64  `json:"booking_id,omitempty"`
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth"`
	PassportNumber string `json:"passport_number"`
	Nationality    string `json:"nationality"`
}
