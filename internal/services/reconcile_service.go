package services

import (
	"context"
	"fmt"
	"time"

	"travelapp/internal/domain/models"
	"travelapp/internal/metrics"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/shopspring/decimal"
)

// ComputePaymentStatus sums the entries that count toward the booking
// (manual entries and completed gateway entries) and classifies the total.
func ComputePaymentStatus(total decimal.Decimal, ledger []models.Payment) (models.PaymentStatus, decimal.Decimal) {
	paid := decimal.Zero
	for _, p := range ledger {
		if p.Counts() {
			paid = paid.Add(p.Amount)
		}
	}
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.PaymentPaid, paid
	case paid.IsPositive():
		return models.PaymentPartial, paid
	default:
		return models.PaymentPending, paid
	}
}

type ReconcileResult struct {
	BookingID     int64                `json:"booking_id"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalPaid     decimal.Decimal      `json:"total_paid"`
	TotalPrice    decimal.Decimal      `json:"total_price"`

	// Booking is the row as read before the write, with PaymentStatus updated.
	Booking models.Booking `json:"-"`
}

// Balance is what remains to be paid, never negative.
func (r ReconcileResult) Balance() decimal.Decimal {
	return decimal.Max(r.TotalPrice.Sub(r.TotalPaid), decimal.Zero)
}

// ReconcileService recomputes a booking's payment_status from its ledger. It
// is the only writer of that column.
type ReconcileService struct {
	BookingRepo repositories.BookingRepository
	PaymentRepo repositories.PaymentRepository
	RequestID   string
	Now         func() time.Time
}

func (s ReconcileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// Recompute reads the booking and its ledger and persists the derived status.
// It joins the transaction in ctx when there is one.
func (s ReconcileService) Recompute(ctx context.Context, bookingID int64) (ReconcileResult, error) {
	booking, err := s.BookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return ReconcileResult{}, err
	}
	ledger, err := s.PaymentRepo.ListByBookingID(ctx, bookingID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load ledger: %w", err)
	}

	status, paid := ComputePaymentStatus(booking.TotalPrice, ledger)
	if err := s.BookingRepo.UpdatePaymentStatus(ctx, bookingID, status, s.now()); err != nil {
		return ReconcileResult{}, fmt.Errorf("persist payment status: %w", err)
	}
	metrics.Reconciliations.WithLabelValues(string(status)).Inc()

	if status != booking.PaymentStatus {
		utils.LogEvent(s.RequestID, "reconcile", "status_changed",
			fmt.Sprintf("booking_id=%d %s->%s paid=%s total=%s", bookingID, booking.PaymentStatus, status, paid.StringFixed(2), booking.TotalPrice.StringFixed(2)))
	}
	booking.PaymentStatus = status
	return ReconcileResult{
		Booking:       booking,
		BookingID:     bookingID,
		PaymentStatus: status,
		TotalPaid:     paid,
		TotalPrice:    booking.TotalPrice,
	}, nil
}
