package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/shopspring/decimal"
)

// PaymentService holds the back-office ledger operations. Every mutation is
// followed by a reconciliation in the same transaction.
type PaymentService struct {
	BookingRepo repositories.BookingRepository
	PaymentRepo repositories.PaymentRepository
	Gateway     PaymentGateway
	Tx          intdb.TxManager
	Notifier    BookingNotifier
	SiteURL     string
	RequestID   string
	Now         func() time.Time
}

func (s PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s PaymentService) tx() intdb.TxManager {
	if s.Tx != nil {
		return s.Tx
	}
	return intdb.Direct{}
}

func (s PaymentService) reconciler() ReconcileService {
	return ReconcileService{
		BookingRepo: s.BookingRepo,
		PaymentRepo: s.PaymentRepo,
		RequestID:   s.RequestID,
		Now:         s.Now,
	}
}

func (s PaymentService) webhooks() WebhookService {
	return WebhookService{
		PaymentRepo: s.PaymentRepo,
		BookingRepo: s.BookingRepo,
		Tx:          s.Tx,
		Notifier:    s.Notifier,
		SiteURL:     s.SiteURL,
		RequestID:   s.RequestID,
		Now:         s.Now,
	}
}

type ManualPaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"payment_method"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

type LedgerChange struct {
	Payment   models.Payment  `json:"payment"`
	Reconcile ReconcileResult `json:"reconcile"`
}

// RecordManualPayment appends an off-gateway entry (external_status NULL).
func (s PaymentService) RecordManualPayment(ctx context.Context, bookingID int64, in ManualPaymentInput) (LedgerChange, error) {
	method, ok := models.ParseManualMethod(in.Method)
	if !ok {
		return LedgerChange{}, domain.ValidationError{Field: "payment_method", Msg: "must be cash, bank_transfer or card_manual"}
	}
	amount := utils.RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return LedgerChange{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}

	var out LedgerChange
	err := s.tx().Do(ctx, func(ctx context.Context) error {
		if err := s.BookingRepo.LockByID(ctx, bookingID); err != nil {
			return err
		}
		booking, err := s.BookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now()
		p := models.Payment{
			BookingID: booking.ID,
			Amount:    amount,
			Currency:  booking.Currency,
			Method:    method,
			Reference: utils.TrimOrEmpty(in.Reference),
			Notes:     utils.TrimOrEmpty(in.Notes),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if p.ID, err = s.PaymentRepo.Create(ctx, p); err != nil {
			return err
		}
		out.Payment = p
		out.Reconcile, err = s.reconciler().Recompute(ctx, booking.ID)
		return err
	})
	if err != nil {
		return LedgerChange{}, wrapLedgerErr(s.RequestID, "record_manual_payment", err)
	}
	utils.LogEvent(s.RequestID, "payment", "record_manual_payment",
		fmt.Sprintf("booking_id=%d payment_id=%d method=%s amount=%s", bookingID, out.Payment.ID, method, amount.StringFixed(2)))
	return out, nil
}

// DeletePayment removes a ledger entry and reconciles its booking.
func (s PaymentService) DeletePayment(ctx context.Context, paymentID int64) (LedgerChange, error) {
	entry, err := s.PaymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return LedgerChange{}, wrapLedgerErr(s.RequestID, "delete_payment", err)
	}

	var out LedgerChange
	err = s.tx().Do(ctx, func(ctx context.Context) error {
		if err := s.BookingRepo.LockByID(ctx, entry.BookingID); err != nil {
			return err
		}
		p, err := s.PaymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := s.PaymentRepo.Delete(ctx, p.ID); err != nil {
			return err
		}
		out.Payment = p
		out.Reconcile, err = s.reconciler().Recompute(ctx, p.BookingID)
		return err
	})
	if err != nil {
		return LedgerChange{}, wrapLedgerErr(s.RequestID, "delete_payment", err)
	}
	utils.LogEvent(s.RequestID, "payment", "delete_payment",
		fmt.Sprintf("booking_id=%d payment_id=%d", out.Payment.BookingID, paymentID))
	return out, nil
}

// SyncGatewayOrder pulls the order state from the processor and applies it
// the way a webhook would. Useful when a delivery was lost.
func (s PaymentService) SyncGatewayOrder(ctx context.Context, paymentID int64) (ApplyResult, error) {
	p, err := s.PaymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return ApplyResult{}, err
	}
	if p.ExternalOrderID == nil || *p.ExternalOrderID == "" {
		return ApplyResult{}, domain.ValidationError{Field: "payment_id", Msg: "payment has no gateway order"}
	}
	order, err := s.Gateway.GetOrder(ctx, *p.ExternalOrderID)
	if err != nil {
		utils.LogError(s.RequestID, "payment", "get_order", err)
		return ApplyResult{}, err
	}
	status := gateway.MapOrderState(order.State)
	utils.LogEvent(s.RequestID, "payment", "sync_order",
		fmt.Sprintf("payment_id=%d order_id=%s state=%s amount=%s", p.ID, order.ID, order.State, order.Total().StringFixed(2)))
	return s.webhooks().ApplyExternalStatus(ctx, p, status)
}

// ReconcileBooking recomputes one booking on demand.
func (s PaymentService) ReconcileBooking(ctx context.Context, bookingID int64) (ReconcileResult, error) {
	var out ReconcileResult
	err := s.tx().Do(ctx, func(ctx context.Context) error {
		if err := s.BookingRepo.LockByID(ctx, bookingID); err != nil {
			return err
		}
		var err error
		out, err = s.reconciler().Recompute(ctx, bookingID)
		return err
	})
	if err != nil {
		return ReconcileResult{}, wrapLedgerErr(s.RequestID, "reconcile", err)
	}
	return out, nil
}

// ReconcileAll recomputes every booking that is not cancelled. It keeps going
// past failures and reports them together.
func (s PaymentService) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	ids, err := s.BookingRepo.ListReconcilableIDs(ctx)
	if err != nil {
		return nil, domain.InternalError{Msg: "failed to list bookings", Err: err}
	}
	out := make([]ReconcileResult, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.ReconcileBooking(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
			continue
		}
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}

func wrapLedgerErr(requestID, action string, err error) error {
	if domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsConflict(err) {
		return err
	}
	utils.LogError(requestID, "payment", action, err)
	return domain.InternalError{Msg: "ledger update failed", Err: err}
}
