package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
	"travelapp/internal/metrics"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/shopspring/decimal"
)

// WebhookInput is the raw delivery as received; Body must be the exact bytes
// the processor signed.
type WebhookInput struct {
	Body      []byte
	Signature string
	Timestamp string
}

type WebhookResult struct {
	Event     string                `json:"event"`
	OrderID   string                `json:"order_id"`
	PaymentID int64                 `json:"payment_id,omitempty"`
	BookingID int64                 `json:"booking_id,omitempty"`
	Status    models.ExternalStatus `json:"status,omitempty"`
	Ignored   bool                  `json:"ignored,omitempty"`
}

// ApplyResult describes one external status write and the reconciliation
// that followed it.
type ApplyResult struct {
	Payment   models.Payment  `json:"payment"`
	Reconcile ReconcileResult `json:"reconcile"`
	// Skipped is set when the entry already held a different terminal status.
	Skipped bool `json:"skipped,omitempty"`
	// Notified is set when the completion email was handed to the notifier.
	Notified bool `json:"notified,omitempty"`
}

type WebhookService struct {
	PaymentRepo   repositories.PaymentRepository
	BookingRepo   repositories.BookingRepository
	Tx            intdb.TxManager
	Notifier      BookingNotifier
	Secret        string
	AllowUnsigned bool
	SiteURL       string
	RequestID     string
	Now           func() time.Time
}

func (s WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s WebhookService) tx() intdb.TxManager {
	if s.Tx != nil {
		return s.Tx
	}
	return intdb.Direct{}
}

func (s WebhookService) notifier() BookingNotifier {
	if s.Notifier != nil {
		return s.Notifier
	}
	return noopNotifier{}
}

func (s WebhookService) reconciler() ReconcileService {
	return ReconcileService{
		BookingRepo: s.BookingRepo,
		PaymentRepo: s.PaymentRepo,
		RequestID:   s.RequestID,
		Now:         s.Now,
	}
}

// Handle verifies and applies one processor delivery.
func (s WebhookService) Handle(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	if err := s.verify(in); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		utils.LogEvent(s.RequestID, "webhook", "verify", err.Error())
		return WebhookResult{}, err
	}

	var evt gateway.WebhookEvent
	if err := json.Unmarshal(in.Body, &evt); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		return WebhookResult{}, domain.ValidationError{Field: "body", Msg: "invalid JSON", Err: err}
	}
	evt.OrderID = strings.TrimSpace(evt.OrderID)
	out := WebhookResult{Event: evt.Event, OrderID: evt.OrderID}
	if evt.OrderID == "" {
		metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeRejected).Inc()
		return out, domain.ValidationError{Field: "order_id", Msg: "required"}
	}

	payment, err := s.PaymentRepo.GetByExternalOrderID(ctx, evt.OrderID)
	if err != nil {
		if domain.IsNotFound(err) {
			metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeRejected).Inc()
			utils.LogEvent(s.RequestID, "webhook", "lookup", "unknown order_id="+evt.OrderID)
			return out, err
		}
		metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeError).Inc()
		return out, domain.InternalError{Msg: "failed to load payment", Err: err}
	}
	out.PaymentID = payment.ID
	out.BookingID = payment.BookingID

	status, ok := gateway.EventStatus(evt.Event)
	if !ok {
		out.Ignored = true
		metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeIgnored).Inc()
		utils.LogEvent(s.RequestID, "webhook", "ignore", fmt.Sprintf("event=%s order_id=%s", evt.Event, evt.OrderID))
		return out, nil
	}
	out.Status = status

	if _, err := s.ApplyExternalStatus(ctx, payment, status); err != nil {
		metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeError).Inc()
		return out, err
	}
	metrics.WebhookEvents.WithLabelValues(eventLabel(evt.Event), metrics.OutcomeOK).Inc()
	return out, nil
}

func (s WebhookService) verify(in WebhookInput) error {
	if s.Secret == "" {
		if s.AllowUnsigned {
			return nil
		}
		return domain.AuthenticationError{Msg: "webhook signing secret not configured"}
	}
	if in.Signature == "" || in.Timestamp == "" {
		return domain.AuthenticationError{Msg: "missing webhook signature"}
	}
	if !gateway.VerifyWebhookSignature(in.Body, in.Signature, in.Timestamp, s.Secret) {
		return domain.AuthenticationError{Msg: "invalid webhook signature"}
	}
	return nil
}

// ApplyExternalStatus writes status onto a gateway-backed ledger entry and
// reconciles its booking in one transaction. The completion email goes out
// after commit, only on the first transition to completed.
func (s WebhookService) ApplyExternalStatus(ctx context.Context, payment models.Payment, status models.ExternalStatus) (ApplyResult, error) {
	var (
		out    ApplyResult
		notify bool
	)
	err := s.tx().Do(ctx, func(ctx context.Context) error {
		if err := s.BookingRepo.LockByID(ctx, payment.BookingID); err != nil {
			return err
		}
		current, err := s.PaymentRepo.GetByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		out.Payment = current

		prev := current.ExternalStatus
		if prev != nil && prev.Terminal() && *prev != status {
			out.Skipped = true
			return nil
		}

		now := s.now()
		if err := s.PaymentRepo.UpdateExternalStatus(ctx, current.ID, status, now); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		current.ExternalStatus = &status
		current.UpdatedAt = now
		if status.Voided() {
			current.Amount = decimal.Zero
		}
		out.Payment = current

		rec, err := s.reconciler().Recompute(ctx, current.BookingID)
		if err != nil {
			return err
		}
		out.Reconcile = rec

		firstCompletion := status == models.ExternalCompleted && (prev == nil || *prev != models.ExternalCompleted)
		notify = firstCompletion && !rec.Booking.DetailsCompleted
		return nil
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return out, err
		}
		utils.LogError(s.RequestID, "webhook", "apply_status", err)
		return out, domain.InternalError{Msg: "failed to apply payment status", Err: err}
	}

	if out.Skipped {
		utils.LogEvent(s.RequestID, "webhook", "skip_terminal",
			fmt.Sprintf("payment_id=%d has %s, ignoring %s", out.Payment.ID, *out.Payment.ExternalStatus, status))
		return out, nil
	}
	utils.LogEvent(s.RequestID, "webhook", "apply_status",
		fmt.Sprintf("payment_id=%d booking_id=%d status=%s payment_status=%s", out.Payment.ID, out.Payment.BookingID, status, out.Reconcile.PaymentStatus))

	if notify {
		booking := out.Reconcile.Booking
		if err := s.notifier().PaymentReceived(ctx, booking, utils.CompletionURL(s.SiteURL, booking.CompletionToken)); err != nil {
			utils.LogError(s.RequestID, "webhook", "send_completion_email", err)
		} else {
			out.Notified = true
		}
	}
	return out, nil
}

func eventLabel(event string) string {
	if _, ok := gateway.EventStatus(event); ok {
		return event
	}
	return "other"
}
