package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/AlekSi/pointer"
	"github.com/shopspring/decimal"
)

const maxPartySize = 20

type BookingService struct {
	BookingRepo   repositories.BookingRepository
	PaymentRepo   repositories.PaymentRepository
	TripRepo      repositories.TripRepository
	PassengerRepo repositories.PassengerRepository
	Gateway       PaymentGateway
	Tx            intdb.TxManager
	Notifier      BookingNotifier
	SiteURL       string
	RequestID     string
	Now           func() time.Time
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s BookingService) tx() intdb.TxManager {
	if s.Tx != nil {
		return s.Tx
	}
	return intdb.Direct{}
}

func (s BookingService) notifier() BookingNotifier {
	if s.Notifier != nil {
		return s.Notifier
	}
	return noopNotifier{}
}

func (s BookingService) reconciler() ReconcileService {
	return ReconcileService{
		BookingRepo: s.BookingRepo,
		PaymentRepo: s.PaymentRepo,
		RequestID:   s.RequestID,
		Now:         s.Now,
	}
}

type CreateBookingInput struct {
	TripID        int64  `json:"trip_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
	// Amount is an optional deposit; the full price is charged when nil.
	Amount *decimal.Decimal `json:"amount"`
}

// PaymentLink is returned to the customer to start checkout.
type PaymentLink struct {
	BookingID      int64           `json:"booking_id"`
	PaymentID      int64           `json:"payment_id"`
	OrderID        string          `json:"order_id"`
	CheckoutURL    string          `json:"checkout_url"`
	CompletionURL  string          `json:"completion_url"`
	Amount         decimal.Decimal `json:"amount"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Currency       string          `json:"currency"`
	TokenExpiresAt time.Time       `json:"token_expires_at"`
}

// BookingView is what the completion page and the back-office read.
type BookingView struct {
	Booking       models.Booking     `json:"booking"`
	Payments      []models.Payment   `json:"payments"`
	Passengers    []models.Passenger `json:"passengers"`
	TotalPaid     decimal.Decimal    `json:"total_paid"`
	Balance       decimal.Decimal    `json:"balance"`
	CompletionURL string             `json:"completion_url,omitempty"`
	TokenExpired  bool               `json:"token_expired"`
	TokenRenewed  bool               `json:"token_renewed,omitempty"`
}

func (in CreateBookingInput) normalize() (CreateBookingInput, error) {
	in.CustomerName = utils.NormalizeSpace(in.CustomerName)
	in.CustomerEmail = utils.NormalizeEmail(in.CustomerEmail)
	in.CustomerPhone = utils.TrimOrEmpty(in.CustomerPhone)

	if in.TripID <= 0 {
		return in, domain.ValidationError{Field: "trip_id", Msg: "required"}
	}
	if in.CustomerName == "" {
		return in, domain.ValidationError{Field: "customer_name", Msg: "required"}
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		return in, domain.ValidationError{Field: "customer_email", Msg: "invalid address", Err: err}
	}
	if in.Adults < 1 {
		return in, domain.ValidationError{Field: "adults", Msg: "at least one adult is required"}
	}
	if in.Children < 0 {
		return in, domain.ValidationError{Field: "children", Msg: "cannot be negative"}
	}
	if in.Adults+in.Children > maxPartySize {
		return in, domain.ValidationError{Field: "adults", Msg: fmt.Sprintf("party size is limited to %d", maxPartySize)}
	}
	return in, nil
}

// chargeAmount picks the amount for a new gateway order: requested if set,
// otherwise the whole ceiling.
func chargeAmount(requested *decimal.Decimal, ceiling decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return ceiling, nil
	}
	amount := utils.RoundMoney(*requested)
	if !amount.IsPositive() {
		return decimal.Zero, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if amount.GreaterThan(ceiling) {
		return decimal.Zero, domain.ValidationError{Field: "amount", Msg: "exceeds amount due " + ceiling.StringFixed(2)}
	}
	return amount, nil
}

// CreatePaymentLink prices the trip, opens a gateway order and records the
// booking with its first ledger entry. The order is created first so a
// gateway failure leaves nothing behind in the store.
func (s BookingService) CreatePaymentLink(ctx context.Context, in CreateBookingInput) (PaymentLink, error) {
	in, err := in.normalize()
	if err != nil {
		return PaymentLink{}, err
	}
	trip, err := s.TripRepo.GetByID(ctx, in.TripID)
	if err != nil {
		return PaymentLink{}, err
	}
	if !trip.Active {
		return PaymentLink{}, domain.ValidationError{Field: "trip_id", Msg: "trip is not open for booking"}
	}
	total := utils.RoundMoney(trip.Price(in.Adults, in.Children))
	if !total.IsPositive() {
		return PaymentLink{}, domain.ValidationError{Field: "trip_id", Msg: "trip has no price"}
	}
	amount, err := chargeAmount(in.Amount, total)
	if err != nil {
		return PaymentLink{}, err
	}

	token, err := utils.GenerateToken()
	if err != nil {
		return PaymentLink{}, domain.InternalError{Msg: "failed to generate token", Err: err}
	}
	now := s.now()
	completionURL := utils.CompletionURL(s.SiteURL, token)

	order, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:      amount,
		Currency:    trip.Currency,
		Description: fmt.Sprintf("%s, %d adult(s), %d child(ren)", trip.Title, in.Adults, in.Children),
		RedirectURL: pointer.To(completionURL),
	})
	if err != nil {
		utils.LogError(s.RequestID, "booking", "create_order", err)
		return PaymentLink{}, err
	}

	booking := models.Booking{
		TripID:          trip.ID,
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		Adults:          in.Adults,
		Children:        in.Children,
		TotalPrice:      total,
		Currency:        trip.Currency,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		CompletionToken: token,
		TokenExpiresAt:  utils.TokenExpiration(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	link := PaymentLink{
		OrderID:        order.ID,
		CheckoutURL:    order.CheckoutURL,
		CompletionURL:  completionURL,
		Amount:         amount,
		TotalPrice:     total,
		Currency:       trip.Currency,
		TokenExpiresAt: booking.TokenExpiresAt,
	}

	err = s.tx().Do(ctx, func(ctx context.Context) error {
		id, err := s.BookingRepo.Create(ctx, booking)
		if err != nil {
			return err
		}
		link.BookingID = id
		link.PaymentID, err = s.PaymentRepo.Create(ctx, gatewayPayment(id, amount, trip.Currency, order.ID, now))
		return err
	})
	if err != nil {
		utils.LogError(s.RequestID, "booking", "create_payment_link", err)
		return PaymentLink{}, domain.InternalError{Msg: "failed to save booking", Err: err}
	}

	utils.LogEvent(s.RequestID, "booking", "create_payment_link",
		fmt.Sprintf("booking_id=%d order_id=%s amount=%s total=%s", link.BookingID, order.ID, amount.StringFixed(2), total.StringFixed(2)))
	return link, nil
}

func gatewayPayment(bookingID int64, amount decimal.Decimal, currency, orderID string, now time.Time) models.Payment {
	return models.Payment{
		BookingID:       bookingID,
		Amount:          amount,
		Currency:        currency,
		Method:          models.MethodRevolut,
		ExternalOrderID: pointer.To(orderID),
		ExternalStatus:  pointer.To(models.ExternalPending),
		Reference:       orderID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ResolveTokenExpiry applies the sliding renewal rule: an expired token is
// renewed while passenger details are still outstanding, and reported as
// expired once they are complete.
func ResolveTokenExpiry(b models.Booking, now time.Time) (expiresAt time.Time, expired, renewed bool) {
	if !utils.TokenExpired(b.TokenExpiresAt, now) {
		return b.TokenExpiresAt, false, false
	}
	if b.DetailsCompleted {
		return b.TokenExpiresAt, true, false
	}
	return utils.TokenExpiration(now), false, true
}

// AccessByToken loads the booking behind a completion token, renewing the
// token when the sliding rule allows it.
func (s BookingService) AccessByToken(ctx context.Context, token string) (BookingView, error) {
	b, expired, renewed, err := s.resolveToken(ctx, token)
	if err != nil {
		return BookingView{}, err
	}
	view, err := s.view(ctx, b)
	if err != nil {
		return BookingView{}, err
	}
	view.TokenExpired = expired
	view.TokenRenewed = renewed
	return view, nil
}

func (s BookingService) resolveToken(ctx context.Context, token string) (models.Booking, bool, bool, error) {
	b, err := s.BookingRepo.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return models.Booking{}, false, false, err
	}
	now := s.now()
	expiresAt, expired, renewed := ResolveTokenExpiry(b, now)
	if renewed {
		if err := s.BookingRepo.ExtendTokenExpiry(ctx, b.ID, expiresAt, now); err != nil {
			return models.Booking{}, false, false, domain.InternalError{Msg: "failed to renew token", Err: err}
		}
		b.TokenExpiresAt = expiresAt
		b.UpdatedAt = now
		utils.LogEvent(s.RequestID, "booking", "renew_token", fmt.Sprintf("booking_id=%d", b.ID))
	}
	return b, expired, renewed, nil
}

func (s BookingService) view(ctx context.Context, b models.Booking) (BookingView, error) {
	payments, err := s.PaymentRepo.ListByBookingID(ctx, b.ID)
	if err != nil {
		return BookingView{}, domain.InternalError{Msg: "failed to load payments", Err: err}
	}
	passengers, err := s.PassengerRepo.ListByBookingID(ctx, b.ID)
	if err != nil {
		return BookingView{}, domain.InternalError{Msg: "failed to load passengers", Err: err}
	}
	_, paid := ComputePaymentStatus(b.TotalPrice, payments)
	return BookingView{
		Booking:    b,
		Payments:   payments,
		Passengers: passengers,
		TotalPaid:  paid,
		Balance:    decimal.Max(b.TotalPrice.Sub(paid), decimal.Zero),
	}, nil
}

// CompleteDetails stores the passenger list once. Submitting again after
// completion returns the stored state unchanged.
func (s BookingService) CompleteDetails(ctx context.Context, token string, passengers []models.Passenger) (BookingView, error) {
	b, expired, renewed, err := s.resolveToken(ctx, token)
	if err != nil {
		return BookingView{}, err
	}
	if b.DetailsCompleted {
		view, err := s.view(ctx, b)
		view.TokenExpired = expired
		return view, err
	}
	if b.Status == models.BookingCancelled {
		return BookingView{}, domain.ConflictError{Resource: "booking", Msg: "booking is cancelled"}
	}

	clean, err := normalizePassengers(passengers, b.PassengerCount())
	if err != nil {
		return BookingView{}, err
	}

	now := s.now()
	err = s.tx().Do(ctx, func(ctx context.Context) error {
		if err := s.PassengerRepo.ReplaceForBooking(ctx, b.ID, clean); err != nil {
			return err
		}
		return s.BookingRepo.MarkDetailsCompleted(ctx, b.ID, now)
	})
	if err != nil {
		utils.LogError(s.RequestID, "booking", "complete_details", err)
		return BookingView{}, domain.InternalError{Msg: "failed to save passenger details", Err: err}
	}
	b.DetailsCompleted = true
	b.UpdatedAt = now
	utils.LogEvent(s.RequestID, "booking", "complete_details", fmt.Sprintf("booking_id=%d passengers=%d", b.ID, len(clean)))

	if err := s.notifier().DetailsReceived(ctx, b); err != nil {
		utils.LogError(s.RequestID, "booking", "send_details_email", err)
	}

	view, err := s.view(ctx, b)
	view.TokenRenewed = renewed
	return view, err
}

func normalizePassengers(in []models.Passenger, want int) ([]models.Passenger, error) {
	if len(in) != want {
		return nil, domain.ValidationError{Field: "passengers", Msg: fmt.Sprintf("expected %d passengers, got %d", want, len(in))}
	}
	out := make([]models.Passenger, 0, len(in))
	for i, p := range in {
		p.FullName = utils.NormalizeSpace(p.FullName)
		p.PassportNumber = strings.ToUpper(utils.TrimOrEmpty(p.PassportNumber))
		p.Nationality = strings.ToUpper(utils.TrimOrEmpty(p.Nationality))
		if p.FullName == "" {
			return nil, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].full_name", i), Msg: "required"}
		}
		dob, err := utils.ParseDate(p.DateOfBirth)
		if err != nil {
			return nil, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].date_of_birth", i), Msg: "expected YYYY-MM-DD", Err: err}
		}
		p.DateOfBirth = utils.FormatDate(dob)
		out = append(out, p)
	}
	return out, nil
}

// CreateBalancePaymentLink opens a new gateway order for what is still owed,
// or for a smaller amount when one is given.
func (s BookingService) CreateBalancePaymentLink(ctx context.Context, token string, requested *decimal.Decimal) (PaymentLink, error) {
	b, expired, _, err := s.resolveToken(ctx, token)
	if err != nil {
		return PaymentLink{}, err
	}
	if expired {
		return PaymentLink{}, domain.ConflictError{Resource: "booking", Msg: "completion link expired"}
	}
	if b.Status == models.BookingCancelled {
		return PaymentLink{}, domain.ConflictError{Resource: "booking", Msg: "booking is cancelled"}
	}

	ledger, err := s.PaymentRepo.ListByBookingID(ctx, b.ID)
	if err != nil {
		return PaymentLink{}, domain.InternalError{Msg: "failed to load payments", Err: err}
	}
	_, paid := ComputePaymentStatus(b.TotalPrice, ledger)
	balance := b.TotalPrice.Sub(paid)
	if !balance.IsPositive() {
		return PaymentLink{}, domain.ConflictError{Resource: "booking", Msg: "booking is already paid"}
	}
	amount, err := chargeAmount(requested, balance)
	if err != nil {
		return PaymentLink{}, err
	}

	completionURL := utils.CompletionURL(s.SiteURL, b.CompletionToken)
	order, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:      amount,
		Currency:    b.Currency,
		Description: fmt.Sprintf("Booking #%d balance", b.ID),
		RedirectURL: pointer.To(completionURL),
		MerchantRef: fmt.Sprintf("booking-%d", b.ID),
	})
	if err != nil {
		utils.LogError(s.RequestID, "booking", "create_order", err)
		return PaymentLink{}, err
	}

	now := s.now()
	paymentID, err := s.PaymentRepo.Create(ctx, gatewayPayment(b.ID, amount, b.Currency, order.ID, now))
	if err != nil {
		return PaymentLink{}, domain.InternalError{Msg: "failed to save payment", Err: err}
	}
	utils.LogEvent(s.RequestID, "booking", "create_balance_link",
		fmt.Sprintf("booking_id=%d order_id=%s amount=%s", b.ID, order.ID, amount.StringFixed(2)))

	return PaymentLink{
		BookingID:      b.ID,
		PaymentID:      paymentID,
		OrderID:        order.ID,
		CheckoutURL:    order.CheckoutURL,
		CompletionURL:  completionURL,
		Amount:         amount,
		TotalPrice:     b.TotalPrice,
		Currency:       b.Currency,
		TokenExpiresAt: b.TokenExpiresAt,
	}, nil
}

// Get is the back-office view of one booking.
func (s BookingService) Get(ctx context.Context, id int64) (BookingView, error) {
	b, err := s.BookingRepo.GetByID(ctx, id)
	if err != nil {
		return BookingView{}, err
	}
	view, err := s.view(ctx, b)
	if err != nil {
		return BookingView{}, err
	}
	view.CompletionURL = utils.CompletionURL(s.SiteURL, b.CompletionToken)
	_, view.TokenExpired, _ = ResolveTokenExpiry(b, s.now())
	return view, nil
}

func (s BookingService) List(ctx context.Context, page domain.Pagination, status string) ([]models.Booking, domain.Pagination, error) {
	page = page.Normalize()
	st := models.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, page, domain.ValidationError{Field: "status", Msg: "unknown status"}
	}
	items, total, err := s.BookingRepo.List(ctx, page, st)
	if err != nil {
		return nil, page, domain.InternalError{Msg: "failed to list bookings", Err: err}
	}
	page.Total = total
	return items, page, nil
}

// UpdateStatus changes the reservation status. payment_status is not touched.
func (s BookingService) UpdateStatus(ctx context.Context, id int64, status string) (models.Booking, error) {
	st := models.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return models.Booking{}, domain.ValidationError{Field: "status", Msg: "must be pending, confirmed or cancelled"}
	}
	if err := s.BookingRepo.UpdateStatus(ctx, id, st, s.now()); err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(s.RequestID, "booking", "update_status", fmt.Sprintf("booking_id=%d status=%s", id, st))
	return s.BookingRepo.GetByID(ctx, id)
}
