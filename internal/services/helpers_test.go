package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
	"travelapp/internal/repositories"

	"github.com/AlekSi/pointer"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

var bookingCols = []string{
	"id", "trip_id", "customer_name", "customer_email", "customer_phone",
	"adults", "children", "total_price", "currency", "status", "payment_status",
	"completion_token", "token_expires_at", "details_completed", "created_at", "updated_at",
}

var paymentCols = []string{
	"id", "booking_id", "amount", "currency", "payment_method", "external_order_id",
	"external_status", "reference", "notes", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func repos(db *sql.DB) (repositories.BookingRepository, repositories.PaymentRepository) {
	return repositories.BookingRepository{DB: db}, repositories.PaymentRepository{DB: db}
}

func testBooking(id int64, total string) models.Booking {
	return models.Booking{
		ID:              id,
		TripID:          3,
		CustomerName:    "Ana Lopez",
		CustomerEmail:   "ana@example.com",
		Adults:          2,
		Children:        0,
		TotalPrice:      decimal.RequireFromString(total),
		Currency:        "EUR",
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		CompletionToken: "tok-abc",
		TokenExpiresAt:  fixedNow.Add(24 * time.Hour),
		CreatedAt:       fixedNow.Add(-time.Hour),
		UpdatedAt:       fixedNow.Add(-time.Hour),
	}
}

func bookingRows(bs ...models.Booking) *sqlmock.Rows {
	rows := sqlmock.NewRows(bookingCols)
	for _, b := range bs {
		rows.AddRow(
			b.ID, b.TripID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.Adults, b.Children, b.TotalPrice.String(), b.Currency, string(b.Status), string(b.PaymentStatus),
			b.CompletionToken, b.TokenExpiresAt, b.DetailsCompleted, b.CreatedAt, b.UpdatedAt,
		)
	}
	return rows
}

func gatewayEntry(id, bookingID int64, amount string, orderID string, status models.ExternalStatus) models.Payment {
	return models.Payment{
		ID:              id,
		BookingID:       bookingID,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "EUR",
		Method:          models.MethodRevolut,
		ExternalOrderID: pointer.To(orderID),
		ExternalStatus:  pointer.To(status),
		Reference:       orderID,
		CreatedAt:       fixedNow.Add(-time.Hour),
		UpdatedAt:       fixedNow.Add(-time.Hour),
	}
}

func manualEntry(id, bookingID int64, amount string) models.Payment {
	return models.Payment{
		ID:        id,
		BookingID: bookingID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "EUR",
		Method:    models.MethodCash,
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
}

// expectLock expects the booking row lock ledger writers take first.
func expectLock(mock sqlmock.Sqlmock, bookingID int64) {
	mock.ExpectQuery(`SELECT id FROM bookings WHERE id=\? FOR UPDATE`).WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bookingID))
}

func paymentRows(ps ...models.Payment) *sqlmock.Rows {
	rows := sqlmock.NewRows(paymentCols)
	for _, p := range ps {
		var orderID, status any
		if p.ExternalOrderID != nil {
			orderID = *p.ExternalOrderID
		}
		if p.ExternalStatus != nil {
			status = string(*p.ExternalStatus)
		}
		rows.AddRow(
			p.ID, p.BookingID, p.Amount.String(), p.Currency, string(p.Method), orderID,
			status, p.Reference, p.Notes, p.CreatedAt, p.UpdatedAt,
		)
	}
	return rows
}

type fakeGateway struct {
	order    gateway.Order
	err      error
	requests []gateway.CreateOrderRequest
	gets     []string
}

func (f *fakeGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (gateway.Order, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return gateway.Order{}, f.err
	}
	return f.order, nil
}

func (f *fakeGateway) GetOrder(_ context.Context, orderID string) (gateway.Order, error) {
	f.gets = append(f.gets, orderID)
	if f.err != nil {
		return gateway.Order{}, f.err
	}
	return f.order, nil
}

type sentMail struct {
	booking models.Booking
	url     string
}

type fakeNotifier struct {
	paymentReceived []sentMail
	detailsReceived []models.Booking
	err             error
}

func (f *fakeNotifier) PaymentReceived(_ context.Context, b models.Booking, url string) error {
	f.paymentReceived = append(f.paymentReceived, sentMail{booking: b, url: url})
	return f.err
}

func (f *fakeNotifier) DetailsReceived(_ context.Context, b models.Booking) error {
	f.detailsReceived = append(f.detailsReceived, b)
	return f.err
}

func adminUserFixture() models.AdminUser {
	return models.AdminUser{ID: 7, Email: "ops@example.com", Name: "Ops", Role: "admin", Active: true}
}
