package services

import (
	"context"
	"database/sql"
	"testing"

	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hookSecret = "wsk_test_secret"
	hookTS     = "1700000000000"
)

func signedInput(body string) WebhookInput {
	return WebhookInput{
		Body:      []byte(body),
		Signature: gateway.Sign([]byte(body), hookTS, hookSecret),
		Timestamp: hookTS,
	}
}

func newWebhookService(db *sql.DB, n *fakeNotifier) WebhookService {
	bookings, payments := repos(db)
	return WebhookService{
		PaymentRepo: payments,
		BookingRepo: bookings,
		Notifier:    n,
		Secret:      hookSecret,
		SiteURL:     "https://trips.example.com",
		Now:         clock,
	}
}

func TestWebhookUnknownOrderIsNotFoundWithoutMutation(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WithArgs("ord_missing").
		WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_COMPLETED","order_id":"ord_missing"}`))
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookSecondPaymentCompletesBooking(t *testing.T) {
	db, mock := newMock(t)
	notifier := &fakeNotifier{}
	svc := newWebhookService(db, notifier)
	svc.Tx = intdb.NewTxManager(db)

	first := gatewayEntry(1, 10, "300", "ord_1", models.ExternalCompleted)
	second := gatewayEntry(2, 10, "700", "ord_2", models.ExternalPending)
	booking := testBooking(10, "1000")
	booking.PaymentStatus = models.PaymentPartial

	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WithArgs("ord_2").
		WillReturnRows(paymentRows(second))
	mock.ExpectBegin()
	expectLock(mock, 10)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(2)).
		WillReturnRows(paymentRows(second))
	mock.ExpectExec("UPDATE booking_payments SET external_status=\\?, updated_at=\\?").
		WithArgs("completed", fixedNow, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(10)).
		WillReturnRows(bookingRows(booking))
	completed := second
	completed.ExternalStatus = first.ExternalStatus
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(10)).
		WillReturnRows(paymentRows(first, completed))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("paid", fixedNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_COMPLETED","order_id":"ord_2"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ExternalCompleted, res.Status)
	assert.Equal(t, int64(10), res.BookingID)

	require.Len(t, notifier.paymentReceived, 1)
	assert.Equal(t, models.PaymentPaid, notifier.paymentReceived[0].booking.PaymentStatus)
	assert.Equal(t, "https://trips.example.com/booking/complete/tok-abc", notifier.paymentReceived[0].url)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookFailedPaymentZeroesAmount(t *testing.T) {
	db, mock := newMock(t)
	notifier := &fakeNotifier{}
	svc := newWebhookService(db, notifier)

	entry := gatewayEntry(4, 11, "500", "ord_4", models.ExternalPending)
	failed := gatewayEntry(4, 11, "0", "ord_4", models.ExternalFailed)

	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WithArgs("ord_4").
		WillReturnRows(paymentRows(entry))
	expectLock(mock, 11)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(4)).
		WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE booking_payments SET external_status=\\?, amount=0").
		WithArgs("failed", fixedNow, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(11)).
		WillReturnRows(bookingRows(testBooking(11, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(11)).
		WillReturnRows(paymentRows(failed))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("pending", fixedNow, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_PAYMENT_FAILED","order_id":"ord_4"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ExternalFailed, res.Status)
	assert.Equal(t, int64(11), res.BookingID)
	assert.Empty(t, notifier.paymentReceived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyExternalStatusZeroesVoidedAmount(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	entry := gatewayEntry(4, 11, "500", "ord_4", models.ExternalPending)
	failed := gatewayEntry(4, 11, "0", "ord_4", models.ExternalFailed)

	expectLock(mock, 11)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(4)).
		WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE booking_payments SET external_status=\\?, amount=0").
		WithArgs("cancelled", fixedNow, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(11)).
		WillReturnRows(bookingRows(testBooking(11, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(11)).
		WillReturnRows(paymentRows(failed))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("pending", fixedNow, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := svc.ApplyExternalStatus(context.Background(), entry, models.ExternalCancelled)
	require.NoError(t, err)
	assert.True(t, applied.Payment.Amount.IsZero())
	assert.Equal(t, models.ExternalCancelled, *applied.Payment.ExternalStatus)
	assert.Equal(t, models.PaymentPending, applied.Reconcile.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyExternalStatusLocksBookingBeforeLedgerWrite(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})
	svc.Tx = intdb.NewTxManager(db)

	entry := gatewayEntry(4, 11, "500", "ord_4", models.ExternalPending)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM bookings WHERE id=\? FOR UPDATE`).WithArgs(int64(11)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.ApplyExternalStatus(context.Background(), entry, models.ExternalCompleted)
	require.Error(t, err)
	assert.True(t, domain.IsInternal(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookDeclinedEventMapsToFailed(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	entry := gatewayEntry(4, 11, "500", "ord_4", models.ExternalPending)
	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WillReturnRows(paymentRows(entry))
	expectLock(mock, 11)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WillReturnRows(paymentRows(entry))
	mock.ExpectExec("amount=0").WithArgs("failed", fixedNow, int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WillReturnRows(bookingRows(testBooking(11, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows())
	mock.ExpectExec("UPDATE bookings SET payment_status").WithArgs("pending", fixedNow, int64(11)).WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_PAYMENT_DECLINED","order_id":"ord_4"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ExternalFailed, res.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	in := signedInput(`{"event":"ORDER_COMPLETED","order_id":"ord_1"}`)
	in.Body = []byte(`{"event":"ORDER_COMPLETED","order_id":"ord_2"}`)

	_, err := svc.Handle(context.Background(), in)
	require.True(t, domain.IsAuthentication(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRequiresHeadersWhenSecretConfigured(t *testing.T) {
	db, _ := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	_, err := svc.Handle(context.Background(), WebhookInput{Body: []byte(`{"event":"ORDER_COMPLETED","order_id":"ord_1"}`)})
	require.True(t, domain.IsAuthentication(err))
}

func TestWebhookWithoutSecretNeedsExplicitOptIn(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})
	svc.Secret = ""

	body := []byte(`{"event":"ORDER_AUTHORISED","order_id":"ord_1"}`)
	_, err := svc.Handle(context.Background(), WebhookInput{Body: body})
	require.True(t, domain.IsAuthentication(err))

	svc.AllowUnsigned = true
	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WithArgs("ord_1").
		WillReturnRows(paymentRows(gatewayEntry(1, 1, "10", "ord_1", models.ExternalPending)))
	res, err := svc.Handle(context.Background(), WebhookInput{Body: body})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookPayloadValidation(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	_, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_COMPLETED"}`))
	require.True(t, domain.IsValidation(err))

	_, err = svc.Handle(context.Background(), signedInput(`not json`))
	require.True(t, domain.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookUnknownEventIsAcknowledged(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WithArgs("ord_1").
		WillReturnRows(paymentRows(gatewayEntry(1, 1, "10", "ord_1", models.ExternalPending)))

	res, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_AUTHORISED","order_id":"ord_1"}`))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookKeepsExistingTerminalStatus(t *testing.T) {
	db, mock := newMock(t)
	svc := newWebhookService(db, &fakeNotifier{})

	entry := gatewayEntry(1, 1, "10", "ord_1", models.ExternalCompleted)
	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WillReturnRows(paymentRows(entry))
	expectLock(mock, 1)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WillReturnRows(paymentRows(entry))

	res, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_CANCELLED","order_id":"ord_1"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ExternalCancelled, res.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRedeliveryDoesNotResendEmail(t *testing.T) {
	db, mock := newMock(t)
	notifier := &fakeNotifier{}
	svc := newWebhookService(db, notifier)

	entry := gatewayEntry(1, 1, "1000", "ord_1", models.ExternalCompleted)
	mock.ExpectQuery("FROM booking_payments WHERE external_order_id=").WillReturnRows(paymentRows(entry))
	expectLock(mock, 1)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE booking_payments SET external_status").
		WithArgs("completed", fixedNow, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WillReturnRows(bookingRows(testBooking(1, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("paid", fixedNow, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := svc.Handle(context.Background(), signedInput(`{"event":"ORDER_COMPLETED","order_id":"ord_1"}`))
	require.NoError(t, err)
	assert.Empty(t, notifier.paymentReceived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEmailFailureIsSwallowed(t *testing.T) {
	db, mock := newMock(t)
	notifier := &fakeNotifier{err: assert.AnError}
	svc := newWebhookService(db, notifier)

	entry := gatewayEntry(1, 1, "1000", "ord_1", models.ExternalPending)
	done := gatewayEntry(1, 1, "1000", "ord_1", models.ExternalCompleted)
	expectLock(mock, 1)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE booking_payments SET external_status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WillReturnRows(bookingRows(testBooking(1, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows(done))
	mock.ExpectExec("UPDATE bookings SET payment_status").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.ApplyExternalStatus(context.Background(), entry, models.ExternalCompleted)
	require.NoError(t, err)
	assert.Len(t, notifier.paymentReceived, 1)
	assert.False(t, res.Notified)
	require.NoError(t, mock.ExpectationsWereMet())
}
