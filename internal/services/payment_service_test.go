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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentService(db *sql.DB, gw *fakeGateway, n *fakeNotifier) PaymentService {
	bookings, payments := repos(db)
	return PaymentService{
		BookingRepo: bookings,
		PaymentRepo: payments,
		Gateway:     gw,
		Notifier:    n,
		SiteURL:     "https://trips.example.com",
		Now:         clock,
	}
}

func TestRecordManualPaymentReconciles(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})

	expectLock(mock, 3)
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(3)).
		WillReturnRows(bookingRows(testBooking(3, "1000")))
	mock.ExpectExec("INSERT INTO booking_payments").
		WithArgs(int64(3), sqlmock.AnyArg(), "EUR", "cash", nil, nil, "desk", nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(40, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(3)).
		WillReturnRows(bookingRows(testBooking(3, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(3)).
		WillReturnRows(paymentRows(manualEntry(40, 3, "400")))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("partial", fixedNow, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	change, err := svc.RecordManualPayment(context.Background(), 3, ManualPaymentInput{
		Amount:    decimal.NewFromInt(400),
		Method:    "cash",
		Reference: " desk ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), change.Payment.ID)
	assert.Nil(t, change.Payment.ExternalStatus)
	assert.Equal(t, models.PaymentPartial, change.Reconcile.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordManualPaymentValidation(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})

	_, err := svc.RecordManualPayment(context.Background(), 3, ManualPaymentInput{Amount: decimal.NewFromInt(10), Method: "revolut"})
	require.True(t, domain.IsValidation(err))

	_, err = svc.RecordManualPayment(context.Background(), 3, ManualPaymentInput{Amount: decimal.Zero, Method: "cash"})
	require.True(t, domain.IsValidation(err))

	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(99)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = svc.RecordManualPayment(context.Background(), 99, ManualPaymentInput{Amount: decimal.NewFromInt(10), Method: "cash"})
	require.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePaymentReconciles(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})

	booking := testBooking(3, "1000")
	booking.PaymentStatus = models.PaymentPaid

	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(40)).
		WillReturnRows(paymentRows(manualEntry(40, 3, "1000")))
	expectLock(mock, 3)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(40)).
		WillReturnRows(paymentRows(manualEntry(40, 3, "1000")))
	mock.ExpectExec("DELETE FROM booking_payments").WithArgs(int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WillReturnRows(bookingRows(booking))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows())
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("pending", fixedNow, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	change, err := svc.DeletePayment(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, change.Reconcile.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncGatewayOrderAppliesProcessorState(t *testing.T) {
	db, mock := newMock(t)
	gw := &fakeGateway{order: gateway.Order{ID: "ord_5", State: "COMPLETED"}}
	notifier := &fakeNotifier{}
	svc := newPaymentService(db, gw, notifier)

	entry := gatewayEntry(5, 3, "1000", "ord_5", models.ExternalPending)
	done := gatewayEntry(5, 3, "1000", "ord_5", models.ExternalCompleted)

	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(5)).WillReturnRows(paymentRows(entry))
	expectLock(mock, 3)
	mock.ExpectQuery("FROM booking_payments WHERE id=").WithArgs(int64(5)).WillReturnRows(paymentRows(entry))
	mock.ExpectExec("UPDATE booking_payments SET external_status").
		WithArgs("completed", fixedNow, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WillReturnRows(bookingRows(testBooking(3, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows(done))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("paid", fixedNow, int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.SyncGatewayOrder(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ord_5"}, gw.gets)
	assert.Equal(t, models.PaymentPaid, res.Reconcile.PaymentStatus)
	assert.True(t, res.Notified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncGatewayOrderRejectsManualEntry(t *testing.T) {
	db, mock := newMock(t)
	gw := &fakeGateway{}
	svc := newPaymentService(db, gw, &fakeNotifier{})

	mock.ExpectQuery("FROM booking_payments WHERE id=").WillReturnRows(paymentRows(manualEntry(6, 3, "100")))

	_, err := svc.SyncGatewayOrder(context.Background(), 6)
	require.True(t, domain.IsValidation(err))
	assert.Empty(t, gw.gets)
}

func TestReconcileAllContinuesPastFailures(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})

	mock.ExpectQuery("SELECT id FROM bookings WHERE status<>").WithArgs("cancelled").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectLock(mock, 2)
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(2)).WillReturnRows(bookingRows(testBooking(2, "50")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WillReturnRows(paymentRows(manualEntry(1, 2, "50")))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("paid", fixedNow, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	results, err := svc.ReconcileAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking 1")
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].BookingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerWritesLockBookingFirst(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})
	svc.Tx = intdb.NewTxManager(db)

	mock.ExpectBegin()
	expectLock(mock, 3)
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(3)).
		WillReturnRows(bookingRows(testBooking(3, "1000")))
	mock.ExpectExec("INSERT INTO booking_payments").WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(3)).
		WillReturnRows(bookingRows(testBooking(3, "1000")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(3)).
		WillReturnRows(paymentRows(manualEntry(40, 3, "600"), manualEntry(41, 3, "400")))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("paid", fixedNow, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	change, err := svc.RecordManualPayment(context.Background(), 3, ManualPaymentInput{
		Amount: decimal.NewFromInt(400),
		Method: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, change.Reconcile.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileBookingLocksBeforeReading(t *testing.T) {
	db, mock := newMock(t)
	svc := newPaymentService(db, &fakeGateway{}, &fakeNotifier{})
	svc.Tx = intdb.NewTxManager(db)

	mock.ExpectBegin()
	expectLock(mock, 2)
	mock.ExpectQuery("FROM bookings WHERE id=").WithArgs(int64(2)).
		WillReturnRows(bookingRows(testBooking(2, "50")))
	mock.ExpectQuery("FROM booking_payments WHERE booking_id=").WithArgs(int64(2)).
		WillReturnRows(paymentRows(manualEntry(1, 2, "20")))
	mock.ExpectExec("UPDATE bookings SET payment_status").
		WithArgs("partial", fixedNow, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ReconcileBooking(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, res.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
