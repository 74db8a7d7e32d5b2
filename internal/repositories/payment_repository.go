package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
)

const paymentColumns = `id, booking_id, amount, currency, payment_method, external_order_id,
		external_status, COALESCE(reference,''), COALESCE(notes,''), created_at, updated_at`

// PaymentRepository is the booking payment ledger (booking_payments).
type PaymentRepository struct {
	DB *sql.DB
}

func (r PaymentRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r PaymentRepository) conn(ctx context.Context) intdb.Conn {
	return intdb.ConnFrom(ctx, r.db())
}

func scanPayment(row rowScanner) (models.Payment, error) {
	var (
		p              models.Payment
		method         string
		externalOrder  sql.NullString
		externalStatus sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.Amount,
		&p.Currency,
		&method,
		&externalOrder,
		&externalStatus,
		&p.Reference,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return models.Payment{}, err
	}
	p.Method = models.PaymentMethod(method)
	if externalOrder.Valid {
		id := externalOrder.String
		p.ExternalOrderID = &id
	}
	if externalStatus.Valid {
		st := models.ExternalStatus(externalStatus.String)
		p.ExternalStatus = &st
	}
	return p, nil
}

func (r PaymentRepository) Create(ctx context.Context, p models.Payment) (int64, error) {
	if p.BookingID <= 0 {
		return 0, domain.ValidationError{Field: "booking_id", Msg: "invalid id"}
	}
	res, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO booking_payments (
			booking_id, amount, currency, payment_method, external_order_id,
			external_status, reference, notes, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.BookingID,
		p.Amount,
		p.Currency,
		string(p.Method),
		intdb.NullString(p.ExternalOrderID),
		intdb.NullString(p.ExternalStatus),
		p.Reference,
		intdb.NullIfEmpty(p.Notes),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return res.LastInsertId()
}

func (r PaymentRepository) GetByID(ctx context.Context, id int64) (models.Payment, error) {
	if id <= 0 {
		return models.Payment{}, domain.ValidationError{Field: "payment_id", Msg: "invalid id"}
	}
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM booking_payments WHERE id=? LIMIT 1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, domain.NotFoundError{Resource: "payment", Err: err}
		}
		return models.Payment{}, err
	}
	return p, nil
}

// GetByExternalOrderID finds the ledger entry created for a gateway order.
func (r PaymentRepository) GetByExternalOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM booking_payments WHERE external_order_id=? LIMIT 1`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, domain.NotFoundError{Resource: "payment", Err: err}
		}
		return models.Payment{}, err
	}
	return p, nil
}

func (r PaymentRepository) ListByBookingID(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+paymentColumns+` FROM booking_payments WHERE booking_id=? ORDER BY id ASC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateExternalStatus sets the processor status absolutely. Voided statuses
// also zero the amount so a later flip cannot count it twice.
func (r PaymentRepository) UpdateExternalStatus(ctx context.Context, id int64, status models.ExternalStatus, now time.Time) error {
	query := `UPDATE booking_payments SET external_status=?, updated_at=? WHERE id=?`
	if status.Voided() {
		query = `UPDATE booking_payments SET external_status=?, amount=0, updated_at=? WHERE id=?`
	}
	_, err := r.conn(ctx).ExecContext(ctx, query, string(status), now, id)
	return err
}

func (r PaymentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM booking_payments WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "payment")
}
