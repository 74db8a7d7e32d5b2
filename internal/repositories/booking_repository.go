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

const bookingColumns = `id, trip_id, customer_name, customer_email, COALESCE(customer_phone,''),
		adults, children, total_price, currency, status, payment_status,
		completion_token, token_expires_at, details_completed, created_at, updated_at`

type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r BookingRepository) conn(ctx context.Context) intdb.Conn {
	return intdb.ConnFrom(ctx, r.db())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b             models.Booking
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&b.ID,
		&b.TripID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Adults,
		&b.Children,
		&b.TotalPrice,
		&b.Currency,
		&status,
		&paymentStatus,
		&b.CompletionToken,
		&b.TokenExpiresAt,
		&b.DetailsCompleted,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}
	b.Status = models.BookingStatus(status)
	b.PaymentStatus = models.PaymentStatus(paymentStatus)
	return b, nil
}

func (r BookingRepository) GetByID(ctx context.Context, id int64) (models.Booking, error) {
	if id <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "booking_id", Msg: "invalid id"}
	}
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=? LIMIT 1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
		}
		return models.Booking{}, err
	}
	return b, nil
}

// GetByToken resolves a completion token to its booking.
func (r BookingRepository) GetByToken(ctx context.Context, token string) (models.Booking, error) {
	if token == "" {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE completion_token=? LIMIT 1`, token)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
		}
		return models.Booking{}, err
	}
	return b, nil
}

// LockByID takes the booking row lock for the rest of the transaction in ctx.
// Ledger writers call it first so reconciliations of one booking run one at a
// time and each sees the ledger rows committed before it.
func (r BookingRepository) LockByID(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ValidationError{Field: "booking_id", Msg: "invalid id"}
	}
	var locked int64
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT id FROM bookings WHERE id=? FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundError{Resource: "booking", Err: err}
		}
		return fmt.Errorf("lock booking: %w", err)
	}
	return nil
}

func (r BookingRepository) Create(ctx context.Context, b models.Booking) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO bookings (
			trip_id, customer_name, customer_email, customer_phone, adults, children,
			total_price, currency, status, payment_status, completion_token,
			token_expires_at, details_completed, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.TripID,
		b.CustomerName,
		b.CustomerEmail,
		b.CustomerPhone,
		b.Adults,
		b.Children,
		b.TotalPrice,
		b.Currency,
		string(b.Status),
		string(b.PaymentStatus),
		b.CompletionToken,
		b.TokenExpiresAt,
		b.DetailsCompleted,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePaymentStatus writes the reconciled aggregate and touches updated_at.
func (r BookingRepository) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, now time.Time) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET payment_status=?, updated_at=? WHERE id=?`,
		string(status), now, id,
	)
	return err
}

func (r BookingRepository) UpdateStatus(ctx context.Context, id int64, status models.BookingStatus, now time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET status=?, updated_at=? WHERE id=?`,
		string(status), now, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Zero rows also means "matched but unchanged" unless the DSN sets
	// clientFoundRows.
	var found int64
	err = r.conn(ctx).QueryRowContext(ctx, `SELECT id FROM bookings WHERE id=? LIMIT 1`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "booking", Err: err}
	}
	return err
}

func (r BookingRepository) ExtendTokenExpiry(ctx context.Context, id int64, expiresAt, now time.Time) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET token_expires_at=?, updated_at=? WHERE id=?`,
		expiresAt, now, id,
	)
	return err
}

func (r BookingRepository) MarkDetailsCompleted(ctx context.Context, id int64, now time.Time) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET details_completed=1, updated_at=? WHERE id=?`,
		now, id,
	)
	return err
}

// List returns one page of bookings, newest first, optionally filtered by status.
func (r BookingRepository) List(ctx context.Context, page domain.Pagination, status models.BookingStatus) ([]models.Booking, int, error) {
	page = page.Normalize()

	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status=?"
		args = append(args, string(status))
	}

	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// ListReconcilableIDs returns ids of every booking that is not cancelled.
func (r BookingRepository) ListReconcilableIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT id FROM bookings WHERE status<>? ORDER BY id ASC`, string(models.BookingCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFoundError{Resource: resource}
	}
	return nil
}
