package repositories

import (
	"context"
	"database/sql"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/domain/models"
)

type PassengerRepository struct {
	DB *sql.DB
}

func (r PassengerRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// ReplaceForBooking swaps the booking's passenger list. Callers run it inside
// a transaction.
func (r PassengerRepository) ReplaceForBooking(ctx context.Context, bookingID int64, passengers []models.Passenger) error {
	conn := intdb.ConnFrom(ctx, r.db())
	if _, err := conn.ExecContext(ctx, `DELETE FROM booking_passengers WHERE booking_id=?`, bookingID); err != nil {
		return err
	}
	for _, p := range passengers {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO booking_passengers (booking_id, full_name, date_of_birth, passport_number, nationality)
			VALUES (?,?,?,?,?)`,
			bookingID, p.FullName, p.DateOfBirth, p.PassportNumber, p.Nationality,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r PassengerRepository) ListByBookingID(ctx context.Context, bookingID int64) ([]models.Passenger, error) {
	rows, err := intdb.ConnFrom(ctx, r.db()).QueryContext(ctx, `
		SELECT id, booking_id, full_name, date_of_birth, passport_number, nationality
		FROM booking_passengers WHERE booking_id=? ORDER BY id ASC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Passenger{}
	for rows.Next() {
		var p models.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FullName, &p.DateOfBirth, &p.PassportNumber, &p.Nationality); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
