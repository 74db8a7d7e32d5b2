package repositories

import (
	"context"
	"database/sql"
	"errors"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
)

type TripRepository struct {
	DB *sql.DB
}

func (r TripRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r TripRepository) GetByID(ctx context.Context, id int64) (models.Trip, error) {
	if id <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "trip_id", Msg: "invalid id"}
	}
	var t models.Trip
	err := intdb.ConnFrom(ctx, r.db()).QueryRowContext(ctx, `
		SELECT id, title, COALESCE(destination,''), price_adult, price_child, currency, active
		FROM trips WHERE id=? LIMIT 1`, id).Scan(
		&t.ID,
		&t.Title,
		&t.Destination,
		&t.PriceAdult,
		&t.PriceChild,
		&t.Currency,
		&t.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trip{}, domain.NotFoundError{Resource: "trip", Err: err}
		}
		return models.Trip{}, err
	}
	return t, nil
}
