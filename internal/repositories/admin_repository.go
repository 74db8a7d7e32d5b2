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

type AdminRepository struct {
	DB *sql.DB
}

func (r AdminRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r AdminRepository) GetByEmail(ctx context.Context, email string) (models.AdminUser, error) {
	var u models.AdminUser
	err := intdb.ConnFrom(ctx, r.db()).QueryRowContext(ctx, `
		SELECT id, email, COALESCE(name,''), password_hash, role, active
		FROM admin_users WHERE email=? LIMIT 1`, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AdminUser{}, domain.NotFoundError{Resource: "admin user", Err: err}
		}
		return models.AdminUser{}, err
	}
	return u, nil
}

func (r AdminRepository) Create(ctx context.Context, u models.AdminUser) (int64, error) {
	res, err := intdb.ConnFrom(ctx, r.db()).ExecContext(ctx, `
		INSERT INTO admin_users (email, name, password_hash, role, active) VALUES (?,?,?,?,?)`,
		u.Email, u.Name, u.PasswordHash, u.Role, u.Active,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
