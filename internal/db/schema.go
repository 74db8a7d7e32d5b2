package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists every table the service owns, in creation order.
var Tables = []string{"trips", "bookings", "booking_payments", "booking_passengers", "admin_users"}

var schema = map[string]string{
	"trips": `
CREATE TABLE IF NOT EXISTS trips (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	destination VARCHAR(255) NOT NULL DEFAULT '',
	price_adult DECIMAL(12,2) NOT NULL,
	price_child DECIMAL(12,2) NOT NULL DEFAULT 0,
	currency CHAR(3) NOT NULL DEFAULT 'EUR',
	active TINYINT(1) NOT NULL DEFAULT 1
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	"bookings": `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	trip_id BIGINT NOT NULL,
	customer_name VARCHAR(255) NOT NULL,
	customer_email VARCHAR(255) NOT NULL,
	customer_phone VARCHAR(64) NOT NULL DEFAULT '',
	adults INT NOT NULL DEFAULT 1,
	children INT NOT NULL DEFAULT 0,
	total_price DECIMAL(12,2) NOT NULL,
	currency CHAR(3) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
	completion_token VARCHAR(64) NOT NULL,
	token_expires_at DATETIME NOT NULL,
	details_completed TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE KEY uq_bookings_completion_token (completion_token),
	KEY idx_bookings_trip (trip_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	"booking_payments": `
CREATE TABLE IF NOT EXISTS booking_payments (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	amount DECIMAL(12,2) NOT NULL,
	currency CHAR(3) NOT NULL,
	payment_method VARCHAR(32) NOT NULL,
	external_order_id VARCHAR(128) NULL,
	external_status VARCHAR(16) NULL,
	reference VARCHAR(255) NOT NULL DEFAULT '',
	notes TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE KEY uq_booking_payments_order (external_order_id),
	KEY idx_booking_payments_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	"booking_passengers": `
CREATE TABLE IF NOT EXISTS booking_passengers (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	full_name VARCHAR(255) NOT NULL,
	date_of_birth VARCHAR(10) NOT NULL DEFAULT '',
	passport_number VARCHAR(64) NOT NULL DEFAULT '',
	nationality VARCHAR(64) NOT NULL DEFAULT '',
	KEY idx_booking_passengers_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	"admin_users": `
CREATE TABLE IF NOT EXISTS admin_users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	name VARCHAR(255) NOT NULL DEFAULT '',
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL DEFAULT 'admin',
	active TINYINT(1) NOT NULL DEFAULT 1,
	UNIQUE KEY uq_admin_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range Tables {
		if _, err := db.ExecContext(ctx, schema[table]); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table, err)
		}
	}
	return nil
}
