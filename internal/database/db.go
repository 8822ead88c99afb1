package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the scheduling tables if they do not exist.
// Idempotent; safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS class_templates (
			id                  BIGINT UNSIGNED   NOT NULL AUTO_INCREMENT,
			name                VARCHAR(255)      NOT NULL,
			capacity            INT UNSIGNED      NOT NULL,
			waitlist_enabled    TINYINT(1)        NOT NULL DEFAULT 1,
			waitlist_capacity   INT UNSIGNED      NOT NULL DEFAULT 0,
			recurrence_kind     VARCHAR(16)       NOT NULL,
			day_of_week         TINYINT UNSIGNED  NULL,
			date                DATE              NULL,
			start_minute        SMALLINT UNSIGNED NOT NULL,
			end_minute          SMALLINT UNSIGNED NOT NULL,
			booking_window_days INT UNSIGNED      NOT NULL DEFAULT 7,
			cancel_window_hours INT UNSIGNED      NOT NULL DEFAULT 0,
			created_at          DATETIME          NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME          NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			template_id         BIGINT UNSIGNED NOT NULL,
			starts_at           DATETIME        NOT NULL,
			member_id           BIGINT UNSIGNED NOT NULL,
			status              VARCHAR(16)     NOT NULL,
			waitlist_position   INT UNSIGNED    NULL,
			created_at          DATETIME        NOT NULL,
			cancelled_at        DATETIME        NULL,
			cancellation_reason VARCHAR(255)    NULL,
			PRIMARY KEY (id),
			KEY idx_bookings_occurrence (template_id, starts_at),
			KEY idx_bookings_member (member_id, starts_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
