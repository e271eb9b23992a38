package store

import (
	"context"
	"database/sql"
	"fmt"

	"enrolld/internal/otp/models"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists one-time codes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed OTP store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const otpColumns = `id, process_id, otp_type, code, status, failed_attempts, expires_at,
	timestamp_created, timestamp_updated`

func (s *PostgresStore) Create(ctx context.Context, otp *models.Otp) error {
	query := `
		INSERT INTO onboarding_otps (` + otpColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		otp.ID, otp.ProcessID, otp.Type, otp.Code, otp.Status, otp.FailedAttempts,
		otp.ExpiresAt, otp.TimestampCreated, otp.TimestampUpdated,
	)
	if err != nil {
		return fmt.Errorf("create otp: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, otp *models.Otp) error {
	query := `
		UPDATE onboarding_otps
		SET status = $2, failed_attempts = $3, timestamp_updated = $4
		WHERE id = $1
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		otp.ID, otp.Status, otp.FailedAttempts, otp.TimestampUpdated,
	)
	if err != nil {
		return fmt.Errorf("update otp: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update otp: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindNewest(ctx context.Context, processID string, otpType models.Type) (*models.Otp, error) {
	query := `
		SELECT ` + otpColumns + ` FROM onboarding_otps
		WHERE process_id = $1 AND otp_type = $2
		ORDER BY timestamp_created DESC
		LIMIT 1
	`
	var o models.Otp
	var updated sql.NullTime
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, processID, otpType).Scan(
		&o.ID, &o.ProcessID, &o.Type, &o.Code, &o.Status, &o.FailedAttempts,
		&o.ExpiresAt, &o.TimestampCreated, &updated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find newest otp: %w", err)
	}
	o.TimestampUpdated = updated.Time
	return &o, nil
}

func (s *PostgresStore) CancelActive(ctx context.Context, processID string, otpType models.Type) (int, error) {
	query := `
		UPDATE onboarding_otps
		SET status = $3, timestamp_updated = NOW()
		WHERE process_id = $1 AND otp_type = $2 AND status = $4
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query, processID, otpType, models.StatusCanceled, models.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("cancel active otps: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel active otps: %w", err)
	}
	return int(affected), nil
}
