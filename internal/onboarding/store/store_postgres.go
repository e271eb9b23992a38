package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"enrolld/internal/onboarding/models"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists onboarding processes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed process store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const processColumns = `id, user_id, identification_data, activation_id, status, error_detail, error_origin,
	timestamp_created, timestamp_updated, timestamp_finished, timestamp_failed`

func (s *PostgresStore) Create(ctx context.Context, process *models.Process) error {
	query := `
		INSERT INTO onboarding_processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		process.ID,
		nullString(process.UserID),
		process.IdentificationData,
		nullString(process.ActivationID),
		process.Status,
		nullString(process.ErrorDetail),
		nullString(string(process.ErrorOrigin)),
		process.TimestampCreated,
		nullTime(process.TimestampUpdated),
		nullTime(process.TimestampFinished),
		nullTime(process.TimestampFailed),
	)
	if err != nil {
		return fmt.Errorf("create onboarding process: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, process *models.Process) error {
	query := `
		UPDATE onboarding_processes
		SET user_id = $2, activation_id = $3, status = $4, error_detail = $5, error_origin = $6,
			timestamp_updated = $7, timestamp_finished = $8, timestamp_failed = $9
		WHERE id = $1
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		process.ID,
		nullString(process.UserID),
		nullString(process.ActivationID),
		process.Status,
		nullString(process.ErrorDetail),
		nullString(string(process.ErrorOrigin)),
		nullTime(process.TimestampUpdated),
		nullTime(process.TimestampFinished),
		nullTime(process.TimestampFailed),
	)
	if err != nil {
		return fmt.Errorf("update onboarding process: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update onboarding process: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM onboarding_processes WHERE id = $1`
	return scanProcess(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string, status models.Status) (*models.Process, error) {
	query := `
		SELECT ` + processColumns + ` FROM onboarding_processes
		WHERE identification_data = $1 AND status = $2
		ORDER BY timestamp_created DESC
		LIMIT 1
	`
	return scanProcess(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, fingerprint, status))
}

func (s *PostgresStore) FindByActivationID(ctx context.Context, activationID string) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM onboarding_processes WHERE activation_id = $1`
	return scanProcess(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, activationID))
}

func (s *PostgresStore) FindByActivationIDAndStatus(ctx context.Context, activationID string, status models.Status) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM onboarding_processes WHERE activation_id = $1 AND status = $2`
	return scanProcess(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, activationID, status))
}

func (s *PostgresStore) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM onboarding_processes WHERE user_id = $1 AND timestamp_created > $2`
	var count int
	if err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count onboarding processes: %w", err)
	}
	return count, nil
}

func scanProcess(row *sql.Row) (*models.Process, error) {
	var p models.Process
	var userID, activationID, errorDetail, errorOrigin sql.NullString
	var updated, finished, failed sql.NullTime
	err := row.Scan(
		&p.ID, &userID, &p.IdentificationData, &activationID, &p.Status, &errorDetail, &errorOrigin,
		&p.TimestampCreated, &updated, &finished, &failed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan onboarding process: %w", err)
	}
	p.UserID = userID.String
	p.ActivationID = activationID.String
	p.ErrorDetail = errorDetail.String
	p.ErrorOrigin = models.ErrorOrigin(errorOrigin.String)
	p.TimestampUpdated = updated.Time
	p.TimestampFinished = finished.Time
	p.TimestampFailed = failed.Time
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
