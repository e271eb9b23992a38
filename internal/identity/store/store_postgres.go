package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"enrolld/internal/identity/models"
	onboarding "enrolld/internal/onboarding/models"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists the identity verification aggregate in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const verificationColumns = `id, activation_id, user_id, process_id, phase, status,
	reject_reason, reject_origin, error_detail, error_origin, session_info,
	timestamp_created, timestamp_updated, timestamp_finished, timestamp_failed`

func (s *PostgresStore) CreateVerification(ctx context.Context, iv *models.IdentityVerification) error {
	query := `
		INSERT INTO identity_verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		iv.ID, iv.ActivationID, nullString(iv.UserID), iv.ProcessID, iv.Phase, iv.Status,
		nullString(iv.RejectReason), nullString(string(iv.RejectOrigin)),
		nullString(iv.ErrorDetail), nullString(string(iv.ErrorOrigin)), nullString(iv.SessionInfo),
		iv.TimestampCreated, nullTime(iv.TimestampUpdated), nullTime(iv.TimestampFinished), nullTime(iv.TimestampFailed),
	)
	if err != nil {
		return fmt.Errorf("create identity verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateVerification(ctx context.Context, iv *models.IdentityVerification) error {
	query := `
		UPDATE identity_verifications
		SET phase = $2, status = $3, reject_reason = $4, reject_origin = $5,
			error_detail = $6, error_origin = $7, session_info = $8,
			timestamp_updated = $9, timestamp_finished = $10, timestamp_failed = $11
		WHERE id = $1
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		iv.ID, iv.Phase, iv.Status, nullString(iv.RejectReason), nullString(string(iv.RejectOrigin)),
		nullString(iv.ErrorDetail), nullString(string(iv.ErrorOrigin)), nullString(iv.SessionInfo),
		nullTime(iv.TimestampUpdated), nullTime(iv.TimestampFinished), nullTime(iv.TimestampFailed),
	)
	if err != nil {
		return fmt.Errorf("update identity verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity verification: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindLatestVerificationByActivation(ctx context.Context, activationID string) (*models.IdentityVerification, error) {
	query := `
		SELECT ` + verificationColumns + ` FROM identity_verifications
		WHERE activation_id = $1
		ORDER BY timestamp_created DESC
		LIMIT 1
	`
	return scanVerification(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, activationID))
}

func (s *PostgresStore) ListVerificationsWithDocumentsInProgress(ctx context.Context) ([]models.IdentityVerification, error) {
	query := `
		SELECT ` + verificationColumns + ` FROM identity_verifications
		WHERE phase = $1 AND status = $2
		ORDER BY timestamp_created
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, models.PhaseDocumentVerification, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list in-progress verifications: %w", err)
	}
	defer rows.Close()

	var out []models.IdentityVerification
	for rows.Next() {
		iv, err := scanVerificationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FailRunningVerifications(ctx context.Context, activationID string, now time.Time) error {
	query := `
		UPDATE identity_verifications
		SET status = $2, timestamp_updated = $3, timestamp_failed = $3
		WHERE activation_id = $1 AND status IN ($4, $5)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		activationID, models.StatusFailed, now,
		models.StatusInProgress, models.StatusVerificationPending,
	)
	if err != nil {
		return fmt.Errorf("fail running verifications: %w", err)
	}
	return nil
}

const documentColumns = `id, activation_id, identity_verification_id, doc_type, side, status,
	filename, upload_id, verification_id, photo_id, original_document_id, other_side_id,
	used_for_verification, provider_name, error_detail, reject_reason,
	timestamp_created, timestamp_uploaded, timestamp_updated, timestamp_disposed`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.DocumentVerification) error {
	query := `
		INSERT INTO document_verifications (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		doc.ID, doc.ActivationID, doc.IdentityVerificationID, doc.Type, doc.Side, doc.Status,
		nullString(doc.Filename), nullString(doc.UploadID), nullString(doc.VerificationID), nullString(doc.PhotoID),
		nullString(doc.OriginalDocumentID), nullString(doc.OtherSideID),
		doc.UsedForVerification, nullString(doc.ProviderName), nullString(doc.ErrorDetail), nullString(doc.RejectReason),
		doc.TimestampCreated, nullTime(doc.TimestampUploaded), nullTime(doc.TimestampUpdated), nullTime(doc.TimestampDisposed),
	)
	if err != nil {
		return fmt.Errorf("create document verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.DocumentVerification) error {
	query := `
		UPDATE document_verifications
		SET status = $2, upload_id = $3, verification_id = $4, photo_id = $5, other_side_id = $6,
			used_for_verification = $7, provider_name = $8, error_detail = $9, reject_reason = $10,
			timestamp_uploaded = $11, timestamp_updated = $12, timestamp_disposed = $13
		WHERE id = $1
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		doc.ID, doc.Status, nullString(doc.UploadID), nullString(doc.VerificationID), nullString(doc.PhotoID),
		nullString(doc.OtherSideID), doc.UsedForVerification, nullString(doc.ProviderName),
		nullString(doc.ErrorDetail), nullString(doc.RejectReason),
		nullTime(doc.TimestampUploaded), nullTime(doc.TimestampUpdated), nullTime(doc.TimestampDisposed),
	)
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindDocumentByID(ctx context.Context, id string) (*models.DocumentVerification, error) {
	query := `SELECT ` + documentColumns + ` FROM document_verifications WHERE id = $1`
	return scanDocument(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListDocuments(ctx context.Context, identityVerificationID string, statuses []models.DocumentStatus) ([]models.DocumentVerification, error) {
	query := `
		SELECT ` + documentColumns + ` FROM document_verifications
		WHERE identity_verification_id = $1
		AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY timestamp_created
	`
	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, identityVerificationID, pq.Array(statusStrings))
	if err != nil {
		return nil, fmt.Errorf("list document verifications: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *PostgresStore) ListDocumentsUsedForVerification(ctx context.Context, identityVerificationID string) ([]models.DocumentVerification, error) {
	query := `
		SELECT ` + documentColumns + ` FROM document_verifications
		WHERE identity_verification_id = $1 AND used_for_verification
		ORDER BY timestamp_created
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, identityVerificationID)
	if err != nil {
		return nil, fmt.Errorf("list documents used for verification: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *PostgresStore) ListUploadIDs(ctx context.Context, activationID string) ([]string, error) {
	query := `
		SELECT upload_id FROM document_verifications
		WHERE activation_id = $1 AND upload_id IS NOT NULL
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, activationID)
	if err != nil {
		return nil, fmt.Errorf("list upload ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan upload id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetOtherSide(ctx context.Context, documentID, otherSideID string) error {
	query := `UPDATE document_verifications SET other_side_id = $2 WHERE id = $1`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query, documentID, otherSideID)
	if err != nil {
		return fmt.Errorf("set other document side: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailDocumentsNotFinished(ctx context.Context, activationID string, now time.Time) error {
	query := `
		UPDATE document_verifications
		SET status = $2, timestamp_updated = $3
		WHERE activation_id = $1 AND status IN ($4, $5, $6)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		activationID, models.DocumentStatusFailed, now,
		models.DocumentStatusUploadInProgress, models.DocumentStatusVerificationPending, models.DocumentStatusVerificationInProgress,
	)
	if err != nil {
		return fmt.Errorf("fail unfinished documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocumentsPendingSubmitCheck(ctx context.Context) ([]models.DocumentVerification, error) {
	query := `
		SELECT ` + documentColumns + ` FROM document_verifications
		WHERE status = $1 AND upload_id IS NOT NULL
		ORDER BY timestamp_created
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, models.DocumentStatusUploadInProgress)
	if err != nil {
		return nil, fmt.Errorf("list documents pending submit check: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

const resultColumns = `id, document_verification_id, phase, verification_payload, extracted_data,
	error_detail, reject_reason, timestamp_created`

func (s *PostgresStore) AppendResult(ctx context.Context, result *models.DocumentResult) error {
	query := `
		INSERT INTO document_results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		result.ID, result.DocumentVerificationID, result.Phase,
		nullString(result.VerificationPayload), nullString(result.ExtractedData),
		nullString(result.ErrorDetail), nullString(result.RejectReason), result.TimestampCreated,
	)
	if err != nil {
		return fmt.Errorf("append document result: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestResultForDocument(ctx context.Context, documentVerificationID string) (*models.DocumentResult, error) {
	query := `
		SELECT ` + resultColumns + ` FROM document_results
		WHERE document_verification_id = $1
		ORDER BY timestamp_created DESC
		LIMIT 1
	`
	var r models.DocumentResult
	var payload, extracted, errorDetail, rejectReason sql.NullString
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, documentVerificationID).Scan(
		&r.ID, &r.DocumentVerificationID, &r.Phase, &payload, &extracted,
		&errorDetail, &rejectReason, &r.TimestampCreated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest document result: %w", err)
	}
	r.VerificationPayload = payload.String
	r.ExtractedData = extracted.String
	r.ErrorDetail = errorDetail.String
	r.RejectReason = rejectReason.String
	return &r, nil
}

func (s *PostgresStore) CreateStagedUpload(ctx context.Context, upload *models.StagedUpload) error {
	query := `
		INSERT INTO staged_uploads (id, activation_id, identity_verification_id, filename, data, timestamp_created)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		upload.ID, upload.ActivationID, upload.IdentityVerificationID, upload.Filename, upload.Data, upload.TimestampCreated,
	)
	if err != nil {
		return fmt.Errorf("create staged upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindStagedUpload(ctx context.Context, id string) (*models.StagedUpload, error) {
	query := `
		SELECT id, activation_id, identity_verification_id, filename, data, timestamp_created
		FROM staged_uploads WHERE id = $1
	`
	var u models.StagedUpload
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.ActivationID, &u.IdentityVerificationID, &u.Filename, &u.Data, &u.TimestampCreated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find staged upload: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) DeleteStagedUpload(ctx context.Context, id string) error {
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `DELETE FROM staged_uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staged upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteStagedUploadsByActivation(ctx context.Context, activationID string) error {
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `DELETE FROM staged_uploads WHERE activation_id = $1`, activationID)
	if err != nil {
		return fmt.Errorf("delete staged uploads by activation: %w", err)
	}
	return nil
}

func scanVerification(row *sql.Row) (*models.IdentityVerification, error) {
	var iv models.IdentityVerification
	var userID, rejectReason, rejectOrigin, errorDetail, errorOrigin, sessionInfo sql.NullString
	var updated, finished, failed sql.NullTime
	err := row.Scan(
		&iv.ID, &iv.ActivationID, &userID, &iv.ProcessID, &iv.Phase, &iv.Status,
		&rejectReason, &rejectOrigin, &errorDetail, &errorOrigin, &sessionInfo,
		&iv.TimestampCreated, &updated, &finished, &failed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity verification: %w", err)
	}
	applyVerificationNulls(&iv, userID, rejectReason, rejectOrigin, errorDetail, errorOrigin, sessionInfo, updated, finished, failed)
	return &iv, nil
}

func scanVerificationRows(rows *sql.Rows) (*models.IdentityVerification, error) {
	var iv models.IdentityVerification
	var userID, rejectReason, rejectOrigin, errorDetail, errorOrigin, sessionInfo sql.NullString
	var updated, finished, failed sql.NullTime
	err := rows.Scan(
		&iv.ID, &iv.ActivationID, &userID, &iv.ProcessID, &iv.Phase, &iv.Status,
		&rejectReason, &rejectOrigin, &errorDetail, &errorOrigin, &sessionInfo,
		&iv.TimestampCreated, &updated, &finished, &failed,
	)
	if err != nil {
		return nil, fmt.Errorf("scan identity verification: %w", err)
	}
	applyVerificationNulls(&iv, userID, rejectReason, rejectOrigin, errorDetail, errorOrigin, sessionInfo, updated, finished, failed)
	return &iv, nil
}

func applyVerificationNulls(
	iv *models.IdentityVerification,
	userID, rejectReason, rejectOrigin, errorDetail, errorOrigin, sessionInfo sql.NullString,
	updated, finished, failed sql.NullTime,
) {
	iv.UserID = userID.String
	iv.RejectReason = rejectReason.String
	iv.RejectOrigin = models.RejectOrigin(rejectOrigin.String)
	iv.ErrorDetail = errorDetail.String
	iv.ErrorOrigin = onboarding.ErrorOrigin(errorOrigin.String)
	iv.SessionInfo = sessionInfo.String
	iv.TimestampUpdated = updated.Time
	iv.TimestampFinished = finished.Time
	iv.TimestampFailed = failed.Time
}

func scanDocument(row *sql.Row) (*models.DocumentVerification, error) {
	doc, err := scanDocumentFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

func collectDocuments(rows *sql.Rows) ([]models.DocumentVerification, error) {
	var out []models.DocumentVerification
	for rows.Next() {
		doc, err := scanDocumentFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func scanDocumentFrom(scan func(dest ...any) error) (*models.DocumentVerification, error) {
	var d models.DocumentVerification
	var filename, uploadID, verificationID, photoID, originalID, otherSideID, providerName, errorDetail, rejectReason sql.NullString
	var uploaded, updated, disposed sql.NullTime
	err := scan(
		&d.ID, &d.ActivationID, &d.IdentityVerificationID, &d.Type, &d.Side, &d.Status,
		&filename, &uploadID, &verificationID, &photoID, &originalID, &otherSideID,
		&d.UsedForVerification, &providerName, &errorDetail, &rejectReason,
		&d.TimestampCreated, &uploaded, &updated, &disposed,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan document verification: %w", err)
	}
	d.Filename = filename.String
	d.UploadID = uploadID.String
	d.VerificationID = verificationID.String
	d.PhotoID = photoID.String
	d.OriginalDocumentID = originalID.String
	d.OtherSideID = otherSideID.String
	d.ProviderName = providerName.String
	d.ErrorDetail = errorDetail.String
	d.RejectReason = rejectReason.String
	d.TimestampUploaded = uploaded.Time
	d.TimestampUpdated = updated.Time
	d.TimestampDisposed = disposed.Time
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
