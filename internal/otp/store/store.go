// Package store persists one-time codes. Superseding and attempt-counting
// rules live in the OTP service.
package store

import (
	"context"
	"errors"

	"enrolld/internal/otp/models"
)

// ErrNotFound is returned when no code matches the query.
var ErrNotFound = errors.New("otp not found")

// Store persists one-time codes.
type Store interface {
	Create(ctx context.Context, otp *models.Otp) error
	Update(ctx context.Context, otp *models.Otp) error
	// FindNewest returns the most recently created code for the
	// (process, type) pair.
	FindNewest(ctx context.Context, processID string, otpType models.Type) (*models.Otp, error)
	// CancelActive moves any ACTIVE code of the pair to CANCELED and reports
	// how many codes were affected.
	CancelActive(ctx context.Context, processID string, otpType models.Type) (int, error)
}
