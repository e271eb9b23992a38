// Package store persists onboarding processes. Stores are pure I/O; rate
// limits, expiry windows and resume rules live in the service.
package store

import (
	"context"
	"errors"
	"time"

	"enrolld/internal/onboarding/models"
)

// ErrNotFound is returned when no process matches the query.
var ErrNotFound = errors.New("onboarding process not found")

// Store persists onboarding processes.
type Store interface {
	Create(ctx context.Context, process *models.Process) error
	Update(ctx context.Context, process *models.Process) error
	FindByID(ctx context.Context, id string) (*models.Process, error)
	// FindByFingerprint returns the process with the given identification
	// fingerprint and status, if one exists.
	FindByFingerprint(ctx context.Context, fingerprint string, status models.Status) (*models.Process, error)
	// FindByActivationID returns the process bound to an activation in any
	// status.
	FindByActivationID(ctx context.Context, activationID string) (*models.Process, error)
	// FindByActivationIDAndStatus returns the process bound to an activation
	// in the given status.
	FindByActivationIDAndStatus(ctx context.Context, activationID string, status models.Status) (*models.Process, error)
	// CountForUserSince counts processes created for the user after the
	// cutoff, feeding the per-user daily quota.
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}
