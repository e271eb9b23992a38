// Package models defines one-time code records bound to onboarding processes.
package models

import "time"

// Type distinguishes the workflow an OTP gates.
type Type string

const (
	TypeActivation       Type = "ACTIVATION"
	TypeUserVerification Type = "USER_VERIFICATION"
)

// Status is the lifecycle status of a one-time code.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusUsed     Status = "USED"
	StatusCanceled Status = "CANCELED"
	StatusFailed   Status = "FAILED"
)

// Otp is a one-time code bound to a (process, type) pair. Creating a new code
// for the pair cancels any still-active predecessor.
type Otp struct {
	ID               string
	ProcessID        string
	Type             Type
	Code             string
	Status           Status
	FailedAttempts   int
	ExpiresAt        time.Time
	TimestampCreated time.Time
	TimestampUpdated time.Time
}

// Expired reports whether the code is past its expiration at the given time.
func (o *Otp) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
