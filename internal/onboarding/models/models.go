// Package models defines the onboarding process entity and its enumerations.
package models

import "time"

// Status is the lifecycle status of an onboarding process.
type Status string

const (
	StatusActivationInProgress   Status = "ACTIVATION_IN_PROGRESS"
	StatusVerificationInProgress Status = "VERIFICATION_IN_PROGRESS"
	StatusFinished               Status = "FINISHED"
	StatusFailed                 Status = "FAILED"
)

// ErrorOrigin records which subsystem produced an error detail.
type ErrorOrigin string

const (
	OriginProcessLimitCheck    ErrorOrigin = "PROCESS_LIMIT_CHECK"
	OriginUserRequest          ErrorOrigin = "USER_REQUEST"
	OriginOtpVerification      ErrorOrigin = "OTP_VERIFICATION"
	OriginDocumentUpload       ErrorOrigin = "DOCUMENT_UPLOAD"
	OriginDocumentVerification ErrorOrigin = "DOCUMENT_VERIFICATION"
	OriginFinalValidation      ErrorOrigin = "FINAL_VALIDATION"
	OriginProcessExpiry        ErrorOrigin = "PROCESS_EXPIRY"
)

// Well-known error details persisted on failed processes.
const (
	ErrorTooManyProcessesPerUser = "tooManyProcessesPerUser"
	ErrorProcessCanceled         = "processCanceled"
	ErrorProcessExpired          = "processExpired"
	ErrorMaxFailedAttemptsOtp    = "maxFailedAttemptsOtp"
)

// Process is the top-level record tracking one onboarding attempt from
// identification through activation.
type Process struct {
	ID                 string
	UserID             string // empty until user lookup resolves
	IdentificationData string // canonical fingerprint, see Fingerprint
	ActivationID       string // set once an activation commits
	Status             Status
	ErrorDetail        string
	ErrorOrigin        ErrorOrigin
	TimestampCreated   time.Time
	TimestampUpdated   time.Time
	TimestampFinished  time.Time
	TimestampFailed    time.Time
}

// Terminal reports whether the process can no longer change state.
func (p *Process) Terminal() bool {
	return p.Status == StatusFinished || p.Status == StatusFailed
}

// Fail moves the process to FAILED with the given detail and origin.
func (p *Process) Fail(detail string, origin ErrorOrigin, now time.Time) {
	p.Status = StatusFailed
	p.ErrorDetail = detail
	p.ErrorOrigin = origin
	p.TimestampUpdated = now
	p.TimestampFailed = now
}
