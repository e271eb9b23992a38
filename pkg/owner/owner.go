// Package owner identifies the activation a request acts on behalf of.
package owner

import "time"

// ID identifies the activation and user driving an operation. Timestamp is
// fixed when the request enters the system so every row touched by one
// operation carries the same update time.
type ID struct {
	ActivationID string
	UserID       string
	Timestamp    time.Time
}

// New builds an owner ID stamped with the current time.
func New(activationID, userID string) ID {
	return ID{ActivationID: activationID, UserID: userID, Timestamp: time.Now()}
}
