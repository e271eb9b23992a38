// Package statemachine holds the identity verification transition table. All
// phase/status changes flow through Transition; there is no other way to move
// a verification between states.
package statemachine

import (
	"enrolld/internal/identity/models"
	domainerrors "enrolld/pkg/domain-errors"
)

// State is one (phase, status) pair of an identity verification.
type State struct {
	Phase  models.Phase
	Status models.Status
}

// Event names a workflow occurrence that may move a verification to a new
// state.
type Event string

const (
	EventDocumentsSubmitted        Event = "DOCUMENTS_SUBMITTED"
	EventDocumentsReady            Event = "DOCUMENTS_READY"
	EventVerificationStarted       Event = "VERIFICATION_STARTED"
	EventVerificationAccepted      Event = "VERIFICATION_ACCEPTED"
	EventVerificationRejected      Event = "VERIFICATION_REJECTED"
	EventVerificationFailed        Event = "VERIFICATION_FAILED"
	EventClientEvaluationStarted   Event = "CLIENT_EVALUATION_STARTED"
	EventClientEvaluationAccepted  Event = "CLIENT_EVALUATION_ACCEPTED"
	EventClientEvaluationRejected  Event = "CLIENT_EVALUATION_REJECTED"
	EventClientEvaluationFailed    Event = "CLIENT_EVALUATION_FAILED"
	EventPresenceCheckStarted      Event = "PRESENCE_CHECK_STARTED"
	EventPresenceCheckSubmitted    Event = "PRESENCE_CHECK_SUBMITTED"
	EventPresenceCheckAccepted     Event = "PRESENCE_CHECK_ACCEPTED"
	EventPresenceCheckRejected     Event = "PRESENCE_CHECK_REJECTED"
	EventPresenceCheckFailed       Event = "PRESENCE_CHECK_FAILED"
	EventOtpVerificationStarted    Event = "OTP_VERIFICATION_STARTED"
	EventCompletedAccepted         Event = "COMPLETED_ACCEPTED"
	EventCompletedRejected         Event = "COMPLETED_REJECTED"
	EventCompletedFailed           Event = "COMPLETED_FAILED"
)

// Initial is the state a freshly created identity verification starts in.
var Initial = State{Phase: models.PhaseDocumentUpload, Status: models.StatusInProgress}

// table is the complete transition relation. A (state, event) pair absent
// from the table is an invalid transition.
var table = map[State]map[Event]State{
	{models.PhaseDocumentUpload, models.StatusInProgress}: {
		EventDocumentsSubmitted:  {models.PhaseDocumentUpload, models.StatusInProgress},
		EventDocumentsReady:      {models.PhaseDocumentUpload, models.StatusVerificationPending},
		EventVerificationStarted: {models.PhaseDocumentVerification, models.StatusInProgress},
		EventCompletedFailed:     {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseDocumentUpload, models.StatusVerificationPending}: {
		EventDocumentsSubmitted:  {models.PhaseDocumentUpload, models.StatusInProgress},
		EventVerificationStarted: {models.PhaseDocumentVerification, models.StatusInProgress},
		EventCompletedFailed:     {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseDocumentVerification, models.StatusInProgress}: {
		EventVerificationAccepted: {models.PhaseDocumentVerification, models.StatusAccepted},
		EventVerificationRejected: {models.PhaseDocumentVerification, models.StatusRejected},
		EventVerificationFailed:   {models.PhaseDocumentVerification, models.StatusFailed},
		EventCompletedFailed:      {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseDocumentVerification, models.StatusAccepted}: {
		EventClientEvaluationStarted: {models.PhaseClientEvaluation, models.StatusInProgress},
		EventPresenceCheckStarted:    {models.PhasePresenceCheck, models.StatusInProgress},
		EventOtpVerificationStarted:  {models.PhaseOtpVerification, models.StatusInProgress},
		EventCompletedAccepted:       {models.PhaseCompleted, models.StatusAccepted},
		EventCompletedFailed:         {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseDocumentVerification, models.StatusRejected}: {
		// New documents may replace the rejected set.
		EventDocumentsSubmitted: {models.PhaseDocumentUpload, models.StatusInProgress},
		EventCompletedRejected:  {models.PhaseCompleted, models.StatusRejected},
		EventCompletedFailed:    {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseDocumentVerification, models.StatusFailed}: {
		EventDocumentsSubmitted: {models.PhaseDocumentUpload, models.StatusInProgress},
		EventCompletedFailed:    {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseClientEvaluation, models.StatusInProgress}: {
		EventClientEvaluationAccepted: {models.PhaseClientEvaluation, models.StatusAccepted},
		EventClientEvaluationRejected: {models.PhaseClientEvaluation, models.StatusRejected},
		EventClientEvaluationFailed:   {models.PhaseClientEvaluation, models.StatusFailed},
		EventCompletedFailed:          {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseClientEvaluation, models.StatusAccepted}: {
		EventPresenceCheckStarted:   {models.PhasePresenceCheck, models.StatusInProgress},
		EventOtpVerificationStarted: {models.PhaseOtpVerification, models.StatusInProgress},
		EventCompletedAccepted:      {models.PhaseCompleted, models.StatusAccepted},
		EventCompletedFailed:        {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseClientEvaluation, models.StatusRejected}: {
		EventCompletedRejected: {models.PhaseCompleted, models.StatusRejected},
		EventCompletedFailed:   {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseClientEvaluation, models.StatusFailed}: {
		EventCompletedFailed: {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhasePresenceCheck, models.StatusInProgress}: {
		EventPresenceCheckSubmitted: {models.PhasePresenceCheck, models.StatusVerificationPending},
		EventCompletedFailed:        {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhasePresenceCheck, models.StatusVerificationPending}: {
		EventPresenceCheckAccepted: {models.PhasePresenceCheck, models.StatusAccepted},
		EventPresenceCheckRejected: {models.PhasePresenceCheck, models.StatusRejected},
		EventPresenceCheckFailed:   {models.PhasePresenceCheck, models.StatusFailed},
		EventCompletedFailed:       {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhasePresenceCheck, models.StatusAccepted}: {
		EventOtpVerificationStarted: {models.PhaseOtpVerification, models.StatusInProgress},
		EventCompletedAccepted:      {models.PhaseCompleted, models.StatusAccepted},
		EventCompletedFailed:        {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhasePresenceCheck, models.StatusRejected}: {
		EventCompletedRejected: {models.PhaseCompleted, models.StatusRejected},
		EventCompletedFailed:   {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhasePresenceCheck, models.StatusFailed}: {
		EventCompletedFailed: {models.PhaseCompleted, models.StatusFailed},
	},
	{models.PhaseOtpVerification, models.StatusInProgress}: {
		EventCompletedAccepted: {models.PhaseCompleted, models.StatusAccepted},
		EventCompletedFailed:   {models.PhaseCompleted, models.StatusFailed},
	},
}

// Transition returns the state reached from the current state by the event.
// An edge missing from the table yields a state-conflict error and no
// change. COMPLETED states have no outgoing edges.
func Transition(current State, event Event) (State, error) {
	next, ok := table[current][event]
	if !ok {
		return current, domainerrors.Newf(domainerrors.CodeStateConflict,
			"event %s not allowed in phase %s status %s", event, current.Phase, current.Status)
	}
	return next, nil
}

// Allowed reports whether the event has an edge from the current state.
func Allowed(current State, event Event) bool {
	_, ok := table[current][event]
	return ok
}

// Apply runs the transition and writes the resulting state onto the
// verification.
func Apply(iv *models.IdentityVerification, event Event) error {
	next, err := Transition(State{Phase: iv.Phase, Status: iv.Status}, event)
	if err != nil {
		return err
	}
	iv.Phase = next.Phase
	iv.Status = next.Status
	return nil
}
