package trial

import "errors"

var (
	ErrTrialNotFound = errors.New("trial not found")
	// ErrAlreadyStandardized means the lock-in decision was already made;
	// the existing standard format is never overwritten.
	ErrAlreadyStandardized = errors.New("trial is already standardized")
	ErrUnknownFormat       = errors.New("format is not in the trial schedule")
	ErrNoRatings           = errors.New("format has no ratings yet")
	ErrEmptySchedule       = errors.New("trial schedule must not be empty")
)

// Review validation errors.
var (
	ErrNotPendingReview       = errors.New("item is not pending review")
	ErrNotTrialItem           = errors.New("item does not belong to a trial")
	ErrInvalidDecision        = errors.New("unknown review decision")
	ErrDecisionReasonRequired = errors.New("decision reason is required")
	ErrInvalidScore           = errors.New("scores must use known dimensions with values 1-5")
)
