package relay

import (
	"errors"
	"fmt"
	"time"
)

// Task errors returned from Orchestrator.Handle
var (
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrMissingOutputFile = errors.New("output file missing")
	ErrUploadFailed      = errors.New("upload failed")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTaskExists        = errors.New("task already registered")
)

// Reason is why an admission was rejected
type Reason string

const (
	ReasonShuttingDown       Reason = "shutting_down"
	ReasonInvalidURL         Reason = "invalid_url"
	ReasonCooldown           Reason = "cooldown"
	ReasonMembershipRequired Reason = "membership_required"
	ReasonTaskInProgress     Reason = "task_in_progress"
)

// Rejection is returned by TryAdmit when a request is not admitted
type Rejection struct {
	Reason Reason
	// Remaining is set for cooldown rejections
	Remaining time.Duration
}

func (r *Rejection) Error() string {
	if r.Reason == ReasonCooldown {
		return fmt.Sprintf("admission rejected: %s (%s remaining)", r.Reason, r.Remaining)
	}
	return fmt.Sprintf("admission rejected: %s", r.Reason)
}

// RemainingSeconds returns the whole seconds left on a cooldown, truncated
func (r *Rejection) RemainingSeconds() int {
	return int(r.Remaining.Seconds())
}

// AsRejection unwraps a *Rejection from err
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
