package metrics

import (
	"errors"
	"time"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Sink defines the interface for recording scheduler metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	RunScheduled()
	RunCancelled()
	ScheduleFailed(reason string)
	ActiveRunsUpdate(count int)

	RunFired(lateness time.Duration)
	RunCompleted(duration time.Duration, err error)
}

// Reason constants for ScheduleFailed and RunCompleted labels.
const (
	ReasonInvalidDate    = "invalid_date"
	ReasonInvalidApp     = "invalid_app"
	ReasonInvalidAction  = "invalid_action"
	ReasonCompile        = "compile"
	ReasonExecute        = "execute"
	ReasonUnknownVariant = "unknown_variant"
	ReasonOther          = "other"
)

// Outcome constants for RunCompleted.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Classify maps a scheduling or execution error to a reason label.
func Classify(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidDate):
		return ReasonInvalidDate
	case errors.Is(err, models.ErrInvalidApp):
		return ReasonInvalidApp
	case errors.Is(err, models.ErrInvalidAction):
		return ReasonInvalidAction
	case errors.Is(err, models.ErrUnknownVariant):
		return ReasonUnknownVariant
	case models.IsCompile(err):
		return ReasonCompile
	case models.IsExecute(err):
		return ReasonExecute
	default:
		return ReasonOther
	}
}
