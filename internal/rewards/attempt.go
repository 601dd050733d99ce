package rewards

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/eventpoints/backend/internal/models"
)

// AttemptStatus classifies the result of one call to a reward service.
type AttemptStatus string

const (
	StatusSuccess   AttemptStatus = "success"
	StatusTransient AttemptStatus = "transient"
	StatusPermanent AttemptStatus = "permanent"
)

// Attempt records one call to one reward service.
type Attempt struct {
	Source     models.AwardSource
	Status     AttemptStatus
	StatusCode int
	Err        error
	Duration   time.Duration
}

// OK reports whether the service accepted the call.
func (a Attempt) OK() bool {
	return a.Status == StatusSuccess
}

// Result is what Award returns. Fallback is nil when the primary succeeded.
type Result struct {
	OK       bool
	Source   models.AwardSource
	Primary  Attempt
	Fallback *Attempt
}

// StatusError is the Err of an attempt that got a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func classifyStatus(code int) AttemptStatus {
	switch {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return StatusTransient
	default:
		return StatusPermanent
	}
}

// classifyErr treats timeouts, cancellation and network errors as transient.
func classifyErr(err error) AttemptStatus {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return StatusTransient
	case errors.As(err, &netErr):
		return StatusTransient
	default:
		return StatusPermanent
	}
}
