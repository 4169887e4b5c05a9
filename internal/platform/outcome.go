package platform

import (
	"time"

	pkgerrors "github.com/antonvlasov/chatgate-backend/pkg/errors"
)

// Status classifies the result of a platform call.
type Status string

const (
	StatusOK               Status = "ok"
	StatusRateLimited      Status = "rate_limited"
	StatusPermissionDenied Status = "permission_denied"
	StatusNotFound         Status = "not_found"
	StatusTransient        Status = "transient"
)

// Outcome is the classified result of one platform call. RetryAfter is only
// meaningful for StatusRateLimited.
type Outcome struct {
	Status     Status
	RetryAfter time.Duration
	Err        error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// Retryable reports whether a single governed retry may succeed.
func (o Outcome) Retryable() bool {
	return o.Status == StatusRateLimited || o.Status == StatusTransient
}

func okOutcome() Outcome {
	return Outcome{Status: StatusOK}
}

// Code maps the outcome status onto the shared error taxonomy.
func (o Outcome) Code() pkgerrors.Code {
	switch o.Status {
	case StatusOK:
		return ""
	case StatusRateLimited:
		return pkgerrors.CodeRateLimited
	case StatusPermissionDenied:
		return pkgerrors.CodePermissionDenied
	case StatusNotFound:
		return pkgerrors.CodeNotFound
	default:
		return pkgerrors.CodeDependency
	}
}
