package common

import (
	"errors"
	"fmt"
)

var (
	// Primary authentication errors.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Step-up / 2FA errors.
	ErrInvalidOneTimeCode      = errors.New("invalid one-time code")
	ErrSecondFactorNotPending  = errors.New("no second factor pending")
	ErrEnrollmentNotStarted    = errors.New("enrollment not started")
	ErrEnrollmentStageSkipped  = errors.New("enrollment stage out of order")

	// Session lifecycle errors.
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Transport errors.
	ErrUnavailable = errors.New("server unavailable")

	// Flow-control errors.
	ErrOperationInFlight = errors.New("operation already in flight")
	ErrFlowAbandoned     = errors.New("flow abandoned")
)

// ServerRejectedError carries the reason string the server attached to a
// rejected operation. Callers match it with errors.As; the Reason is meant
// to be shown inline in the initiating flow.
type ServerRejectedError struct {
	Reason string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected request: %s", e.Reason)
}
