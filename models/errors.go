package models

import "errors"

// Error kinds surfaced by the verification protocol. Handlers map these to
// wire responses; everything else wraps them with %w.
var (
	ErrMalformedToken             = errors.New("malformed token")
	ErrTokenExpired               = errors.New("token expired")
	ErrTooFar                     = errors.New("too far from session location")
	ErrNoMatch                    = errors.New("face does not match")
	ErrLowConfidence              = errors.New("face matched with low confidence")
	ErrNoActiveClass              = errors.New("no class is in session right now")
	ErrStoreUnavailable           = errors.New("store unavailable")
	ErrPermissionDenied           = errors.New("permission denied")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionAlreadyActive = errors.New("presenter already has an active session")
	ErrVerificationInFlight = errors.New("a verification attempt is already in progress")
)
