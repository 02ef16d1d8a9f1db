package models

import "errors"

// Error kinds surfaced above the page interaction primitives. Everything
// recoverable (popup occlusion, transient staleness) is absorbed below this
// layer; a row's terminal reason always maps to one of these.
var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrNavigationFailed     = errors.New("navigation failed")
	ErrFieldUnmappable      = errors.New("field unmappable")
	ErrInteractionFailed    = errors.New("interaction failed")
	ErrAuthFailed           = errors.New("auth failed")
	ErrTwoFactorFailed      = errors.New("two-factor failed")
	ErrSubmissionRejected   = errors.New("submission rejected")
	ErrNotVerified          = errors.New("not verified")
	ErrCancelled            = errors.New("cancelled")
)

// Retryable reports whether a row failure is worth a second attempt on a
// fresh session. Auth and mapping failures never are.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInteractionFailed):
		return true
	case errors.Is(err, ErrNavigationFailed),
		errors.Is(err, ErrFieldUnmappable),
		errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrTwoFactorFailed),
		errors.Is(err, ErrSubmissionRejected),
		errors.Is(err, ErrConfigurationMissing),
		errors.Is(err, ErrCancelled):
		return false
	}
	return false
}

// Kind returns the short tag recorded next to a row's human-readable reason.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return "ConfigurationMissing"
	case errors.Is(err, ErrNavigationFailed):
		return "NavigationFailed"
	case errors.Is(err, ErrFieldUnmappable):
		return "FieldUnmappable"
	case errors.Is(err, ErrInteractionFailed):
		return "InteractionFailed"
	case errors.Is(err, ErrAuthFailed):
		return "AuthFailed"
	case errors.Is(err, ErrTwoFactorFailed):
		return "TwoFactorFailed"
	case errors.Is(err, ErrSubmissionRejected):
		return "SubmissionRejected"
	case errors.Is(err, ErrNotVerified):
		return "NotVerified"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	}
	return "Failed"
}
