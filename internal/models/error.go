package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential evaluation errors
	ErrLicenseRequired      = errors.New("professional license is required for this role")
	ErrInvalidLicenseFormat = errors.New("license number format is invalid")
	ErrLicenseNotInRegistry = errors.New("license number not found in professional registry")

	// Registry client errors
	ErrRegistryDisabled    = errors.New("registry integration is disabled")
	ErrRegistryTimeout     = errors.New("registry query timed out")
	ErrRegistryUnavailable = errors.New("registry connection error")

	// Emergency access errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrAccessDenied      = errors.New("emergency access denied")
	ErrTokenExpired      = errors.New("access token has expired")
)
