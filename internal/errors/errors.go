package errors

import (
	"errors"
	"fmt"
)

// Common error types for the credential agent
var (
	// Configuration errors - a flow cannot run because a required secret
	// is missing. Surfaced immediately, never retried.
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrAccountNotFound    = errors.New("account not found")

	// Transient errors - retriable by the caller, never retried here
	ErrMetadataFetch = errors.New("metadata fetch failed")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrPipeTimeout   = errors.New("pipe receive timed out")
	ErrPipeClosed    = errors.New("pipe closed")

	// Pending-state errors - expected, retriable outcomes
	ErrAuthorizationPending = errors.New("authorization pending")

	// Parse errors - fatal for the call, not recoverable by retry
	ErrMalformedFlowList = errors.New("malformed flow list")
	ErrUnknownFlow       = errors.New("unknown flow")
	ErrMalformedMetadata = errors.New("malformed discovery document")

	// Agent lock errors
	ErrAgentLocked     = errors.New("agent is locked")
	ErrAlreadyLocked   = errors.New("agent is already locked")
	ErrAlreadyUnlocked = errors.New("agent is not locked")
	ErrWrongPassword   = errors.New("wrong password")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
