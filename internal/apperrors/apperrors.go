package apperrors

import "errors"

// Sentinel errors for the expected failure modes of the core operations.
// Services wrap these with fmt.Errorf("...: %w", ...) so handlers can map
// them to HTTP statuses with errors.Is without parsing error text.
var (
	// ErrValidation marks malformed input caught before any storage access.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity (user, message) that is absent.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken and ErrEmailTaken are uniqueness conflicts. A username
	// conflicts only with a verified holder; an email conflicts with any
	// verified account.
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")

	// ErrUnauthorized marks a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAccepting means the recipient's acceptance gate is closed.
	ErrNotAccepting = errors.New("user is not accepting messages")

	// Verification failure subtypes. When a submitted code is both wrong and
	// past its expiry, ErrCodeExpired wins.
	ErrCodeExpired = errors.New("verification code is expired")
	ErrCodeInvalid = errors.New("verification code is invalid")

	// ErrDependency marks a failure in an external collaborator (email
	// delivery, message queue) that must surface to the caller.
	ErrDependency = errors.New("dependency failure")
)
