package billing

import "errors"

var (
	// ErrUnauthorized indicates a missing or invalid identity
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotProvisioned indicates the user has no subscription record or
	// provider customer
	ErrNotProvisioned = errors.New("subscription not provisioned")
	// ErrInvalidOperation indicates a request the engine refuses, such as
	// checkout for the free price
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidSignature indicates a webhook payload failed verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrProviderUnavailable indicates a transient payment provider failure
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrNotFound indicates an unknown session, subscription, or customer
	ErrNotFound = errors.New("not found")
)
