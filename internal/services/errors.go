// Package services defines the business logic for accounts, one-time login
// codes, and web authentication. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler and bot layers.
package services

import "errors"

// Account resolution errors.
var (
	// ErrAccountNotFound indicates that no account matched the identifier.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTelegramNotLinked is returned when an account exists but has no chat
	// identity to deliver a code to.
	ErrTelegramNotLinked = errors.New("telegram not linked")

	// ErrEmptyIdentifier is returned when requestCode gets no usable identifier.
	ErrEmptyIdentifier = errors.New("identifier is empty")

	// ErrContactMismatch is returned when a shared contact does not belong to
	// the user who shared it.
	ErrContactMismatch = errors.New("contact does not belong to sender")
)

// OTP lifecycle errors.
var (
	// ErrDeliveryFailed means the code could not be sent and the session that
	// was created for it has been rolled back.
	ErrDeliveryFailed = errors.New("code delivery failed")

	// ErrInvalidCodeFormat is returned for anything other than six ASCII digits.
	ErrInvalidCodeFormat = errors.New("code must be 6 digits")

	// ErrCodeNotFound covers codes never issued, already used, or lost to a
	// concurrent verification.
	ErrCodeNotFound = errors.New("invalid code")

	// ErrCodeExpired indicates the code existed but its window has passed.
	ErrCodeExpired = errors.New("code expired")
)
