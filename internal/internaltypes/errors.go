package internaltypes

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrElementTimeout means an expected page element never appeared within the bounded wait.
	ErrElementTimeout = errors.New("element did not appear in time")
	ErrLogin          = errors.New("login failed")
	ErrDelivery       = errors.New("notification delivery failed")
)
