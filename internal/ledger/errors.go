package ledger

import "errors"

var (
	ErrUserNotFound    = errors.New("ledger: user not found")
	ErrInvalidAmount   = errors.New("ledger: amount must not be negative")
	ErrSelfReferral    = errors.New("ledger: user cannot refer themselves")
	ErrAlreadyReferred = errors.New("ledger: user was already referred")
)
