package core

import "errors"

// Errors
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidRate          = errors.New("invalid trigger rate")
	ErrInvalidOrderType     = errors.New("invalid order type")
	ErrInvalidOwner         = errors.New("invalid owner address")
	ErrFundsMismatch        = errors.New("attached funds do not match order amount")
	ErrMissingValidator     = errors.New("missing validator address")
	ErrOrderExists          = errors.New("order exists")
	ErrOrderNotFound        = errors.New("order not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidStatus        = errors.New("order status is not pending")
	ErrMarketOrderBucket    = errors.New("market order has no price bucket")
	ErrNotInBucket          = errors.New("order not found in pending bucket")
	ErrBucketCorrupted      = errors.New("pending bucket corrupted")
	ErrContinuationNotFound = errors.New("continuation not found")
	ErrOrphanedContinuation = errors.New("continuation references a non-pending order")
)
