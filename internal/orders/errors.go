package orders

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotPending            = errors.New("order is not pending")
	ErrEmptyOrder            = errors.New("cannot process an empty order")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrInvalidOrder          = errors.New("invalid order")
)
