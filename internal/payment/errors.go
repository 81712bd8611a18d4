package payment

import "errors"

var (
	ErrAlreadyCharged     = errors.New("payment already processed for order")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDeclinedByBank     = errors.New("credit card payment declined by bank")
	ErrServiceUnavailable = errors.New("payment service unavailable")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// IsTransient reports whether a retry may succeed without outside action.
func IsTransient(err error) bool {
	return errors.Is(err, ErrDeclinedByBank) || errors.Is(err, ErrServiceUnavailable)
}
