package fulfillment

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

var (
	ErrPaymentFailed = errors.New("payment failed")
	ErrLockTimeout   = errors.New("timed out waiting for lock")
)

// PaymentError is returned after a failed charge has been compensated. It
// matches both ErrPaymentFailed and the processor's cause under errors.Is.
type PaymentError struct {
	OrderID string
	Cause   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed for order %s: %v", e.OrderID, e.Cause)
}

func (e *PaymentError) Unwrap() []error { return []error{ErrPaymentFailed, e.Cause} }

type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindInvalidState          Kind = "invalid_state"
	KindInvalidInput          Kind = "invalid_input"
	KindInsufficientInventory Kind = "insufficient_inventory"
	KindInsufficientFunds     Kind = "insufficient_funds"
	KindTransientPayment      Kind = "transient_payment"
	KindAlreadyCharged        Kind = "already_charged"
	KindTimeout               Kind = "timeout"
	KindInternal              Kind = "internal"
)

// Classify maps an error from any coordinator operation onto the failure
// taxonomy callers gate retries on.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, payment.ErrAlreadyCharged):
		return KindAlreadyCharged
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, customers.ErrCustomerNotFound):
		return KindNotFound
	case errors.Is(err, inventory.ErrInsufficientInventory):
		return KindInsufficientInventory
	case errors.Is(err, payment.ErrInsufficientFunds):
		return KindInsufficientFunds
	case payment.IsTransient(err):
		return KindTransientPayment
	case errors.Is(err, ErrLockTimeout):
		return KindTimeout
	case errors.Is(err, customers.ErrInactiveCustomer),
		errors.Is(err, orders.ErrNotPending),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrEmptyOrder):
		return KindInvalidState
	case errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidPaymentMethod),
		errors.Is(err, orders.ErrPaymentMethodRequired),
		errors.Is(err, orders.ErrCurrencyMismatch),
		errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, customers.ErrInvalidCustomer),
		errors.Is(err, customers.ErrEmailTaken),
		errors.Is(err, customers.ErrNegativePoints),
		errors.Is(err, customers.ErrInsufficientPoints):
		return KindInvalidInput
	}
	return KindInternal
}

// Retryable reports whether repeating the same call may succeed without the
// caller changing anything.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindInsufficientInventory, KindTransientPayment, KindTimeout:
		return true
	}
	return false
}
