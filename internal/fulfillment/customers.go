package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
)

// ActivateCustomer lets the customer open orders again.
func (c *Coordinator) ActivateCustomer(ctx context.Context, customerID string) (customers.Customer, error) {
	return c.updateCustomer(ctx, customerID, "activate", func(cust *customers.Customer) error {
		cust.Activate()
		return nil
	})
}

// DeactivateCustomer blocks new orders for the customer. Orders already
// created are unaffected.
func (c *Coordinator) DeactivateCustomer(ctx context.Context, customerID string) (customers.Customer, error) {
	return c.updateCustomer(ctx, customerID, "deactivate", func(cust *customers.Customer) error {
		cust.Deactivate()
		return nil
	})
}

// SpendLoyaltyPoints redeems points. It shares the customer lock with
// accrual, so a concurrent ProcessOrder never loses either update.
func (c *Coordinator) SpendLoyaltyPoints(ctx context.Context, customerID string, points int) (customers.Customer, error) {
	return c.updateCustomer(ctx, customerID, "spend points", func(cust *customers.Customer) error {
		return cust.SpendLoyaltyPoints(points)
	})
}

func (c *Coordinator) updateCustomer(ctx context.Context, customerID, op string, fn func(*customers.Customer) error) (customers.Customer, error) {
	unlock, err := c.lockCustomer(ctx, customerID)
	if err != nil {
		return customers.Customer{}, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	cust, err := c.customers.FindByID(ctx, customerID)
	if err != nil {
		return customers.Customer{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(&cust); err != nil {
		return customers.Customer{}, fmt.Errorf("%s for customer %s: %w", op, customerID, err)
	}
	if err := c.customers.Update(ctx, cust); err != nil {
		return customers.Customer{}, fmt.Errorf("persist customer %s: %w", customerID, err)
	}
	c.log.Info("customer updated",
		zap.String("customer_id", customerID),
		zap.String("op", op),
		zap.Bool("active", cust.Active),
		zap.Int("loyalty_points", cust.LoyaltyPoints))
	return cust, nil
}
