// Package demo holds the sample customers used by the server's demo mode
// and the simulator.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
)

type seedCustomer struct {
	id, email, name string
	points          int
}

var seedCustomers = []seedCustomer{
	{"CUST-001", "john@example.com", "John Doe", 150},
	{"CUST-002", "jane@example.com", "Jane Smith", 600},
	{"CUST-003", "bob@example.com", "Bob Wilson", 0},
}

// SeedCustomers saves the sample customers that are not stored yet.
func SeedCustomers(ctx context.Context, store customers.Store, now time.Time) (added int, err error) {
	for _, sc := range seedCustomers {
		ok, err := store.Exists(ctx, sc.id)
		if err != nil {
			return added, err
		}
		if ok {
			continue
		}
		c, err := customers.New(sc.id, sc.email, sc.name, now)
		if err != nil {
			return added, err
		}
		if err := c.AddLoyaltyPoints(sc.points); err != nil {
			return added, err
		}
		if err := store.Save(ctx, c); err != nil {
			return added, fmt.Errorf("seed %s: %w", sc.id, err)
		}
		added++
	}
	return added, nil
}
