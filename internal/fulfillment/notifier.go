package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Notifier receives the domain events of an order after they are persisted.
type Notifier interface {
	Notify(ctx context.Context, events []orders.Event) error
}

type NotifierFunc func(ctx context.Context, events []orders.Event) error

func (f NotifierFunc) Notify(ctx context.Context, events []orders.Event) error { return f(ctx, events) }

// LogNotifier writes every event to a zap logger.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, events []orders.Event) error {
	for _, ev := range events {
		n.Log.Info("order event",
			zap.String("event_type", ev.EventType()),
			zap.String("order_id", ev.OrderRef()),
			zap.Time("occurred_at", ev.OccurredAt()))
	}
	return nil
}

type namedNotifier struct {
	name string
	n    Notifier
}
