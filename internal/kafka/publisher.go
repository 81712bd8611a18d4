package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/trace"
)

type Publisher interface {
	Publish(ctx context.Context, m kafka.Message) error
}

// EventPublisher forwards order events to their topics as envelopes.
type EventPublisher struct {
	P       Publisher
	Service string
}

func (e *EventPublisher) Notify(ctx context.Context, events []orders.Event) error {
	var errs []error
	for _, ev := range events {
		env, err := orders.NewEnvelope(ev, e.Service, trace.ID(ctx))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		topic, ok := orders.TopicFor(env.EventType)
		if !ok {
			errs = append(errs, fmt.Errorf("no topic for event %s", env.EventType))
			continue
		}
		if err := e.P.Publish(ctx, EnvelopeMessage(topic, env)); err != nil {
			errs = append(errs, fmt.Errorf("publish %s for order %s: %w", env.EventType, env.CorrelationID, err))
		}
	}
	return errors.Join(errs...)
}

// ProcessQueue enqueues process commands for the async workers.
type ProcessQueue struct {
	P       Publisher
	Service string
}

func (q *ProcessQueue) EnqueueProcess(ctx context.Context, orderID string, method orders.PaymentMethod) (string, error) {
	env, err := orders.NewProcessRequest(orderID, method, q.Service, trace.ID(ctx), time.Now())
	if err != nil {
		return "", err
	}
	if err := q.P.Publish(ctx, EnvelopeMessage(orders.TopicProcessRequested, env)); err != nil {
		return "", fmt.Errorf("enqueue process for order %s: %w", orderID, err)
	}
	return env.EventID, nil
}
