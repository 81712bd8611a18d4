package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/trace"
)

type OrderProcessor interface {
	ProcessOrder(ctx context.Context, orderID string, method orders.PaymentMethod) (fulfillment.Receipt, error)
}

// Dedup remembers which envelopes a consumer has finished with.
type Dedup interface {
	Seen(ctx context.Context, scope, eventID string) (bool, error)
	Mark(ctx context.Context, scope, eventID string) error
}

// ProcessCommandHandler runs OrderProcessRequested commands against the
// coordinator. Retryable failures are retried in place; anything else is
// logged and the command is dropped.
type ProcessCommandHandler struct {
	Coord    OrderProcessor
	Dedup    Dedup // optional
	Log      *zap.Logger
	Scope    string
	Attempts int
	Backoff  time.Duration
}

func (h *ProcessCommandHandler) Handle(ctx context.Context, m kafka.Message) error {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	env, err := DecodeEnvelope(m.Value)
	if err != nil {
		log.Error("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventProcessRequested {
		return nil
	}
	if h.Dedup != nil {
		if seen, err := h.Dedup.Seen(ctx, h.Scope, env.EventID); err == nil && seen {
			log.Debug("duplicate process command", zap.String("event_id", env.EventID))
			return nil
		}
	}
	cmd, err := UnwrapPayload[orders.ProcessRequestedPayload](env.Payload)
	if err != nil {
		log.Error("dropping process command", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	ctx = trace.WithID(ctx, env.TraceID)
	attempts := max(h.Attempts, 1)
	for i := 1; ; i++ {
		_, err = h.Coord.ProcessOrder(ctx, cmd.OrderID, orders.PaymentMethod(cmd.PaymentMethod))
		if err == nil || !fulfillment.Retryable(err) || i >= attempts {
			break
		}
		log.Info("retrying process command",
			zap.String("order_id", cmd.OrderID),
			zap.Int("attempt", i),
			zap.Error(err))
		select {
		case <-time.After(h.Backoff * time.Duration(i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err != nil && fulfillment.Retryable(err) {
		return err
	}
	if err != nil {
		log.Warn("process command rejected",
			zap.String("order_id", cmd.OrderID),
			zap.String("kind", string(fulfillment.Classify(err))),
			zap.Error(err))
	}
	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, h.Scope, env.EventID); err != nil {
			log.Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}
