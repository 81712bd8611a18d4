package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

type OrderProcessedPayload struct {
	OrderID       string `json:"order_id"`
	CustomerID    string `json:"customer_id"`
	Total         Money  `json:"total"`
	PaymentMethod string `json:"payment_method"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
	From    Status `json:"from,omitempty"`
}

// ProcessRequestedPayload is the command consumed by async fulfillment workers.
type ProcessRequestedPayload struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
}

const EventProcessRequested = "OrderProcessRequested"

// StatusAfter is the order status implied by an event.
func StatusAfter(ev Event) Status {
	switch ev.(type) {
	case OrderCreated:
		return StatusPending
	case OrderProcessed:
		return StatusProcessing
	case OrderCompleted:
		return StatusCompleted
	case OrderShipped:
		return StatusShipped
	case OrderCancelled:
		return StatusCancelled
	}
	return ""
}

// NewEnvelope wraps a domain event for the wire.
func NewEnvelope(ev Event, producer, traceID string) (Envelope, error) {
	var payload any
	switch e := ev.(type) {
	case OrderCreated:
		payload = OrderCreatedPayload{OrderID: e.OrderID, CustomerID: e.CustomerID}
	case OrderProcessed:
		payload = OrderProcessedPayload{
			OrderID:       e.OrderID,
			CustomerID:    e.CustomerID,
			Total:         e.Total,
			PaymentMethod: string(e.PaymentMethod),
		}
	case OrderCompleted, OrderShipped:
		payload = OrderStatusPayload{OrderID: ev.OrderRef(), Status: StatusAfter(ev)}
	case OrderCancelled:
		payload = OrderStatusPayload{OrderID: e.OrderID, Status: StatusCancelled, From: e.PrevStatus}
	default:
		return Envelope{}, fmt.Errorf("unknown event type %T", ev)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.EventType(), err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.EventType(),
		EventVersion:  1,
		OccurredAt:    ev.OccurredAt().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: ev.OrderRef(),
		Payload:       b,
	}, nil
}

// NewProcessRequest builds the async command asking a worker to process an
// order with the given payment method.
func NewProcessRequest(orderID string, method PaymentMethod, producer, traceID string, now time.Time) (Envelope, error) {
	b, err := json.Marshal(ProcessRequestedPayload{OrderID: orderID, PaymentMethod: string(method)})
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal process request: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventProcessRequested,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}
