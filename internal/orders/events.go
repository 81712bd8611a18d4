package orders

import "time"

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderProcessed = "OrderProcessed"
	EventOrderCompleted = "OrderCompleted"
	EventOrderShipped   = "OrderShipped"
	EventOrderCancelled = "OrderCancelled"
)

// Event is a domain event raised by the Order aggregate. The set of
// implementations is closed; switch on the concrete type to consume it.
type Event interface {
	EventType() string
	OrderRef() string
	OccurredAt() time.Time
	isOrderEvent()
}

type OrderCreated struct {
	OrderID    string
	CustomerID string
	At         time.Time
}

type OrderProcessed struct {
	OrderID       string
	CustomerID    string
	Total         Money
	PaymentMethod PaymentMethod
	At            time.Time
}

type OrderCompleted struct {
	OrderID string
	At      time.Time
}

type OrderShipped struct {
	OrderID string
	At      time.Time
}

type OrderCancelled struct {
	OrderID    string
	PrevStatus Status
	At         time.Time
}

func (OrderCreated) EventType() string   { return EventOrderCreated }
func (OrderProcessed) EventType() string { return EventOrderProcessed }
func (OrderCompleted) EventType() string { return EventOrderCompleted }
func (OrderShipped) EventType() string   { return EventOrderShipped }
func (OrderCancelled) EventType() string { return EventOrderCancelled }

func (e OrderCreated) OrderRef() string   { return e.OrderID }
func (e OrderProcessed) OrderRef() string { return e.OrderID }
func (e OrderCompleted) OrderRef() string { return e.OrderID }
func (e OrderShipped) OrderRef() string   { return e.OrderID }
func (e OrderCancelled) OrderRef() string { return e.OrderID }

func (e OrderCreated) OccurredAt() time.Time   { return e.At }
func (e OrderProcessed) OccurredAt() time.Time { return e.At }
func (e OrderCompleted) OccurredAt() time.Time { return e.At }
func (e OrderShipped) OccurredAt() time.Time   { return e.At }
func (e OrderCancelled) OccurredAt() time.Time { return e.At }

func (OrderCreated) isOrderEvent()   {}
func (OrderProcessed) isOrderEvent() {}
func (OrderCompleted) isOrderEvent() {}
func (OrderShipped) isOrderEvent()   {}
func (OrderCancelled) isOrderEvent() {}
