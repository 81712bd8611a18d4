package orders

const (
	TopicOrderCreated     = "order.created"
	TopicOrderProcessed   = "order.processed"
	TopicOrderCompleted   = "order.completed"
	TopicOrderShipped     = "order.shipped"
	TopicOrderCancelled   = "order.cancelled"
	TopicProcessRequested = "order.process.requested"
)

var topicByEvent = map[string]string{
	EventOrderCreated:     TopicOrderCreated,
	EventOrderProcessed:   TopicOrderProcessed,
	EventOrderCompleted:   TopicOrderCompleted,
	EventOrderShipped:     TopicOrderShipped,
	EventOrderCancelled:   TopicOrderCancelled,
	EventProcessRequested: TopicProcessRequested,
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType string) (string, bool) {
	t, ok := topicByEvent[eventType]
	return t, ok
}

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
