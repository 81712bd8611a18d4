package kafka_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/trace"
)

type scriptedCoord struct {
	mu      sync.Mutex
	results []error
	calls   []string
	traces  []string
}

func (c *scriptedCoord) ProcessOrder(ctx context.Context, orderID string, method orders.PaymentMethod) (fulfillment.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, orderID+"/"+string(method))
	c.traces = append(c.traces, trace.ID(ctx))
	var err error
	if len(c.results) > 0 {
		err, c.results = c.results[0], c.results[1:]
	}
	return fulfillment.Receipt{}, err
}

type memDedup struct{ seen map[string]bool }

func (d *memDedup) Seen(_ context.Context, scope, id string) (bool, error) {
	return d.seen[scope+":"+id], nil
}

func (d *memDedup) Mark(_ context.Context, scope, id string) error {
	d.seen[scope+":"+id] = true
	return nil
}

func processMessage(t *testing.T, orderID string) (kafka.Message, string) {
	t.Helper()
	env, err := orders.NewProcessRequest(orderID, orders.PaymentPayPal, "api", "trace-1", time.Now())
	require.NoError(t, err)
	return kafkax.EnvelopeMessage(orders.TopicProcessRequested, env), env.EventID
}

func Test_ProcessCommandHandler_RunsCommandOnce(t *testing.T) {
	coord := &scriptedCoord{}
	dedup := &memDedup{seen: map[string]bool{}}
	h := &kafkax.ProcessCommandHandler{Coord: coord, Dedup: dedup, Scope: "worker", Log: zaptest.NewLogger(t)}
	m, eventID := processMessage(t, "ORD-1")

	require.NoError(t, h.Handle(context.Background(), m))
	require.NoError(t, h.Handle(context.Background(), m))

	assert.Equal(t, []string{"ORD-1/PAYPAL"}, coord.calls)
	assert.Equal(t, []string{"trace-1"}, coord.traces)
	assert.True(t, dedup.seen["worker:"+eventID])
}

func Test_ProcessCommandHandler_RetriesTransientFailures(t *testing.T) {
	coord := &scriptedCoord{results: []error{
		&fulfillment.PaymentError{OrderID: "ORD-1", Cause: payment.ErrServiceUnavailable},
		nil,
	}}
	h := &kafkax.ProcessCommandHandler{Coord: coord, Attempts: 3, Backoff: time.Millisecond}
	m, _ := processMessage(t, "ORD-1")

	require.NoError(t, h.Handle(context.Background(), m))
	assert.Len(t, coord.calls, 2)
}

func Test_ProcessCommandHandler_GivesUpAfterAttempts(t *testing.T) {
	short := fmt.Errorf("reserve: %w", &inventory.ShortageError{})
	coord := &scriptedCoord{results: []error{short, short, short}}
	dedup := &memDedup{seen: map[string]bool{}}
	h := &kafkax.ProcessCommandHandler{Coord: coord, Dedup: dedup, Attempts: 2, Backoff: time.Millisecond}
	m, _ := processMessage(t, "ORD-1")

	err := h.Handle(context.Background(), m)
	assert.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	assert.Len(t, coord.calls, 2)
	assert.Empty(t, dedup.seen, "unfinished commands stay eligible for redelivery")
}

func Test_ProcessCommandHandler_DropsPermanentFailures(t *testing.T) {
	coord := &scriptedCoord{results: []error{orders.ErrOrderNotFound}}
	h := &kafkax.ProcessCommandHandler{Coord: coord, Attempts: 5}
	m, _ := processMessage(t, "ORD-404")

	assert.NoError(t, h.Handle(context.Background(), m))
	assert.Len(t, coord.calls, 1)
}

func Test_ProcessCommandHandler_IgnoresOtherMessages(t *testing.T) {
	coord := &scriptedCoord{}
	h := &kafkax.ProcessCommandHandler{Coord: coord}

	assert.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte("not json")}))

	env, err := orders.NewEnvelope(orders.OrderCreated{OrderID: "ORD-1"}, "api", "")
	require.NoError(t, err)
	assert.NoError(t, h.Handle(context.Background(), kafkax.EnvelopeMessage(orders.TopicOrderCreated, env)))
	assert.Empty(t, coord.calls)
}

type memReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error {
	r.closed = true
	return nil
}

func Test_Consumer_CommitsOnlyHandledMessages(t *testing.T) {
	r := &memReader{}
	for i := int64(0); i < 6; i++ {
		r.msgs = append(r.msgs, kafka.Message{Offset: i})
	}
	c := kafkax.NewConsumerWithReader(r, 3, zaptest.NewLogger(t))

	var handled sync.WaitGroup
	handled.Add(6)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			defer handled.Done()
			if m.Offset%2 == 1 {
				return fmt.Errorf("offset %d failed", m.Offset)
			}
			return nil
		})
	}()

	handled.Wait()
	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []int64{0, 2, 4}, r.committed)
	assert.True(t, r.closed)
}
