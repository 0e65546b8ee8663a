package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/shop-api/internal/events"
	"github.com/fjod/go_cart/shop-api/internal/order/domain"
	"github.com/fjod/go_cart/shop-api/internal/order/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrders struct {
	m           sync.Mutex
	orders      map[string]*domain.Order
	err         error
	transitions int
}

func newMockOrders(refs ...string) *mockOrders {
	m := &mockOrders{orders: map[string]*domain.Order{}}
	for _, ref := range refs {
		m.orders[ref] = &domain.Order{
			ID:          uuid.New(),
			UserID:      "user-" + ref,
			Status:      domain.OrderStatusPending,
			Amount:      decimal.RequireFromString("64.99"),
			ProviderRef: ref,
		}
	}
	return m
}

func (m *mockOrders) TransitionByReference(_ context.Context, ref string, to domain.OrderStatus) (*domain.Order, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	o, ok := m.orders[ref]
	if !ok {
		return nil, false, repository.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		c := *o
		return &c, false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.transitions++
	c := *o
	return &c, true, nil
}

func (m *mockOrders) status(ref string) domain.OrderStatus {
	m.m.Lock()
	defer m.m.Unlock()
	return m.orders[ref].Status
}

type mockCarts struct {
	m       sync.Mutex
	cleared []string
	err     error
}

func (m *mockCarts) ClearCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cleared = append(m.cleared, userID)
	return m.err
}

type published struct {
	eventType string
	event     events.OrderEvent
}

type mockPublisher struct {
	m      sync.Mutex
	events []published
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, eventType string, ev events.OrderEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, published{eventType, ev})
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type fixture struct {
	proc      *WebhookProcessor
	orders    *mockOrders
	carts     *mockCarts
	publisher *mockPublisher
	redis     *miniredis.Miniredis
}

func newFixture(t *testing.T, refs ...string) *fixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		orders:    newMockOrders(refs...),
		carts:     &mockCarts{},
		publisher: &mockPublisher{},
		redis:     mr,
	}
	f.proc = NewWebhookProcessor(
		Config{Secret: testSecret, Tolerance: 5 * time.Minute},
		NewRedisClaims(client, time.Hour),
		f.orders, f.carts, f.publisher, zerolog.Nop(),
	)
	return f
}

func eventBody(id, eventType, ref string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{"id":%q,"metadata":{"userId":"u"}}}}`, id, eventType, ref))
}

func signed(body []byte) string {
	return SignatureHeaderValue(body, testSecret, time.Now())
}

func TestHandle_SucceededTransitionsClearsAndPublishes(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	outcome, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.OrderStatusPaid, f.orders.status("pi_1"))
	assert.Equal(t, []string{"user-pi_1"}, f.carts.cleared)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeOrderPaid, f.publisher.events[0].eventType)
	assert.Equal(t, "paid", f.publisher.events[0].event.Status)
	assert.Equal(t, "evt_1", f.publisher.events[0].event.EventID)
	assert.True(t, f.redis.Exists(claimKey("evt_1")))
}

func TestHandle_SameEventTwiceProcessedOnce(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	first, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	second, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, first)
	assert.Equal(t, OutcomeDuplicate, second)
	assert.Equal(t, 1, f.orders.transitions)
	assert.Len(t, f.carts.cleared, 1)
	assert.Len(t, f.publisher.events, 1)
}

func TestHandle_DifferentEventForFinalOrderIsNoop(t *testing.T) {
	f := newFixture(t, "pi_1")
	paid := eventBody("evt_1", EventPaymentSucceeded, "pi_1")
	_, err := f.proc.Handle(context.Background(), paid, signed(paid))
	require.NoError(t, err)

	failed := eventBody("evt_2", EventPaymentFailed, "pi_1")
	outcome, err := f.proc.Handle(context.Background(), failed, signed(failed))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFinal, outcome)
	assert.Equal(t, domain.OrderStatusPaid, f.orders.status("pi_1"))
	assert.Len(t, f.carts.cleared, 1)
	assert.Len(t, f.publisher.events, 1)
}

func TestHandle_FailedEventDoesNotClearCart(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := eventBody("evt_1", EventPaymentFailed, "pi_1")

	outcome, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.OrderStatusFailed, f.orders.status("pi_1"))
	assert.Empty(t, f.carts.cleared)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeOrderFailed, f.publisher.events[0].eventType)
}

func TestHandle_BadSignatureNeverMutates(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	headers := []string{
		"",
		SignatureHeaderValue(body, []byte("attacker"), time.Now()),
		SignatureHeaderValue(eventBody("evt_1", EventPaymentFailed, "pi_1"), testSecret, time.Now()),
	}
	for _, h := range headers {
		_, err := f.proc.Handle(context.Background(), body, h)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	}

	assert.Equal(t, domain.OrderStatusPending, f.orders.status("pi_1"))
	assert.Zero(t, f.orders.transitions)
	assert.Empty(t, f.carts.cleared)
	assert.False(t, f.redis.Exists(claimKey("evt_1")), "unverified events must not be claimed")
}

func TestHandle_UnknownOrderReleasesClaim(t *testing.T) {
	f := newFixture(t)
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_missing")

	_, err := f.proc.Handle(context.Background(), body, signed(body))
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.False(t, f.redis.Exists(claimKey("evt_1")), "retry must be processed")
}

func TestHandle_StoreErrorThenRetrySucceeds(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	f.orders.err = errors.New("connection reset")
	_, err := f.proc.Handle(context.Background(), body, signed(body))
	require.Error(t, err)

	f.orders.err = nil
	outcome, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, domain.OrderStatusPaid, f.orders.status("pi_1"))
}

func TestHandle_IgnoresOtherTypes(t *testing.T) {
	f := newFixture(t, "pi_1")
	body := []byte(`{"id":"evt_9","type":"charge.refunded","data":{"object":{}}}`)

	outcome, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, domain.OrderStatusPending, f.orders.status("pi_1"))
}

func TestHandle_MalformedEvent(t *testing.T) {
	f := newFixture(t, "pi_1")
	for _, body := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"payment_intent.succeeded"}`),
		eventBody("evt_1", EventPaymentSucceeded, ""),
	} {
		_, err := f.proc.Handle(context.Background(), body, signed(body))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}
}

func TestHandle_ClaimStoreDownStillIdempotent(t *testing.T) {
	f := newFixture(t, "pi_1")
	f.redis.SetError("LOADING")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	first, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	second, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, first)
	assert.Equal(t, OutcomeAlreadyFinal, second)
	assert.Equal(t, 1, f.orders.transitions)
}

func TestHandle_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t, "pi_1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// distinct event ids so only the order guard can stop them
			body := eventBody(fmt.Sprintf("evt_%d", i), EventPaymentSucceeded, "pi_1")
			_, err := f.proc.Handle(context.Background(), body, signed(body))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.orders.transitions)
	assert.Len(t, f.carts.cleared, 1)
}

func TestHandle_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "pi_1")
	f.publisher.err = errors.New("broker down")
	body := eventBody("evt_1", EventPaymentSucceeded, "pi_1")

	outcome, err := f.proc.Handle(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
}
