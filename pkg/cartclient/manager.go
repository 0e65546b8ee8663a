// Package cartclient keeps a shopper's working cart and mirrors it to the
// server in the background.
//
// Mutations apply locally first and never wait on the network. While a
// session is attached, every committed mutation pushes the full snapshot
// together with a monotonically increasing mutation counter; the server
// drops pushes whose counter is not newer than the last one it accepted.
package cartclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/shop-api/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrNegativeQuantity = errors.New("quantity must not be negative")

// RemoteCart is the server's view of the cart.
type RemoteCart struct {
	Items map[string]int
	Seq   int64
}

type Syncer interface {
	Push(ctx context.Context, token string, items map[string]int, seq int64) error
	Fetch(ctx context.Context, token string) (RemoteCart, error)
}

// Notifier surfaces failed pushes to the user. The local cart stays
// correct and the next mutation pushes again.
type Notifier interface {
	SyncFailed(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) SyncFailed(err error) { f(err) }

type Option func(*Manager)

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithPushTimeout(d time.Duration) Option {
	return func(m *Manager) { m.pushTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

type Manager struct {
	mu    sync.Mutex
	items map[string]int
	seq   int64
	token string

	syncer      Syncer
	catalog     catalog.Catalog
	notifier    Notifier
	pushTimeout time.Duration
	log         zerolog.Logger

	inflight sync.WaitGroup
}

func NewManager(syncer Syncer, cat catalog.Catalog, opts ...Option) *Manager {
	m := &Manager{
		items:       make(map[string]int),
		syncer:      syncer,
		catalog:     cat,
		notifier:    NotifierFunc(func(error) {}),
		pushTimeout: 10 * time.Second,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add increments productID by one, creating it at 1.
func (m *Manager) Add(productID string) {
	if productID == "" {
		return
	}
	m.mutate(func(items map[string]int) bool {
		items[productID]++
		return true
	})
}

// SetQuantity sets an explicit quantity; 0 removes the product.
func (m *Manager) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeQuantity, quantity)
	}
	if productID == "" {
		return nil
	}
	m.mutate(func(items map[string]int) bool {
		current, ok := items[productID]
		if quantity == 0 {
			delete(items, productID)
			return ok
		}
		items[productID] = quantity
		return current != quantity
	})
	return nil
}

// Remove decrements productID by one and drops it at zero. Removing an
// absent product changes nothing and pushes nothing.
func (m *Manager) Remove(productID string) {
	m.mutate(func(items map[string]int) bool {
		qty, ok := items[productID]
		if !ok {
			return false
		}
		if qty <= 1 {
			delete(items, productID)
		} else {
			items[productID] = qty - 1
		}
		return true
	})
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, qty := range m.items {
		total += qty
	}
	return total
}

func (m *Manager) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyItems(m.items)
}

// Seq is the current mutation counter.
func (m *Manager) Seq() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// TotalAmount sums quantity × offer price over products the catalog knows,
// floored to cents. Unknown products are skipped.
func (m *Manager) TotalAmount(ctx context.Context) (decimal.Decimal, error) {
	items := m.Snapshot()

	total := decimal.Zero
	for id, qty := range items {
		price, ok, err := m.catalog.OfferPrice(ctx, id)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price for %s: %w", id, err)
		}
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.RoundFloor(2), nil
}

// Attach binds a session. The server's counter becomes the floor for local
// mutations. A non-empty local cart is pushed as the authoritative copy;
// otherwise the server cart is adopted. A fetch error leaves the manager
// detached. If only the initial push fails the session stays bound and the
// next mutation pushes again.
func (m *Manager) Attach(ctx context.Context, token string) error {
	remote, err := m.syncer.Fetch(ctx, token)
	if err != nil {
		return fmt.Errorf("fetch server cart: %w", err)
	}

	m.mu.Lock()
	m.token = token
	if remote.Seq > m.seq {
		m.seq = remote.Seq
	}
	if len(m.items) == 0 {
		m.items = copyItems(remote.Items)
		m.mu.Unlock()
		return nil
	}
	m.seq++
	items, seq := copyItems(m.items), m.seq
	m.mu.Unlock()

	err = m.syncer.Push(ctx, token, items, seq)
	if errors.Is(err, ErrStale) {
		_, err = m.resync(ctx, token, seq)
	}
	if err != nil {
		return fmt.Errorf("push local cart: %w", err)
	}
	return nil
}

// Detach drops the session; later mutations stay local.
func (m *Manager) Detach() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

// Flush waits for pushes already in flight.
func (m *Manager) Flush() {
	m.inflight.Wait()
}

func (m *Manager) mutate(apply func(items map[string]int) bool) {
	m.mu.Lock()
	if !apply(m.items) {
		m.mu.Unlock()
		return
	}
	m.seq++
	token, items, seq := m.token, copyItems(m.items), m.seq
	m.mu.Unlock()

	if token != "" {
		m.schedulePush(token, items, seq)
	}
}

func (m *Manager) schedulePush(token string, items map[string]int, seq int64) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.pushTimeout)
		defer cancel()

		err := m.syncer.Push(ctx, token, items, seq)
		if errors.Is(err, ErrStale) {
			var resynced bool
			resynced, err = m.resync(ctx, token, seq)
			if err == nil && !resynced {
				m.log.Debug().Int64("seq", seq).Msg("push superseded")
			}
		}
		if err != nil {
			m.log.Warn().Err(err).Int64("seq", seq).Msg("cart push failed")
			m.notifier.SyncFailed(err)
		}
	}()
}

// resync handles a push the server rejected as stale. If a newer local
// mutation exists its own push carries the cart and nothing is done.
// Otherwise the server counter was raised by another writer: the floor moves
// past it and the working cart is pushed again once.
func (m *Manager) resync(ctx context.Context, token string, rejected int64) (bool, error) {
	if !m.isLatest(token, rejected) {
		return false, nil
	}

	remote, err := m.syncer.Fetch(ctx, token)
	if err != nil {
		return true, fmt.Errorf("refetch after stale push: %w", err)
	}

	m.mu.Lock()
	if m.token != token || m.seq != rejected {
		m.mu.Unlock()
		return false, nil
	}
	if remote.Seq > m.seq {
		m.seq = remote.Seq
	}
	m.seq++
	items, seq := copyItems(m.items), m.seq
	m.mu.Unlock()

	m.log.Debug().Int64("rejected", rejected).Int64("server_seq", remote.Seq).Msg("cart counter behind server, pushing again")
	err = m.syncer.Push(ctx, token, items, seq)
	if errors.Is(err, ErrStale) && !m.isLatest(token, seq) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("push after resync: %w", err)
	}
	return true, nil
}

func (m *Manager) isLatest(token string, seq int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token == token && m.seq == seq
}

func copyItems(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for id, qty := range in {
		if qty > 0 {
			out[id] = qty
		}
	}
	return out
}
