package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/cart"
	"restaurant-system/internal/models"
)

// memStore is an in-memory Store. Writes made inside WithTx are staged and
// only become visible when fn returns nil.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	items    []models.OrderItem
	payments []models.Payment
	logs     []StatusLogEntry
	// failOn names the Writer method that fails
	failOn string
	now    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]models.Order),
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(w Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, orders: make(map[string]models.Order)}
	for id, o := range s.orders {
		tx.orders[id] = o
	}
	if err := fn(tx); err != nil {
		return apperrors.Platform("order transaction", err)
	}

	s.orders = tx.orders
	s.items = append(s.items, tx.items...)
	s.payments = append(s.payments, tx.payments...)
	s.logs = append(s.logs, tx.logs...)
	return nil
}

func (s *memStore) seed(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *memStore) order(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

type memTx struct {
	store    *memStore
	orders   map[string]models.Order
	items    []models.OrderItem
	payments []models.Payment
	logs     []StatusLogEntry
}

var errInjected = errors.New("injected platform failure")

func (t *memTx) fail(op string) error {
	if t.store.failOn == op {
		return apperrors.Platform(op, errInjected)
	}
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *models.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	o.CreatedAt = t.store.now
	o.UpdatedAt = t.store.now
	stored := *o
	stored.Items = nil
	t.orders[o.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, item *models.OrderItem) error {
	if err := t.fail("InsertOrderItem"); err != nil {
		return err
	}
	t.items = append(t.items, *item)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	if err := t.fail("InsertPayment"); err != nil {
		return err
	}
	p.CreatedAt = t.store.now
	t.payments = append(t.payments, *p)
	return nil
}

func (t *memTx) AppendStatusLog(_ context.Context, e StatusLogEntry) error {
	if err := t.fail("AppendStatusLog"); err != nil {
		return err
	}
	t.logs = append(t.logs, e)
	return nil
}

func (t *memTx) LockStatus(_ context.Context, orderID string) (models.OrderStatus, error) {
	if err := t.fail("LockStatus"); err != nil {
		return "", err
	}
	o, ok := t.orders[orderID]
	if !ok {
		return "", fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}
	return o.Status, nil
}

func (t *memTx) UpdateStatus(_ context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if err := t.fail("UpdateStatus"); err != nil {
		return nil, err
	}
	o, ok := t.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = o.UpdatedAt.Add(time.Minute)
	t.orders[orderID] = o
	return &o, nil
}

// memCarts is an in-memory cart.Store
type memCarts struct {
	mu         sync.Mutex
	carts      map[string]*cart.Cart
	deleteErr  error
	releaseErr error
	loadErr    error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]*cart.Cart)}
}

func (m *memCarts) Load(_ context.Context, ownerID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	stored, ok := m.carts[ownerID]
	if !ok {
		return cart.New(), nil
	}
	c := cart.New()
	for _, item := range stored.Items() {
		q := item.Quantity
		item.Quantity = 0
		_ = c.Add(item, q)
	}
	return c, nil
}

func (m *memCarts) Save(ctx context.Context, ownerID string, c *cart.Cart) error {
	if c.IsEmpty() {
		return m.Delete(ctx, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[ownerID] = c
	return nil
}

func (m *memCarts) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.carts, ownerID)
	return nil
}

func (m *memCarts) Release(_ context.Context, ownerID string, ordered *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	stored, ok := m.carts[ownerID]
	if !ok {
		return nil
	}
	stored.Subtract(ordered)
	if stored.IsEmpty() {
		delete(m.carts, ownerID)
	}
	return nil
}

// memMenu is a fixed MenuCatalog
type memMenu map[string]models.MenuItem

func (m memMenu) GetItem(_ context.Context, id string) (*models.MenuItem, error) {
	item, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	return &item, nil
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu      sync.Mutex
	placed  []*models.OrderPlacedMessage
	updates []*models.StatusUpdateMessage
	err     error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, msg *models.OrderPlacedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, msg)
	return p.err
}

func (p *recordingPublisher) PublishStatusUpdate(_ context.Context, msg *models.StatusUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, msg)
	return p.err
}
