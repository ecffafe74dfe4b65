package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/ledger"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for *store.Store. Mutations go through
// the same ledger rules the SQL transactions use.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]models.User
	items     map[int64]models.Item
	orders    map[int64]models.Order
	refunds   map[int64]models.Refund
	processed map[string]bool

	// purchaseDelay stands in for database latency before the row locks
	purchaseDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[int64]models.User{},
		items:     map[int64]models.Item{},
		orders:    map[int64]models.Order{},
		refunds:   map[int64]models.Refund{},
		processed: map[string]bool{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(funds string, admin bool) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: m.id(), Funds: decimal.RequireFromString(funds), IsAdmin: admin}
	u.Username = fmt.Sprintf("user%d", u.ID)
	m.users[u.ID] = u
	return u
}

func (m *memStore) addItem(price string, quantity int) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := models.Item{ID: m.id(), Title: "item", Price: decimal.RequireFromString(price), Quantity: quantity}
	m.items[it.ID] = it
	return it
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return models.ErrUsernameTaken
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *memStore) CreateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id()
	m.items[item.ID] = *item
	return nil
}

func (m *memStore) UpdateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return models.ErrItemNotFound
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memStore) GetItemByID(_ context.Context, id int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return &it, nil
}

func (m *memStore) ListItems(_ context.Context, limit, offset int) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Item, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return window(items, limit, offset), nil
}

func (m *memStore) CountItems(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memStore) GetItemQuantities(_ context.Context) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := make(map[int64]int, len(m.items))
	for id, it := range m.items {
		q[id] = it.Quantity
	}
	return q, nil
}

func (m *memStore) PurchaseTx(_ context.Context, userID, itemID int64, amount int, now time.Time) (*models.Order, error) {
	time.Sleep(m.purchaseDelay)
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	user, ok := m.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}

	if _, err := ledger.Purchase(&user, &item, amount); err != nil {
		return nil, err
	}

	order := models.Order{
		ID:        m.id(),
		UserID:    userID,
		ItemID:    itemID,
		Amount:    amount,
		UnitPrice: item.Price,
		CreatedAt: now,
	}
	m.users[userID] = user
	m.items[itemID] = item
	m.orders[order.ID] = order
	return &order, nil
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (m *memStore) ListOrders(_ context.Context, limit, offset int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return window(orders, limit, offset), nil
}

func (m *memStore) CreateRefund(_ context.Context, orderID int64, now time.Time) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return nil, models.ErrOrderNotFound
	}
	for _, r := range m.refunds {
		if r.OrderID == orderID {
			return nil, models.ErrRefundExists
		}
	}
	r := models.Refund{ID: m.id(), OrderID: orderID, RefundRequested: true, RequestTime: now}
	m.refunds[r.ID] = r
	return &r, nil
}

func (m *memStore) ApproveRefundTx(_ context.Context, refundID int64) (*store.ApprovedRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[refundID]
	if !ok {
		return nil, models.ErrRefundNotFound
	}
	o, ok := m.orders[r.OrderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	user := m.users[o.UserID]
	item := m.items[o.ItemID]

	credited := ledger.Reverse(&user, &item, &o)

	m.users[user.ID] = user
	m.items[item.ID] = item
	delete(m.refunds, r.ID)
	delete(m.orders, o.ID)
	return &store.ApprovedRefund{Refund: r, Order: o, Credited: credited}, nil
}

func (m *memStore) DenyRefund(_ context.Context, refundID int64) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[refundID]
	if !ok {
		return nil, models.ErrRefundNotFound
	}
	delete(m.refunds, refundID)
	return &r, nil
}

func (m *memStore) ListRefunds(_ context.Context, limit, offset int) ([]models.RefundView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]models.RefundView, 0, len(m.refunds))
	for _, r := range m.refunds {
		o := m.orders[r.OrderID]
		views = append(views, models.RefundView{
			Refund:    r,
			UserID:    o.UserID,
			ItemID:    o.ItemID,
			Amount:    o.Amount,
			UnitPrice: o.UnitPrice,
			OrderedAt: o.CreatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return window(views, limit, offset), nil
}

func (m *memStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

func window[T any](s []T, limit, offset int) []T {
	if offset >= len(s) {
		return []T{}
	}
	end := offset + limit
	if end > len(s) {
		end = len(s)
	}
	return s[offset:end]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	last   interface{}
}

func (p *recordingPublisher) record(eventType string, e interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.last = e
	return nil
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	return p.record(models.EventTypeOrderCreated, e)
}

func (p *recordingPublisher) PublishRefundRequested(_ context.Context, e *models.RefundRequestedEvent) error {
	return p.record(models.EventTypeRefundRequested, e)
}

func (p *recordingPublisher) PublishRefundApproved(_ context.Context, e *models.RefundApprovedEvent) error {
	return p.record(models.EventTypeRefundApproved, e)
}

func (p *recordingPublisher) PublishRefundDenied(_ context.Context, e *models.RefundDeniedEvent) error {
	return p.record(models.EventTypeRefundDenied, e)
}

func (p *recordingPublisher) PublishItemUpserted(_ context.Context, e *models.ItemUpsertedEvent) error {
	return p.record(models.EventTypeItemUpserted, e)
}

type memCache struct {
	mu    sync.Mutex
	keys  map[string]int64
	stock map[int64]int
	locks map[string]string

	// lockErr fails every AcquireLock call, as an unreachable Redis would
	lockErr error
}

// pending marks a reserved idempotency key in memCache
const pending int64 = 0

func newMemCache() *memCache {
	return &memCache{keys: map[string]int64{}, stock: map[int64]int{}, locks: map[string]string{}}
}

func (c *memCache) ReserveIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.keys[key]; taken {
		return false, nil
	}
	c.keys[key] = pending
	return true, nil
}

func (c *memCache) GetIdempotencyKey(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.keys[key]
	if !ok {
		return 0, redisclient.ErrNotCached
	}
	if id == pending {
		return 0, redisclient.ErrPending
	}
	return id, nil
}

func (c *memCache) SetIdempotencyKey(_ context.Context, key string, orderID int64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = orderID
	return nil
}

func (c *memCache) ReleaseIdempotencyKey(_ context.Context, key string, orderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.keys[key]; ok && id == orderID {
		delete(c.keys, key)
	}
	return nil
}

func (c *memCache) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockErr != nil {
		return "", false, c.lockErr
	}
	if _, held := c.locks[lockKey]; held {
		return "", false, nil
	}
	c.locks[lockKey] = "token-" + lockKey
	return c.locks[lockKey], true, nil
}

func (c *memCache) ReleaseLock(_ context.Context, lockKey, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[lockKey] == token {
		delete(c.locks, lockKey)
	}
	return nil
}

func (c *memCache) SetStock(_ context.Context, itemID int64, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[itemID] = quantity
	return nil
}

func (c *memCache) AdjustStock(_ context.Context, itemID int64, delta int) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.stock[itemID]
	if !ok {
		return 0, false, nil
	}
	q += delta
	if q < 0 {
		q = 0
	}
	c.stock[itemID] = q
	return q, true, nil
}

func (c *memCache) GetStock(_ context.Context, itemID int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.stock[itemID]
	if !ok {
		return 0, redisclient.ErrNotCached
	}
	return q, nil
}
