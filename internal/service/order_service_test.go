package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrderService(st *memStore) (*OrderService, *recordingPublisher, *memCache) {
	pub := &recordingPublisher{}
	cache := newMemCache()
	svc := NewOrderService(st, cache, pub, time.Hour, 10)
	return svc, pub, cache
}

func TestCreateOrderDebitsFundsAndStock(t *testing.T) {
	st := newMemStore()
	user := st.addUser("1000", false)
	item := st.addItem("100", 5)
	svc, pub, _ := newTestOrderService(st)

	resp, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: user.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 2})
	require.NoError(t, err)

	assert.False(t, resp.Replayed)
	assert.Equal(t, 2, resp.Order.Amount)
	assert.Equal(t, "200", resp.Order.Total.String())

	u, _ := st.GetUserByID(context.Background(), user.ID)
	it, _ := st.GetItemByID(context.Background(), item.ID)
	assert.Equal(t, "800", u.Funds.String())
	assert.Equal(t, 3, it.Quantity)
	assert.Equal(t, []string{models.EventTypeOrderCreated}, pub.events)
}

func TestCreateOrderOutOfStock(t *testing.T) {
	st := newMemStore()
	user := st.addUser("1000", false)
	item := st.addItem("10", 3)
	svc, pub, _ := newTestOrderService(st)

	_, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: user.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 10})
	assert.ErrorIs(t, err, models.ErrOutOfStock)

	u, _ := st.GetUserByID(context.Background(), user.ID)
	it, _ := st.GetItemByID(context.Background(), item.ID)
	assert.Equal(t, "1000", u.Funds.String())
	assert.Equal(t, 3, it.Quantity)
	assert.Empty(t, pub.events)
}

func TestCreateOrderInsufficientFunds(t *testing.T) {
	st := newMemStore()
	user := st.addUser("150", false)
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)

	_, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: user.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 2})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	it, _ := st.GetItemByID(context.Background(), item.ID)
	assert.Equal(t, 5, it.Quantity)
}

func TestCreateOrderExactBalance(t *testing.T) {
	st := newMemStore()
	user := st.addUser("200", false)
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)

	_, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: user.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 2})
	require.NoError(t, err)

	u, _ := st.GetUserByID(context.Background(), user.ID)
	assert.True(t, u.Funds.IsZero())
}

func TestCreateOrderRequiresUser(t *testing.T) {
	st := newMemStore()
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)

	_, err := svc.CreateOrder(context.Background(), auth.Identity{},
		&CreateOrderRequest{ItemID: item.ID, Amount: 1})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = svc.CreateOrder(context.Background(), auth.Identity{UserID: 999},
		&CreateOrderRequest{ItemID: item.ID, Amount: 1})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestCreateOrderReplaysIdempotencyKey(t *testing.T) {
	st := newMemStore()
	user := st.addUser("1000", false)
	item := st.addItem("100", 5)
	svc, pub, _ := newTestOrderService(st)
	id := auth.Identity{UserID: user.ID}

	first, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "abc"})
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "abc"})
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	u, _ := st.GetUserByID(context.Background(), user.ID)
	assert.Equal(t, "900", u.Funds.String())
	assert.Len(t, pub.events, 1)
}

func TestConcurrentRetriesWithSameKeyBuyOnce(t *testing.T) {
	st := newMemStore()
	st.purchaseDelay = 20 * time.Millisecond
	user := st.addUser("1000", false)
	item := st.addItem("100", 10)
	svc, _, _ := newTestOrderService(st)
	id := auth.Identity{UserID: user.ID}

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrder(context.Background(), id,
				&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "retry"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrOrderInProgress)
		}
	}

	orders, err := st.GetOrdersByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	u, _ := st.GetUserByID(context.Background(), user.ID)
	assert.Equal(t, "900", u.Funds.String())

	replay, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "retry"})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, orders[0].ID, replay.Order.ID)
}

func TestFailedPurchaseFreesIdempotencyKey(t *testing.T) {
	st := newMemStore()
	user := st.addUser("50", false)
	item := st.addItem("100", 5)
	svc, _, cache := newTestOrderService(st)
	id := auth.Identity{UserID: user.ID}

	_, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "topup"})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Empty(t, cache.keys)

	st.mu.Lock()
	u := st.users[user.ID]
	u.Funds = decimal.NewFromInt(500)
	st.users[user.ID] = u
	st.mu.Unlock()

	resp, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "topup"})
	require.NoError(t, err)
	assert.False(t, resp.Replayed)
}

func TestRefundedOrderFreesIdempotencyKey(t *testing.T) {
	st := newMemStore()
	user := st.addUser("1000", false)
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)
	id := auth.Identity{UserID: user.ID}

	first, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "again"})
	require.NoError(t, err)

	refund, err := st.CreateRefund(context.Background(), first.Order.ID, time.Now())
	require.NoError(t, err)
	_, err = st.ApproveRefundTx(context.Background(), refund.ID)
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), id,
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "again"})
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	st := newMemStore()
	alice := st.addUser("1000", false)
	bob := st.addUser("1000", false)
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)

	a, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: alice.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "same"})
	require.NoError(t, err)
	b, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: bob.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 1, IdempotencyKey: "same"})
	require.NoError(t, err)

	assert.False(t, b.Replayed)
	assert.NotEqual(t, a.Order.ID, b.Order.ID)
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	st := newMemStore()
	owner := st.addUser("1000", false)
	other := st.addUser("1000", false)
	admin := st.addUser("0", true)
	item := st.addItem("100", 5)
	svc, _, _ := newTestOrderService(st)

	resp, err := svc.CreateOrder(context.Background(), auth.Identity{UserID: owner.ID},
		&CreateOrderRequest{ItemID: item.ID, Amount: 1})
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), auth.Identity{UserID: other.ID}, resp.Order.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	view, err := svc.GetOrder(context.Background(), auth.Identity{UserID: admin.ID, IsAdmin: true}, resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, view.UserID)
}

func TestListOrders(t *testing.T) {
	st := newMemStore()
	alice := st.addUser("1000", false)
	bob := st.addUser("1000", false)
	item := st.addItem("10", 10)
	svc, _, _ := newTestOrderService(st)
	ctx := context.Background()

	for _, u := range []models.User{alice, alice, bob} {
		_, err := svc.CreateOrder(ctx, auth.Identity{UserID: u.ID}, &CreateOrderRequest{ItemID: item.ID, Amount: 1})
		require.NoError(t, err)
	}

	own, err := svc.ListOrders(ctx, auth.Identity{UserID: alice.ID}, 1)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	all, err := svc.ListOrders(ctx, auth.Identity{UserID: alice.ID, IsAdmin: true}, 1)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPageOffset(t *testing.T) {
	limit, offset := pageOffset(0, 10)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)

	_, offset = pageOffset(3, 10)
	assert.Equal(t, 20, offset)
}
