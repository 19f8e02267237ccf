package order

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/cart"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

type testEnv struct {
	store  *memStore
	carts  *memCarts
	events *recordingPublisher
	logs   *bytes.Buffer
	svc    *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:  newMemStore(),
		carts:  newMemCarts(),
		events: &recordingPublisher{},
		logs:   &bytes.Buffer{},
	}
	menu := memMenu{
		"a":       {ID: "a", Name: "Margherita", Price: decimal.RequireFromString("8.99"), IsAvailable: true},
		"b":       {ID: "b", Name: "Family Platter", Price: decimal.RequireFromString("32.99"), IsAvailable: true},
		"soldout": {ID: "soldout", Name: "Truffle Risotto", Price: decimal.RequireFromString("24.00"), IsAvailable: false},
	}
	env.svc = NewService(env.store, env.carts, menu, env.events, logger.NewWithWriter("order-test", env.logs))
	return env
}

var (
	customer = auth.Actor{UserID: "cust-1", Role: models.RoleCustomer}
	staff    = auth.Actor{UserID: "staff-1", Role: models.RoleStaff}
	admin    = auth.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func TestCheckoutExample(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := sampleCart(t)
	require.NoError(t, env.carts.Save(ctx, customer.UserID, c))

	assert.True(t, c.TotalAmount().Equal(decimal.RequireFromString("74.97")))

	result, err := env.svc.Checkout(ctx, customer, c, CheckoutRequest{
		OrderType:     models.Takeaway,
		PaymentMethod: models.PaymentCard,
		TableNumber:   intPtr(7),
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, customer.UserID, order.CustomerID)
	assert.Nil(t, order.TableNumber, "table number only applies to dine-in")
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("74.97")))

	require.Len(t, env.store.items, 2)
	subtotals := map[string]decimal.Decimal{}
	sum := decimal.Zero
	for _, item := range env.store.items {
		assert.Equal(t, order.ID, item.OrderID)
		subtotals[item.MenuItemID] = item.Subtotal
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, subtotals["a"].Equal(decimal.RequireFromString("8.99")))
	assert.True(t, subtotals["b"].Equal(decimal.RequireFromString("65.98")))

	require.Len(t, env.store.payments, 1)
	payment := env.store.payments[0]
	assert.True(t, payment.Amount.Equal(order.TotalAmount))
	assert.True(t, sum.Equal(order.TotalAmount))
	assert.Equal(t, models.PaymentCard, payment.Method)
	assert.Equal(t, models.PaymentCompleted, payment.Status)

	require.Len(t, env.store.logs, 1)
	assert.Nil(t, env.store.logs[0].PrevStatus)
	assert.Equal(t, models.StatusPending, env.store.logs[0].Status)

	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalAmount().IsZero())
	stored, err := env.carts.Load(ctx, customer.UserID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())

	require.Len(t, env.events.placed, 1)
	assert.Equal(t, order.ID, env.events.placed[0].OrderID)
	assert.Equal(t, models.Takeaway, env.events.placed[0].OrderType)
}

func TestCheckoutDineInKeepsTable(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.Checkout(context.Background(), customer, sampleCart(t), CheckoutRequest{
		OrderType:     models.DineIn,
		TableNumber:   intPtr(12),
		PaymentMethod: models.PaymentCash,
		Notes:         strPtr("  window seat  "),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order.TableNumber)
	assert.Equal(t, 12, *result.Order.TableNumber)
	require.NotNil(t, result.Order.Notes)
	assert.Equal(t, "window seat", *result.Order.Notes)
}

func TestCheckoutRejectedBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name  string
		actor auth.Actor
		cart  func(t *testing.T) *cart.Cart
		req   CheckoutRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "dine-in without table",
			actor: customer,
			cart:  sampleCart,
			req:   CheckoutRequest{OrderType: models.DineIn, PaymentMethod: models.PaymentCard},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsValidation(err)) },
		},
		{
			name:  "empty cart",
			actor: customer,
			cart:  func(t *testing.T) *cart.Cart { return cart.New() },
			req:   CheckoutRequest{OrderType: models.Takeaway, PaymentMethod: models.PaymentCard},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsValidation(err)) },
		},
		{
			name:  "anonymous actor",
			actor: auth.Actor{},
			cart:  sampleCart,
			req:   CheckoutRequest{OrderType: models.Takeaway, PaymentMethod: models.PaymentCard},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, apperrors.ErrUnauthenticated) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			c := tt.cart(t)
			before := c.Len()

			_, err := env.svc.Checkout(context.Background(), tt.actor, c, tt.req)
			require.Error(t, err)
			tt.check(t, err)

			assert.Empty(t, env.store.orders)
			assert.Empty(t, env.store.items)
			assert.Empty(t, env.store.payments)
			assert.Empty(t, env.events.placed)
			assert.Equal(t, before, c.Len(), "cart must survive a rejected checkout")
		})
	}
}

func TestCheckoutFailureLeavesNoPartialOrder(t *testing.T) {
	for _, step := range []string{"InsertOrder", "InsertOrderItem", "InsertPayment", "AppendStatusLog"} {
		t.Run(step, func(t *testing.T) {
			env := newTestEnv()
			env.store.failOn = step
			c := sampleCart(t)

			_, err := env.svc.Checkout(context.Background(), customer, c, CheckoutRequest{
				OrderType:     models.Delivery,
				PaymentMethod: models.PaymentMobile,
			})
			require.Error(t, err)
			assert.True(t, apperrors.IsPlatform(err))
			assert.ErrorIs(t, err, errInjected)

			assert.Empty(t, env.store.orders)
			assert.Empty(t, env.store.items)
			assert.Empty(t, env.store.payments)
			assert.Empty(t, env.store.logs)
			assert.Equal(t, 2, c.Len(), "cart is cleared only after commit")
			assert.Empty(t, env.events.placed)
		})
	}
}

func TestCheckoutSurvivesSideEffectFailures(t *testing.T) {
	env := newTestEnv()
	env.carts.releaseErr = errors.New("redis down")
	env.events.err = errors.New("broker down")

	result, err := env.svc.Checkout(context.Background(), customer, sampleCart(t), CheckoutRequest{
		OrderType:     models.Takeaway,
		PaymentMethod: models.PaymentCard,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Order.ID)
	assert.Contains(t, env.logs.String(), "cart_clear_failed")
	assert.Contains(t, env.logs.String(), "order_event_failed")
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	env := newTestEnv()
	c := cart.New()
	require.NoError(t, c.Add(cart.Item{ID: "a", Name: "Margherita", UnitPrice: decimal.RequireFromString("8.99")}, 3))

	result, err := env.svc.Checkout(context.Background(), customer, c, CheckoutRequest{
		OrderType:     models.Takeaway,
		PaymentMethod: models.PaymentCash,
	})
	require.NoError(t, err)

	require.Len(t, result.Order.Items, 1)
	item := result.Order.Items[0]
	assert.Equal(t, "Margherita", item.ItemName)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("8.99")))
	assert.True(t, item.Subtotal.Equal(decimal.RequireFromString("26.97")))
}

func placedOrder(env *testEnv, status models.OrderStatus) string {
	id := uuid.NewString()
	env.store.seed(models.Order{
		ID:          id,
		CustomerID:  customer.UserID,
		Type:        models.Takeaway,
		TotalAmount: decimal.RequireFromString("10.00"),
		Status:      status,
		CreatedAt:   env.store.now,
		UpdatedAt:   env.store.now,
	})
	return id
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := placedOrder(env, models.StatusPending)

	updated, err := env.svc.SetStatus(ctx, staff, id, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, updated.Status)
	assert.True(t, updated.UpdatedAt.After(env.store.now))

	require.Len(t, env.store.logs, 1)
	require.NotNil(t, env.store.logs[0].PrevStatus)
	assert.Equal(t, models.StatusPending, *env.store.logs[0].PrevStatus)
	assert.Equal(t, staff.UserID, env.store.logs[0].ChangedBy)

	require.Len(t, env.events.updates, 1)
	assert.Equal(t, models.StatusPending, env.events.updates[0].OldStatus)
	assert.Equal(t, models.StatusPreparing, env.events.updates[0].NewStatus)

	again, err := env.svc.SetStatus(ctx, admin, id, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, again.Status)
	assert.Len(t, env.store.logs, 1, "repeating a status is not a transition")
	assert.Len(t, env.events.updates, 1)
}

func TestSetStatusAllowsAnyMoveFromNonTerminal(t *testing.T) {
	env := newTestEnv()
	id := placedOrder(env, models.StatusReady)

	updated, err := env.svc.SetStatus(context.Background(), staff, id, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestSetStatusTerminal(t *testing.T) {
	for _, terminal := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			env := newTestEnv()
			id := placedOrder(env, terminal)

			_, err := env.svc.SetStatus(context.Background(), staff, id, models.StatusPreparing)
			assert.True(t, apperrors.IsConflict(err))

			o, _ := env.store.order(id)
			assert.Equal(t, terminal, o.Status)

			_, err = env.svc.SetStatus(context.Background(), staff, id, terminal)
			assert.NoError(t, err)
			assert.Empty(t, env.store.logs)
		})
	}
}

func TestAdvanceStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := placedOrder(env, models.StatusPending)

	updated, err := env.svc.AdvanceStatus(ctx, staff, id, models.StatusPending, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, updated.Status)
	require.Len(t, env.events.updates, 1)

	_, err = env.svc.AdvanceStatus(ctx, staff, id, models.StatusPending, models.StatusPreparing)
	assert.True(t, apperrors.IsConflict(err), "a second advance from pending finds the order already moved")
	assert.Len(t, env.store.logs, 1)
	assert.Len(t, env.events.updates, 1)

	_, err = env.svc.AdvanceStatus(ctx, customer, id, models.StatusPreparing, models.StatusReady)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSetStatusErrors(t *testing.T) {
	env := newTestEnv()
	id := placedOrder(env, models.StatusPending)

	tests := []struct {
		name    string
		actor   auth.Actor
		orderID string
		status  models.OrderStatus
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown order",
			actor:   staff,
			orderID: uuid.NewString(),
			status:  models.StatusReady,
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, apperrors.ErrNotFound) },
		},
		{
			name:    "malformed id",
			actor:   staff,
			orderID: "not-a-uuid",
			status:  models.StatusReady,
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, apperrors.ErrNotFound) },
		},
		{
			name:    "customer forbidden",
			actor:   customer,
			orderID: id,
			status:  models.StatusCancelled,
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, apperrors.ErrForbidden) },
		},
		{
			name:    "anonymous",
			actor:   auth.Actor{},
			orderID: id,
			status:  models.StatusReady,
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, apperrors.ErrUnauthenticated) },
		},
		{
			name:    "invalid status",
			actor:   staff,
			orderID: id,
			status:  "cooking",
			check:   func(t *testing.T, err error) { assert.True(t, apperrors.IsValidation(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.SetStatus(context.Background(), tt.actor, tt.orderID, tt.status)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	assert.Empty(t, env.store.logs, "failed status changes write nothing")
	o, _ := env.store.order(id)
	assert.Equal(t, models.StatusPending, o.Status)
}

func TestSetStatusPublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv()
	env.events.err = errors.New("broker down")
	id := placedOrder(env, models.StatusPending)

	updated, err := env.svc.SetStatus(context.Background(), staff, id, models.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)
	assert.Contains(t, env.logs.String(), "status_event_failed")
}

func TestCartOperations(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a"})
	require.NoError(t, err)
	item, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, "Margherita", item.Name)

	c, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a", Quantity: 2, SpecialInstructions: "extra basil"})
	require.NoError(t, err)
	item, _ = c.Get("a")
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "extra basil", item.SpecialInstructions)

	c, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "b", Quantity: 2})
	require.NoError(t, err)
	assert.True(t, c.TotalAmount().Equal(decimal.RequireFromString("92.95")))

	c, err = env.svc.UpdateCartItem(ctx, customer, "a", 1)
	require.NoError(t, err)
	assert.True(t, c.TotalAmount().Equal(decimal.RequireFromString("74.97")))

	c, err = env.svc.UpdateCartItem(ctx, customer, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c, err = env.svc.RemoveCartItem(ctx, customer, "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, env.svc.ClearCart(ctx, customer))
	c, err = env.svc.GetCart(ctx, customer)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCartQuantityLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a", Quantity: cart.MaxQuantity})
	require.NoError(t, err)

	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a", Quantity: 1})
	assert.True(t, apperrors.IsValidation(err), "err = %v", err)

	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "b", Quantity: math.MaxInt})
	assert.True(t, apperrors.IsValidation(err), "err = %v", err)

	_, err = env.svc.UpdateCartItem(ctx, customer, "a", cart.MaxQuantity+1)
	assert.True(t, apperrors.IsValidation(err), "err = %v", err)

	c, err := env.svc.GetCart(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	item, _ := c.Get("a")
	assert.Equal(t, cart.MaxQuantity, item.Quantity)
}

func TestCheckoutKeepsItemsAddedDuringCheckout(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a", Quantity: 2})
	require.NoError(t, err)
	loaded, err := env.svc.GetCart(ctx, customer)
	require.NoError(t, err)

	// Another session adds to the same cart before checkout commits.
	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a"})
	require.NoError(t, err)
	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "b"})
	require.NoError(t, err)

	result, err := env.svc.Checkout(ctx, customer, loaded, CheckoutRequest{
		OrderType:     models.Takeaway,
		PaymentMethod: models.PaymentCash,
	})
	require.NoError(t, err)
	assert.True(t, result.Order.TotalAmount.Equal(decimal.RequireFromString("17.98")))

	left, err := env.svc.GetCart(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 2, left.Len())
	a, _ := left.Get("a")
	assert.Equal(t, 1, a.Quantity)
	_, ok := left.Get("b")
	assert.True(t, ok)
}

func TestAddToCartErrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "soldout"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{MenuItemID: "a", Quantity: -1})
	assert.True(t, apperrors.IsValidation(err))

	_, err = env.svc.AddToCart(ctx, customer, AddCartItemRequest{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = env.svc.AddToCart(ctx, auth.Actor{}, AddCartItemRequest{MenuItemID: "a"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	c, err := env.svc.GetCart(ctx, customer)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCartStoreFailureIsSurfaced(t *testing.T) {
	env := newTestEnv()
	env.carts.loadErr = apperrors.Platform("load cart", errors.New("redis down"))

	_, err := env.svc.GetCart(context.Background(), customer)
	assert.True(t, apperrors.IsPlatform(err))
}
