package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/checkout"
	"github.com/siibarnut/pimarket/internal/market"
)

type fakeLedger struct {
	mu       sync.Mutex
	products map[string]market.Product
	orders   []market.Order
}

func (f *fakeLedger) ProductByID(_ context.Context, id string) (market.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return market.Product{}, market.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeLedger) CreateOrder(_ context.Context, o market.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

type fakeCarts struct {
	mu    sync.Mutex
	items map[string][]market.CartItem
}

func (f *fakeCarts) Get(_ context.Context, userID string) (market.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return market.Cart{UserID: userID, Items: f.items[userID]}, nil
}

func (f *fakeCarts) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, userID)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(l *fakeLedger, c *fakeCarts) *checkout.Service {
	return &checkout.Service{Carts: c, Ledger: l, Log: zap.NewNop()}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := newService(&fakeLedger{}, &fakeCarts{items: map[string][]market.CartItem{}})

	_, _, err := svc.Checkout(context.Background(), "user-1")
	require.ErrorIs(t, err, market.ErrEmptyCart)
}

func TestCheckoutOutOfStock(t *testing.T) {
	ledger := &fakeLedger{products: map[string]market.Product{
		"prod-1": {ID: "prod-1", Price: dec("10"), AvailableStock: 1},
		"prod-2": {ID: "prod-2", Price: dec("4"), AvailableStock: 9},
	}}
	carts := &fakeCarts{items: map[string][]market.CartItem{
		"user-1": {
			{ProductID: "prod-1", Quantity: 3},
			{ProductID: "prod-2", Quantity: 2},
		},
	}}
	svc := newService(ledger, carts)

	_, shortfalls, err := svc.Checkout(context.Background(), "user-1")
	require.ErrorIs(t, err, market.ErrOutOfStock)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, market.StockShortfall{ProductID: "prod-1", Required: 3, Available: 1}, shortfalls[0])

	// nothing created, cart untouched
	assert.Empty(t, ledger.orders)
	c, _ := carts.Get(context.Background(), "user-1")
	assert.Len(t, c.Items, 2)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	ledger := &fakeLedger{products: map[string]market.Product{}}
	carts := &fakeCarts{items: map[string][]market.CartItem{
		"user-1": {{ProductID: "ghost", Quantity: 1}},
	}}
	svc := newService(ledger, carts)

	_, _, err := svc.Checkout(context.Background(), "user-1")
	require.ErrorIs(t, err, market.ErrProductNotFound)
}

func TestCheckoutFreezesTotalAndConsumesCart(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{products: map[string]market.Product{
		"prod-1": {ID: "prod-1", Price: dec("10"), AvailableStock: 5},
		"prod-2": {ID: "prod-2", Price: dec("0.5"), AvailableStock: 100},
	}}
	carts := &fakeCarts{items: map[string][]market.CartItem{
		"user-1": {
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 4},
		},
	}}
	svc := newService(ledger, carts)

	o, shortfalls, err := svc.Checkout(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, shortfalls)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, market.StatusPendingPayment, o.Status)
	assert.Empty(t, o.PaymentID)
	assert.True(t, o.TotalAmount.Equal(dec("22")), "total = 2*10 + 4*0.5")
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[0].UnitPrice.Equal(dec("10")), "unit price snapshotted")

	require.Len(t, ledger.orders, 1)
	c, _ := carts.Get(ctx, "user-1")
	assert.Empty(t, c.Items)

	// a later price change must not touch the frozen total
	ledger.mu.Lock()
	p := ledger.products["prod-1"]
	p.Price = dec("99")
	ledger.products["prod-1"] = p
	ledger.mu.Unlock()
	assert.True(t, ledger.orders[0].TotalAmount.Equal(dec("22")))
}
