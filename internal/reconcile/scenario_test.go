package reconcile_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/checkout"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/pi"
)

type memCarts struct {
	mu    sync.Mutex
	carts map[string]market.Cart
}

func (m *memCarts) Get(_ context.Context, userID string) (market.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return market.Cart{UserID: userID}, nil
	}
	return c, nil
}

func (m *memCarts) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// Full happy path plus the replay/conflict edges: checkout freezes the
// total, approve binds the platform payment, complete settles exactly once.
func TestCheckoutToSettlement(t *testing.T) {
	ctx := context.Background()

	ledger := newMemLedger()
	ledger.addProduct(market.Product{ID: "productA", Price: dec("10"), AvailableStock: 5})

	carts := &memCarts{carts: map[string]market.Cart{
		"user-1": {UserID: "user-1", Items: []market.CartItem{{ProductID: "productA", Quantity: 2}}},
	}}

	co := &checkout.Service{
		Carts:  carts,
		Ledger: ledger,
		Log:    zap.NewNop(),
	}

	o, shortfalls, err := co.Checkout(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, shortfalls)
	assert.Equal(t, market.StatusPendingPayment, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("20")))

	// cart fully consumed
	c, err := carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	// checkout reserves nothing
	assert.Equal(t, 5, ledger.stock("productA"))

	platform := newFakePlatform()
	platform.payments["P1"] = pi.Payment{
		Identifier: "P1",
		Amount:     dec("20"),
		Metadata:   pi.PaymentMetadata{OrderID: o.ID},
	}
	e := newEngine(ledger, platform, nil)

	require.NoError(t, e.Approve(ctx, "P1", "user-1"))

	require.NoError(t, e.Complete(ctx, "P1", "T1"))
	got, err := ledger.OrderByPaymentID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, market.StatusPaid, got.Status)
	assert.Equal(t, "T1", got.Txid)
	assert.Equal(t, 3, ledger.stock("productA"))

	// duplicate delivery is a no-op success
	require.NoError(t, e.Complete(ctx, "P1", "T1"))
	assert.Equal(t, 3, ledger.stock("productA"))

	// second txid for the same payment is a conflict
	require.ErrorIs(t, e.Complete(ctx, "P1", "T2"), market.ErrConflict)
	got, _ = ledger.OrderByPaymentID(ctx, "P1")
	assert.Equal(t, "T1", got.Txid)
}
