package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/httpx"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/pi"
	"github.com/siibarnut/pimarket/internal/reconcile"
)

// single-order ledger, enough to drive the handler through the engine
type oneOrderLedger struct {
	mu    sync.Mutex
	order *market.Order
}

func (l *oneOrderLedger) OrderByID(_ context.Context, id string) (market.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.order == nil || l.order.ID != id {
		return market.Order{}, market.ErrOrderNotFound
	}
	return *l.order, nil
}

func (l *oneOrderLedger) OrderByPaymentID(_ context.Context, paymentID string) (market.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.order == nil || l.order.PaymentID != paymentID {
		return market.Order{}, market.ErrOrderNotFound
	}
	return *l.order, nil
}

func (l *oneOrderLedger) ProductByID(context.Context, string) (market.Product, error) {
	return market.Product{}, market.ErrProductNotFound
}

func (l *oneOrderLedger) CreateOrder(context.Context, market.Order) error { return nil }

func (l *oneOrderLedger) AttachPayment(context.Context, string, string) error { return nil }

func (l *oneOrderLedger) SettleOrder(_ context.Context, orderID, txid string) ([]market.StockShortfall, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.order.Status != market.StatusPendingPayment {
		return nil, market.ErrConflict
	}
	l.order.Status = market.StatusPaid
	l.order.Txid = txid
	return nil, nil
}

func (l *oneOrderLedger) CancelOrder(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.order.Status != market.StatusPendingPayment {
		return market.ErrConflict
	}
	l.order.Status = market.StatusCancelled
	return nil
}

type noopPlatform struct{}

func (noopPlatform) GetPayment(context.Context, string) (pi.Payment, error) {
	return pi.Payment{}, nil
}
func (noopPlatform) ApprovePayment(context.Context, string) error          { return nil }
func (noopPlatform) CompletePayment(context.Context, string, string) error { return nil }

type staticChain struct{ memo string }

func (c staticChain) Transaction(context.Context, string) (pi.ChainTx, error) {
	return pi.ChainTx{Memo: c.memo, Successful: true}, nil
}

func newServer(ledger *oneOrderLedger, chain reconcile.Chain) *httptest.Server {
	e := reconcile.NewEngine(ledger, noopPlatform{}, chain, zap.NewNop())
	r := httpx.NewRouter()
	(&httpx.PaymentsHandler{Engine: e, Log: zap.NewNop()}).Register(r)
	return httptest.NewServer(r)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCompleteUnknownPaymentIsAcknowledged(t *testing.T) {
	srv := newServer(&oneOrderLedger{}, staticChain{})
	defer srv.Close()

	// webhook replays for foreign payments must not error
	resp := post(t, srv.URL+"/payments/complete", `{"paymentId":"P-ghost","txid":"T1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompleteThenConflictingTxid(t *testing.T) {
	ledger := &oneOrderLedger{order: &market.Order{
		ID: "ord-1", PaymentID: "P1", Status: market.StatusPendingPayment,
	}}
	srv := newServer(ledger, staticChain{})
	defer srv.Close()

	resp := post(t, srv.URL+"/payments/complete", `{"paymentId":"P1","txid":"T1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// replay: still OK
	resp = post(t, srv.URL+"/payments/complete", `{"paymentId":"P1","txid":"T1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// second txid: conflict
	resp = post(t, srv.URL+"/payments/complete", `{"paymentId":"P1","txid":"T2"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIncompleteMemoMismatch(t *testing.T) {
	ledger := &oneOrderLedger{order: &market.Order{
		ID: "ord-1", PaymentID: "P1", Status: market.StatusPendingPayment,
	}}
	srv := newServer(ledger, staticChain{memo: "P-other"})
	defer srv.Close()

	resp := post(t, srv.URL+"/payments/incomplete",
		`{"payment":{"identifier":"P1","transaction":{"txid":"T1","_link":"https://horizon/tx/T1"}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, market.StatusPendingPayment, ledger.order.Status)
}

func TestCancelAfterPaidConflicts(t *testing.T) {
	ledger := &oneOrderLedger{order: &market.Order{
		ID: "ord-1", PaymentID: "P1", Status: market.StatusPaid, Txid: "T1",
	}}
	srv := newServer(ledger, staticChain{})
	defer srv.Close()

	resp := post(t, srv.URL+"/payments/cancelled_payment", `{"paymentId":"P1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApproveRequiresUser(t *testing.T) {
	srv := newServer(&oneOrderLedger{}, staticChain{})
	defer srv.Close()

	resp := post(t, srv.URL+"/payments/approve", `{"paymentId":"P1"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
