package pi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/pi"
)

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/payments/P1", r.URL.Path)
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"identifier": "P1",
			"user_uid":   "u-1",
			"amount":     3.14,
			"memo":       "order",
			"metadata":   map[string]string{"productId": "prod-1"},
		})
	}))
	defer srv.Close()

	c := pi.NewClient(srv.URL, "test-key", 2*time.Second)
	p, err := c.GetPayment(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "P1", p.Identifier)
	assert.Equal(t, "prod-1", p.Metadata.ProductID)
	assert.Empty(t, p.Metadata.OrderID)
	assert.True(t, p.Amount.Equal(decimal.NewFromFloat(3.14)))
}

func TestApproveAndComplete(t *testing.T) {
	var gotPaths []string
	var gotTxid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPaths = append(gotPaths, r.URL.Path)
		if r.Body != nil {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if v, ok := body["txid"]; ok {
				gotTxid = v
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := pi.NewClient(srv.URL, "k", 2*time.Second)
	require.NoError(t, c.ApprovePayment(context.Background(), "P1"))
	require.NoError(t, c.CompletePayment(context.Background(), "P1", "T1"))

	assert.Equal(t, []string{"/v2/payments/P1/approve", "/v2/payments/P1/complete"}, gotPaths)
	assert.Equal(t, "T1", gotTxid)
}

func TestPlatformErrorsAreUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payment not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := pi.NewClient(srv.URL, "k", 2*time.Second)
	_, err := c.GetPayment(context.Background(), "P-ghost")
	require.ErrorIs(t, err, market.ErrUpstream)
}

func TestPlatformTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := pi.NewClient(srv.URL, "k", 50*time.Millisecond)
	err := c.ApprovePayment(context.Background(), "P1")
	require.ErrorIs(t, err, market.ErrUpstream)
}

func TestVerifierTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         "tx-1",
			"hash":       "abc",
			"memo":       "P1",
			"successful": true,
		})
	}))
	defer srv.Close()

	v := pi.NewVerifier(2 * time.Second)
	tx, err := v.Transaction(context.Background(), srv.URL+"/transactions/abc")
	require.NoError(t, err)
	assert.Equal(t, "P1", tx.Memo)
	assert.True(t, tx.Successful)
}

func TestVerifierTimeoutAndStatus(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	v := pi.NewVerifier(50 * time.Millisecond)
	_, err := v.Transaction(context.Background(), slow.URL)
	require.ErrorIs(t, err, market.ErrUpstream)

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer missing.Close()

	v2 := pi.NewVerifier(time.Second)
	_, err = v2.Transaction(context.Background(), missing.URL)
	require.ErrorIs(t, err, market.ErrUpstream)
}
