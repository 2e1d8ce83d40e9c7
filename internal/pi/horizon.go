package pi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/market"
)

// Verifier fetches transactions from the public chain (Horizon). The URL
// comes from the platform's payment record, so only the timeout is ours.
type Verifier struct {
	http *http.Client
}

func NewVerifier(timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Verifier{http: &http.Client{Timeout: timeout}}
}

type ChainTx struct {
	ID         string          `json:"id"`
	Hash       string          `json:"hash"`
	Memo       string          `json:"memo"`
	Successful bool            `json:"successful"`
	FeeCharged decimal.Decimal `json:"fee_charged"`
}

func (v *Verifier) Transaction(ctx context.Context, txURL string) (ChainTx, error) {
	var tx ChainTx

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, txURL, nil)
	if err != nil {
		return tx, err
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return tx, fmt.Errorf("%w: horizon GET %s: %v", market.ErrUpstream, txURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tx, fmt.Errorf("%w: horizon GET %s: status %d: %s", market.ErrUpstream, txURL, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return tx, fmt.Errorf("%w: horizon GET %s: decode: %v", market.ErrUpstream, txURL, err)
	}
	return tx, nil
}
