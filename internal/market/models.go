package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             string          `json:"id"`
	ShopID         string          `json:"shop_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"available_stock"`
	ImageURL       string          `json:"image_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Shop struct {
	ID          string    `json:"id"`
	ShopName    string    `json:"shop_name"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	CreatedAt   time.Time `json:"created_at"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	PaymentID   string          `json:"payment_id,omitempty"` // assigned by the payment platform, immutable once set
	Txid        string          `json:"txid,omitempty"`       // set on settlement only
	Status      Status          `json:"status"`               // see status.go
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"` // frozen at checkout/approve time
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"` // price snapshot, not re-read later
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// IncompletePayment is the platform's report of a stuck payment: it already
// carries the on-chain transaction reference used for reconciliation.
type IncompletePayment struct {
	Identifier string `json:"identifier"`
	Txid       string `json:"txid"`
	TxURL      string `json:"tx_url"`
}
