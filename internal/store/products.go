package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/siibarnut/pimarket/internal/market"
)

func (s *Store) CreateProduct(ctx context.Context, p market.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, shop_id, name, description, category, price, available_stock, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.ShopID, p.Name, p.Description, p.Category, p.Price.String(), p.AvailableStock, p.ImageURL, p.CreatedAt)
	return err
}

func (s *Store) ProductByID(ctx context.Context, id string) (market.Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `
		SELECT id, shop_id, name, description, category, price::text, available_stock, COALESCE(image_url,''), created_at
		FROM products WHERE id=$1`, id))
}

func (s *Store) ListProducts(ctx context.Context, shopID string) ([]market.Product, error) {
	q := `SELECT id, shop_id, name, description, category, price::text, available_stock, COALESCE(image_url,''), created_at
	      FROM products`
	args := []any{}
	if shopID != "" {
		q += ` WHERE shop_id=$1`
		args = append(args, shopID)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (market.Product, error) {
	var (
		p     market.Product
		price string
	)
	err := row.Scan(&p.ID, &p.ShopID, &p.Name, &p.Description, &p.Category, &price, &p.AvailableStock, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, market.ErrProductNotFound
		}
		return p, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return p, fmt.Errorf("price: %w", err)
	}
	return p, nil
}
