package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/siibarnut/pimarket/internal/market"
)

func (s *Store) CreateShop(ctx context.Context, sh market.Shop) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO shops(id, shop_name, full_name, email, phone_number, country, city, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sh.ID, sh.ShopName, sh.FullName, sh.Email, sh.PhoneNumber, sh.Country, sh.City, sh.CreatedAt)
	return err
}

func (s *Store) ShopByID(ctx context.Context, id string) (market.Shop, error) {
	var sh market.Shop
	err := s.DB.QueryRow(ctx, `
		SELECT id, shop_name, full_name, email, phone_number, country, city, created_at
		FROM shops WHERE id=$1`, id).
		Scan(&sh.ID, &sh.ShopName, &sh.FullName, &sh.Email, &sh.PhoneNumber, &sh.Country, &sh.City, &sh.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sh, market.ErrShopNotFound
	}
	return sh, err
}

func (s *Store) ListShops(ctx context.Context) ([]market.Shop, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, shop_name, full_name, email, phone_number, country, city, created_at
		FROM shops ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Shop
	for rows.Next() {
		var sh market.Shop
		if err := rows.Scan(&sh.ID, &sh.ShopName, &sh.FullName, &sh.Email, &sh.PhoneNumber, &sh.Country, &sh.City, &sh.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}
