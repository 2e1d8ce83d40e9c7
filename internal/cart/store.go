package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/redisx"
)

// Store keeps one JSON cart per user in Redis. The cart is scratch state:
// checkout consumes it, and stale carts just expire.
type Store struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{Redis: rdb, TTL: redisx.TTLCart}
}

func key(userID string) string { return fmt.Sprintf(redisx.KeyCart, userID) }

func (s *Store) Get(ctx context.Context, userID string) (market.Cart, error) {
	c := market.Cart{UserID: userID}

	data, err := s.Redis.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return c, nil // no cart yet
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return c, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func (s *Store) save(ctx context.Context, c market.Cart) error {
	c.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, key(c.UserID), b, s.TTL).Err()
}

// AddItem increments the quantity if the product is already in the cart.
func (s *Store) AddItem(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			return s.save(ctx, c)
		}
	}
	c.Items = append(c.Items, market.CartItem{ProductID: productID, Quantity: qty})
	return s.save(ctx, c)
}

// SetQuantity overwrites the quantity of an existing line.
func (s *Store) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", market.ErrValidation)
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			return s.save(ctx, c)
		}
	}
	return fmt.Errorf("%w: product %s not in cart", market.ErrValidation, productID)
}

func (s *Store) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			if len(c.Items) == 0 {
				return true, s.Clear(ctx, userID)
			}
			return true, s.save(ctx, c)
		}
	}
	return false, nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, key(userID)).Err()
}
