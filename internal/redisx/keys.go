package redisx

import "time"

const (
	// Cart per user: cart:user:{user_id} -> JSON market.Cart
	KeyCart = "cart:user:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Carts survive a while between sessions, then expire.
	TTLCart  = 30 * 24 * time.Hour
	TTLDedup = 48 * time.Hour
)
