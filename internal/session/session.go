// Package session provides the key-value session storage behind the cart
// store and the other per-session values (pending order id, client data).
package session

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
)

// Well-known session value keys.
const (
	KeyOrderID    = "order_id"
	KeyClientData = "client_data"
)

// Store is a session backend. Sessions are identified by an opaque id taken
// from the session cookie.
type Store interface {
	cart.Backend

	Value(ctx context.Context, sessionID, key string) (string, bool, error)
	SetValue(ctx context.Context, sessionID, key, value string) error
	DeleteValue(ctx context.Context, sessionID, key string) error
	Destroy(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// PopValue reads and removes a value.
func PopValue(ctx context.Context, s Store, sessionID, key string) (string, bool, error) {
	v, ok, err := s.Value(ctx, sessionID, key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := s.DeleteValue(ctx, sessionID, key); err != nil {
		return "", false, err
	}
	return v, true, nil
}
