// Package cart implements the per-session Cart Store: the authoritative
// mapping of product identifier to quantity for one shopping session.
//
// A quantity of zero means the line is absent; the store never persists a
// zero-quantity entry.
package cart

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

// SessionKey is the session entry holding the cart lines.
const SessionKey = "cart"

// Line is one product's quantity in the cart.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Backend persists cart lines for sessions. Implementations must write only
// the touched product's entry so that concurrent mutations of different lines
// in the same session do not lose updates. Lines are returned in insertion
// order of the first add. Malformed stored data is dropped, not reported.
type Backend interface {
	CartLines(ctx context.Context, sessionID string) ([]Line, error)
	PutCartLine(ctx context.Context, sessionID, productID string, quantity int) error
	DeleteCartLines(ctx context.Context, sessionID string, productIDs ...string) error
	ClearCart(ctx context.Context, sessionID string) error
}

// Store is the cart of one session. It is created per request and passed
// explicitly to whoever needs it.
type Store struct {
	backend   Backend
	sessionID string
	logger    *logging.LoggerV2
}

// NewStore binds a backend to a session.
func NewStore(backend Backend, sessionID string, logger *logging.LoggerV2) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		backend:   backend,
		sessionID: sessionID,
		logger:    logger,
	}
}

// SessionID returns the session this store is bound to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Quantity returns the quantity of productID, 0 if absent.
func (s *Store) Quantity(ctx context.Context, productID string) (int, error) {
	lines, err := s.Lines(ctx)
	if err != nil {
		return 0, err
	}
	for _, l := range lines {
		if l.ProductID == productID {
			return l.Quantity, nil
		}
	}
	return 0, nil
}

// SetQuantity upserts the line, or removes it when quantity <= 0.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	s.logger.Debug("Setting cart line", logging.Fields{
		"session_id": s.sessionID,
		"product_id": productID,
		"quantity":   quantity,
	})
	return s.backend.PutCartLine(ctx, s.sessionID, productID, quantity)
}

// Add accumulates delta onto the current quantity and returns the result.
func (s *Store) Add(ctx context.Context, productID string, delta int) (int, error) {
	current, err := s.Quantity(ctx, productID)
	if err != nil {
		return 0, err
	}

	next := current + delta
	if next < 0 {
		next = 0
	}
	if err := s.SetQuantity(ctx, productID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Remove deletes the line. Removing an absent line is a no-op.
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.backend.DeleteCartLines(ctx, s.sessionID, productID)
}

// Prune drops several lines at once, typically products that vanished from
// the catalog.
func (s *Store) Prune(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	s.logger.Info("Pruning cart lines", logging.Fields{
		"session_id":  s.sessionID,
		"product_ids": productIDs,
	})
	return s.backend.DeleteCartLines(ctx, s.sessionID, productIDs...)
}

// Lines returns every line in insertion order. Lines with a non-positive
// quantity are never returned.
func (s *Store) Lines(ctx context.Context) ([]Line, error) {
	lines, err := s.backend.CartLines(ctx, s.sessionID)
	if err != nil {
		return nil, err
	}

	out := lines[:0]
	for _, l := range lines {
		if l.Quantity > 0 && l.ProductID != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// ItemCount returns the number of distinct lines.
func (s *Store) ItemCount(ctx context.Context) (int, error) {
	lines, err := s.Lines(ctx)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.logger.Debug("Clearing cart", logging.Fields{"session_id": s.sessionID})
	return s.backend.ClearCart(ctx, s.sessionID)
}

// ReplaceWith clears the cart and adds lines in order. Duplicate products
// accumulate.
func (s *Store) ReplaceWith(ctx context.Context, lines []Line) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := s.Add(ctx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}
