package models

import "github.com/tm-acme-shop/acme-shop-cart-service/internal/money"

// CartLine is a cart entry joined with live catalog data. It is derived at
// read time and never stored.
type CartLine struct {
	ProductID string      `json:"product_id"`
	Title     string      `json:"title"`
	Image     string      `json:"image,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
	Subtotal  money.Money `json:"subtotal"`
}

// CartSnapshot is the authoritative cart summary returned after a mutation.
// Subtotal is nil when the line was removed.
type CartSnapshot struct {
	ProductID  string       `json:"product_id"`
	Quantity   int          `json:"quantity"`
	Subtotal   *money.Money `json:"subtotal,omitempty"`
	TotalPrice money.Money  `json:"total_price"`
	Removed    bool         `json:"removed"`
	ItemCount  int          `json:"item_count"`
}

// CartView is the full priced cart.
type CartView struct {
	Lines         []CartLine  `json:"lines"`
	TotalPrice    money.Money `json:"total_price"`
	ItemCount     int         `json:"item_count"`
	PendingOrders []*Order    `json:"pending_orders,omitempty"`
}
