// Package models holds the catalog, cart and order types shared by the service layers.
package models

import (
	"strconv"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// Product is a catalog entry. Only ID and Price matter to the cart core.
type Product struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Brand       string      `json:"brand"`
	Description string      `json:"description"`
	Price       money.Money `json:"price"`
	Image       string      `json:"image"`
	Weight      int         `json:"weight"`
	Dimension   string      `json:"dimension"`
	Color       string      `json:"color"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategoryID int64
	Title      string
	Limit      int
	Offset     int
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
