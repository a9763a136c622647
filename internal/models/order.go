package models

import (
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// OrderStatus is stored as the single-character code used by the orders table.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "0"
	OrderStatusPaid    OrderStatus = "1"
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// Order is a confirmed cart awaiting or having received payment.
type Order struct {
	ID               int64         `json:"id"`
	ClientID         string        `json:"client_id"`
	OrderNum         string        `json:"order_num"`
	Status           OrderStatus   `json:"status"`
	TotalPrice       money.Money   `json:"total_price"`
	RegistrationDate time.Time     `json:"registration_date"`
	Details          []OrderDetail `json:"details"`
}

// IsPending reports whether the order can still be paid, restored or deleted.
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// CalculateTotal sums the detail subtotals into TotalPrice.
func (o *Order) CalculateTotal() {
	total := money.Zero
	for _, d := range o.Details {
		total = total.Add(d.Subtotal)
	}
	o.TotalPrice = total
}

// FormatOrderNum builds the human readable order number.
func FormatOrderNum(id int64, registered time.Time) string {
	return "Order #" + itoa(id) + " - Date " + registered.Format("2006")
}

// OrderDetail is one product line of an order.
type OrderDetail struct {
	ProductID    string      `json:"product_id"`
	ProductTitle string      `json:"product_title"`
	UnitPrice    money.Money `json:"unit_price"`
	Quantity     int         `json:"quantity"`
	Subtotal     money.Money `json:"subtotal"`
}

// NewOrderDetail prices a detail from the product's current price.
func NewOrderDetail(p *Product, quantity int) OrderDetail {
	return OrderDetail{
		ProductID:    p.ID,
		ProductTitle: p.Title,
		UnitPrice:    p.Price,
		Quantity:     quantity,
		Subtotal:     p.Price.MulInt(quantity),
	}
}

// ContactDetails is the client data captured when confirming an order.
type ContactDetails struct {
	Name     string `json:"name" form:"name"`
	LastName string `json:"last_name" form:"last_name"`
	Email    string `json:"email" form:"email"`
	Phone    string `json:"phone" form:"phone"`
	Address  string `json:"address" form:"address"`
}
