package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/service"
)

// PaymentProcessPath is where a confirmed order is handed to checkout.
const PaymentProcessPath = "/payment/process/"

// ConfirmOrder handles POST /order/confirm-order/
//
// The page script posts the contact form and, on success, submits a form to
// payment_url. Failures answer {"success": false, "error": "..."}.
func (h *Handlers) ConfirmOrder(c *gin.Context) {
	var contact models.ContactDetails
	if err := c.ShouldBind(&contact); err != nil {
		h.logger.Warn("Failed to bind contact form", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	order, err := h.orderService.ConfirmOrder(c.Request.Context(), middleware.SessionID(c), middleware.ClientID(c), &contact)
	if err != nil {
		var validationErr *errors.ValidationError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   validationErr.Message,
				"details": validationErr.Details,
			})
		case errors.Is(err, errors.ErrBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			handleError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"order_id":    order.ID,
		"order_num":   order.OrderNum,
		"total_price": order.TotalPrice,
		"payment_url": PaymentProcessPath,
	})
}

// GetOrderSummary handles GET /order/order-summary/:order_id
func (h *Handlers) GetOrderSummary(c *gin.Context) {
	orderID, err := service.ParseOrderID(c.Param("order_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	order, err := h.orderService.GetOrderSummary(c.Request.Context(), middleware.SessionID(c), middleware.ClientID(c), orderID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListPendingOrders handles GET /order/pending/
func (h *Handlers) ListPendingOrders(c *gin.Context) {
	orders, err := h.orderService.ListPendingOrders(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  len(orders),
	})
}

// DeletePendingOrder handles POST /order/delete-pending-order/:order_id
func (h *Handlers) DeletePendingOrder(c *gin.Context) {
	orderID, err := service.ParseOrderID(c.Param("order_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	if err := h.orderService.DeletePendingOrder(c.Request.Context(), middleware.ClientID(c), orderID); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}
