package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
)

// ProcessPayment handles POST /payment/process/
//
// Browsers submitting the hand-off form are redirected to the gateway; API
// clients get {"success": true, "payment_url": "..."}.
func (h *Handlers) ProcessPayment(c *gin.Context) {
	paymentURL, err := h.paymentService.CreateCheckout(c.Request.Context(), middleware.SessionID(c), middleware.ClientID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Redirect(http.StatusSeeOther, paymentURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"payment_url": paymentURL,
	})
}

// PaymentCompleted handles GET /payment/completed/
func (h *Handlers) PaymentCompleted(c *gin.Context) {
	order, err := h.paymentService.CompletePayment(c.Request.Context(), middleware.SessionID(c), middleware.ClientID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment completed",
		"order":   order,
	})
}

// PaymentCanceled handles GET /payment/canceled/
func (h *Handlers) PaymentCanceled(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Payment canceled"})
}
