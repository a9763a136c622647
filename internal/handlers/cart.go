package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/service"
)

// productRef is a product id sent either as a JSON number or a string.
type productRef string

func (p *productRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = productRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = productRef(n.String())
	return nil
}

// UpdateLineRequest is the body of PATCH /cart/update-product-cart/:product_id.
type UpdateLineRequest struct {
	ProductID productRef `json:"productId"`
	Quantity  *int       `json:"quantity"`
}

// AddProductRequest is the body of POST /cart/add-to-cart/:product_id.
type AddProductRequest struct {
	Quantity int `json:"quantity" form:"quantity"`
}

// LineResponse is the snapshot returned by every line mutation. Subtotal is
// 0 when the line was removed.
type LineResponse struct {
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	Subtotal   money.Money `json:"subtotal"`
	TotalPrice money.Money `json:"total_price"`
	Removed    bool        `json:"removed"`
	ItemCount  int         `json:"item_count"`
	Message    string      `json:"message"`
}

func newLineResponse(s *models.CartSnapshot, message string) LineResponse {
	resp := LineResponse{
		ProductID:  s.ProductID,
		Quantity:   s.Quantity,
		Subtotal:   money.Zero,
		TotalPrice: s.TotalPrice,
		Removed:    s.Removed,
		ItemCount:  s.ItemCount,
		Message:    message,
	}
	if s.Subtotal != nil && !s.Removed {
		resp.Subtotal = *s.Subtotal
	}
	return resp
}

// GetCart handles GET /cart/
func (h *Handlers) GetCart(c *gin.Context) {
	view, err := h.cartService.View(c.Request.Context(), middleware.SessionID(c), clientID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AddToCart handles POST /cart/add-to-cart/:product_id
func (h *Handlers) AddToCart(c *gin.Context) {
	req := AddProductRequest{Quantity: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			h.logger.Warn("Failed to bind add to cart request", logging.Fields{"error": err.Error()})
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	snapshot, err := h.cartService.AddProduct(c.Request.Context(), middleware.SessionID(c), c.Param("product_id"), req.Quantity)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLineResponse(snapshot, "Product added to cart"))
}

// UpdateProductCart handles PATCH /cart/update-product-cart/:product_id
func (h *Handlers) UpdateProductCart(c *gin.Context) {
	productID := c.Param("product_id")

	var req UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind cart update", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}
	if req.ProductID != "" && string(req.ProductID) != productID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId does not match the URL"})
		return
	}

	snapshot, err := h.cartService.UpdateLine(c.Request.Context(), middleware.SessionID(c), productID, *req.Quantity)
	if err != nil {
		handleError(c, err)
		return
	}

	message := "Cart updated"
	if snapshot.Removed {
		message = "Product removed from cart"
	}
	c.JSON(http.StatusOK, newLineResponse(snapshot, message))
}

// DeleteFromCart handles POST /cart/delete-from-cart/:product_id
func (h *Handlers) DeleteFromCart(c *gin.Context) {
	snapshot, err := h.cartService.RemoveProduct(c.Request.Context(), middleware.SessionID(c), c.Param("product_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLineResponse(snapshot, "Product removed from cart"))
}

// ClearCart handles POST /cart/clear-cart/
func (h *Handlers) ClearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), middleware.SessionID(c)); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Cart cleared",
		"total_price": money.Zero,
		"item_count":  0,
	})
}

// RestoreCart handles POST /cart/restore_cart/:order_pending_id
func (h *Handlers) RestoreCart(c *gin.Context) {
	orderID, err := service.ParseOrderID(c.Param("order_pending_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	view, err := h.cartService.RestorePendingOrder(c.Request.Context(), middleware.SessionID(c), middleware.ClientID(c), orderID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
