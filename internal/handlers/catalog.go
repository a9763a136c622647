package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

// ListProducts handles GET /catalog/products
func (h *Handlers) ListProducts(c *gin.Context) {
	filter := &models.ProductFilter{
		Title: c.Query("title"),
	}
	filter.CategoryID, _ = strconv.ParseInt(c.Query("category"), 10, 64)
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	products, err := h.catalogService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetProduct handles GET /catalog/products/:product_id
func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}
