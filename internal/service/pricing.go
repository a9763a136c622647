package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// ProductLookup resolves products by id. Unknown products are reported as
// errors.ErrProductNotFound.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// PricingCalculator derives line subtotals and cart totals from live catalog
// prices. It only reads the cart, except for pruning lines whose product is
// gone.
type PricingCalculator struct {
	catalog ProductLookup
	metrics *metrics.Metrics
	logger  *logging.LoggerV2
}

func NewPricingCalculator(catalog ProductLookup, m *metrics.Metrics, logger *logging.LoggerV2) *PricingCalculator {
	return &PricingCalculator{
		catalog: catalog,
		metrics: m,
		logger:  logger,
	}
}

// LineSubtotal prices quantity units of productID.
func (p *PricingCalculator) LineSubtotal(ctx context.Context, productID string, quantity int) (money.Money, error) {
	product, err := p.catalog.GetProduct(ctx, productID)
	if err != nil {
		return money.Zero, err
	}
	return product.Price.MulInt(quantity), nil
}

// PriceCart joins every line with its product. Lines whose product left the
// catalog are skipped and pruned from the store. Other lookup failures abort.
func (p *PricingCalculator) PriceCart(ctx context.Context, store *cart.Store) (*models.CartView, error) {
	lines, err := store.Lines(ctx)
	if err != nil {
		return nil, err
	}

	view := &models.CartView{
		Lines:      make([]models.CartLine, 0, len(lines)),
		TotalPrice: money.Zero,
	}
	var missing []string

	for _, l := range lines {
		product, err := p.catalog.GetProduct(ctx, l.ProductID)
		if errors.Is(err, errors.ErrProductNotFound) {
			missing = append(missing, l.ProductID)
			continue
		}
		if err != nil {
			return nil, err
		}

		subtotal := product.Price.MulInt(l.Quantity)
		view.Lines = append(view.Lines, models.CartLine{
			ProductID: l.ProductID,
			Title:     product.Title,
			Image:     product.Image,
			Quantity:  l.Quantity,
			UnitPrice: product.Price,
			Subtotal:  subtotal,
		})
		view.TotalPrice = view.TotalPrice.Add(subtotal)
	}

	if len(missing) > 0 {
		if err := store.Prune(ctx, missing...); err != nil {
			return nil, err
		}
		p.metrics.LinesPruned(len(missing))
		p.logger.Warn("Pruned cart lines for missing products", logging.Fields{
			"session_id":  store.SessionID(),
			"product_ids": missing,
		})
	}

	view.ItemCount = len(view.Lines)
	return view, nil
}

// CartTotal returns the sum of all resolvable line subtotals.
func (p *PricingCalculator) CartTotal(ctx context.Context, store *cart.Store) (money.Money, error) {
	view, err := p.PriceCart(ctx, store)
	if err != nil {
		return money.Zero, err
	}
	return view.TotalPrice, nil
}
