package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

const (
	defaultProductLimit = 50
	maxProductLimit     = 200
)

const productColumns = `
		SELECT p.id, p.title, c.name, COALESCE(b.name, ''), p.description, p.price,
		       p.image, p.weight, p.dimension, p.color, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN brands b ON b.id = p.brand_id
`

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

// NewPostgresProductRepository creates a new PostgreSQL product repository.
func NewPostgresProductRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresProductRepository {
	return &PostgresProductRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a product. Identifiers that are not positive integers
// cannot exist in the catalog and are reported as ErrProductNotFound.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || numericID <= 0 {
		return nil, errors.ErrProductNotFound
	}

	r.logger.Debug("Fetching product by ID", logging.Fields{"product_id": id})

	row := r.db.QueryRowContext(ctx, productColumns+" WHERE p.id = $1", numericID)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrProductNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch product", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, errors.Unavailable("get product", err)
	}

	return product, nil
}

// List retrieves products matching the filter, newest first.
func (r *PostgresProductRepository) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	if filter == nil {
		filter = &models.ProductFilter{}
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		where = append(where, "p.category_id = $"+strconv.Itoa(len(args)))
	}
	if title := strings.TrimSpace(filter.Title); title != "" {
		args = append(args, "%"+title+"%")
		where = append(where, "p.title ILIKE $"+strconv.Itoa(len(args)))
	}

	query := productColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}
	if limit > maxProductLimit {
		limit = maxProductLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += " ORDER BY p.created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list products", logging.Fields{"error": err.Error()})
		return nil, errors.Unavailable("list products", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Unavailable("scan product", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("list products", err)
	}

	r.logger.Debug("Products listed", logging.Fields{"count": len(products)})
	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p  models.Product
		id int64
	)
	err := row.Scan(
		&id,
		&p.Title,
		&p.Category,
		&p.Brand,
		&p.Description,
		&p.Price,
		&p.Image,
		&p.Weight,
		&p.Dimension,
		&p.Color,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = strconv.FormatInt(id, 10)
	return &p, nil
}
