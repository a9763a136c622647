package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
	now    func() time.Time
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts the order and its details in one transaction and assigns the
// order number, which depends on the generated id.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	r.logger.Debug("Creating new order", logging.Fields{
		"client_id": order.ClientID,
		"details":   len(order.Details),
	})

	if len(order.Details) == 0 {
		return nil, errors.BadRequest("order has no details")
	}

	created := *order
	created.Details = append([]models.OrderDetail(nil), order.Details...)
	created.Status = models.OrderStatusPending
	created.RegistrationDate = r.now().UTC()
	created.CalculateTotal()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Unavailable("begin order tx", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (client_id, registration_date, total_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, created.ClientID, created.RegistrationDate, created.TotalPrice, string(created.Status)).Scan(&created.ID)
	if err != nil {
		r.logger.Error("Failed to create order", logging.Fields{
			"client_id": created.ClientID,
			"error":     err.Error(),
		})
		return nil, errors.Unavailable("insert order", err)
	}

	for _, d := range created.Details {
		productID, err := strconv.ParseInt(d.ProductID, 10, 64)
		if err != nil {
			return nil, errors.BadRequest("invalid product id " + d.ProductID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_details (order_id, product_id, product_title, unit_price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, created.ID, productID, d.ProductTitle, d.UnitPrice, d.Quantity, d.Subtotal)
		if err != nil {
			return nil, errors.Unavailable("insert order detail", err)
		}
	}

	created.OrderNum = models.FormatOrderNum(created.ID, created.RegistrationDate)
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET order_num = $2 WHERE id = $1`, created.ID, created.OrderNum); err != nil {
		return nil, errors.Unavailable("set order number", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Unavailable("commit order", err)
	}

	r.logger.Info("Order created successfully", logging.Fields{
		"order_id":  created.ID,
		"client_id": created.ClientID,
		"total":     created.TotalPrice.String(),
	})

	return &created, nil
}

// GetByID retrieves an order with its details.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.logger.Debug("Fetching order by ID", logging.Fields{"order_id": id})

	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, order_num, status, total_price, registration_date
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, errors.Unavailable("get order", err)
	}

	details, err := r.details(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Details = details

	return order, nil
}

// ListPendingByClient returns the client's unpaid orders, newest first.
// Details are not loaded.
func (r *PostgresOrderRepository) ListPendingByClient(ctx context.Context, clientID string) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, order_num, status, total_price, registration_date
		FROM orders
		WHERE client_id = $1 AND status = $2
		ORDER BY registration_date DESC
	`, clientID, string(models.OrderStatusPending))
	if err != nil {
		return nil, errors.Unavailable("list pending orders", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Unavailable("scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("list pending orders", err)
	}

	return orders, nil
}

// UpdateStatus sets the status of an order.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	r.logger.Debug("Updating order status", logging.Fields{
		"order_id":   id,
		"new_status": status.String(),
	})

	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		r.logger.Error("Failed to update order status", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return errors.Unavailable("update order status", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.ErrNotFound
	}

	r.logger.Info("Order status updated", logging.Fields{
		"order_id":   id,
		"new_status": status.String(),
	})
	return nil
}

// DeletePending removes a pending order owned by clientID. Paid orders and
// orders of other clients are reported as not found.
func (r *PostgresOrderRepository) DeletePending(ctx context.Context, id int64, clientID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND client_id = $2 AND status = $3
	`, id, clientID, string(models.OrderStatusPending))
	if err != nil {
		r.logger.Error("Failed to delete order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return errors.Unavailable("delete order", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.ErrNotFound
	}

	r.logger.Info("Pending order deleted", logging.Fields{"order_id": id})
	return nil
}

func (r *PostgresOrderRepository) details(ctx context.Context, orderID int64) ([]models.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_title, unit_price, quantity, subtotal
		FROM order_details
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, errors.Unavailable("get order details", err)
	}
	defer rows.Close()

	details := make([]models.OrderDetail, 0)
	for rows.Next() {
		var (
			d         models.OrderDetail
			productID int64
		)
		if err := rows.Scan(&productID, &d.ProductTitle, &d.UnitPrice, &d.Quantity, &d.Subtotal); err != nil {
			return nil, errors.Unavailable("scan order detail", err)
		}
		d.ProductID = strconv.FormatInt(productID, 10)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("get order details", err)
	}
	return details, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order  models.Order
		status string
	)
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.OrderNum,
		&status,
		&order.TotalPrice,
		&order.RegistrationDate,
	)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	return &order, nil
}
