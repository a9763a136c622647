package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

var orderColumns = []string{"id", "client_id", "order_num", "status", "total_price", "registration_date"}

func newOrderRepo(t *testing.T) (*PostgresOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresOrderRepository(db, logging.NewNop()), mock
}

func TestPostgresOrderRepository_Create(t *testing.T) {
	repo, mock := newOrderRepo(t)
	registered := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return registered }

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs("client-1", registered, money.MustParse("40.00"), "0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO order_details").
		WithArgs(int64(7), int64(3), "Mug", money.MustParse("10.00"), 4, money.MustParse("40.00")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders SET order_num").
		WithArgs(int64(7), "Order #7 - Date 2025").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	product := &models.Product{ID: "3", Title: "Mug", Price: money.MustParse("10.00")}
	order, err := repo.Create(context.Background(), &models.Order{
		ClientID: "client-1",
		Details:  []models.OrderDetail{models.NewOrderDetail(product, 4)},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if order.ID != 7 {
		t.Errorf("Expected order ID 7, got %d", order.ID)
	}
	if order.OrderNum != "Order #7 - Date 2025" {
		t.Errorf("Unexpected order number %q", order.OrderNum)
	}
	if !order.IsPending() {
		t.Errorf("Expected pending order, got %s", order.Status)
	}
	if order.TotalPrice.String() != "40.00" {
		t.Errorf("Expected total 40.00, got %s", order.TotalPrice)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresOrderRepository_Create_RollsBackOnFailure(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	product := &models.Product{ID: "3", Title: "Mug", Price: money.MustParse("10.00")}
	_, err := repo.Create(context.Background(), &models.Order{
		ClientID: "client-1",
		Details:  []models.OrderDetail{models.NewOrderDetail(product, 1)},
	})
	if !errors.Is(err, errors.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresOrderRepository_Create_NoDetails(t *testing.T) {
	repo, _ := newOrderRepo(t)

	_, err := repo.Create(context.Background(), &models.Order{ClientID: "client-1"})
	if !errors.Is(err, errors.ErrBadRequest) {
		t.Fatalf("Expected ErrBadRequest, got %v", err)
	}
}

func TestPostgresOrderRepository_GetByID(t *testing.T) {
	repo, mock := newOrderRepo(t)
	registered := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM orders").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(7), "client-1", "Order #7 - Date 2025", "0", "25.50", registered))
	mock.ExpectQuery("FROM order_details").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "product_title", "unit_price", "quantity", "subtotal"}).
			AddRow(int64(3), "Mug", "10.00", 2, "20.00").
			AddRow(int64(5), "Spoon", "5.50", 1, "5.50"))

	order, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if order.ClientID != "client-1" || order.Status != models.OrderStatusPending {
		t.Errorf("Unexpected order %+v", order)
	}
	if len(order.Details) != 2 {
		t.Fatalf("Expected 2 details, got %d", len(order.Details))
	}
	if order.Details[0].ProductID != "3" || order.Details[1].Subtotal.String() != "5.50" {
		t.Errorf("Unexpected details %+v", order.Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery("FROM orders").WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestPostgresOrderRepository_ListPendingByClient(t *testing.T) {
	repo, mock := newOrderRepo(t)
	registered := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE client_id = \\$1 AND status = \\$2").
		WithArgs("client-1", "0").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(9), "client-1", "Order #9 - Date 2025", "0", "12.00", registered).
			AddRow(int64(7), "client-1", "Order #7 - Date 2025", "0", "25.50", registered))

	orders, err := repo.ListPendingByClient(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("ListPendingByClient() error = %v", err)
	}
	if len(orders) != 2 || orders[0].ID != 9 {
		t.Errorf("Unexpected orders %+v", orders)
	}
}

func TestPostgresOrderRepository_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"updated", 1, nil},
		{"missing order", 0, errors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newOrderRepo(t)
			mock.ExpectExec("UPDATE orders SET status").
				WithArgs(int64(7), "1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.UpdateStatus(context.Background(), 7, models.OrderStatusPaid)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresOrderRepository_DeletePending(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec("DELETE FROM orders").
		WithArgs(int64(7), "client-2", "0").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeletePending(context.Background(), 7, "client-2")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for foreign order, got %v", err)
	}
}
