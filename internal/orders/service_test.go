package orders

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmbakery/bakeshop/pkg/models"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return NewService(db, logger), mock
}

func sampleTime() time.Time {
	return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
}

func aliceRequest(items ...models.OrderItemInput) models.PlaceOrderRequest {
	return models.PlaceOrderRequest{
		Customer: &models.CustomerInput{Name: "Alice", Email: "a@x.com"},
		Items:    items,
	}
}

func TestPlaceOrder(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("Alice", "a@x.com", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(7, StatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").
		WithArgs(2, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs(42, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	orderID, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(42), orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderMultipleItems(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(43))
	// All line items land in one statement.
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(43, 1, 2, 43, 5, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE products").
		WithArgs(2, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").
		WithArgs(1, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs(43, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	orderID, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 2},
		models.OrderItemInput{ProductID: 5, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(43), orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(44))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Zero rows affected: quantity 3 cannot cover a request for 5.
	mock.ExpectExec("UPDATE products").
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 5},
	))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderStockShortCircuits(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(45))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(0, 2))
	// First decrement fails; the second item must never be attempted.
	mock.ExpectExec("UPDATE products").
		WithArgs(9, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 9},
		models.OrderItemInput{ProductID: 2, Quantity: 1},
	))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderEmptyItems(t *testing.T) {
	svc, mock := newTestService(t)

	// No expectations: the request must be rejected before any store call.
	_, err := svc.PlaceOrder(context.Background(), models.PlaceOrderRequest{
		Customer: &models.CustomerInput{Name: "Alice", Email: "a@x.com"},
	})

	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderMissingCustomer(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.PlaceOrder(context.Background(), models.PlaceOrderRequest{
		Items: []models.OrderItemInput{{ProductID: 1, Quantity: 2}},
	})

	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderNonPositiveQuantity(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 0},
	))

	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderItemInsertFailureRollsBack(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(46))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 99, Quantity: 1},
	))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderDeliveryFailureRollsBack(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(47))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deliveries").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 1},
	))

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderCommitFailure(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(48))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deliveries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 1},
	))

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderCustomerDedup(t *testing.T) {
	svc, mock := newTestService(t)

	for _, orderID := range []int64{50, 51} {
		mock.ExpectBegin()
		// Same email resolves to the same customer row both times.
		mock.ExpectQuery("INSERT INTO customers").
			WithArgs("Alice", "a@x.com", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectQuery("INSERT INTO orders").
			WithArgs(7, StatusPending, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orderID))
		mock.ExpectExec("INSERT INTO order_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE products").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO deliveries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	first, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	second, err := svc.PlaceOrder(context.Background(), aliceRequest(
		models.OrderItemInput{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(StatusBaking, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.UpdateStatus(context.Background(), 42, StatusBaking))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(StatusReady, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateStatus(context.Background(), 99, StatusReady)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateStatusInvalid(t *testing.T) {
	svc, mock := newTestService(t)

	err := svc.UpdateStatus(context.Background(), 42, "burnt")
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrder(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "status", "created_at"}).
			AddRow(42, 7, StatusPending, sampleTime()))
	mock.ExpectQuery("SELECT (.+) FROM order_items").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).
			AddRow(1, 2))

	order, err := svc.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, int64(7), order.CustomerID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1), order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestGetOrderNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
