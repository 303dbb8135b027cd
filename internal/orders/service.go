package orders

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xmbakery/bakeshop/pkg/models"
)

const (
	StatusPending   = "pending"
	StatusBaking    = "baking"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusBaking:    true,
	StatusReady:     true,
	StatusCompleted: true,
	StatusCancelled: true,
}

type Service struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewService(db *sql.DB, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// PlaceOrder runs the whole placement as one transaction: resolve the
// customer by email, create the order, insert its line items, decrement
// product stock, and create the delivery record. Any failure rolls back
// every write. Returns the new order id on success.
func (s *Service) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (int64, error) {
	if err := validatePlaceOrder(req); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op after a successful commit; guarantees release on every
	// other exit path.
	defer tx.Rollback()

	var customerID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`,
		req.Customer.Name, req.Customer.Email, req.Customer.Phone,
	).Scan(&customerID)
	if err != nil {
		return 0, fmt.Errorf("resolve customer: %w", err)
	}

	var orderID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		customerID, StatusPending, time.Now().UTC(),
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	itemsQuery, itemsArgs := buildItemsInsert(orderID, req.Items)
	if _, err := tx.ExecContext(ctx, itemsQuery, itemsArgs...); err != nil {
		return 0, fmt.Errorf("insert order items: %w", err)
	}

	// Strictly sequential: item i+1 is not attempted until item i's
	// decrement is confirmed. The conditional WHERE is the stock check;
	// zero rows affected means unknown product or insufficient stock.
	for _, item := range req.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1
			WHERE id = $2 AND quantity >= $1`,
			item.Quantity, item.ProductID,
		)
		if err != nil {
			return 0, fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
		if affected == 0 {
			return 0, &InsufficientStockError{ProductID: item.ProductID}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO deliveries (order_id, status, location)
		VALUES ($1, $2, NULL)`,
		orderID, StatusPending,
	); err != nil {
		return 0, fmt.Errorf("create delivery: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"customer_id": customerID,
		"items_count": len(req.Items),
	}).Info("Order placed")

	return orderID, nil
}

func validatePlaceOrder(req models.PlaceOrderRequest) error {
	if req.Customer == nil || req.Customer.Email == "" {
		return fmt.Errorf("%w: missing customer", ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: empty item list", ErrInvalidOrder)
	}
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return fmt.Errorf("%w: bad line item", ErrInvalidOrder)
		}
	}
	return nil
}

// buildItemsInsert produces a single multi-row insert so all line items land
// in one statement.
func buildItemsInsert(orderID int64, items []models.OrderItemInput) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO order_items (order_id, product_id, quantity) VALUES ")

	args := make([]interface{}, 0, len(items)*3)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, orderID, item.ProductID, item.Quantity)
	}

	return sb.String(), args
}

func (s *Service) GetOrders(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, status, created_at
		FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		items, err := s.getOrderItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, created_at
		FROM orders WHERE id = $1`, orderID,
	).Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	items, err := s.getOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (s *Service) getOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		item := models.OrderItem{OrderID: orderID}
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus moves an order through the tracking states. Returns
// sql.ErrNoRows for an unknown order id.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2`, status, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("Order status updated")

	return nil
}
