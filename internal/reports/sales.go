package reports

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	UnitsSold int     `json:"units_sold"`
	Revenue   float64 `json:"revenue"`
}

type SalesReport struct {
	TotalOrders  int            `json:"total_orders"`
	TotalRevenue float64        `json:"total_revenue"`
	Products     []ProductSales `json:"products"`
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

// Sales aggregates revenue at current product prices across all orders.
func (s *Service) Sales(ctx context.Context) (*SalesReport, error) {
	report := &SalesReport{Products: []ProductSales{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT o.id), COALESCE(SUM(oi.quantity * p.price), 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id`,
	).Scan(&report.TotalOrders, &report.TotalRevenue)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, SUM(oi.quantity), SUM(oi.quantity * p.price)
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		GROUP BY p.id, p.name
		ORDER BY SUM(oi.quantity) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &ps.Revenue); err != nil {
			return nil, err
		}
		report.Products = append(report.Products, ps)
	}

	return report, rows.Err()
}
