package orders

import (
	"errors"
	"fmt"
)

// ErrInvalidOrder rejects malformed placement requests before any store
// interaction. Wrap it with detail; match it with errors.Is.
var ErrInvalidOrder = errors.New("invalid order")

// InsufficientStockError reports a product whose on-hand quantity could not
// cover the requested amount. The whole placement is rolled back.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}
