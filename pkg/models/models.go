package models

import (
	"time"
)

type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category *string `json:"category,omitempty"`
	Quantity int     `json:"quantity"`
}

type Customer struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type Order struct {
	ID         int64       `json:"id"`
	CustomerID int64       `json:"customer_id"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	Items      []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	OrderID   int64 `json:"order_id,omitempty"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Delivery struct {
	OrderID  int64   `json:"order_id"`
	Status   string  `json:"status"`
	Location *string `json:"location,omitempty"`
}

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest struct {
	Customer *CustomerInput   `json:"customer"`
	Items    []OrderItemInput `json:"items"`
}

type CustomerInput struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type OrderItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
