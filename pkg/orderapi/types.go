// Package orderapi is the JSON wire contract between the order service and its
// clients.
package orderapi

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	DeliveryDateLayout   = "2006-01-02"
	OrdersPath           = "/orders"
	ProductsPath         = "/products"
	HealthPath           = "/healthz"
)

type CustomerData struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone           string `json:"phone" validate:"required,max=40"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=500"`
}

type OrderData struct {
	DeliveryDate            string `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	DeliveryRoute           string `json:"delivery_route,omitempty" validate:"max=500"`
	PreferredDeliveryMethod string `json:"preferred_delivery_method" validate:"required,oneof=pickup_enugu delivery_enugu transport_bus courier_service airline_cargo personal_arrangement"`
	RequestStatus           string `json:"request_status" validate:"required,oneof=can_wait_24hrs urgent very_urgent"`
}

type ItemData struct {
	ProductID   int64  `json:"product_id,omitempty" validate:"gte=0"`
	ProductName string `json:"product_name,omitempty" validate:"required_without=ProductID,max=200"`
	Quantity    int    `json:"quantity" validate:"gt=0,lte=1000000"`
}

type CreateOrderRequest struct {
	CustomerData   CustomerData `json:"customerData"`
	OrderData      OrderData    `json:"orderData"`
	Items          []ItemData   `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string       `json:"idempotencyKey,omitempty" validate:"max=128"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                      int64           `json:"id"`
	CustomerID              int64           `json:"customer_id"`
	CustomerName            string          `json:"customer_name,omitempty"`
	DeliveryDate            string          `json:"delivery_date"`
	DeliveryRoute           string          `json:"delivery_route,omitempty"`
	PreferredDeliveryMethod string          `json:"preferred_delivery_method"`
	RequestStatus           string          `json:"request_status"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	VATAmount               decimal.Decimal `json:"vat_amount"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	Status                  string          `json:"status"`
	CreatedAt               time.Time       `json:"created_at"`
	Items                   []OrderItem     `json:"items,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed dispatched delivered cancelled"`
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Unit          string          `json:"unit"`
	StockQuantity int             `json:"stock_quantity"`
}

type ProductRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	Price         decimal.Decimal `json:"price"`
	Unit          string          `json:"unit" validate:"max=20"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
