package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCanceled   OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDispatched, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

type DeliveryMethod string

const (
	PickupEnugu         DeliveryMethod = "pickup_enugu"
	DeliveryEnugu       DeliveryMethod = "delivery_enugu"
	TransportBus        DeliveryMethod = "transport_bus"
	CourierService      DeliveryMethod = "courier_service"
	AirlineCargo        DeliveryMethod = "airline_cargo"
	PersonalArrangement DeliveryMethod = "personal_arrangement"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case PickupEnugu, DeliveryEnugu, TransportBus, CourierService, AirlineCargo, PersonalArrangement:
		return true
	}
	return false
}

type RequestStatus string

const (
	CanWait24Hrs RequestStatus = "can_wait_24hrs"
	Urgent       RequestStatus = "urgent"
	VeryUrgent   RequestStatus = "very_urgent"
)

func (r RequestStatus) Valid() bool {
	switch r {
	case CanWait24Hrs, Urgent, VeryUrgent:
		return true
	}
	return false
}

type Customer struct {
	ID              int64
	Name            string
	Email           string
	Phone           string
	DeliveryAddress string
	CreatedAt       time.Time
}

// EmailKey is the case-insensitive dedup key; empty means "always create".
func (c Customer) EmailKey() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

type Order struct {
	ID                      int64
	CustomerID              int64
	CustomerName            string
	DeliveryDate            time.Time
	DeliveryRoute           string
	PreferredDeliveryMethod DeliveryMethod
	RequestStatus           RequestStatus
	Subtotal                decimal.Decimal
	VATAmount               decimal.Decimal
	TotalAmount             decimal.Decimal
	Status                  OrderStatus
	IdempotencyKey          string
	CreatedAt               time.Time
	Items                   []OrderItem
}

// ItemRequest is one cart line as the store receives it.
type ItemRequest struct {
	ProductID   int64
	ProductName string
	Quantity    int
}

func (r ItemRequest) Label() string {
	if r.ProductName != "" {
		return r.ProductName
	}
	return fmt.Sprintf("#%d", r.ProductID)
}

// NewOrder is everything OrderStore needs to create an order. Prices are absent
// on purpose: they are read from the catalog inside the transaction.
type NewOrder struct {
	Customer                Customer
	DeliveryDate            time.Time
	DeliveryRoute           string
	PreferredDeliveryMethod DeliveryMethod
	RequestStatus           RequestStatus
	IdempotencyKey          string
	Items                   []ItemRequest
}

func (n NewOrder) Order(customerID int64) Order {
	return Order{
		CustomerID:              customerID,
		CustomerName:            n.Customer.Name,
		DeliveryDate:            n.DeliveryDate,
		DeliveryRoute:           n.DeliveryRoute,
		PreferredDeliveryMethod: n.PreferredDeliveryMethod,
		RequestStatus:           n.RequestStatus,
		Subtotal:                zero(),
		VATAmount:               zero(),
		TotalAmount:             zero(),
		Status:                  StatusPending,
		IdempotencyKey:          n.IdempotencyKey,
	}
}

// AddItem snapshots the product's current price into a new line and adds it to
// the running subtotal.
func (o *Order) AddItem(p catalog.Product, quantity int) OrderItem {
	unit := p.Price.Round(moneyPlaces)
	item := OrderItem{
		OrderID:     o.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   unit,
		Subtotal:    LineTotal(unit, quantity),
	}
	o.Items = append(o.Items, item)
	o.Subtotal = o.Subtotal.Add(item.Subtotal).Round(moneyPlaces)
	return item
}

// Finalize derives VAT and total from the accumulated subtotal.
func (o *Order) Finalize() {
	o.Subtotal = o.Subtotal.Round(moneyPlaces)
	o.VATAmount = VATFor(o.Subtotal)
	o.TotalAmount = o.Subtotal.Add(o.VATAmount).Round(moneyPlaces)
}

// Verify recomputes every stored amount from the item snapshots.
func (o Order) Verify() error {
	sum := zero()
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("item %d: non-positive quantity %d", i, it.Quantity)
		}
		if want := LineTotal(it.UnitPrice, it.Quantity); !it.Subtotal.Equal(want) {
			return fmt.Errorf("item %d: subtotal %s, want %s", i, it.Subtotal, want)
		}
		sum = sum.Add(it.Subtotal)
	}
	if len(o.Items) > 0 && !o.Subtotal.Equal(sum) {
		return fmt.Errorf("order subtotal %s, items sum to %s", o.Subtotal, sum)
	}
	if want := VATFor(o.Subtotal); !o.VATAmount.Equal(want) {
		return fmt.Errorf("vat %s, want %s", o.VATAmount, want)
	}
	if want := o.Subtotal.Add(o.VATAmount); !o.TotalAmount.Equal(want) {
		return fmt.Errorf("total %s, want %s", o.TotalAmount, want)
	}
	return nil
}
