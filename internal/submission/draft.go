package submission

import (
	"fmt"

	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

// Draft is the order being put together on the client. Its preview totals are
// for display only; the order service prices the order again from its own
// catalog.
type Draft struct {
	prices   domain.PriceList
	lines    []domain.CartLine
	Customer orderapi.CustomerData
	Order    orderapi.OrderData
}

func NewDraft(products []orderapi.Product) *Draft {
	list := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		list = append(list, catalog.Product{ID: p.ID, Name: p.Name, Price: p.Price, Unit: p.Unit})
	}
	return &Draft{prices: domain.NewPriceList(list)}
}

// SetQuantity sets the quantity for a product by name, adding a line if needed.
// A quantity of zero or less removes the line.
func (d *Draft) SetQuantity(name string, qty int) {
	for i, l := range d.lines {
		if l.ProductName != name {
			continue
		}
		if qty <= 0 {
			d.lines = append(d.lines[:i], d.lines[i+1:]...)
		} else {
			d.lines[i].Quantity = qty
		}
		return
	}
	if qty > 0 {
		line := domain.CartLine{ProductName: name, Quantity: qty}
		if p, ok := d.prices.Lookup(0, name); ok {
			line.ProductID = p.ID
		}
		d.lines = append(d.lines, line)
	}
}

func (d *Draft) Lines() []domain.CartLine {
	return append([]domain.CartLine(nil), d.lines...)
}

func (d *Draft) Preview() domain.Totals {
	return domain.ComputeTotals(d.lines, d.prices)
}

// Request builds the wire payload. Lines the preview could not price are an
// error here so they never reach the server silently.
func (d *Draft) Request() (orderapi.CreateOrderRequest, error) {
	if len(d.lines) == 0 {
		return orderapi.CreateOrderRequest{}, apperr.NewValidation("items", "the cart is empty")
	}
	if err := d.Preview().Err(); err != nil {
		return orderapi.CreateOrderRequest{}, apperr.NewValidation("items", err.Error())
	}
	items := make([]orderapi.ItemData, 0, len(d.lines))
	for _, l := range d.lines {
		items = append(items, orderapi.ItemData{ProductID: l.ProductID, ProductName: l.ProductName, Quantity: l.Quantity})
	}
	return orderapi.CreateOrderRequest{
		CustomerData: d.Customer,
		OrderData:    d.Order,
		Items:        items,
	}, nil
}

func (d *Draft) Reset() {
	d.lines = nil
	d.Customer = orderapi.CustomerData{}
	d.Order = orderapi.OrderData{}
}

// Summary renders the preview as plain text lines.
func (d *Draft) Summary() []string {
	t := d.Preview()
	out := make([]string, 0, len(t.Lines)+3)
	for _, l := range t.Lines {
		out = append(out, fmt.Sprintf("%-32s %4d x %12s = %14s", l.ProductName, l.Quantity, domain.FormatNaira(l.UnitPrice), domain.FormatNaira(l.LineTotal)))
	}
	out = append(out,
		fmt.Sprintf("%-32s %34s", "Subtotal", domain.FormatNaira(t.Subtotal)),
		fmt.Sprintf("%-32s %34s", "VAT (2.5%)", domain.FormatNaira(t.VAT)),
		fmt.Sprintf("%-32s %34s", "Total", domain.FormatNaira(t.Total)),
	)
	for _, e := range t.Errors {
		out = append(out, "! "+e.Error())
	}
	return out
}
