package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

const (
	CurrencyCode   = "NGN"
	CurrencySymbol = "₦"
	moneyPlaces    = 2
)

// VATRate is the fixed 2.5% surcharge applied to the order subtotal.
var VATRate = decimal.New(25, -3)

type CartLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
}

type PricedLine struct {
	ProductID   int64
	ProductName string
	Unit        string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

type Totals struct {
	Lines    []PricedLine
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
	Errors   []*LineItemError
}

// Err joins the per-line errors and an oversized total; nil when the cart can
// be ordered as priced.
func (t Totals) Err() error {
	errs := make([]error, 0, len(t.Errors)+1)
	for _, e := range t.Errors {
		errs = append(errs, e)
	}
	if t.Total.GreaterThan(MaxAmount) {
		errs = append(errs, apperr.NewValidation("total", "order total "+overLimit(t.Total)))
	}
	return errors.Join(errs...)
}

// PriceList resolves cart lines against catalog products, by id first and by exact
// name otherwise.
type PriceList struct {
	byID   map[int64]catalog.Product
	byName map[string]catalog.Product
}

func NewPriceList(products []catalog.Product) PriceList {
	pl := PriceList{
		byID:   make(map[int64]catalog.Product, len(products)),
		byName: make(map[string]catalog.Product, len(products)),
	}
	for _, p := range products {
		if p.ID > 0 {
			pl.byID[p.ID] = p
		}
		pl.byName[p.Name] = p
	}
	return pl
}

func (pl PriceList) Lookup(id int64, name string) (catalog.Product, bool) {
	if id > 0 {
		p, ok := pl.byID[id]
		return p, ok
	}
	p, ok := pl.byName[name]
	return p, ok
}

func (pl PriceList) Len() int { return len(pl.byName) }

// ComputeTotals prices a cart. Lines with an unknown product, a quantity outside
// 1..MaxQuantity or a subtotal above MaxAmount are left out of the totals and reported in Totals.Errors.
func ComputeTotals(cart []CartLine, prices PriceList) Totals {
	t := Totals{
		Lines:    make([]PricedLine, 0, len(cart)),
		Subtotal: zero(),
	}
	for i, line := range cart {
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			t.Errors = append(t.Errors, lineErr(i, line, ReasonInvalidQuantity))
			continue
		}
		p, ok := prices.Lookup(line.ProductID, line.ProductName)
		if !ok {
			t.Errors = append(t.Errors, lineErr(i, line, ReasonUnknownProduct))
			continue
		}
		unit := p.Price.Round(moneyPlaces)
		lineTotal := LineTotal(unit, line.Quantity)
		if lineTotal.GreaterThan(MaxAmount) {
			t.Errors = append(t.Errors, lineErr(i, line, ReasonAmountTooLarge))
			continue
		}
		t.Lines = append(t.Lines, PricedLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Unit:        p.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   unit,
			LineTotal:   lineTotal,
		})
		t.Subtotal = t.Subtotal.Add(lineTotal)
	}
	t.Subtotal = t.Subtotal.Round(moneyPlaces)
	t.VAT = VATFor(t.Subtotal)
	t.Total = t.Subtotal.Add(t.VAT).Round(moneyPlaces)
	return t
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(moneyPlaces)
}

// VATFor rounds half away from zero to kobo.
func VATFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(VATRate).Round(moneyPlaces)
}

// FormatNaira renders an amount as ₦12,300.00.
func FormatNaira(d decimal.Decimal) string {
	s := d.Round(moneyPlaces).StringFixed(moneyPlaces)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(CurrencySymbol)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func lineErr(i int, line CartLine, reason LineItemReason) *LineItemError {
	return &LineItemError{
		Index:       i,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		Reason:      reason,
	}
}

func zero() decimal.Decimal { return decimal.Zero.Round(moneyPlaces) }
