package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one product and quantity in a cart. Name and UnitPrice are
// snapshots taken when the line was added.
type LineItem struct {
	ProductID ProductID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart accumulates line items for a pending sale. It never touches the
// store; the zero value is an empty cart ready to use.
//
// The stock check in AddLine uses the stock shown on screen and can be
// stale. Checkout.Finalize re-checks against persisted stock.
type Cart struct {
	lines []LineItem
	total decimal.Decimal
}

// AddLine appends qty units of p. The cart's total quantity of p, this
// line included, may not exceed p.Stock.
func (c *Cart) AddLine(p Product, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidQuantity, qty)
	}
	inCart := c.QuantityOf(p.ID)
	if inCart+qty > p.Stock {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Stock - inCart,
			Requested:   qty,
		}
	}

	line := LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	c.lines = append(c.lines, line)
	c.total = c.total.Add(line.Subtotal())
	return nil
}

// RemoveLine drops the line at index i.
func (c *Cart) RemoveLine(i int) error {
	if i < 0 || i >= len(c.lines) {
		return fmt.Errorf("%w: index %d of %d", ErrInvalidLine, i, len(c.lines))
	}
	c.total = c.total.Sub(c.lines[i].Subtotal())
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
	c.total = decimal.Zero
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Total() decimal.Decimal { return c.total }
func (c *Cart) IsEmpty() bool          { return len(c.lines) == 0 }

// QuantityOf sums the quantity of a product across all lines.
func (c *Cart) QuantityOf(id ProductID) int {
	n := 0
	for _, l := range c.lines {
		if l.ProductID == id {
			n += l.Quantity
		}
	}
	return n
}

// Detail renders the itemization stored with the sale: "3x Burger, 1x Fries".
func (c *Cart) Detail() string {
	parts := make([]string, len(c.lines))
	for i, l := range c.lines {
		parts[i] = fmt.Sprintf("%dx %s", l.Quantity, l.Name)
	}
	return strings.Join(parts, ", ")
}

// Change returns the change due when the customer pays with tendered.
func (c *Cart) Change(tendered decimal.Decimal) (decimal.Decimal, error) {
	change := tendered.Sub(c.total)
	if change.IsNegative() {
		return decimal.Zero, &InsufficientTenderError{
			Total:     c.total,
			Tendered:  tendered,
			Shortfall: change.Neg(),
		}
	}
	return change, nil
}
