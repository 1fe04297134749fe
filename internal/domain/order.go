package domain

import (
	"strings"
	"time"
)

// OrderLine is one flavor's accumulated quantity. UnitPrice is captured when
// the flavor is first added.
type OrderLine struct {
	Flavor    string  `json:"flavor"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Subtotal returns Quantity x UnitPrice.
func (l OrderLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// Order is the in-progress order of a session. Total is derived from Lines and
// is recomputed by every mutating method.
type Order struct {
	Lines         []OrderLine `json:"items"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerEmail string      `json:"customerEmail,omitempty"`
	Total         float64     `json:"total"`
}

// AddLine merges quantity into the line for flavor, appending a new line when
// the flavor is not in the order yet. Non-positive quantities are ignored.
func (o *Order) AddLine(flavor string, quantity int, unitPrice float64) {
	if quantity <= 0 || strings.TrimSpace(flavor) == "" {
		return
	}
	if i := o.lineIndex(flavor); i >= 0 {
		o.Lines[i].Quantity += quantity
	} else {
		o.Lines = append(o.Lines, OrderLine{Flavor: flavor, Quantity: quantity, UnitPrice: unitPrice})
	}
	o.Recalculate()
}

// RemoveLine drops the line for flavor and reports whether one existed.
func (o *Order) RemoveLine(flavor string) bool {
	i := o.lineIndex(flavor)
	if i < 0 {
		return false
	}
	o.Lines = append(o.Lines[:i:i], o.Lines[i+1:]...)
	o.Recalculate()
	return true
}

// Line returns the line for flavor, if any.
func (o *Order) Line(flavor string) (OrderLine, bool) {
	if i := o.lineIndex(flavor); i >= 0 {
		return o.Lines[i], true
	}
	return OrderLine{}, false
}

// Clear resets the order to its empty form, identity fields included.
func (o *Order) Clear() {
	*o = Order{}
}

// IsEmpty reports whether the order has no lines.
func (o *Order) IsEmpty() bool {
	return len(o.Lines) == 0
}

// ItemCount returns the summed quantity over all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Recalculate sets Total to the sum of every line subtotal.
func (o *Order) Recalculate() {
	total := 0.0
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	o.Total = total
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o
}

func (o *Order) lineIndex(flavor string) int {
	for i, l := range o.Lines {
		if strings.EqualFold(l.Flavor, flavor) {
			return i
		}
	}
	return -1
}

// PlacedOrder is a finalized order handed to the persistence collaborator.
type PlacedOrder struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Order     Order     `json:"order"`
	PlacedAt  time.Time `json:"placedAt"`
}
