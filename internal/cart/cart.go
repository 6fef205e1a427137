// Package cart holds the shopper's ordered list of line items.
//
// A Cart has no locking of its own. The session layer guarantees a single
// writer per session.
package cart

import (
	"github.com/dukerupert/cutroom/internal/domain"
)

// Cart is an ordered collection of line items.
type Cart struct {
	Lines []domain.CartLineItem `json:"items"`
}

// Add merges item into an existing line with the same service and addon set,
// summing quantities, or appends it. Plan is not part of the match; a merged
// line keeps the plan it was first added with. Returns the index of the
// affected line.
func (c *Cart) Add(item domain.CartLineItem) int {
	for i := range c.Lines {
		if c.Lines[i].SameSelection(item) {
			c.Lines[i].Quantity += item.Quantity
			return i
		}
	}
	c.Lines = append(c.Lines, item)
	return len(c.Lines) - 1
}

// UpdateQuantity sets the quantity of the line at index.
// A quantity of zero or less removes the line.
func (c *Cart) UpdateQuantity(index, quantity int) error {
	if quantity <= 0 {
		return c.Remove(index)
	}
	if !c.inRange(index) {
		return domain.WithOp(domain.ErrCartItemNotFound, "cart.update_quantity")
	}
	c.Lines[index].Quantity = quantity
	return nil
}

// Remove drops the line at index.
func (c *Cart) Remove(index int) error {
	if !c.inRange(index) {
		return domain.WithOp(domain.ErrCartItemNotFound, "cart.remove")
	}
	c.Lines = append(c.Lines[:index], c.Lines[index+1:]...)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Items returns a copy of the lines.
func (c *Cart) Items() []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.Lines)
}

// ItemCount is the sum of quantities across lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) inRange(index int) bool {
	return index >= 0 && index < len(c.Lines)
}
