// Package cart holds the per-session shopping cart. A Cart is a plain value
// owned by whoever loaded it; nothing in this package keeps a global cart.
package cart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"restaurant-system/internal/apperrors"
)

// MaxQuantity is the largest quantity a single entry may hold
const MaxQuantity = 99

// Item is one selected menu item with its price at selection time
type Item struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

// Subtotal returns unit price times quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart maps item id to Item. Every entry has Quantity >= 1.
type Cart struct {
	items map[string]Item
}

// New returns an empty cart
func New() *Cart {
	return &Cart{items: make(map[string]Item)}
}

// Add inserts item, or increments the quantity of an existing entry with the
// same id. Non-empty special instructions replace the stored ones.
func (c *Cart) Add(item Item, quantity int) error {
	if strings.TrimSpace(item.ID) == "" {
		return apperrors.Invalid("id", "item id is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return apperrors.Invalid("name", "item name is required")
	}
	if !item.UnitPrice.IsPositive() {
		return apperrors.Invalid("unit_price", "unit price must be greater than 0")
	}
	if quantity < 1 || quantity > MaxQuantity {
		return apperrors.Invalid("quantity", fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
	}

	if c.items == nil {
		c.items = make(map[string]Item)
	}

	existing, ok := c.items[item.ID]
	if !ok {
		item.UnitPrice = item.UnitPrice.Round(2)
		item.Quantity = quantity
		c.items[item.ID] = item
		return nil
	}

	if existing.Quantity > MaxQuantity-quantity {
		return apperrors.Invalid("quantity", fmt.Sprintf("at most %d of %s fit in one cart", MaxQuantity, existing.Name))
	}
	existing.Quantity += quantity
	if item.SpecialInstructions != "" {
		existing.SpecialInstructions = item.SpecialInstructions
	}
	c.items[item.ID] = existing
	return nil
}

// UpdateQuantity sets the quantity of id. A quantity <= 0 removes the entry.
// Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	if quantity <= 0 {
		c.Remove(id)
		return nil
	}
	if quantity > MaxQuantity {
		return apperrors.Invalid("quantity", fmt.Sprintf("quantity must be at most %d", MaxQuantity))
	}
	item, ok := c.items[id]
	if !ok {
		return nil
	}
	item.Quantity = quantity
	c.items[id] = item
	return nil
}

// Subtract takes the quantities held in ordered off the matching entries.
// Entries that reach zero are removed; entries ordered doesn't hold stay.
func (c *Cart) Subtract(ordered *Cart) {
	for id, o := range ordered.items {
		item, ok := c.items[id]
		if !ok {
			continue
		}
		item.Quantity -= o.Quantity
		if item.Quantity <= 0 {
			delete(c.items, id)
			continue
		}
		c.items[id] = item
	}
}

// Remove deletes the entry for id if present
func (c *Cart) Remove(id string) {
	delete(c.items, id)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.items = make(map[string]Item)
}

// Get returns the entry for id
func (c *Cart) Get(id string) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Len returns the number of distinct entries
func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// TotalAmount is recomputed on every call
func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Items returns the entries sorted by name, then id
func (c *Cart) Items() []Item {
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items
}

type cartJSON struct {
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartJSON{Items: c.Items(), TotalAmount: c.TotalAmount()})
}

// UnmarshalJSON restores the entries; the stored total is ignored and
// entries with a quantity outside 1..MaxQuantity are dropped.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.items = make(map[string]Item, len(raw.Items))
	for _, item := range raw.Items {
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			continue
		}
		c.items[item.ID] = item
	}
	return nil
}
