package order

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/cart"
	"restaurant-system/internal/models"
)

const (
	maxNotesLength        = 500
	maxInstructionsLength = 200
	maxItemNameLength     = 100
	maxCartEntries        = 50
)

// maxOrderTotal is the largest total an order row can hold
var maxOrderTotal = decimal.RequireFromString("99999999.99")

// CheckoutRequest is the delivery metadata that accompanies a cart
type CheckoutRequest struct {
	OrderType     models.OrderType     `json:"order_type"`
	TableNumber   *int                 `json:"table_number,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Notes         *string              `json:"notes,omitempty"`
}

// ValidateCheckout checks every checkout precondition that does not need the
// database. It runs before any write.
func ValidateCheckout(c *cart.Cart, req *CheckoutRequest) error {
	if err := validateCart(c); err != nil {
		return err
	}

	if err := validateOrderType(req.OrderType); err != nil {
		return err
	}

	if err := validateTableNumber(req.OrderType, req.TableNumber); err != nil {
		return err
	}

	if err := validatePaymentMethod(req.PaymentMethod); err != nil {
		return err
	}

	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > maxNotesLength {
		return apperrors.Invalid("notes", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}

	return nil
}

func validateCart(c *cart.Cart) error {
	if c == nil || c.IsEmpty() {
		return apperrors.Invalid("cart", "cart is empty")
	}

	if c.Len() > maxCartEntries {
		return apperrors.Invalid("cart", fmt.Sprintf("a maximum of %d distinct items is allowed", maxCartEntries))
	}

	for i, item := range c.Items() {
		if utf8.RuneCountInString(item.Name) > maxItemNameLength {
			return apperrors.Invalid(fmt.Sprintf("items[%d].name", i),
				fmt.Sprintf("item name must be at most %d characters", maxItemNameLength))
		}
		if utf8.RuneCountInString(item.SpecialInstructions) > maxInstructionsLength {
			return apperrors.Invalid(fmt.Sprintf("items[%d].special_instructions", i),
				fmt.Sprintf("special instructions must be at most %d characters", maxInstructionsLength))
		}
		if item.Quantity < 1 || item.Quantity > cart.MaxQuantity {
			return apperrors.Invalid(fmt.Sprintf("items[%d].quantity", i),
				fmt.Sprintf("quantity must be between 1 and %d", cart.MaxQuantity))
		}
	}

	if c.TotalAmount().GreaterThan(maxOrderTotal) {
		return apperrors.Invalid("total_amount", fmt.Sprintf("order total must not exceed %s", maxOrderTotal.StringFixed(2)))
	}
	return nil
}

func validateOrderType(t models.OrderType) error {
	if t == "" {
		return apperrors.Invalid("order_type", "order type is required")
	}
	if !t.Valid() {
		return apperrors.Invalid("order_type", "order type must be one of dine-in, takeaway, delivery")
	}
	return nil
}

func validateTableNumber(t models.OrderType, table *int) error {
	if t == models.DineIn && (table == nil || *table <= 0) {
		return apperrors.Invalid("table_number", "a positive table number is required for dine-in orders")
	}
	return nil
}

func validatePaymentMethod(m models.PaymentMethod) error {
	if m == "" {
		return apperrors.Invalid("payment_method", "payment method is required")
	}
	if !m.Valid() {
		return apperrors.Invalid("payment_method", "payment method must be one of card, cash, mobile")
	}
	return nil
}

// ParseStatus validates a requested status value
func ParseStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.TrimSpace(raw))
	if status == "" {
		return "", apperrors.Invalid("status", "status is required")
	}
	if !status.Valid() {
		return "", apperrors.Invalid("status", "status must be one of pending, preparing, ready, delivered, cancelled")
	}
	return status, nil
}
