package service

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Errors returned by the pricing functions.
var (
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrNegativeUnitPrice    = errors.New("unit_price must be >= 0")
	ErrInvalidItemDiscount  = errors.New("discount_amount must be between 0 and quantity * unit_price")
	ErrNegativeGiftQuantity = errors.New("gift_quantity must be >= 0")
	ErrInvalidOrderDiscount = errors.New("order discount_amount must be >= 0")
	ErrTooManyDecimals      = errors.New("amounts must have at most 2 decimal places")
	ErrAmountTooLarge       = errors.New("amount exceeds the maximum allowed value")
)

// Upper bounds of the money columns: numeric(12,2) for unit prices and
// numeric(14,2) for discounts and totals.
var (
	MaxUnitPrice = decimal.RequireFromString("9999999999.99")
	MaxAmount    = decimal.RequireFromString("999999999999.99")
)

// CheckMoney rejects amounts that the money columns cannot store exactly.
func CheckMoney(d, limit decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return ErrTooManyDecimals
	}
	if d.GreaterThan(limit) {
		return ErrAmountTooLarge
	}
	return nil
}

// LineItem is the monetary view of one order line.
// GiftQuantity is carried along for display and never priced.
type LineItem struct {
	Quantity       int32
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	GiftQuantity   int32
}

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal       decimal.Decimal // sum of item totals
	DiscountAmount decimal.Decimal // order-level discount as requested
	Total          decimal.Decimal // max(0, Subtotal - DiscountAmount)
}

// ValidateLineItem rejects lines whose numbers cannot describe a real sale.
func ValidateLineItem(item LineItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.UnitPrice.IsNegative() {
		return ErrNegativeUnitPrice
	}
	if err := CheckMoney(item.UnitPrice, MaxUnitPrice); err != nil {
		return errors.Wrap(err, "unit_price")
	}
	gross := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
	if gross.GreaterThan(MaxAmount) {
		return errors.Wrap(ErrAmountTooLarge, "quantity * unit_price")
	}
	if item.DiscountAmount.IsNegative() || item.DiscountAmount.GreaterThan(gross) {
		return ErrInvalidItemDiscount
	}
	if err := CheckMoney(item.DiscountAmount, MaxAmount); err != nil {
		return errors.Wrap(err, "discount_amount")
	}
	if item.GiftQuantity < 0 {
		return ErrNegativeGiftQuantity
	}
	return nil
}

// CalculateItemTotal returns max(0, quantity*unit_price - discount_amount).
func CalculateItemTotal(item LineItem) (decimal.Decimal, error) {
	if err := ValidateLineItem(item); err != nil {
		return decimal.Zero, err
	}
	return itemTotal(item), nil
}

func itemTotal(item LineItem) decimal.Decimal {
	total := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)).Sub(item.DiscountAmount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// CalculateOrderTotal sums the item totals and subtracts the order-level
// discount, flooring the result at zero. Amounts carry at most two decimals,
// so the subtotal equals the sum of the stored item totals. An empty item
// list totals zero. Item errors are wrapped with the item index.
func CalculateOrderTotal(items []LineItem, orderDiscount decimal.Decimal) (Totals, error) {
	if orderDiscount.IsNegative() {
		return Totals{}, ErrInvalidOrderDiscount
	}
	if err := CheckMoney(orderDiscount, MaxAmount); err != nil {
		return Totals{}, errors.Wrap(err, "order discount_amount")
	}

	subtotal := decimal.Zero
	for i, item := range items {
		t, err := CalculateItemTotal(item)
		if err != nil {
			return Totals{}, errors.Wrapf(err, "item[%d]", i)
		}
		subtotal = subtotal.Add(t)
	}
	if subtotal.GreaterThan(MaxAmount) {
		return Totals{}, errors.Wrap(ErrAmountTooLarge, "subtotal")
	}

	total := subtotal.Sub(orderDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: orderDiscount,
		Total:          total,
	}, nil
}
