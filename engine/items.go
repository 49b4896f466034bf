/*
items.go - Tagged edits of order lines

Each recognised field has its own operation and its own recalculation rule.
All of them take the line by value and return a new line; nothing is
mutated in place.

  gross    = Quantity * UnitPrice
  Discount = gross * DiscountPercent / 100   (price, quantity, percent edits)
  Percent  = Discount / gross * 100          (amount edits; 0 when gross is 0)
  Subtotal = gross - Discount

Bonus units never change the price of a line.
*/
package engine

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// NewOrderItem builds a priced line from a catalog product.
func NewOrderItem(p Product, quantity, bonus int, discountPercent decimal.Decimal) OrderItem {
	it := OrderItem{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      quantity,
		BonusQuantity: bonus,
		UnitPrice:     p.BasePrice,
	}
	return it.WithDiscountPercent(discountPercent)
}

func (it OrderItem) gross() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// repriced keeps DiscountPercent and recomputes Discount and Subtotal.
func (it OrderItem) repriced() OrderItem {
	gross := it.gross()
	it.Discount = gross.Mul(it.DiscountPercent).Div(hundred).Round(2)
	it.Subtotal = gross.Sub(it.Discount)
	return it
}

func (it OrderItem) WithUnitPrice(price decimal.Decimal) OrderItem {
	it.UnitPrice = price
	return it.repriced()
}

func (it OrderItem) WithQuantity(q int) OrderItem {
	it.Quantity = q
	return it.repriced()
}

func (it OrderItem) WithBonus(q int) OrderItem {
	it.BonusQuantity = q
	return it
}

func (it OrderItem) WithDiscountPercent(pct decimal.Decimal) OrderItem {
	it.DiscountPercent = pct
	return it.repriced()
}

// WithDiscountAmount sets an absolute discount and derives the percentage.
func (it OrderItem) WithDiscountAmount(amount decimal.Decimal) OrderItem {
	gross := it.gross()
	it.Discount = amount
	if gross.IsZero() {
		it.DiscountPercent = decimal.Zero
	} else {
		it.DiscountPercent = amount.Div(gross).Mul(hundred).Round(4)
	}
	it.Subtotal = gross.Sub(amount)
	return it
}

// WithTotals returns a copy of o whose TotalAmount is the sum of its line
// subtotals, negated for returns.
func (o Order) WithTotals() Order {
	c := o.Clone()
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal)
	}
	if c.IsReturn {
		total = total.Neg()
	}
	c.TotalAmount = total
	return c
}
