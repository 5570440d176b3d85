package quotations

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotal is unit_price × quantity × (1 − discount/100) rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int, discountPercent decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return gross.Mul(hundred.Sub(discountPercent)).Div(hundred).Round(2)
}

// Total sums already rounded line totals.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	return sum.Round(2)
}
