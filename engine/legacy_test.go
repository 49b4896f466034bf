package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLegacyExpenseQuantity(t *testing.T) {
	cases := []struct {
		desc string
		qty  int
		ok   bool
	}{
		{"Stock purchase: 24 x Panadol Extra", 24, true},
		{"Restock 6×Augmentin 1g", 6, true},
		{"12 X Vitamin C", 12, true},
		{"Fuel for the week", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		qty, ok := parseLegacyExpenseQuantity(tc.desc)
		assert.Equal(t, tc.ok, ok, tc.desc)
		assert.Equal(t, tc.qty, qty, tc.desc)
	}
}

func TestParseLegacyPaidItems(t *testing.T) {
	got := parseLegacyPaidItems("Payment for order 1042: Panadol Extra x2, Augmentin 1g x1, 3 x Zinc, bogus")

	assert.Equal(t, []legacyLine{
		{Name: "Panadol Extra", Quantity: 2},
		{Name: "Augmentin 1g", Quantity: 1},
		{Name: "Zinc", Quantity: 3},
	}, got)

	assert.Empty(t, parseLegacyPaidItems("Payment received"))
}
