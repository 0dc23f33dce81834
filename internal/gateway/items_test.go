package gateway

import (
	"testing"

	"go-material-store/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(items []ItemDetail) int64 {
	var s int64
	for _, it := range items {
		s += it.Price * int64(it.Quantity)
	}
	return s
}

func TestBuildItemsExactWhenNoDrift(t *testing.T) {
	tax := money.MustTaxCalculator("0.11", "half_up")
	items, err := BuildItems([]Line{{ID: "p", Name: "Cement", UnitPrice: 10000, Quantity: 2}}, 22200, tax)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(11100), items[0].Price)
}

func TestBuildItemsAdjustsLastLine(t *testing.T) {
	tax := money.MustTaxCalculator("0.11", "half_up")
	// each line grosses 5.55 -> 6, but the order total is 10 + round(1.1) = 11
	lines := []Line{
		{ID: "a", Name: "Nails", UnitPrice: 5, Quantity: 1},
		{ID: "b", Name: "Washer", UnitPrice: 5, Quantity: 1},
	}
	items, err := BuildItems(lines, 11, tax)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(6), items[0].Price)
	assert.Equal(t, int64(5), items[1].Price)
	assert.Equal(t, int64(11), sum(items))
}

func TestBuildItemsSplitsWhenNotDivisible(t *testing.T) {
	tax := money.MustTaxCalculator("0.11", "half_up")
	lines := []Line{{ID: "a", Name: "Brick", UnitPrice: 1000, Quantity: 3}}
	// gross per unit 1110 -> 3330; pretend a total one unit higher
	items, err := BuildItems(lines, 3331, tax)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, int64(1111), items[1].Price)
	assert.Equal(t, int64(3331), sum(items))
}

func TestBuildItemsTruncatesNames(t *testing.T) {
	tax := money.MustTaxCalculator("0", "half_up")
	long := "Semen Portland Komposit 50kg Tiga Roda Kualitas Premium Super"
	items, err := BuildItems([]Line{{ID: "a", Name: long, UnitPrice: 10, Quantity: 1}}, 10, tax)
	require.NoError(t, err)
	assert.Len(t, []rune(items[0].Name), 50)
}

func TestBuildItemsRequiresLines(t *testing.T) {
	_, err := BuildItems(nil, 0, money.MustTaxCalculator("0.11", ""))
	require.Error(t, err)
}
