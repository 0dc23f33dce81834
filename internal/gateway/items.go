package gateway

import (
	"fmt"

	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/money"
)

const maxItemField = 50

// Line is one order line at its pre-tax unit price.
type Line struct {
	ID        string
	Name      string
	UnitPrice int64
	Quantity  int
}

// BuildItems turns order lines into tax-inclusive item details whose sum equals total exactly.
// Per-line rounding drift is absorbed by the last line; when the drift is not divisible by its
// quantity, one unit of that line is split off and carries the remainder.
func BuildItems(lines []Line, total int64, tax *money.TaxCalculator) ([]ItemDetail, error) {
	if len(lines) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no items to send")
	}

	items := make([]ItemDetail, 0, len(lines)+1)
	var sum int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("item %s has no quantity", l.ID))
		}
		unit := tax.Gross(l.UnitPrice)
		items = append(items, ItemDetail{
			ID:       truncate(l.ID),
			Name:     truncate(l.Name),
			Price:    unit,
			Quantity: l.Quantity,
		})
		sum += unit * int64(l.Quantity)
	}

	if diff := total - sum; diff != 0 {
		last := &items[len(items)-1]
		q := int64(last.Quantity)
		if diff%q == 0 {
			last.Price += diff / q
		} else {
			extra := ItemDetail{ID: last.ID, Name: last.Name, Price: last.Price + diff, Quantity: 1}
			last.Quantity--
			items = append(items, extra)
		}
		for _, it := range items {
			if it.Price <= 0 {
				return nil, apperrors.New(apperrors.CodeInternal,
					fmt.Sprintf("rounding adjustment left item %s with price %d", it.ID, it.Price))
			}
		}
	}

	if err := ReconcileItems(items, total); err != nil {
		return nil, err
	}
	return items, nil
}

// ReconcileItems fails when the item details do not add up to the gross amount.
func ReconcileItems(items []ItemDetail, gross int64) error {
	var sum int64
	for _, it := range items {
		sum += it.Price * int64(it.Quantity)
	}
	if sum != gross {
		return apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("item details sum %d does not match gross amount %d", sum, gross))
	}
	return nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxItemField {
		return s
	}
	return string(r[:maxItemField])
}
