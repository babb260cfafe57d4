package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ItemView is the rendered state of one line item amount
type ItemView struct {
	Display  string `json:"display"`
	Negative bool   `json:"negative"`
}

// DocumentTotals is the recomputed state of one document
type DocumentTotals struct {
	Label    string          `json:"label"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Display  string          `json:"display"`
	Items    []ItemView      `json:"items"`
}

// CategoryTotal is the sum of all item amounts in one category
type CategoryTotal struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Display string          `json:"display"`
	// Share is the category's percentage of the breakdown, rounded to one
	// decimal place. Shares are taken over absolute amounts so a pie chart
	// of them always adds up.
	Share decimal.Decimal `json:"share"`
}

// ShareDisplay renders the share as e.g. "66.7%"
func (c CategoryTotal) ShareDisplay() string {
	return c.Share.StringFixed(1) + "%"
}

// Totals is the aggregate state derived from a set of documents
type Totals struct {
	Documents    []DocumentTotals `json:"documents"`
	GrandTotal   decimal.Decimal  `json:"grand_total"`
	GrandDisplay string           `json:"grand_display"`
	Categories   []CategoryTotal  `json:"categories"`
}

// Recalculate rebuilds every derived value from docs. It never mutates its
// input, so calling it twice on the same documents gives equal results.
func Recalculate(docs []Document, cur Currency) Totals {
	totals := Totals{
		Documents:  make([]DocumentTotals, 0, len(docs)),
		GrandTotal: decimal.Zero,
		Categories: []CategoryTotal{},
	}

	byCategory := make(map[string]decimal.Decimal)
	for _, doc := range docs {
		dt := DocumentTotals{
			Label:    doc.Label,
			Count:    len(doc.Items),
			Subtotal: decimal.Zero,
			Items:    make([]ItemView, 0, len(doc.Items)),
		}
		for _, item := range doc.Items {
			dt.Subtotal = dt.Subtotal.Add(item.Amount)
			dt.Items = append(dt.Items, ItemView{
				Display:  cur.Signed(item.Amount),
				Negative: item.Amount.IsNegative(),
			})

			name := NormalizeCategory(item.Category)
			if prev, ok := byCategory[name]; ok {
				byCategory[name] = prev.Add(item.Amount)
			} else {
				byCategory[name] = item.Amount
			}
		}
		dt.Display = cur.Plain(dt.Subtotal)
		totals.GrandTotal = totals.GrandTotal.Add(dt.Subtotal)
		totals.Documents = append(totals.Documents, dt)
	}
	totals.GrandDisplay = cur.Plain(totals.GrandTotal)

	absSum := decimal.Zero
	for _, amount := range byCategory {
		absSum = absSum.Add(amount.Abs())
	}
	for name, amount := range byCategory {
		share := decimal.Zero
		if !absSum.IsZero() {
			share = amount.Abs().Div(absSum).Mul(decimal.NewFromInt(100)).Round(1)
		}
		totals.Categories = append(totals.Categories, CategoryTotal{
			Name:    name,
			Amount:  amount,
			Display: cur.Plain(amount),
			Share:   share,
		})
	}
	sort.Slice(totals.Categories, func(i, j int) bool {
		a, b := totals.Categories[i], totals.Categories[j]
		if c := a.Amount.Abs().Cmp(b.Amount.Abs()); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})

	return totals
}
