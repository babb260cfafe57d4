package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used for items with no category
const DefaultCategory = "Misc"

// LineItem is one extracted or manually entered entry
type LineItem struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Document is the set of line items extracted from one submitted file
type Document struct {
	Label         string     `json:"label"`
	Filename      string     `json:"filename,omitempty"`
	Method        string     `json:"method,omitempty"`
	QualityScore  int        `json:"quality_score,omitempty"`
	AccuracyScore int        `json:"accuracy_score,omitempty"`
	Items         []LineItem `json:"items"`
}

// Subtotal sums the signed amounts of the document's items
func (d Document) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range d.Items {
		sum = sum.Add(item.Amount)
	}
	return sum
}

// NormalizeCategory trims name and capitalizes it: first letter upper case,
// the rest lower case. Blank names become DefaultCategory.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultCategory
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + strings.ToLower(name[size:])
}
