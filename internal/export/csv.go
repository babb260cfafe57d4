package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zombor/quicktotal/internal/ledger"
)

// CSVHeader is the header row of an exported ledger
const CSVHeader = "S.No.,Document,Item Name,Category,Price"

// WriteCSV writes one row per line item, numbered from 1 across all
// documents, followed by a grand total row. Prices are plain signed
// numbers with two decimals so spreadsheets read them as numbers.
func WriteCSV(w io.Writer, docs []ledger.Document) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(CSVHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	serial := 0
	for _, doc := range docs {
		for _, item := range doc.Items {
			serial++
			rec := []string{
				strconv.Itoa(serial),
				doc.Label,
				item.Name,
				ledger.NormalizeCategory(item.Category),
				item.Amount.StringFixed(2),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing row %d: %w", serial, err)
			}
		}
	}

	totals := ledger.Recalculate(docs, ledger.DefaultCurrency)
	if err := cw.Write([]string{"", "", "Grand Total", "", totals.GrandTotal.StringFixed(2)}); err != nil {
		return fmt.Errorf("writing total: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
