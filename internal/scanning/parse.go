package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/quicktotal/internal/ledger"
)

type rawItem struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Amount   json.RawMessage `json:"amount"`
}

type rawExtraction struct {
	Items      []rawItem       `json:"items"`
	Confidence json.RawMessage `json:"confidence"`
}

var (
	currencyMark = regexp.MustCompile(`(?i)rs\.?|inr|₹|\$|€|£`)
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
)

// parseExtractionJSON parses the JSON response from an LLM
func parseExtractionJSON(text string) (*Extraction, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	out := &Extraction{Items: make([]ledger.LineItem, 0, len(raw.Items))}
	for _, item := range raw.Items {
		amount, ok := parseAmount(item.Amount)
		if !ok {
			// A line without a readable price can't contribute to totals
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "Unnamed item"
		}
		out.Items = append(out.Items, ledger.LineItem{
			Name:     name,
			Category: strings.TrimSpace(item.Category),
			Amount:   amount,
		})
	}

	if conf, ok := parseAmount(raw.Confidence); ok {
		c := int(conf.Round(0).IntPart())
		// Some models answer on a 0-1 scale. A bare 1 is read as 1 of 100.
		fraction := strings.Contains(string(raw.Confidence), ".")
		if fraction && conf.LessThanOrEqual(decimal.NewFromInt(1)) && conf.IsPositive() {
			c = int(conf.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		}
		out.Confidence = min(max(c, 0), 100)
	}

	return out, nil
}

// parseAmount accepts a JSON number or a string like "₹1,299.00".
// An amount in parentheses, as accountants write refunds, is negative.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	if !strings.HasPrefix(s, `"`) {
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return decimal.Zero, false
	}
	str = strings.TrimSpace(str)
	negate := strings.HasPrefix(str, "(") && strings.HasSuffix(str, ")")
	if negate {
		str = str[1 : len(str)-1]
	}
	str = currencyMark.ReplaceAllString(str, "")
	str = strings.ReplaceAll(str, ",", "")
	str = nonNumeric.ReplaceAllString(str, "")

	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, false
	}
	if negate {
		d = d.Abs().Neg()
	}
	return d, true
}
