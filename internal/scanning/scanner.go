package scanning

import "github.com/zombor/quicktotal/internal/ledger"

// Extraction contains the line items read from one document image
type Extraction struct {
	Items []ledger.LineItem `json:"items"`
	// Confidence is the model's own 0-100 estimate of how accurately it read
	// the document
	Confidence int `json:"confidence"`
}

// Scanner defines the interface for line item extraction
type Scanner interface {
	// Extract analyzes a receipt or bill image/PDF and returns its line items
	Extract(imageData []byte, contentType string) (*Extraction, error)
	// Method is the label shown next to results, e.g. "Gemini (gemini-2.5-pro)"
	Method() string
	// Close closes the scanner and releases resources
	Close() error
}
