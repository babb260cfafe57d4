package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/quicktotal/internal/ledger"
)

// Document is an extracted document kept in the history
type Document struct {
	ID            string            `json:"id"`
	Filename      string            `json:"filename"`     // Name the file was uploaded with
	StoredFile    string            `json:"stored_file"`  // Path within Storage
	ContentType   string            `json:"content_type"`
	Method        string            `json:"method"`
	QualityScore  int               `json:"quality_score"`
	AccuracyScore int               `json:"accuracy_score"`
	Items         []ledger.LineItem `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TrainingSample is an image paired with human-corrected line items
type TrainingSample struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	ImageFile    string            `json:"image_file"`
	ContentType  string            `json:"content_type"`
	Items        []ledger.LineItem `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
}
