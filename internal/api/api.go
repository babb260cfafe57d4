// Package api holds the JSON and form shapes exchanged between the
// QuickTotal server and its clients.
package api

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/quicktotal/internal/ledger"
)

// Multipart form field names
const (
	FieldImages = "images"
	FieldImage  = "image"
	FieldIndex  = "index"
	FieldX1     = "x1"
	FieldY1     = "y1"
	FieldX2     = "x2"
	FieldY2     = "y2"
	FieldData   = "data"
)

// Paths served by the QuickTotal server
const (
	PathCalculate        = "/calculate"
	PathAnalyzeImage     = "/analyze_image"
	PathSaveTrainingData = "/save_training_data"
	PathLedgerTotals     = "/api/ledger/totals"
	PathExportCSV        = "/api/ledger/export.csv"
	PathExportPDF        = "/api/ledger/export.pdf"
)

// DocumentResult is the outcome of extracting one submitted image. Either
// Error is set or the remaining fields are.
type DocumentResult struct {
	ID            string            `json:"id,omitempty"`
	Index         int               `json:"index"`
	Filename      string            `json:"filename"`
	Items         []ledger.LineItem `json:"items,omitempty"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Method        string            `json:"method,omitempty"`
	QualityScore  int               `json:"quality_score"`
	AccuracyScore int               `json:"accuracy_score"`
	Error         string            `json:"error,omitempty"`
}

// Document converts a successful result into a ledger document
func (r DocumentResult) Document(label string) ledger.Document {
	return ledger.Document{
		Label:         label,
		Filename:      r.Filename,
		Method:        r.Method,
		QualityScore:  r.QualityScore,
		AccuracyScore: r.AccuracyScore,
		Items:         append([]ledger.LineItem(nil), r.Items...),
	}
}

// CalculateResponse is returned by POST /calculate
type CalculateResponse struct {
	Error   string           `json:"error,omitempty"`
	Results []DocumentResult `json:"results,omitempty"`
}

// AnalyzeResponse is returned by POST /analyze_image
type AnalyzeResponse struct {
	Error        string `json:"error,omitempty"`
	QualityScore int    `json:"quality_score"`
}

// TrainingResponse is returned by POST /save_training_data
type TrainingResponse struct {
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

// LedgerRequest carries on-screen ledger state for totals and exports
type LedgerRequest struct {
	Documents []ledger.Document `json:"documents"`
}

// ErrorResponse is the body of any failed request
type ErrorResponse struct {
	Error string `json:"error"`
}
