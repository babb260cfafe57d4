package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/quicktotal/internal/api"
	"github.com/zombor/quicktotal/internal/export"
	"github.com/zombor/quicktotal/internal/ledger"
)

// maxFormSize bounds multipart uploads; high-resolution phone photos run large
const maxFormSize = int64(50 << 20)

var errNoImage = errors.New("No image uploaded")

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes a plain text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an {"error": ...} response
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, api.ErrorResponse{Error: message})
}

// parseForm parses a multipart form, translating size errors into
// something a user can act on
func parseForm(r *http.Request) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || err.Error() == "http: request body too large" {
			return fmt.Errorf("File is too large. Maximum size is 50MB. Please compress or resize your image.")
		}
		return fmt.Errorf("Error parsing form")
	}
	return nil
}

// formUploads reads every file in the given form fields
func formUploads(r *http.Request, fields ...string) ([]Upload, error) {
	if r.MultipartForm == nil {
		return nil, errNoImage
	}
	var uploads []Upload
	for _, field := range fields {
		for _, header := range r.MultipartForm.File[field] {
			up, err := readUpload(header)
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, up)
		}
	}
	if len(uploads) == 0 {
		return nil, errNoImage
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (Upload, error) {
	if header.Filename == "" {
		return Upload{}, fmt.Errorf("No file selected")
	}
	f, err := header.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("Error reading file. Please try again.")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		return Upload{}, fmt.Errorf("Error reading file. Please try again.")
	}
	return Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// parseCrop reads x1,y1,x2,y2. Crop bounds are only used when all four are
// present; any that are present must be integers.
func parseCrop(r *http.Request) (*image.Rectangle, error) {
	fields := []string{api.FieldX1, api.FieldY1, api.FieldX2, api.FieldY2}
	values := make([]int, 0, len(fields))
	for _, field := range fields {
		raw := strings.TrimSpace(r.FormValue(field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("Invalid crop coordinate %s: %q", field, raw)
		}
		values = append(values, v)
	}
	if len(values) != len(fields) {
		return nil, nil
	}
	rect := image.Rect(values[0], values[1], values[2], values[3])
	if rect.Empty() {
		return nil, fmt.Errorf("Crop area is empty")
	}
	return &rect, nil
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleCalculate extracts line items from one or more uploaded images
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploads, err := formUploads(r, api.FieldImages, api.FieldImage)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	crop, err := parseCrop(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	index := 1
	if raw := r.FormValue(api.FieldIndex); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil {
			jsonError(w, "Invalid document index", http.StatusBadRequest)
			return
		}
	}

	results := s.service.Calculate(uploads, crop, index)
	writeJSON(w, http.StatusOK, api.CalculateResponse{Results: results})
}

// handleAnalyzeImage scores the quality of a single image
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	uploads, err := formUploads(r, api.FieldImage, api.FieldImages)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	up := uploads[0]
	score, err := s.service.AnalyzeImage(up.Data, up.ContentType)
	if err != nil {
		slog.Error("Error analyzing image", "filename", up.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, api.AnalyzeResponse{QualityScore: score})
}

// decodeTrainingItems accepts either a bare array of items or {"items": [...]}
func decodeTrainingItems(raw string) ([]ledger.LineItem, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("No training data provided")
	}
	var items []ledger.LineItem
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("Invalid training data: %v", err)
		}
		return items, nil
	}
	var wrapped struct {
		Items []ledger.LineItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("Invalid training data: %v", err)
	}
	return wrapped.Items, nil
}

// handleSaveTrainingData stores an image with human-corrected line items
func (s *Server) handleSaveTrainingData(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	uploads, err := formUploads(r, api.FieldImage, api.FieldImages)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := decodeTrainingItems(r.FormValue(api.FieldData))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sample, err := s.service.SaveTrainingData(uploads[0], items)
	if err != nil {
		slog.Error("Error saving training data", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, api.TrainingResponse{ID: sample.ID})
}

// handleListSamples returns all training samples
func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.service.ListSamples()
	if err != nil {
		slog.Error("Error listing training samples", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func decodeLedger(r *http.Request) ([]ledger.Document, error) {
	var req api.LedgerRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 5<<20)).Decode(&req); err != nil {
		return nil, err
	}
	return req.Documents, nil
}

// handleLedgerTotals recalculates posted ledger state
func (s *Server) handleLedgerTotals(w http.ResponseWriter, r *http.Request) {
	docs, err := decodeLedger(r)
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Totals(docs))
}

// handleExportCSV renders posted ledger state as CSV
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	docs, err := decodeLedger(r)
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, s.service.Categorize(docs)); err != nil {
		slog.Error("Error exporting CSV", "error", err)
		jsonError(w, "Export failed", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="quicktotal.csv"`)
	w.Write(buf.Bytes())
}

// handleExportPDF renders posted ledger state as a PDF report
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	docs, err := decodeLedger(r)
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	report := export.PDFReport{Generated: s.service.timeSource.Now(), Documents: s.service.Categorize(docs)}
	if err := export.WritePDF(&buf, report); err != nil {
		slog.Error("Error exporting PDF", "error", err)
		jsonError(w, "Export failed", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="quicktotal.pdf"`)
	w.Write(buf.Bytes())
}

// handleListDocuments returns the document history
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentFile returns the stored image for a document
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetDocumentFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteDocument deletes a document from the history
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		slog.Error("Error deleting document", "error", err)
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
