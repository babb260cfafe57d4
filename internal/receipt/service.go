package receipt

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/quicktotal/internal/api"
	"github.com/zombor/quicktotal/internal/imaging"
	"github.com/zombor/quicktotal/internal/ledger"
	"github.com/zombor/quicktotal/internal/scanning"
)

// DefaultMinQuality is the lowest quality score accepted for extraction
const DefaultMinQuality = 30

// IDGenerator generates unique IDs for documents and samples
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Upload is one image received from a client
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service extracts, stores and recalculates documents
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	guesser     ledger.Guesser
	currency    ledger.Currency
	minQuality  int
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, guesser ledger.Guesser) *Service {
	return NewServiceWithDeps(db, scanner, storage, guesser, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, guesser ledger.Guesser, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		guesser:     guesser,
		currency:    ledger.DefaultCurrency,
		minQuality:  DefaultMinQuality,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// SetMinQuality changes the quality threshold. Zero disables the check.
func (s *Service) SetMinQuality(score int) {
	s.minQuality = score
}

// SetCurrency changes the currency used for totals and exports
func (s *Service) SetCurrency(c ledger.Currency) {
	s.currency = c
}

// Currency returns the currency used for totals and exports
func (s *Service) Currency() ledger.Currency {
	return s.currency
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	// Keep only alphanumeric, spaces, hyphens, and underscores
	base = unsafeChars.ReplaceAllString(base, "")
	base = whitespace.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	return base + unsafeChars.ReplaceAllString(ext, "")
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Calculate extracts line items from each upload in turn. Document numbers
// start at firstIndex. A non-nil crop is applied to every upload. Failures
// are reported on the affected result and never stop the batch.
func (s *Service) Calculate(uploads []Upload, crop *image.Rectangle, firstIndex int) []api.DocumentResult {
	results := make([]api.DocumentResult, 0, len(uploads))
	for i, up := range uploads {
		results = append(results, s.calculateOne(firstIndex+i, up, crop))
	}
	return results
}

func (s *Service) calculateOne(index int, up Upload, crop *image.Rectangle) api.DocumentResult {
	result := api.DocumentResult{Index: index, Filename: up.Filename, Subtotal: decimal.Zero}
	contentType := imaging.NormalizeContentType(up.ContentType, up.Filename)
	data := up.Data

	img, err := imaging.Decode(data, contentType)
	if err != nil {
		slog.Error("Failed to decode image", "filename", up.Filename, "content_type", contentType, "file_size", len(data), "error", err)
		result.Error = fmt.Sprintf("Could not read image: %v", err)
		return result
	}

	if crop != nil {
		img, err = imaging.Crop(img, *crop)
		if err != nil {
			result.Error = fmt.Sprintf("Could not crop image: %v", err)
			return result
		}
		data, err = imaging.EncodePNG(img)
		if err != nil {
			result.Error = fmt.Sprintf("Could not crop image: %v", err)
			return result
		}
		contentType = "image/png"
	}

	quality, err := imaging.Assess(img)
	if err != nil {
		result.Error = fmt.Sprintf("Could not assess image: %v", err)
		return result
	}
	result.QualityScore = quality.Score
	if s.minQuality > 0 && quality.Score < s.minQuality {
		slog.Info("Rejected low quality image", "filename", up.Filename, "score", quality.Score, "min", s.minQuality)
		result.Error = fmt.Sprintf("Image quality too low (score %d of 100). Retake the photo with better light and focus.", quality.Score)
		return result
	}

	extraction, err := s.scanner.Extract(data, contentType)
	if err != nil {
		slog.Error("Failed to extract line items",
			"filename", up.Filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		result.Error = fmt.Sprintf("Extraction failed: %v", err)
		return result
	}

	result.Items = s.categorize(extraction.Items)
	result.Method = s.scanner.Method()
	result.AccuracyScore = extraction.Confidence
	for _, item := range result.Items {
		result.Subtotal = result.Subtotal.Add(item.Amount)
	}

	result.ID = s.record(up.Filename, data, contentType, result)
	return result
}

// categorize fills blank categories from item names and normalizes the rest
func (s *Service) categorize(items []ledger.LineItem) []ledger.LineItem {
	out := make([]ledger.LineItem, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Category) == "" && s.guesser != nil {
			item.Category = s.guesser.Guess(item.Name)
		}
		item.Category = ledger.NormalizeCategory(item.Category)
		out[i] = item
	}
	return out
}

// record adds a successful extraction to the history. History is best
// effort: on failure the result is still returned, just without an ID.
func (s *Service) record(filename string, data []byte, contentType string, result api.DocumentResult) string {
	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		slog.Warn("Failed to store document image", "filename", filename, "error", err)
		return ""
	}

	doc := &Document{
		ID:            id,
		Filename:      filename,
		StoredFile:    savedPath,
		ContentType:   contentType,
		Method:        result.Method,
		QualityScore:  result.QualityScore,
		AccuracyScore: result.AccuracyScore,
		Items:         result.Items,
		Subtotal:      result.Subtotal,
		CreatedAt:     s.timeSource.Now(),
	}
	if err := s.db.SaveDocument(doc); err != nil {
		slog.Warn("Failed to save document", "filename", filename, "error", err)
		s.storage.Delete(savedPath)
		return ""
	}
	return id
}

// AnalyzeImage returns the 0-100 quality score of an image
func (s *Service) AnalyzeImage(data []byte, contentType string) (int, error) {
	q, err := imaging.AssessData(data, contentType)
	if err != nil {
		return 0, fmt.Errorf("analyzing image: %w", err)
	}
	return q.Score, nil
}

// SaveTrainingData stores an image with corrected line items
func (s *Service) SaveTrainingData(up Upload, items []ledger.LineItem) (*TrainingSample, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("training/%s_%s", id, sanitizeFilename(up.Filename)), up.Data)
	if err != nil {
		return nil, fmt.Errorf("saving training image: %w", err)
	}

	normalized := make([]ledger.LineItem, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		item.Category = ledger.NormalizeCategory(item.Category)
		normalized[i] = item
	}

	sample := &TrainingSample{
		ID:           id,
		OriginalName: up.Filename,
		ImageFile:    savedPath,
		ContentType:  imaging.NormalizeContentType(up.ContentType, up.Filename),
		Items:        normalized,
		CreatedAt:    s.timeSource.Now(),
	}
	if err := s.db.SaveSample(sample); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving training sample: %w", err)
	}
	return sample, nil
}

// ListSamples returns all training samples
func (s *Service) ListSamples() ([]*TrainingSample, error) {
	samples, err := s.db.ListSamples()
	if err != nil {
		return nil, fmt.Errorf("listing training samples: %w", err)
	}
	return samples, nil
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the document history
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its image
func (s *Service) DeleteDocument(id string) error {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}

	if err := s.storage.Delete(doc.StoredFile); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", doc.StoredFile, "error", err)
	}

	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	return nil
}

// GetDocumentFile retrieves the stored image for a document
func (s *Service) GetDocumentFile(id string) ([]byte, string, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}
	data, err := s.storage.Get(doc.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}
	return data, doc.ContentType, nil
}

// Categorize returns a copy of a posted ledger with blank categories
// guessed from item names, the same way extracted items are filled in.
func (s *Service) Categorize(docs []ledger.Document) []ledger.Document {
	out := make([]ledger.Document, len(docs))
	for i, doc := range docs {
		doc.Items = s.categorize(doc.Items)
		out[i] = doc
	}
	return out
}

// Totals recalculates a ledger posted by a client
func (s *Service) Totals(docs []ledger.Document) ledger.Totals {
	return ledger.Recalculate(s.Categorize(docs), s.currency)
}
