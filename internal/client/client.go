// Package client talks to a QuickTotal server and holds the client-side
// state of a scanning session: the queue of pending files and the
// sequential submission loop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/quicktotal/internal/api"
	"github.com/zombor/quicktotal/internal/imaging"
	"github.com/zombor/quicktotal/internal/ledger"
)

// Client calls the QuickTotal HTTP API
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 180 * time.Second, // extraction runs a vision model per request
		},
	}
}

// SetBasicAuth sets credentials sent with every request
func (c *Client) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// Calculate submits one file for extraction. index is the document number
// the server reports back. A non-nil crop is sent as native pixel bounds.
// A request-level failure is returned as an error; a failure of the
// document itself comes back in the result's Error field.
func (c *Client) Calculate(ctx context.Context, f PendingFile, index int, crop *image.Rectangle) (*api.DocumentResult, error) {
	fields := map[string]string{api.FieldIndex: strconv.Itoa(index)}
	if crop != nil {
		fields[api.FieldX1] = strconv.Itoa(crop.Min.X)
		fields[api.FieldY1] = strconv.Itoa(crop.Min.Y)
		fields[api.FieldX2] = strconv.Itoa(crop.Max.X)
		fields[api.FieldY2] = strconv.Itoa(crop.Max.Y)
	}

	var out api.CalculateResponse
	if err := c.postForm(ctx, api.PathCalculate, api.FieldImages, f, fields, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("calculate: %s", out.Error)
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("calculate: server returned no results")
	}
	return &out.Results[0], nil
}

// Analyze returns the server's quality score for a file
func (c *Client) Analyze(ctx context.Context, f PendingFile) (int, error) {
	var out api.AnalyzeResponse
	if err := c.postForm(ctx, api.PathAnalyzeImage, api.FieldImage, f, nil, &out); err != nil {
		return 0, err
	}
	if out.Error != "" {
		return 0, fmt.Errorf("analyze: %s", out.Error)
	}
	return out.QualityScore, nil
}

// SaveTraining uploads a file with corrected line items and returns the
// sample ID
func (c *Client) SaveTraining(ctx context.Context, f PendingFile, items []ledger.LineItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshaling items: %w", err)
	}
	var out api.TrainingResponse
	if err := c.postForm(ctx, api.PathSaveTrainingData, api.FieldImage, f, map[string]string{api.FieldData: string(data)}, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("save training data: %s", out.Error)
	}
	return out.ID, nil
}

// Totals asks the server to recalculate a ledger
func (c *Client) Totals(ctx context.Context, docs []ledger.Document) (ledger.Totals, error) {
	var out ledger.Totals
	body, err := c.postLedger(ctx, api.PathLedgerTotals, docs)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decoding totals: %w", err)
	}
	return out, nil
}

// ExportCSV returns the ledger rendered as CSV by the server
func (c *Client) ExportCSV(ctx context.Context, docs []ledger.Document) ([]byte, error) {
	return c.postLedger(ctx, api.PathExportCSV, docs)
}

// ExportPDF returns the ledger rendered as a PDF report by the server
func (c *Client) ExportPDF(ctx context.Context, docs []ledger.Document) ([]byte, error) {
	return c.postLedger(ctx, api.PathExportPDF, docs)
}

func (c *Client) postForm(ctx context.Context, path, fileField string, f PendingFile, fields map[string]string, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, f.Name))
	h.Set("Content-Type", imaging.NormalizeContentType(f.ContentType, f.Name))
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return fmt.Errorf("writing form file: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) postLedger(ctx context.Context, path string, docs []ledger.Document) ([]byte, error) {
	payload, err := json.Marshal(api.LedgerRequest{Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("marshaling ledger: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req and returns the body of a 2xx response. Error bodies in the
// {"error": ...} shape are unwrapped into the returned error.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s (status %d): %s", req.URL.Path, resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("%s (status %d): %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
