package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/quicktotal/internal/imaging"
)

// Ollama implements the Scanner interface using Ollama
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Scanner instance.
// Vision models with decent OCR work best for itemized bills, e.g.
// qwen2-vl:7b or llava:1.6. PDFs are rasterized before they are sent.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// ollamaChatRequest is the body of POST /api/chat
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

// ollamaMessage carries images on the message itself, as the chat API expects
type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse is a single non-streamed chat reply
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Method returns the label shown next to Ollama results
func (o *Ollama) Method() string {
	return fmt.Sprintf("Ollama (%s)", o.model)
}

func (o *Ollama) request(png []byte) ollamaChatRequest {
	return ollamaChatRequest{
		Model:  o.model,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: lineItemPrompt, Images: []string{base64.StdEncoding.EncodeToString(png)}},
		},
	}
}

// Extract reads the line items of a receipt
func (o *Ollama) Extract(imageData []byte, contentType string) (*Extraction, error) {
	png, _, err := imaging.ToPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.client.Timeout)
	defer cancel()

	content, err := o.chat(ctx, o.request(png))
	if err != nil {
		return nil, err
	}
	data, err := parseExtractionJSON(content)
	if err != nil {
		return nil, fmt.Errorf("parsing line items: %w", err)
	}
	return data, nil
}

// chat posts a non-streaming chat request and returns the reply text
func (o *Ollama) chat(ctx context.Context, body ollamaChatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var reply ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return reply.Message.Content, nil
}

// Close is a no-op; the HTTP client holds no resources
func (o *Ollama) Close() error {
	return nil
}
