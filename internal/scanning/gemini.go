package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/quicktotal/internal/imaging"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	timeout   time.Duration
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	configureModel(model)

	return &Gemini{
		client:    client,
		model:     model,
		modelName: modelName,
		timeout:   60 * time.Second,
	}, nil
}

// configureModel sets the system prompt and asks for deterministic output
func configureModel(model *genai.GenerativeModel) {
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
}

// Method returns the label shown next to Gemini results
func (g *Gemini) Method() string {
	return fmt.Sprintf("Gemini (%s)", g.modelName)
}

// Extract reads the line items of a receipt
func (g *Gemini) Extract(imageData []byte, contentType string) (*Extraction, error) {
	png, _, err := imaging.ToPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	// ImageData takes the format suffix, not the MIME type.
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", png), genai.Text(lineItemPrompt))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text, err := replyText(resp)
	if err != nil {
		return nil, err
	}
	data, err := parseExtractionJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing line items: %w", err)
	}
	return data, nil
}

// replyText joins the text parts of the first candidate
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return b.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
