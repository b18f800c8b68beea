// Package gemini asks a multimodal Gemini model to recover structured table
// data from a rendered table image.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"

	"tablemail/internal/tables"
)

const defaultModel = "gemini-2.5-flash"

const extractPrompt = "You are an expert at table extraction. " +
	"Extract ALL tables from the provided image and return STRICT JSON only. " +
	"Do not include any commentary. Schema: {\n" +
	"  \"tables\": [ { \n" +
	"    \"headers\": [string, ...], \n" +
	"    \"rows\": [ [string|null, ...], ... ] \n" +
	"  } ]\n" +
	"}. Use null for empty cells."

// ErrBadResponse is returned when the model's reply cannot be decoded into
// the expected table document.
var ErrBadResponse = errors.New("model response is not a table document")

// Client drives table inference against the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *log.Logger
}

func NewClient(ctx context.Context, apiKey string, logger *log.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: c, model: defaultModel, logger: logger}, nil
}

// ReadTables sends the PNG at pngPath to the model and decodes the reply into
// a table document. The reply is validated at this boundary: anything that is
// not the expected {"tables": [...]} shape is rejected here, untyped data
// never flows downstream.
func (c *Client) ReadTables(ctx context.Context, pngPath string) (tables.Document, error) {
	img, err := os.ReadFile(pngPath)
	if err != nil {
		return tables.Document{}, fmt.Errorf("read image: %w", err)
	}

	c.logger.Info("requesting table extraction", "model", c.model, "image", pngPath)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(extractPrompt),
			genai.NewPartFromBytes(img, "image/png"),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return tables.Document{}, fmt.Errorf("generate content: %w", err)
	}

	doc, err := decodeDocument(resp.Text())
	if err != nil {
		return tables.Document{}, err
	}
	c.logger.Info("table extraction complete", "tables", len(doc.Tables))
	return doc, nil
}

// decodeDocument recovers a table document from model output. Despite the
// JSON response MIME type, replies occasionally arrive wrapped in code fences
// or with stray text around the object, so decoding strips fences first and
// falls back to the outermost brace range.
func decodeDocument(text string) (tables.Document, error) {
	text = stripFences(strings.TrimSpace(text))

	var doc tables.Document
	if err := json.Unmarshal([]byte(text), &doc); err == nil {
		return doc, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return tables.Document{}, fmt.Errorf("%w: no JSON object found", ErrBadResponse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return tables.Document{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return doc, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.Trim(text, "`")
	text = strings.TrimPrefix(text, "json")
	return strings.TrimSpace(text)
}
