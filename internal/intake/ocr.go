package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAIOCRClient is the production OCRClient, backed by the same
// generative AI SDK as internal/extract/ai.GenAIClient — Gemini's
// multimodal input accepts a document's raw bytes directly, so OCR here
// is "ask the model to read the page" rather than a dedicated OCR engine.
// mimeType identifies the document ("application/pdf", "image/png", ...);
// callers pass whatever they already know about the uploaded file.
type GenAIOCRClient struct {
	textModel   *genai.GenerativeModel
	fieldsModel *genai.GenerativeModel
	mimeType    string
}

// NewGenAIOCRClient builds a GenAIOCRClient against modelName,
// authenticating with apiKey. mimeType is the document kind this client
// instance will be asked to read (callers needing to handle multiple
// input kinds construct one client per kind).
func NewGenAIOCRClient(ctx context.Context, apiKey, modelName, mimeType string) (*GenAIOCRClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("intake: genai client init failed: %w", err)
	}

	textModel := client.GenerativeModel(modelName)

	fieldsModel := client.GenerativeModel(modelName)
	fieldsModel.ResponseMIMEType = "application/json"

	return &GenAIOCRClient{textModel: textModel, fieldsModel: fieldsModel, mimeType: mimeType}, nil
}

const extractTextPrompt = "Transcribe every word of visible text in this document, in reading order. Output only the transcription, no commentary."

// ExtractText implements OCRClient, returning the document's full
// transcribed text for downstream deterministic pattern matching.
func (c *GenAIOCRClient) ExtractText(ctx context.Context, docBytes []byte) (string, error) {
	resp, err := c.textModel.GenerateContent(ctx, genai.ImageData(c.mimeType, docBytes), genai.Text(extractTextPrompt))
	if err != nil {
		return "", fmt.Errorf("intake: ocr extract text failed: %w", err)
	}
	return firstTextPart(resp)
}

const extractFieldsPrompt = "Extract every labeled field and its value from this document as a flat JSON object of string field name to string value. Use snake_case keys derived from the field's printed label. Output only the JSON object."

// ExtractFields implements OCRClient, returning a best-effort key/value
// map of whatever labeled fields the model recognized on the page —
// separate from the deterministic regex pass, to catch fields the
// pattern library does not yet know about.
func (c *GenAIOCRClient) ExtractFields(ctx context.Context, docBytes []byte) (map[string]string, error) {
	resp, err := c.fieldsModel.GenerateContent(ctx, genai.ImageData(c.mimeType, docBytes), genai.Text(extractFieldsPrompt))
	if err != nil {
		return nil, fmt.Errorf("intake: ocr extract fields failed: %w", err)
	}
	raw, err := firstTextPart(resp)
	if err != nil {
		return nil, err
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("intake: ocr fields response not valid JSON: %w", err)
	}
	return fields, nil
}

func firstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("intake: empty response from model")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("intake: unexpected response part type")
	}
	return string(text), nil
}
