// Package ai implements the AI Extractor (C7): a prompt-pack driven call to
// an external LLM for fields the deterministic extractor missed, with a
// strict per-doc-type JSON schema validating the response (spec.md §4.3).
//
// Grounded on penf-cli's LLMExtractor (LLMClient interface, versioned
// prompt/template resolution, a CompletionRequest/Response pair) — kept as
// the shape of the client boundary, re-pointed at this system's per-field
// evidence+confidence response contract instead of penf-cli's assertion
// extraction.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
)

// LLMClient is the boundary to an external LLM provider.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (raw string, err error)
}

// FieldEvidence is the §4.3 "evidence per field" shape.
type FieldEvidence struct {
	DocID       string            `json:"docId"`
	Page        int               `json:"page"`
	TextHash    string            `json:"textHash"`
	Snippet     string            `json:"snippet,omitempty"`
	BoundingBox *domain.BoundingBox `json:"boundingBox,omitempty"`
}

// Response is the §4.3 expected JSON shape:
// {docType, promptVersion, data, evidence}.
type Response struct {
	DocType       string                     `json:"docType"`
	PromptVersion string                     `json:"promptVersion"`
	Data          map[string]json.RawMessage `json:"data"`
	Confidence    map[string]float64         `json:"confidence"`
	Evidence      map[string]FieldEvidence   `json:"evidence"`
}

// FieldResult is one resolved field from a successful AI extraction call.
type FieldResult struct {
	Key        string
	Value      string
	Confidence float64
	Evidence   FieldEvidence
}

// Extractor submits text slices missing from deterministic extraction to
// the configured LLMClient, validates the reply against the doc type's
// schema, and clamps confidence to [0, 1].
type Extractor struct {
	client LLMClient
	prompts *PromptPack
	schemas *SchemaSet
}

// NewExtractor builds an Extractor over client, using prompts and schemas
// loaded from the prompt pack (see prompts.go) and schema set (see
// schema.go).
func NewExtractor(client LLMClient, prompts *PromptPack, schemas *SchemaSet) *Extractor {
	return &Extractor{client: client, prompts: prompts, schemas: schemas}
}

// Extract submits missingKeys (fields the deterministic extractor could not
// fill) for docType, given the OCR text slices as context. Only keys
// missing from the deterministic pass are ever requested, per §4.3
// ("never overrides a deterministic hit in the same document").
func (e *Extractor) Extract(ctx context.Context, docType domain.DocType, textSlices []string, missingKeys []string) ([]FieldResult, error) {
	if len(missingKeys) == 0 {
		return nil, nil
	}

	prompt, promptVersion, err := e.prompts.Render(docType, textSlices, missingKeys)
	if err != nil {
		return nil, errkind.NewValidation(fmt.Errorf("ai: no prompt pack for doc type %s: %w", docType, err))
	}

	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return nil, errkind.NewTransient(fmt.Errorf("ai: llm call failed: %w", err))
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, errkind.NewValidation(fmt.Errorf("ai: response is not valid JSON: %w", err))
	}

	schema, ok := e.schemas.For(docType)
	if !ok {
		return nil, errkind.NewValidation(fmt.Errorf("ai: no schema registered for doc type %s", docType))
	}
	if err := schema.Validate(resp); err != nil {
		return nil, errkind.NewValidation(fmt.Errorf("ai: response failed schema validation: %w", err))
	}
	if resp.PromptVersion != promptVersion {
		return nil, errkind.NewValidation(fmt.Errorf("ai: response promptVersion %q does not match request %q", resp.PromptVersion, promptVersion))
	}

	wanted := make(map[string]bool, len(missingKeys))
	for _, k := range missingKeys {
		wanted[k] = true
	}

	results := make([]FieldResult, 0, len(resp.Data))
	for key, raw := range resp.Data {
		if !wanted[key] {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		confidence := clamp01(resp.Confidence[key])
		metrics.RecordExtractionConfidence("ai", confidence)
		results = append(results, FieldResult{
			Key:        key,
			Value:      value,
			Confidence: confidence,
			Evidence:   resp.Evidence[key],
		})
	}
	return results, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
