package ai

import (
	"fmt"
	"strings"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// PromptPack holds one versioned prompt template per document type (§4.3
// "loads the prompt pack for docType... posts a prompt (versioned)").
type PromptPack struct {
	versions  map[domain.DocType]string
	templates map[domain.DocType]string
}

// NewPromptPack builds a PromptPack from a version/template pair per doc
// type. cmd/loanserve uses DefaultPromptPack; no prompt pack is loaded
// from disk.
func NewPromptPack(versions, templates map[domain.DocType]string) *PromptPack {
	return &PromptPack{versions: versions, templates: templates}
}

// DefaultPromptPack returns the built-in prompt set covering the DocTypes
// named in §3.
func DefaultPromptPack() *PromptPack {
	versions := map[domain.DocType]string{
		domain.DocNote:      "note-v1",
		domain.DocCD:        "cd-v1",
		domain.DocHOI:       "hoi-v1",
		domain.DocFlood:     "flood-v1",
		domain.DocAppraisal: "appraisal-v1",
		domain.DocDeed:      "deed-v1",
		domain.DocLE:        "le-v1",
	}
	template := "Extract the following fields as strict JSON matching " +
		"{docType, promptVersion, data, confidence, evidence}: %s\n\nDocument text:\n%s"
	templates := map[domain.DocType]string{}
	for dt := range versions {
		templates[dt] = template
	}
	return &PromptPack{versions: versions, templates: templates}
}

// Render builds the prompt text and returns the promptVersion the caller
// must see echoed back in the response.
func (p *PromptPack) Render(docType domain.DocType, textSlices []string, missingKeys []string) (prompt string, version string, err error) {
	version, ok := p.versions[docType]
	if !ok {
		return "", "", fmt.Errorf("no prompt version for doc type %s", docType)
	}
	tmpl, ok := p.templates[docType]
	if !ok {
		return "", "", fmt.Errorf("no prompt template for doc type %s", docType)
	}
	prompt = fmt.Sprintf(tmpl, strings.Join(missingKeys, ", "), strings.Join(textSlices, "\n---\n"))
	return prompt, version, nil
}
