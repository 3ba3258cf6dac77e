package domain

import "time"

// TransformationType enumerates the kinds of derivation a lineage record may
// chronicle (§4.5).
type TransformationType string

const (
	TransformNormalization    TransformationType = "normalization"
	TransformValidation       TransformationType = "validation"
	TransformFormatConversion TransformationType = "format_conversion"
	TransformCalculation      TransformationType = "calculation"
	TransformMerge            TransformationType = "merge"
)

// Transformation is one ordered step in a LineageRecord's audit trail.
type Transformation struct {
	Type        TransformationType `json:"type"`
	Description string             `json:"description"`
	InputValue  string             `json:"input_value"`
	OutputValue string             `json:"output_value"`
	Rule        string             `json:"rule"`
	Timestamp   time.Time          `json:"timestamp"`
}

// BoundingBox is an optional OCR bounding box on a page.
type BoundingBox struct {
	X0, Y0, X1, Y1 float64
}

// DocumentReference anchors a LineageRecord to the source document text it
// was derived from. TextHash must equal SHA256(SourceText) — §3 invariant.
type DocumentReference struct {
	DocID       string       `json:"doc_id"`
	Page        *int         `json:"page,omitempty"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	SourceText  string       `json:"source_text"`
	TextHash    string       `json:"text_hash"`
}

// LineageRecord is the append-only provenance node for a single stored
// value. Lineage only grows: a modification produces a new record derived
// from the old one (§4.5).
type LineageRecord struct {
	LineageID          string             `db:"lineage_id"`
	TenantID           string             `db:"tenant_id"`
	FieldName          string             `db:"field_name"`
	Value              string             `db:"value"`
	Source             CandidateSource    `db:"source"`
	Confidence         float64            `db:"confidence"`
	DocumentReference  *DocumentReference `db:"document_reference"`
	DerivedFrom        []string           `db:"derived_from"`
	Transformations    []Transformation   `db:"transformations"`
	ExtractorVersion   string             `db:"extractor_version"`
	PromptVersion      string             `db:"prompt_version"`
	CreatedAt          time.Time          `db:"created_at"`
}
