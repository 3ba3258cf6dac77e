package ai

import (
	"fmt"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// Schema is a strict per-doc-type schema: additionalProperties is always
// false (§4.3) — only Fields are accepted in a response's data/confidence/
// evidence maps.
type Schema struct {
	DocType domain.DocType
	Fields  map[string]bool
}

// Validate checks resp against the schema: every key in Data, Confidence,
// and Evidence must be a declared field, and the docType must match.
func (s Schema) Validate(resp Response) error {
	if resp.DocType != string(s.DocType) {
		return fmt.Errorf("docType %q does not match expected %q", resp.DocType, s.DocType)
	}
	for key := range resp.Data {
		if !s.Fields[key] {
			return fmt.Errorf("field %q not permitted by schema (additionalProperties: false)", key)
		}
	}
	for key := range resp.Confidence {
		if !s.Fields[key] {
			return fmt.Errorf("confidence for undeclared field %q", key)
		}
	}
	for key := range resp.Evidence {
		if !s.Fields[key] {
			return fmt.Errorf("evidence for undeclared field %q", key)
		}
	}
	return nil
}

// SchemaSet maps doc type to its Schema.
type SchemaSet struct {
	schemas map[domain.DocType]Schema
}

// NewSchemaSet builds a SchemaSet from the given schemas, keyed by DocType.
func NewSchemaSet(schemas ...Schema) *SchemaSet {
	s := &SchemaSet{schemas: make(map[domain.DocType]Schema, len(schemas))}
	for _, schema := range schemas {
		s.schemas[schema.DocType] = schema
	}
	return s
}

// For returns the Schema registered for docType.
func (s *SchemaSet) For(docType domain.DocType) (Schema, bool) {
	schema, ok := s.schemas[docType]
	return schema, ok
}

// DefaultSchemaSet returns the built-in field allow-lists per doc type,
// covering the same keys the deterministic extractor's rules produce for
// each doc type.
func DefaultSchemaSet() *SchemaSet {
	fieldSet := func(keys ...string) map[string]bool {
		m := make(map[string]bool, len(keys))
		for _, k := range keys {
			m[k] = true
		}
		return m
	}

	return NewSchemaSet(
		Schema{DocType: domain.DocNote, Fields: fieldSet("loan_amount", "interest_rate", "origination_date", "maturity_date", "borrower_name")},
		Schema{DocType: domain.DocCD, Fields: fieldSet("loan_amount", "monthly_payment", "escrow_required", "closing_date")},
		Schema{DocType: domain.DocHOI, Fields: fieldSet("hoi_premium", "hoi_coverage_amount", "hoi_policy_number", "hoi_expiration_date")},
		Schema{DocType: domain.DocFlood, Fields: fieldSet("flood_zone", "flood_insurance_required", "flood_premium")},
		Schema{DocType: domain.DocAppraisal, Fields: fieldSet("appraised_value", "appraisal_date", "property_address")},
		Schema{DocType: domain.DocDeed, Fields: fieldSet("property_address", "recording_date")},
		Schema{DocType: domain.DocLE, Fields: fieldSet("loan_amount", "interest_rate", "monthly_payment")},
	)
}
