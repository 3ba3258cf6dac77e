// Package lineage implements the Lineage Tracker (C5): an append-only
// per-field provenance graph. Every stored value keeps a LineageRecord
// recording its source, its document evidence (if any), the parent
// records it was derived from, and the transformations applied to reach
// its final value (spec.md §4.5).
//
// Grounded on internal/trustledger's Merkle-chain (hash-linked entries,
// Append/Get/Verify operations, dual Memory/Postgres implementations),
// generalized from a single linear chain to a derived-from graph walked
// with a visited set.
package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// NewID computes lineageId = SHA-256(fieldName, value, source, docId?,
// extractorVersion?, promptVersion?), truncated to 16 bytes hex, with a
// timestamp suffix so repeated identical inputs at different times never
// collide (§4.5).
func NewID(fieldName, value, source string, docID, extractorVersion, promptVersion string, at time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s", fieldName, value, source, docID, extractorVersion, promptVersion)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]) + "-" + fmt.Sprintf("%d", at.UnixNano())
}

// Builder constructs LineageRecords, computing textHash for any document
// evidence attached.
type Builder struct {
	TenantID         string
	ExtractorVersion string
	PromptVersion    string
	Clock            func() time.Time
}

// New builds the LineageRecord for a freshly resolved field value. docRef
// may be nil when the value has no document evidence (e.g. it came from an
// investor directive payload, not a parsed document).
func (b *Builder) New(fieldName, value string, source domain.CandidateSource, docRef *domain.DocumentReference, derivedFrom []string, transforms []domain.Transformation) *domain.LineageRecord {
	now := time.Now().UTC()
	if b.Clock != nil {
		now = b.Clock()
	}

	docID := ""
	if docRef != nil {
		docID = docRef.DocID
		if docRef.SourceText != "" {
			docRef.TextHash = sha256Hex(docRef.SourceText)
		}
	}

	return &domain.LineageRecord{
		LineageID:         NewID(fieldName, value, string(source), docID, b.ExtractorVersion, b.PromptVersion, now),
		TenantID:          b.TenantID,
		FieldName:         fieldName,
		Value:             value,
		Source:            source,
		DocumentReference: docRef,
		DerivedFrom:       derivedFrom,
		Transformations:   transforms,
		ExtractorVersion:  b.ExtractorVersion,
		PromptVersion:     b.PromptVersion,
		CreatedAt:         now,
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Merge records a merge transformation and returns a new LineageRecord
// derived from all of parents (§4.5 "modifications produce new records
// derived from the old").
func (b *Builder) Merge(fieldName, value string, source domain.CandidateSource, parents []*domain.LineageRecord, rule string) *domain.LineageRecord {
	now := time.Now().UTC()
	if b.Clock != nil {
		now = b.Clock()
	}
	ids := make([]string, len(parents))
	inputs := make([]string, len(parents))
	for i, p := range parents {
		ids[i] = p.LineageID
		inputs[i] = p.Value
	}
	transform := domain.Transformation{
		Type:        domain.TransformMerge,
		Description: "merged from " + fmt.Sprint(len(parents)) + " candidate(s) via authority matrix",
		InputValue:  fmt.Sprint(inputs),
		OutputValue: value,
		Rule:        rule,
		Timestamp:   now,
	}
	return &domain.LineageRecord{
		LineageID:        NewID(fieldName, value, string(source), "", b.ExtractorVersion, b.PromptVersion, now),
		TenantID:         b.TenantID,
		FieldName:        fieldName,
		Value:            value,
		Source:           source,
		DerivedFrom:      ids,
		Transformations:  []domain.Transformation{transform},
		ExtractorVersion: b.ExtractorVersion,
		PromptVersion:    b.PromptVersion,
		CreatedAt:        now,
	}
}
