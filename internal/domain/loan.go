// Package domain holds the core entities of spec.md §3: LoanCandidate,
// Document, Datapoint, Candidate, LineageRecord, WorkItem, OutboxMessage,
// InvestorHolding, RemittanceRun/Item/Payout, Export, VendorCache/Audit, and
// AuditEvent. These are plain structs — no behavior beyond small derivations
// — following the registry's internal/registry/model package split between
// models and services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus is the lifecycle state of a LoanCandidate.
type LoanStatus string

const (
	LoanIngesting  LoanStatus = "ingesting"
	LoanValidated  LoanStatus = "validated"
	LoanConflicts  LoanStatus = "conflicts"
	LoanAccepted   LoanStatus = "accepted"
	LoanRejected   LoanStatus = "rejected"
)

// LoanCandidate is a loan being ingested, identified by a stable URN.
type LoanCandidate struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  string     `db:"tenant_id"`
	LoanURN   string     `db:"loan_urn"`
	Status    LoanStatus `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	AcceptedAt *time.Time `db:"accepted_at"`
}

// URN returns the canonical "urn:loan:<id>" identifier.
func (l *LoanCandidate) URN() string { return "urn:loan:" + l.ID.String() }

// DocType enumerates the document classifications the pipeline recognizes.
type DocType string

const (
	DocNote       DocType = "NOTE"
	DocCD         DocType = "CD"
	DocHOI        DocType = "HOI"
	DocFlood      DocType = "FLOOD"
	DocAppraisal  DocType = "APPRAISAL"
	DocDeed       DocType = "DEED"
	DocLE         DocType = "LE"
	DocMISMO      DocType = "MISMO"
	DocCSV        DocType = "CSV"
	DocJSON       DocType = "JSON"
	DocPDF        DocType = "PDF"
)

// Document is owned by a LoanCandidate.
type Document struct {
	ID         uuid.UUID `db:"id"`
	TenantID   string    `db:"tenant_id"`
	LoanID     uuid.UUID `db:"loan_id"`
	StorageURI string    `db:"storage_uri"`
	SHA256     string    `db:"sha256"`
	DocType    DocType   `db:"doc_type"`
	PageCount  int       `db:"page_count"`
	CreatedAt  time.Time `db:"created_at"`
	// TombstonedAt marks a document as deleted without breaking lineage
	// verification — the textHash recorded on prior lineage is sufficient.
	TombstonedAt *time.Time `db:"tombstoned_at"`
}

// AutofillSource enumerates where a Datapoint's value ultimately came from.
type AutofillSource string

const (
	AutofillInvestorDirective  AutofillSource = "investor_directive"
	AutofillEscrowInstruction  AutofillSource = "escrow_instruction"
	AutofillDocument           AutofillSource = "document"
	AutofillVendor             AutofillSource = "vendor"
	AutofillUser               AutofillSource = "user"
	AutofillPayload            AutofillSource = "payload"
)

// Datapoint is the current authoritative value per (loanId, key).
type Datapoint struct {
	ID                uuid.UUID      `db:"id"`
	TenantID          string         `db:"tenant_id"`
	LoanID            uuid.UUID      `db:"loan_id"`
	Key               string         `db:"key"`
	Value             string         `db:"value"`
	NormalizedValue   string         `db:"normalized_value"`
	Confidence        float64        `db:"confidence"`
	IngestSource      string         `db:"ingest_source"`
	AutofilledFrom    AutofillSource `db:"autofilled_from"`
	EvidenceDocID     *uuid.UUID     `db:"evidence_doc_id"`
	EvidencePage      *int           `db:"evidence_page"`
	EvidenceTextHash  string         `db:"evidence_text_hash"`
	ExtractorVersion  string         `db:"extractor_version"`
	PromptVersion     string         `db:"prompt_version"`
	AuthorityPriority float64        `db:"authority_priority"`
	LineageID         string         `db:"lineage_id"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// CandidateSource enumerates the provenance of a proposed value.
type CandidateSource string

const (
	SourceInvestorDirective CandidateSource = "investor_directive"
	SourceEscrowInstruction CandidateSource = "escrow_instruction"
	SourceManualEntry       CandidateSource = "manual_entry"
	SourceVendorAPI         CandidateSource = "vendor_api"
	SourceDocumentParse     CandidateSource = "document_parse"
	SourceAIDoc             CandidateSource = "ai_doc"
	SourceOCR               CandidateSource = "ocr"
)

// Evidence is the snippet of source text a Candidate was extracted from,
// plus its hash — the basis of lineage verification (§4.5).
type Evidence struct {
	TextHash string `json:"text_hash"`
	Snippet  string `json:"snippet"`
}

// Candidate is a proposed value for a datapoint prior to Authority Matrix
// resolution (§4.4).
type Candidate struct {
	Key              string          `json:"key"`
	Value            string          `json:"value"`
	Source           CandidateSource `json:"source"`
	Confidence       float64         `json:"confidence"`
	DocType          DocType         `json:"doc_type,omitempty"`
	DocID            *uuid.UUID      `json:"doc_id,omitempty"`
	Page             *int            `json:"page,omitempty"`
	Evidence         Evidence        `json:"evidence"`
	ExtractorVersion string          `json:"extractor_version,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	// SourceKey disambiguates otherwise-identical candidates for the
	// Authority Matrix's deterministic tie-break (§4.4 rule 4). The caller
	// that builds the Candidate sets it; authority.Matrix compares it last.
	SourceKey string `json:"source_key"`
}

// DefectSeverity classifies a validation failure (§4.4, §8 boundary table).
type DefectSeverity string

const (
	SeverityWarning DefectSeverity = "warning"
	SeverityError   DefectSeverity = "error"
)

// Defect is a persisted validation failure record (SPEC_FULL.md §C.3) —
// never a silent rewrite of the offending value.
type Defect struct {
	ID          uuid.UUID      `db:"id"`
	TenantID    string         `db:"tenant_id"`
	LoanID      uuid.UUID      `db:"loan_id"`
	Key         string         `db:"key"`
	Severity    DefectSeverity `db:"severity"`
	Message     string         `db:"message"`
	CandidateRef string        `db:"candidate_ref"`
	CreatedAt   time.Time      `db:"created_at"`
}
