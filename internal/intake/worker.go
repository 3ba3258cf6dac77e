package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/authority"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
	"github.com/cschwartz85032/loanserve-sub007/internal/extract/ai"
	"github.com/cschwartz85032/loanserve-sub007/internal/extract/deterministic"
	"github.com/cschwartz85032/loanserve-sub007/internal/lineage"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

// OCRClient extracts text and key/value pairs from a scanned document
// (§4.6 step 2/3: "PDF: OCR -> key/value pairs via FORMS/TABLES").
type OCRClient interface {
	ExtractText(ctx context.Context, docBytes []byte) (text string, err error)
	ExtractFields(ctx context.Context, docBytes []byte) (fields map[string]string, err error)
}

// Payload is the work item payload for one intake job (§4.6).
type Payload struct {
	DocumentID         string            `json:"documentId"`
	LoanURN            string            `json:"loanUrn"`
	TenantID           string            `json:"tenantId"`
	FileType           domain.DocType    `json:"fileType"`
	FileBytes          []byte            `json:"fileBytes"`
	EscrowInstructions map[string]string `json:"escrowInstructions"`
	InvestorDirectives map[string]string `json:"investorDirectives"`
}

// Handler implements worker.Handler for document intake.
type Handler struct {
	Loans       LoanRepo
	Documents   DocumentRepo
	Datapoints  DatapointRepo
	Defects     DefectRepo
	Docs        storage.DocStore
	OCR         OCRClient
	Deterministic *deterministic.Engine
	AI          *ai.Extractor
	Matrix      *authority.Matrix
	Lineage     *lineage.Builder
	Clock       func() time.Time
}

// Name implements worker.Handler.
func (h *Handler) Name() string { return "intake" }

// Execute implements worker.Handler, running the §4.6 10-step flow.
func (h *Handler) Execute(ctx context.Context, item *domain.WorkItem, executionID string) worker.Result {
	var payload Payload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return worker.Result{Success: false, ShouldRetry: false, Err: errkind.NewValidation(fmt.Errorf("intake: malformed payload: %w", err))}
	}

	// Step 1: create/lookup LoanCandidate; create Document row.
	loan, err := h.Loans.GetOrCreateByURN(ctx, payload.TenantID, payload.LoanURN)
	if err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	docID := uuid.New()
	docPath := fmt.Sprintf("tenants/%s/loans/%s/documents/%s", payload.TenantID, loan.ID, docID)
	if err := h.Docs.Put(ctx, docPath, payload.FileBytes); err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	doc := &domain.Document{
		ID:         docID,
		TenantID:   payload.TenantID,
		LoanID:     loan.ID,
		StorageURI: docPath,
		SHA256:     storage.SHA256Hex(payload.FileBytes),
		DocType:    payload.FileType,
		CreatedAt:  h.now(),
	}
	if err := h.Documents.Create(ctx, doc); err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	// Step 2/3: classify + extract raw key/value map.
	rawValues, evidenceText, err := h.extractRaw(ctx, payload.FileType, payload.FileBytes)
	if err != nil {
		if _, ok := err.(*errkind.Validation); ok {
			return worker.Result{Success: false, ShouldRetry: false, Err: err}
		}
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	// Step 4: wrap every value as a document_parse Candidate, confidence 0.8.
	candidatesByKey := make(map[string][]domain.Candidate)
	now := h.now()
	for key, value := range rawValues {
		candidatesByKey[key] = append(candidatesByKey[key], domain.Candidate{
			Key:       key,
			Value:     value,
			Source:    domain.SourceDocumentParse,
			Confidence: 0.8,
			DocType:   payload.FileType,
			DocID:     &doc.ID,
			Evidence:  domain.Evidence{Snippet: evidenceText},
			Timestamp: now,
			SourceKey: fmt.Sprintf("document:%s:%s", doc.ID, key),
		})
	}

	// Step 5: overlay directives in priority order. Investor directives
	// (priority 1000) and escrow instructions (priority 900) always
	// participate in authority resolution alongside document candidates —
	// "skipping fields already set by a higher-priority directive" is
	// handled by the Authority Matrix itself (§4.4), not by pre-filtering.
	for key, value := range payload.InvestorDirectives {
		candidatesByKey[key] = append(candidatesByKey[key], domain.Candidate{
			Key: key, Value: value, Source: domain.SourceInvestorDirective, Confidence: 1.0,
			Timestamp: now, SourceKey: fmt.Sprintf("investor_directive:%s", key),
		})
	}
	for key, value := range payload.EscrowInstructions {
		candidatesByKey[key] = append(candidatesByKey[key], domain.Candidate{
			Key: key, Value: value, Source: domain.SourceEscrowInstruction, Confidence: 1.0,
			Timestamp: now, SourceKey: fmt.Sprintf("escrow_instruction:%s", key),
		})
	}

	// AI extractor: only keys missing from the deterministic pass.
	missing := missingKeysForDocType(payload.FileType, candidatesByKey)
	if h.AI != nil && len(missing) > 0 {
		aiResults, err := h.AI.Extract(ctx, payload.FileType, []string{evidenceText}, missing)
		if err != nil {
			if _, ok := err.(*errkind.Validation); !ok {
				return worker.Result{Success: false, ShouldRetry: true, Err: err}
			}
			// Schema/parse failure on the AI side does not fail the whole
			// intake job — it simply means those fields stay unresolved.
		}
		for _, r := range aiResults {
			candidatesByKey[r.Key] = append(candidatesByKey[r.Key], domain.Candidate{
				Key: r.Key, Value: r.Value, Source: domain.SourceAIDoc, Confidence: r.Confidence,
				DocType: payload.FileType, DocID: &doc.ID, Timestamp: now,
				SourceKey: fmt.Sprintf("ai_doc:%s:%s", doc.ID, r.Key),
			})
		}
	}

	// Step 6/7/8/9: lineage + authority resolution + validation, per key,
	// in deterministic key order (map iteration order is not stable).
	keys := make([]string, 0, len(candidatesByKey))
	for k := range candidatesByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasErrorDefect := false
	for _, key := range keys {
		candidates := candidatesByKey[key]
		decision := h.Matrix.Resolve(key, candidates)
		if decision.Winner.Key == "" && decision.WinnerValue == "" {
			continue
		}

		lineageRec := h.Lineage.New(key, decision.WinnerValue, decision.Winner.Source, nil, nil, nil)

		dp := &domain.Datapoint{
			ID:                uuid.New(),
			TenantID:          payload.TenantID,
			LoanID:            loan.ID,
			Key:               key,
			Value:             decision.WinnerValue,
			NormalizedValue:   decision.WinnerValue,
			Confidence:        decision.Confidence,
			IngestSource:      string(decision.Winner.Source),
			AuthorityPriority: decision.EffectivePriority,
			LineageID:         lineageRec.LineageID,
			UpdatedAt:         now,
		}
		if decision.Winner.DocID != nil {
			dp.EvidenceDocID = decision.Winner.DocID
		}

		if err := h.Datapoints.Upsert(ctx, dp); err != nil {
			return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
		}

		if issue := authority.ValidateField(key, decision.WinnerValue); issue != nil {
			hasErrorDefect = true
			h.Defects.Create(ctx, &domain.Defect{
				ID: uuid.New(), TenantID: payload.TenantID, LoanID: loan.ID,
				Key: key, Severity: domain.SeverityError, Message: issue.Message, CreatedAt: now,
			})
		}
	}

	// Step 10: set terminal status.
	status := domain.LoanValidated
	if hasErrorDefect {
		status = domain.LoanConflicts
	}
	if err := h.Loans.UpdateStatus(ctx, loan.ID, status); err != nil {
		return worker.Result{Success: false, ShouldRetry: true, Err: errkind.NewTransient(err)}
	}

	return worker.Result{Success: true}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

// extractRaw implements §4.6 step 2/3 classification + extraction.
func (h *Handler) extractRaw(ctx context.Context, fileType domain.DocType, data []byte) (map[string]string, string, error) {
	switch fileType {
	case domain.DocCSV:
		return extractCSV(data)
	case domain.DocJSON:
		return extractJSON(data)
	case domain.DocMISMO:
		return extractMISMO(data)
	default:
		if h.OCR == nil {
			return nil, "", errkind.NewValidation(fmt.Errorf("intake: no OCR client configured for fileType %s", fileType))
		}
		text, err := h.OCR.ExtractText(ctx, data)
		if err != nil {
			return nil, "", err
		}
		hits := h.Deterministic.Extract(fileType, text)
		fields := make(map[string]string, len(hits))
		for _, hit := range hits {
			fields[hit.Key] = hit.Value
		}
		ocrFields, err := h.OCR.ExtractFields(ctx, data)
		if err == nil {
			for k, v := range ocrFields {
				if _, exists := fields[k]; !exists {
					fields[normalizeFieldName(k)] = v
				}
			}
		}
		return fields, text, nil
	}
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func missingKeysForDocType(docType domain.DocType, have map[string][]domain.Candidate) []string {
	wanted := map[domain.DocType][]string{
		domain.DocNote:      {"loan_amount", "interest_rate", "origination_date", "maturity_date", "borrower_name"},
		domain.DocCD:        {"loan_amount", "monthly_payment", "escrow_required", "closing_date"},
		domain.DocHOI:       {"hoi_premium", "hoi_coverage_amount", "hoi_policy_number", "hoi_expiration_date"},
		domain.DocFlood:     {"flood_zone", "flood_insurance_required", "flood_premium"},
		domain.DocAppraisal: {"appraised_value", "appraisal_date", "property_address"},
		domain.DocDeed:      {"property_address", "recording_date"},
		domain.DocLE:        {"loan_amount", "interest_rate", "monthly_payment"},
	}
	var missing []string
	for _, key := range wanted[docType] {
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
