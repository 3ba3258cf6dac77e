package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
)

// WebhookSender delivers the §4.9 step 7 export-succeeded webhook.
// Satisfied by notify.HTTPWebhookSender.
type WebhookSender interface {
	Deliver(ctx context.Context, url, secret string, body []byte) error
}

// Subscription is one template subscriber to notify on export success.
type Subscription struct {
	URL    string
	Secret string
}

// SubscriptionRepo lists webhook subscribers for a template.
type SubscriptionRepo interface {
	ByTemplate(ctx context.Context, tenantID string, template domain.ExportTemplate) ([]Subscription, error)
}

// Engine runs one export submission (§4.9).
type Engine struct {
	Mappers       MapperLoader
	Datapoints    DatapointRepo
	Exports       ExportRepo
	Subscriptions SubscriptionRepo
	Docs          storage.DocStore
	Webhooks      WebhookSender
	Audit         audit.Sink
	Clock         func() time.Time
}

// Result is what Run returns on success.
type Result struct {
	Bytes    []byte
	SHA256   string
	MIME     string
	Filename string
}

// exportWebhookEvent is the JSON body of the §4.9 step 7 webhook.
type exportWebhookEvent struct {
	ExportID  string `json:"export_id"`
	Template  string `json:"template"`
	FileURI   string `json:"file_uri"`
	SHA256    string `json:"sha256"`
	Timestamp string `json:"timestamp"`
}

// Run executes the §4.9 flow for (tenantId, loanId, template, mapperVersion).
// Failures mark the Export row `failed` with a structured error list and
// are never retried deterministically by the worker runtime — callers
// should treat a non-nil error here as final.
func (e *Engine) Run(ctx context.Context, tenantID string, loanID uuid.UUID, template domain.ExportTemplate, mapperVersion string) (Result, error) {
	exp := &domain.Export{
		ID: uuid.New(), TenantID: tenantID, LoanID: loanID, Template: template,
		Status: domain.ExportRunning, MapperVersion: mapperVersion, CreatedAt: e.now(),
	}
	if err := e.Exports.Create(ctx, exp); err != nil {
		return Result{}, err
	}

	result, err := e.render(ctx, exp, template, mapperVersion)
	if err != nil {
		e.Exports.MarkFailed(ctx, exp.ID, []string{err.Error()}, e.now())
		metrics.RecordExport(string(template), "failed")
		if e.Audit != nil {
			e.Audit.Emit(ctx, tenantID, audit.EventExportFailed, "system", "export-engine", exp.ID.String(), map[string]any{"error": err.Error()})
		}
		return Result{}, err
	}

	fileURI := fmt.Sprintf("tenants/%s/loans/%s/exports/%s", tenantID, loanID, result.Filename)
	if err := e.Docs.Put(ctx, fileURI, result.Bytes); err != nil {
		e.Exports.MarkFailed(ctx, exp.ID, []string{err.Error()}, e.now())
		metrics.RecordExport(string(template), "failed")
		return Result{}, err
	}

	if err := e.Exports.MarkSucceeded(ctx, exp.ID, fileURI, result.SHA256, e.now()); err != nil {
		return Result{}, err
	}
	metrics.RecordExport(string(template), "succeeded")

	if e.Audit != nil {
		e.Audit.Emit(ctx, tenantID, audit.EventExportSucceeded, "system", "export-engine", exp.ID.String(), map[string]any{
			"template": template, "file_uri": fileURI, "sha256": result.SHA256,
		})
	}

	e.notifySubscribers(ctx, tenantID, exp.ID, template, fileURI, result.SHA256)

	return result, nil
}

// render implements §4.9 steps 1-6, returning the would-be Result without
// touching the Export row or object store (so Run can decide success/fail
// bookkeeping around it).
func (e *Engine) render(ctx context.Context, exp *domain.Export, template domain.ExportTemplate, mapperVersion string) (Result, error) {
	cfg, err := e.Mappers.Load(template, mapperVersion)
	if err != nil {
		return Result{}, err
	}

	datapoints, err := e.Datapoints.AllForLoan(ctx, exp.TenantID, exp.LoanID)
	if err != nil {
		return Result{}, err
	}

	if missing := missingRequiredKeys(cfg.Required, datapoints); len(missing) > 0 {
		return Result{}, fmt.Errorf("missing required keys: %v", missing)
	}

	var body []byte
	var mime, ext string
	switch cfg.Format {
	case FormatXML:
		body, err = BuildXML(cfg, datapoints)
		mime, ext = "application/xml", "xml"
	case FormatCSV:
		body, err = BuildCSV(cfg, datapoints)
		mime, ext = "text/csv", "csv"
	default:
		return Result{}, fmt.Errorf("export: unsupported mapper format %q", cfg.Format)
	}
	if err != nil {
		return Result{}, err
	}

	sha := storage.SHA256Hex(body)
	filename := fmt.Sprintf("%s_%s.%s", strings.ToUpper(string(template)), exp.LoanID, ext)

	return Result{Bytes: body, SHA256: sha, MIME: mime, Filename: filename}, nil
}

func missingRequiredKeys(required []string, datapoints map[string]domain.Datapoint) []string {
	var missing []string
	for _, key := range required {
		dp, ok := datapoints[key]
		if !ok || dp.Value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func (e *Engine) notifySubscribers(ctx context.Context, tenantID string, exportID uuid.UUID, template domain.ExportTemplate, fileURI, sha string) {
	if e.Subscriptions == nil || e.Webhooks == nil {
		return
	}
	subs, err := e.Subscriptions.ByTemplate(ctx, tenantID, template)
	if err != nil {
		return
	}

	event := exportWebhookEvent{
		ExportID: exportID.String(), Template: string(template), FileURI: fileURI,
		SHA256: sha, Timestamp: e.now().Format(time.RFC3339),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	for _, sub := range subs {
		_ = e.Webhooks.Deliver(ctx, sub.URL, sub.Secret, body)
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
