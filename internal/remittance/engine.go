package remittance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
	"github.com/cschwartz85032/loanserve-sub007/pkg/money"
)

// WebhookSender delivers the payout notification webhook. Satisfied by
// notify.HTTPWebhookSender in production.
type WebhookSender interface {
	Deliver(ctx context.Context, url, secret string, body []byte) error
}

// Engine runs one remittance for one investor/period (§4.8).
type Engine struct {
	Holdings HoldingRepo
	Ledger   LedgerRepo
	Runs     RunRepo
	Docs     storage.DocStore
	Webhooks WebhookSender
	Audit    audit.Sink
	Clock    func() time.Time
	GraceDays int
	Cadence   string
}

// RunResult is what RunOnce returns.
type RunResult struct {
	Skipped   bool
	Run       *domain.RemittanceRun
	Payout    *domain.RemittancePayout
	ReportURI string
	SHA256    string
}

// payoutWebhookEvent is the JSON body of the §4.8 payout webhook.
type payoutWebhookEvent struct {
	Event      string  `json:"event"`
	InvestorID string  `json:"investor_id"`
	PayoutID   string  `json:"payout_id"`
	RunID      string  `json:"run_id"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Method     string  `json:"method"`
	Reference  string  `json:"reference"`
	SentAt     string  `json:"sent_at"`
}

// payoutReference derives the §4.8 "PAY-XXXXXXXX" payout reference from the
// payout's own ID, so it stays stable if the webhook is retried.
func payoutReference(payoutID uuid.UUID) string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(payoutID.String(), "-", ""))[:8]
}

// RunOnce executes one remittance run for (tenantId, investorId, asOfDate).
// If a run already exists for the computed period it short-circuits with
// RunResult{Skipped: true} (§4.8 idempotency).
func (e *Engine) RunOnce(ctx context.Context, tenantID string, investorID uuid.UUID, asOfDate time.Time) (RunResult, error) {
	period := ComputePeriod(e.Cadence, asOfDate, e.GraceDays)

	existing, err := e.Runs.FindExisting(ctx, tenantID, investorID, period.Start.Unix(), period.End.Unix())
	if err != nil {
		return RunResult{}, err
	}
	if existing != nil {
		if e.Audit != nil {
			e.Audit.Emit(ctx, tenantID, audit.EventRemittanceRunSkipped, "system", "remittance-engine", existing.ID.String(), map[string]any{
				"investor_id": investorID, "period_start": period.Start, "period_end": period.End,
			})
		}
		return RunResult{Skipped: true, Run: existing}, nil
	}

	run := &domain.RemittanceRun{
		ID: uuid.New(), TenantID: tenantID, InvestorID: investorID,
		PeriodStart: period.Start, PeriodEnd: period.End, Cutoff: period.Cutoff, CreatedAt: e.now(),
	}
	if err := e.Runs.Create(ctx, run); err != nil {
		return RunResult{}, err
	}

	holdings, err := e.Holdings.ActiveByInvestor(ctx, tenantID, investorID)
	if err != nil {
		return RunResult{}, err
	}

	var items []domain.RemittanceItem
	var totalNet int64
	for _, h := range holdings {
		allocations, err := e.Ledger.AllocationsInPeriod(ctx, tenantID, h.LoanID, period.Start.Unix(), period.End.Unix())
		if err != nil {
			return RunResult{}, err
		}
		schedule, err := e.Ledger.Schedule(ctx, h.LoanID)
		if err != nil {
			return RunResult{}, err
		}

		ledger := SummarizeAllocations(allocations)
		upb := DeriveUPB(schedule, ledger.Principal, period.Start.Unix(), period.End.Unix())
		result := ComputeHolding(h, ledger, upb)

		item := domain.RemittanceItem{
			ID: uuid.New(), RunID: run.ID, LoanID: h.LoanID,
			UPBBegin: int64(result.UPB.Begin), UPBEnd: int64(result.UPB.End),
			Principal: int64(ledger.Principal), Interest: int64(ledger.Interest),
			Escrow: int64(ledger.Escrow), Fees: int64(ledger.Fees),
			SvcFee: int64(result.SvcFee), StripIO: int64(result.Strip),
			NetRemit: int64(result.NetRemit),
		}
		items = append(items, item)
		totalNet += item.NetRemit
	}

	if len(items) > 0 {
		if err := e.Runs.CreateItems(ctx, items); err != nil {
			return RunResult{}, err
		}
	}

	payoutID := uuid.New()
	payout := &domain.RemittancePayout{
		ID: payoutID, RunID: run.ID, Amount: totalNet, Status: domain.PayoutRequested,
		Reference: payoutReference(payoutID), CreatedAt: e.now(),
	}
	if err := e.Runs.CreatePayout(ctx, payout); err != nil {
		return RunResult{}, err
	}
	metrics.SetRemittancePayoutAmount(investorID.String(), int64(totalNet))

	gl := []domain.GLEntry{
		{ID: uuid.New(), PayoutID: payout.ID, Account: "investor_payable", Debit: totalNet, CreatedAt: e.now()},
		{ID: uuid.New(), PayoutID: payout.ID, Account: "cash", Credit: totalNet, CreatedAt: e.now()},
	}
	if err := e.Runs.CreateGLEntries(ctx, gl); err != nil {
		return RunResult{}, err
	}

	report, err := BuildLoanActivityReport(items)
	if err != nil {
		return RunResult{}, err
	}
	reportPath := ObjectStorePath(tenantID, investorID, run.PeriodStart, run.PeriodEnd)
	if err := e.Docs.Put(ctx, reportPath, report); err != nil {
		return RunResult{}, err
	}
	sha := storage.SHA256Hex(report)

	holdingWithWebhook, hasWebhook := firstConfiguredWebhook(holdings)
	if hasWebhook && e.Webhooks != nil {
		if err := e.sendPayoutWebhook(ctx, holdingWithWebhook, run, payout); err != nil {
			e.markPayoutFailed(ctx, payout, err)
			if e.Audit != nil {
				e.Audit.Emit(ctx, tenantID, audit.EventPayoutWebhookFailed, "system", "remittance-engine", payout.ID.String(), map[string]any{
					"error": err.Error(),
				})
			}
		} else {
			e.Runs.UpdatePayoutStatus(ctx, payout.ID, domain.PayoutSent, "")
			payout.Status = domain.PayoutSent
			sentAt := e.now()
			payout.SentAt = &sentAt
		}
	}
	metrics.RecordRemittancePayout(string(payout.Status))

	if e.Audit != nil {
		e.Audit.Emit(ctx, tenantID, audit.EventRemittanceRunCompleted, "system", "remittance-engine", run.ID.String(), map[string]any{
			"investor_id": investorID, "item_count": len(items), "amount": totalNet, "sha256": sha,
		})
	}

	return RunResult{Run: run, Payout: payout, ReportURI: reportPath, SHA256: sha}, nil
}

func (e *Engine) sendPayoutWebhook(ctx context.Context, h domain.InvestorHolding, run *domain.RemittanceRun, payout *domain.RemittancePayout) error {
	event := payoutWebhookEvent{
		Event: "remittance.payout.sent", InvestorID: run.InvestorID.String(),
		PayoutID: payout.ID.String(), RunID: run.ID.String(),
		Amount: money.Amount(payout.Amount).Float(), Currency: "USD", Method: "ACH",
		Reference: payout.Reference, SentAt: e.now().Format(time.RFC3339),
	}
	body, err := marshalEvent(event)
	if err != nil {
		return err
	}
	return e.Webhooks.Deliver(ctx, h.WebhookURL, h.WebhookSecret, body)
}

func (e *Engine) markPayoutFailed(ctx context.Context, payout *domain.RemittancePayout, cause error) {
	e.Runs.UpdatePayoutStatus(ctx, payout.ID, domain.PayoutFailed, cause.Error())
	payout.Status = domain.PayoutFailed
	payout.Error = cause.Error()
}

func firstConfiguredWebhook(holdings []domain.InvestorHolding) (domain.InvestorHolding, bool) {
	for _, h := range holdings {
		if h.WebhookURL != "" {
			return h, true
		}
	}
	return domain.InvestorHolding{}, false
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// marshalEvent is a thin indirection so the webhook body construction
// reads the same way as notify.Event's JSON marshal call site.
func marshalEvent(v any) ([]byte, error) {
	return json.Marshal(v)
}
