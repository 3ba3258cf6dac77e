// Package ops implements the operator console HTTP surface: DLQ
// inspect/replay, manual remittance/export triggers, and audit trail
// reads, gated by opsauth and served alongside /healthz and /metrics
// (SPEC_FULL.md supplemented-features: "an internal operator console
// giving on-call staff the equivalent of the CRM/UI's operational
// controls without a UI"). Not a general API — every route here is an
// operator action, not a borrower/investor-facing one.
//
// Grounded on internal/registry/handler's per-concern Handler struct +
// Register(rg *gin.RouterGroup) convention (see LedgerHandler, DNSHandler),
// generalized from read-only ledger/DNS inspection to DLQ/remittance/
// export operator actions.
package ops

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/export"
	"github.com/cschwartz85032/loanserve-sub007/internal/opsauth"
	"github.com/cschwartz85032/loanserve-sub007/internal/remittance"
)

// DLQStore is the operator-facing view of a worker.DLQSink: list what is
// dead-lettered, and replay one item back onto the work queue.
type DLQStore interface {
	List(ctx context.Context) ([]*domain.WorkItem, error)
	Replay(ctx context.Context, workItemID string, resetAttempts bool) (*domain.WorkItem, error)
}

// Requeuer is implemented by whatever enqueues a replayed WorkItem back
// onto its originating queue (the intake/outbox/notify work table).
type Requeuer interface {
	Enqueue(ctx context.Context, item *domain.WorkItem) error
}

// Handler serves the operator console routes.
type Handler struct {
	DLQ        DLQStore
	Requeue    Requeuer
	Remittance *remittance.Engine
	Export     *export.Engine
	Audit      audit.Sink
	Logger     *zap.Logger
}

// Register mounts the operator console routes under rg, which the caller
// must already have gated with opsauth.RequireBearerToken.
func (h *Handler) Register(rg *gin.RouterGroup) {
	dlq := rg.Group("/dlq")
	{
		dlq.GET("", h.ListDLQ)
		dlq.POST("/:id/replay", h.ReplayDLQ)
	}

	rg.POST("/remittance/run", h.RunRemittance)
	rg.POST("/export/run", h.RunExport)

	auditGroup := rg.Group("/audit")
	{
		auditGroup.GET("/resource/:urn", h.AuditByResource)
		auditGroup.GET("/type/:eventType", h.AuditByType)
	}
}

// ListDLQ handles GET /ops/dlq — lists every dead-lettered work item.
func (h *Handler) ListDLQ(c *gin.Context) {
	items, err := h.DLQ.List(c.Request.Context())
	if err != nil {
		h.Logger.Error("ops: list dlq", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ReplayDLQ handles POST /ops/dlq/:id/replay — pops a dead-lettered item
// and re-enqueues it, optionally resetting its attempt counter.
func (h *Handler) ReplayDLQ(c *gin.Context) {
	id := c.Param("id")
	resetAttempts := c.Query("reset_attempts") == "true"

	item, err := h.DLQ.Replay(c.Request.Context(), id, resetAttempts)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "work item not found in dlq"})
		return
	}

	if h.Requeue != nil {
		if err := h.Requeue.Enqueue(c.Request.Context(), item); err != nil {
			h.Logger.Error("ops: requeue replayed item", zap.Error(err), zap.String("work_item_id", id))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "replay popped from dlq but requeue failed"})
			return
		}
	}

	if claims, ok := opsauth.ClaimsFromContext(c); ok && h.Audit != nil {
		h.Audit.Emit(c.Request.Context(), item.TenantID, "OPS.DLQ_REPLAYED", "operator", claims.Username, "urn:worker:dlq:"+id, gin.H{
			"reset_attempts": resetAttempts,
		})
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

type runRemittanceRequest struct {
	TenantID   string    `json:"tenant_id" binding:"required"`
	InvestorID uuid.UUID `json:"investor_id" binding:"required"`
	AsOfDate   time.Time `json:"as_of_date" binding:"required"`
}

// RunRemittance handles POST /ops/remittance/run — triggers one
// investor/period remittance run on demand (outside its normal schedule).
func (h *Handler) RunRemittance(c *gin.Context) {
	var req runRemittanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Remittance.RunOnce(c.Request.Context(), req.TenantID, req.InvestorID, req.AsOfDate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":     result.Run.ID,
		"payout_id":  result.Payout.ID,
		"report_uri": result.ReportURI,
		"sha256":     result.SHA256,
	})
}

type runExportRequest struct {
	TenantID      string               `json:"tenant_id" binding:"required"`
	LoanID        uuid.UUID            `json:"loan_id" binding:"required"`
	Template      domain.ExportTemplate `json:"template" binding:"required"`
	MapperVersion string               `json:"mapper_version" binding:"required"`
}

// RunExport handles POST /ops/export/run — triggers one loan export on
// demand.
func (h *Handler) RunExport(c *gin.Context) {
	var req runExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Export.Run(c.Request.Context(), req.TenantID, req.LoanID, req.Template, req.MapperVersion)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sha256":   result.SHA256,
		"filename": result.Filename,
		"mime":     result.MIME,
	})
}

// AuditByResource handles GET /ops/audit/resource/:urn?tenant_id=...&limit=...
func (h *Handler) AuditByResource(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	limit := queryInt(c, "limit", 100)

	events, err := h.Audit.ListByResource(c.Request.Context(), tenantID, c.Param("urn"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// AuditByType handles GET /ops/audit/type/:eventType?tenant_id=...&since=...&limit=...
func (h *Handler) AuditByType(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	limit := queryInt(c, "limit", 100)

	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	events, err := h.Audit.ListByType(c.Request.Context(), tenantID, c.Param("eventType"), since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
