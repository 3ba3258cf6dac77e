package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/audit"
	"github.com/cschwartz85032/loanserve-sub007/internal/authority"
	"github.com/cschwartz85032/loanserve-sub007/internal/clock"
	"github.com/cschwartz85032/loanserve-sub007/internal/config"
	"github.com/cschwartz85032/loanserve-sub007/internal/export"
	"github.com/cschwartz85032/loanserve-sub007/internal/extract/ai"
	"github.com/cschwartz85032/loanserve-sub007/internal/extract/deterministic"
	"github.com/cschwartz85032/loanserve-sub007/internal/intake"
	"github.com/cschwartz85032/loanserve-sub007/internal/lineage"
	"github.com/cschwartz85032/loanserve-sub007/internal/notify"
	"github.com/cschwartz85032/loanserve-sub007/internal/remittance"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
	"github.com/cschwartz85032/loanserve-sub007/internal/vendor"
	"github.com/cschwartz85032/loanserve-sub007/internal/worker"
)

// deps is the composition root: every concrete adapter a subcommand might
// need, built once from cfg and shared across whichever subcommand runs.
// Grounded on cmd/registry/main.go's run() function, which wires everything
// once in a single procedural body rather than through a DI container.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	docs   storage.DocStore
	broker storage.QueueBroker

	auditSink audit.Sink
	dlq       worker.DLQSink

	matrix  *authority.Matrix
	lineageBuilder *lineage.Builder

	loans      intake.LoanRepo
	documents  intake.DocumentRepo
	datapoints intake.DatapointRepo
	defects    intake.DefectRepo
	ocr        intake.OCRClient
	deterministicEngine *deterministic.Engine
	aiExtractor         *ai.Extractor

	exportDatapoints export.DatapointRepo
	exportRepo       export.ExportRepo
	mapperLoader     export.MapperLoader

	holdings remittance.HoldingRepo
	ledger   remittance.LedgerRepo
	runs     remittance.RunRepo

	notifyRecords notify.NotificationRepo
	mail          notify.MailSender
	sms           notify.SmsSender
	webhooks      *notify.HTTPWebhookSender

	vendorClients map[string]*vendor.Client
	vendorCache   vendor.CacheStore
	vendorAudit   vendor.AuditRecorder
}

// buildDeps wires every adapter needed by any subcommand against a live
// Postgres pool, a Kafka broker, and S3; buildDocStore falls back to an
// in-memory document store only when the AWS configuration cannot be
// loaded, mirroring the teacher's try-real-then-noop mailer pattern in
// cmd/registry/main.go.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*deps, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	docs := buildDocStore(ctx, cfg, logger)
	broker := storage.NewKafkaBroker(cfg.QueueBrokerURL)

	vendorCache := vendor.NewPostgresCacheStore(pool)
	vendorAuditRecorder := vendor.NewPostgresAuditRecorder(pool)

	d := &deps{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		docs:           docs,
		broker:         broker,
		auditSink:      audit.NewPostgresSink(pool, logger),
		dlq:            worker.NewPostgresDLQ(pool, logger),
		matrix:         &authority.Matrix{},
		lineageBuilder: &lineage.Builder{ExtractorVersion: "det-1", PromptVersion: cfg.Exports.MapperVersion, Clock: clock.RealClock{}.Now},

		loans:      intake.NewPostgresLoanRepo(pool),
		documents:  intake.NewPostgresDocumentRepo(pool),
		datapoints: intake.NewPostgresDatapointRepo(pool),
		defects:    intake.NewPostgresDefectRepo(pool),

		deterministicEngine: deterministic.NewEngine(),

		exportDatapoints: export.NewPostgresDatapointRepo(pool),
		exportRepo:       export.NewPostgresExportRepo(pool),
		mapperLoader:     export.NewFileMapperLoader(cfg.Exports.MapperConfigPath),

		holdings: remittance.NewPostgresHoldingRepo(pool),
		ledger:   remittance.NewPostgresLedgerRepo(pool),
		runs:     remittance.NewPostgresRunRepo(pool),

		notifyRecords: notify.NewPostgresNotificationRepo(pool),

		vendorCache: vendorCache,
		vendorAudit: vendorAuditRecorder,
	}

	if ocrClient, err := intake.NewGenAIOCRClient(ctx, cfg.Vendors["ucdp"].APIKey, "gemini-1.5-flash", "application/pdf"); err != nil {
		logger.Warn("document AI: OCR client unavailable, intake will fail on scanned documents", zap.Error(err))
	} else {
		d.ocr = ocrClient
	}

	if extractor, err := buildAIExtractor(ctx, cfg, logger); err != nil {
		logger.Warn("document AI: extractor unavailable, intake will rely on deterministic rules only", zap.Error(err))
	} else {
		d.aiExtractor = extractor
	}

	d.mail = buildMailSender(cfg, logger)
	d.sms = notify.NewNoopSmsSender(logger)
	d.webhooks = notify.NewHTTPWebhookSender(cfg.Remittance.WebhookTimeout)

	d.vendorClients = buildVendorClients(cfg, vendorCache, vendorAuditRecorder, logger)

	return d, nil
}

func buildDocStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) storage.DocStore {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ObjectStoreRegion))
	if err != nil {
		logger.Warn("object store: could not load AWS config, falling back to in-memory doc store", zap.Error(err))
		return storage.NewMemoryDocStore()
	}
	client := s3.NewFromConfig(awsCfg)
	logger.Info("object store: S3 configured", zap.String("bucket", cfg.ObjectStoreBucket), zap.String("region", cfg.ObjectStoreRegion))
	return storage.NewS3DocStore(client, cfg.ObjectStoreBucket)
}

// buildMailSender mirrors cmd/registry/main.go's "if smtpHost != '' { SMTP }
// else { Noop }" pattern; this deployment has no SMTP config surface yet, so
// it always returns the noop sender until one is added.
func buildMailSender(cfg *config.Config, logger *zap.Logger) notify.MailSender {
	return notify.NewNoopMailSender(logger)
}

func buildAIExtractor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ai.Extractor, error) {
	apiKey := cfg.Vendors["ucdp"].APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("no document AI API key configured")
	}
	client, err := ai.NewGenAIClient(ctx, apiKey, "gemini-1.5-pro")
	if err != nil {
		return nil, fmt.Errorf("build genai client: %w", err)
	}
	return ai.NewExtractor(client, ai.DefaultPromptPack(), ai.DefaultSchemaSet()), nil
}

// buildVendorClients builds one shared vendor.Client per configured vendor,
// keyed by the vendor name used throughout config.Vendors ("ucdp", "flood",
// "title", "hoi"), all sharing the same cache/audit backing stores.
func buildVendorClients(cfg *config.Config, cache vendor.CacheStore, auditRecorder vendor.AuditRecorder, logger *zap.Logger) map[string]*vendor.Client {
	out := make(map[string]*vendor.Client, len(cfg.Vendors))
	for name, vc := range cfg.Vendors {
		out[name] = vendor.NewClient(vendor.Config{
			Timeout: vc.Timeout,
			Retries: vc.Retries,
			RateRPS: vc.RateLimitRPS,
			Burst:   int(vc.RateLimitRPS) + 1,
		}, cache, auditRecorder, logger)
	}
	return out
}

// buildVendorAdapter builds the worker.Handler for one vendor by name,
// wiring its per-vendor Config from cfg.Vendors[name] onto the shared
// vendor.Client built for it.
func buildVendorAdapter(d *deps, name string) (worker.Handler, error) {
	vc, ok := d.cfg.Vendors[name]
	if !ok {
		return nil, fmt.Errorf("vendor %q not configured", name)
	}
	client, ok := d.vendorClients[name]
	if !ok {
		return nil, fmt.Errorf("vendor %q has no client", name)
	}
	switch name {
	case "ucdp":
		return vendor.NewUCDPAdapter(vendor.UCDPConfig{
			BaseURL: vc.BaseURL, ClientID: vc.OAuthClientID, ClientSecret: vc.OAuthClientSecret,
			TokenURL: vc.OAuthTokenURL, TTL: vc.CacheTTL,
		}, client, d.datapointRepoForVendor(), d.matrix), nil
	case "flood":
		return vendor.NewFloodAdapter(vendor.FloodConfig{BaseURL: vc.BaseURL, APIKey: vc.APIKey, TTL: vc.CacheTTL}, client, d.datapointRepoForVendor(), d.matrix), nil
	case "title":
		return vendor.NewTitleAdapter(vendor.TitleConfig{BaseURL: vc.BaseURL, APIKey: vc.APIKey, TTL: vc.CacheTTL}, client, d.datapointRepoForVendor(), d.matrix), nil
	case "hoi":
		return vendor.NewHOIAdapter(vendor.HOIConfig{BaseURL: vc.BaseURL, APIKey: vc.APIKey, TTL: vc.CacheTTL}, client, d.datapointRepoForVendor(), d.matrix), nil
	default:
		return nil, fmt.Errorf("unknown vendor %q", name)
	}
}

// datapointRepoForVendor adapts intake's Postgres datapoint repo, which
// already implements the narrower vendor.DatapointRepo boundary (Get +
// Upsert), to avoid standing up a second Postgres repo for the same table.
func (d *deps) datapointRepoForVendor() vendor.DatapointRepo {
	return d.datapoints.(vendor.DatapointRepo)
}

// workerConfig converts the ambient config.WorkerConfig into worker.Config
// — the two field sets are identical by design.
func workerConfig(c config.WorkerConfig) worker.Config {
	return worker.Config{
		MaxRetries:         c.MaxRetries,
		RetryDelay:         c.RetryDelay,
		BackoffMultiplier:  c.BackoffMultiplier,
		MaxRetryDelay:      c.MaxRetryDelay,
		Timeout:            c.Timeout,
		DLQEnabled:         c.DLQEnabled,
		IdempotencyEnabled: c.IdempotencyEnabled,
		CacheCapacity:      c.CacheCapacity,
	}
}

func (d *deps) intakeHandler() *intake.Handler {
	return &intake.Handler{
		Loans:         d.loans,
		Documents:     d.documents,
		Datapoints:    d.datapoints,
		Defects:       d.defects,
		Docs:          d.docs,
		OCR:           d.ocr,
		Deterministic: d.deterministicEngine,
		AI:            d.aiExtractor,
		Matrix:        d.matrix,
		Lineage:       d.lineageBuilder,
		Clock:         clock.RealClock{}.Now,
	}
}

func (d *deps) notifyHandler() *notify.Handler {
	return &notify.Handler{
		Mail:     d.mail,
		SMS:      d.sms,
		Webhooks: d.webhooks,
		Records:  d.notifyRecords,
		Clock:    clock.RealClock{}.Now,
	}
}

func (d *deps) remittanceEngine() *remittance.Engine {
	return &remittance.Engine{
		Holdings:  d.holdings,
		Ledger:    d.ledger,
		Runs:      d.runs,
		Docs:      d.docs,
		Webhooks:  d.webhooks,
		Audit:     d.auditSink,
		Clock:     clock.RealClock{}.Now,
		GraceDays: d.cfg.Remittance.GraceDaysBusiness,
		Cadence:   d.cfg.Remittance.Cadence,
	}
}

func (d *deps) exportEngine() *export.Engine {
	return &export.Engine{
		Mappers:    d.mapperLoader,
		Datapoints: d.exportDatapoints,
		Exports:    d.exportRepo,
		Docs:       d.docs,
		Webhooks:   d.webhooks,
		Audit:      d.auditSink,
		Clock:      clock.RealClock{}.Now,
	}
}

func (d *deps) Close() {
	if c, ok := d.broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	d.pool.Close()
}
