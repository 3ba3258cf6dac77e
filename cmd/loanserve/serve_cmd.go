package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cschwartz85032/loanserve-sub007/internal/metrics"
	"github.com/cschwartz85032/loanserve-sub007/internal/ops"
	"github.com/cschwartz85032/loanserve-sub007/internal/opsauth"
	"github.com/cschwartz85032/loanserve-sub007/internal/runner"
	"github.com/cschwartz85032/loanserve-sub007/internal/vendorhealth"
)

var serveCmd = &cobra.Command{
	Use:   "serve-ops",
	Short: "Run the operator console HTTP server (DLQ, remittance/export triggers, audit trail)",
	RunE:  runServeOps,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServeOps(cmd *cobra.Command, args []string) error {
	logger, err := loadLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	cfg := loadConfig(logger)
	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer d.Close()

	if cfg.OpsAPI.JWTSigningKey == "" || cfg.OpsAPI.BearerSecretHash == "" {
		return fmt.Errorf("serve-ops: ops_api.jwt_signing_key and ops_api.bearer_secret_hash are required")
	}
	issuer := opsauth.NewIssuer([]byte(cfg.OpsAPI.JWTSigningKey), "loanserve-ops", 8*time.Hour)
	credential := opsauth.Credential{
		Username:       cfg.OpsAPI.OperatorUsername,
		HashedPassword: []byte(cfg.OpsAPI.BearerSecretHash),
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.OpsAPI.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.OpsAPI.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if cfg.OpsAPI.RateLimitRPS > 0 {
		router.Use(ops.RateLimiter(cfg.OpsAPI.RateLimitRPS, cfg.OpsAPI.RateLimitRPS*2))
	}

	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	router.POST("/ops/login", loginHandler(credential, issuer))

	opsGroup := router.Group("/ops")
	opsGroup.Use(opsauth.RequireBearerToken(issuer))
	opsHandler := &ops.Handler{
		DLQ:        d.dlq.(ops.DLQStore),
		Requeue:    &runner.BrokerRequeuer{Broker: d.broker},
		Remittance: d.remittanceEngine(),
		Export:     d.exportEngine(),
		Audit:      d.auditSink,
		Logger:     logger,
	}
	opsHandler.Register(opsGroup)

	checker := vendorhealth.New(vendorTargets(d), vendorhealth.Config{}, d.auditSink, logger)
	quit := make(chan struct{})
	checkerCtx, cancelChecker := context.WithCancel(ctx)
	go checker.Start(checkerCtx, quit)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OpsAPI.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("ops console listening", zap.Int("port", cfg.OpsAPI.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ops console: listen error", zap.Error(err))
		}
	}()

	<-sigCh
	logger.Info("ops console: shutting down")
	close(quit)
	cancelChecker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops console: shutdown error", zap.Error(err))
	}
	return nil
}

// loginHandler issues an operator bearer token for a valid username/
// password pair. There is no refresh flow — an expired token simply
// requires logging in again (an 8-hour shift token, §OpsAPI).
func loginHandler(credential opsauth.Credential, issuer *opsauth.Issuer) gin.HandlerFunc {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		if !credential.Authenticate(req.Username, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		token, err := issuer.Issue(req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func vendorTargets(d *deps) []vendorhealth.Target {
	var out []vendorhealth.Target
	for name, vc := range d.cfg.Vendors {
		if vc.BaseURL == "" {
			continue
		}
		out = append(out, vendorhealth.Target{Vendor: strings.ToUpper(name), BaseURL: vc.BaseURL})
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
