package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"almoheat/api/swagger"
	"almoheat/internal/config"
	"almoheat/internal/database"
	"almoheat/internal/draftstore"
	"almoheat/internal/handler"
	"almoheat/internal/ledger"
	"almoheat/internal/logger"
	"almoheat/internal/metrics"
	"almoheat/internal/middleware"
	"almoheat/internal/repository"
	"almoheat/internal/service"
	"almoheat/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// @title           ALMoheat API
// @version         1.0
// @description     Inventory, invoicing and cash ledger for a dual-unit (count and weight) stock.
// @host            localhost:8080
// @BasePath        /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database, cfg.Log.Level, zlog)
	if err != nil {
		zlog.Fatal("Database connection failed", zap.Error(err))
	}
	zlog.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))

	drafts, closeDrafts := newDraftStore(cfg.Redis, zlog)
	defer closeDrafts()

	wsHub := websocket.NewHub(zlog)
	go wsHub.Run(ctx)

	m := metrics.New()
	rule := ledger.NewLowStockRule(cfg.Inventory.DefaultMinQuantity)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	contactRepo := repository.NewContactRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	cashRepo := repository.NewCashRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	inventoryService := service.NewInventoryService(productRepo, movementRepo, auditRepo, txManager, rule, wsHub, zlog)
	contactService := service.NewContactService(contactRepo, auditRepo, txManager)
	invoiceService := service.NewInvoiceService(invoiceRepo, productRepo, contactRepo, movementRepo, auditRepo, txManager, rule, wsHub, m, zlog)
	draftService := service.NewDraftService(drafts, productRepo, contactRepo, invoiceService, m, zlog)
	cashService := service.NewCashService(cashRepo, contactRepo, auditRepo, txManager)
	reportService := service.NewReportService(productRepo, contactRepo, invoiceRepo, cashRepo, rule, m)
	auditService := service.NewAuditService(auditRepo)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	router := gin.New()
	router.Use(logger.Recovery(zlog), middleware.RequestID(), logger.GinMiddleware(zlog), middleware.Metrics(m))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	if cfg.HTTP.SwaggerEnabled {
		swagger.SwaggerInfo.Host = "localhost:" + cfg.App.Port
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c)
	})

	api := router.Group("/api")
	handler.NewInventoryHandler(inventoryService).RegisterRoutes(api)
	handler.NewContactHandler(contactService).RegisterRoutes(api)
	handler.NewInvoiceHandler(invoiceService).RegisterRoutes(api)
	handler.NewDraftHandler(draftService).RegisterRoutes(api)
	handler.NewCashHandler(cashService).RegisterRoutes(api)
	handler.NewReportHandler(reportService).RegisterRoutes(api)
	handler.NewAuditHandler(auditService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		zlog.Info("Server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("Server exited")
}

// newDraftStore uses Redis when configured so drafts survive restarts and
// are shared between replicas; otherwise drafts live in process memory.
func newDraftStore(cfg config.RedisConfig, zlog *zap.Logger) (draftstore.Store, func()) {
	if !cfg.Enabled {
		zlog.Info("Draft store: memory", zap.Duration("ttl", cfg.DraftTTL))
		return draftstore.NewMemoryStore(cfg.DraftTTL), func() {}
	}
	store, err := draftstore.NewRedisStore(cfg)
	if err != nil {
		zlog.Fatal("Redis connection failed", zap.Error(err), zap.String("addr", cfg.Addr))
	}
	zlog.Info("Draft store: redis", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.DraftTTL))
	return store, func() { _ = store.Close() }
}
