package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"opshub/internal/api/handlers"
	"opshub/internal/api/middleware"
	"opshub/internal/config"
	"opshub/internal/events"
	"opshub/internal/jobs"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/reports"
	"opshub/internal/store"
	"opshub/internal/validation"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps is everything the routes read from or hand work to.
type Deps struct {
	DB           *gorm.DB
	Sink         store.Sink
	Integrations *store.Integrations
	Runs         *store.SyncRuns
	Issues       *store.Issues
	Registry     *jobs.Registry
	Runner       handlers.Runner
	Requests     events.Publisher
	Exporter     *reports.Exporter
}

type Server struct {
	config     *config.Config
	logger     *logger.Logger
	db         *gorm.DB
	router     *gin.Engine
	server     *http.Server
	dispatcher *handlers.Dispatcher
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	requests := deps.Requests
	if requests == nil {
		requests = events.NopPublisher{}
	}
	dispatcher := handlers.NewDispatcher(deps.Registry, deps.Runner, requests, cfg.KafkaEnabled(), logger)

	dashboardHandler := handlers.NewDashboardHandler(deps.DB, deps.Runs)
	businessHandler := handlers.NewBusinessHandler(deps.DB)
	integrationHandler := handlers.NewIntegrationHandler(deps.Integrations, deps.Registry, dispatcher, logger)
	syncRunHandler := handlers.NewSyncRunHandler(deps.Runs)
	issueHandler := handlers.NewIssueHandler(deps.Issues)
	jobHandler := handlers.NewJobHandler(deps.Registry, dispatcher)
	reportHandler := handlers.NewReportHandler(deps.Exporter)
	webhookHandler := handlers.NewWebhookHandler(deps.Integrations, deps.Sink, validation.New(logger), logger)

	s := &Server{
		config:     cfg,
		logger:     logger,
		db:         deps.DB,
		router:     router,
		dispatcher: dispatcher,
	}
	router.GET("/healthz", s.health)

	// Shopify signs webhooks itself, so they sit outside bearer auth.
	router.POST("/webhooks/shopify/:id", webhookHandler.Shopify)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTSecret))
	{
		v1.GET("/dashboard", dashboardHandler.Summary)
		v1.GET("/businesses", businessHandler.List)

		records(v1, "/products", handlers.NewRecordHandler[models.Product](deps.DB, logger, "Product", "business_code, title", "title", "sku", "brand"))
		records(v1, "/orders", handlers.NewRecordHandler[models.Order](deps.DB, logger, "Order", "placed_at DESC", "order_number", "email"))
		records(v1, "/contacts", handlers.NewRecordHandler[models.Contact](deps.DB, logger, "Contact", "email", "email", "first_name", "last_name", "company"))
		records(v1, "/campaigns", handlers.NewRecordHandler[models.Campaign](deps.DB, logger, "Campaign", "synced_at DESC", "name"))
		records(v1, "/chats", handlers.NewRecordHandler[models.ChatTranscript](deps.DB, logger, "Chat", "started_at DESC", "customer_name", "customer_email", "first_message"))
		records(v1, "/emails", handlers.NewRecordHandler[models.EmailMessage](deps.DB, logger, "Email", "received_at DESC", "subject", "snippet"))
		records(v1, "/merchant-statuses", handlers.NewRecordHandler[models.MerchantProductStatus](deps.DB, logger, "Merchant status", "issue_count DESC, offer_id", "offer_id", "title"))
		records(v1, "/invoices", handlers.NewRecordHandler[models.Invoice](deps.DB, logger, "Invoice", "synced_at DESC", "number", "contact_name"))

		integrations := v1.Group("/integrations")
		{
			integrations.GET("", integrationHandler.List)
			integrations.GET("/:id", integrationHandler.Get)
			integrations.POST("", integrationHandler.Create)
			integrations.PUT("/:id", integrationHandler.Update)
			integrations.DELETE("/:id", integrationHandler.Delete)
			integrations.POST("/:id/sync", integrationHandler.Sync)
		}

		runs := v1.Group("/sync-runs")
		{
			runs.GET("", syncRunHandler.List)
			runs.GET("/:id", syncRunHandler.Get)
		}

		issues := v1.Group("/issues")
		{
			issues.GET("", issueHandler.List)
			issues.GET("/:id", issueHandler.Get)
			issues.POST("/:id/resolve", issueHandler.Resolve)
		}

		jobsGroup := v1.Group("/jobs")
		{
			jobsGroup.GET("", jobHandler.List)
			jobsGroup.POST("/:kind/run", jobHandler.Run)
		}

		reportsGroup := v1.Group("/reports")
		{
			reportsGroup.GET("", reportHandler.List)
			reportsGroup.GET("/:name", reportHandler.Download)
		}
	}

	return s
}

type recordRoutes interface {
	List(*gin.Context)
	Get(*gin.Context)
}

func records(group *gin.RouterGroup, path string, h recordRoutes) {
	group.GET(path, h.List)
	group.GET(path+"/:id", h.Get)
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

// Stop drains HTTP connections, then waits for background job runs.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		s.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Background jobs still running at shutdown")
	}
	return err
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Dispatcher exposes background job tracking for tests.
func (s *Server) Dispatcher() *handlers.Dispatcher {
	return s.dispatcher
}
