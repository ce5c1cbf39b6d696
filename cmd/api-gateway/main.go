package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/recruitos/vendor-engine/api/swagger"
	"github.com/recruitos/vendor-engine/internal/handler"
	"github.com/recruitos/vendor-engine/internal/middleware"
	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/repository"
	"github.com/recruitos/vendor-engine/internal/scheduler"
	"github.com/recruitos/vendor-engine/internal/service"
	"github.com/recruitos/vendor-engine/pkg/cache"
	"github.com/recruitos/vendor-engine/pkg/config"
	"github.com/recruitos/vendor-engine/pkg/database"
	"github.com/recruitos/vendor-engine/pkg/export"
	"github.com/recruitos/vendor-engine/pkg/jobs"
	"github.com/recruitos/vendor-engine/pkg/logger"
	corsmiddleware "github.com/recruitos/vendor-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/recruitos/vendor-engine/pkg/middleware/requestid"
)

// @title Vendor Engine API
// @version 0.1.0
// @description Agency matching, distribution, fee and budget engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	candidateRepo := repository.NewCandidateRepository(db)
	ownershipRepo := repository.NewOwnershipRepository(db)
	agencyRepo := repository.NewAgencyRepository(db)
	jobRepo := repository.NewJobRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	rateCardRepo := repository.NewRateCardRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	slaRepo := repository.NewSLARepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services. The alert queue handler needs the SLA service to advance the
	// alert delivery lifecycle, so the queue is wired after the services and
	// the services receive it through a late-bound dispatcher.
	dispatcher := &queueDispatcher{}

	metricsSvc := service.NewMetricsService()
	ownershipSvc := service.NewOwnershipService(ownershipRepo, candidateRepo, cfg.Ownership.ProtectionPeriod, logr)
	matchingSvc := service.NewMatchingService(agencyRepo, jobRepo, cacheRepo, metricsSvc, cfg.Matching, logr)
	distributionSvc := service.NewDistributionService(distributionRepo, jobRepo, logr)
	submissionSvc := service.NewSubmissionService(distributionRepo, candidateRepo, ownershipSvc, logr)
	budgetSvc := service.NewBudgetService(budgetRepo, dispatcher, logr)
	feeSvc := service.NewFeeService(rateCardRepo, feeRepo, jobRepo, budgetSvc, logr)
	forecastSvc := service.NewForecastService(forecastRepo, budgetRepo, cfg.Forecast, logr)
	slaSvc := service.NewSLAService(slaRepo, agencyRepo, dispatcher, logr)
	statementSvc := service.NewStatementService(budgetRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	alertQueue := jobs.NewQueue("alerts", alertHandler(slaSvc, logr), jobs.QueueConfig{
		Workers:    cfg.Scheduler.AlertWorkers,
		BufferSize: cfg.Scheduler.AlertQueueBuffer,
		MaxRetries: cfg.Scheduler.AlertRetries,
		RetryDelay: cfg.Scheduler.AlertRetryDelay,
		Logger:     logr,
	})
	dispatcher.queue = alertQueue
	alertQueue.Start(ctx)
	defer alertQueue.Stop()

	// Handlers.
	matchingHandler := handler.NewMatchingHandler(matchingSvc, metricsSvc)
	ownershipHandler := handler.NewOwnershipHandler(ownershipSvc)
	distributionHandler := handler.NewDistributionHandler(distributionSvc, submissionSvc, metricsSvc)
	feeHandler := handler.NewFeeHandler(feeSvc, metricsSvc)
	budgetHandler := handler.NewBudgetHandler(budgetSvc, forecastSvc, statementSvc, metricsSvc)
	slaHandler := handler.NewSLAHandler(slaSvc, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Tenant(cfg.JWT.Secret))
	{
		api.GET("/jobs/:jobId/match", matchingHandler.Match)
		api.POST("/jobs/:jobId/close", distributionHandler.CloseJob)

		api.PUT("/agencies/:agencyId/specializations", matchingHandler.UpdateSpecializations)
		api.PUT("/agencies/:agencyId/coverage", matchingHandler.UpdateCoverage)
		api.PUT("/agencies/:agencyId/sla/config", slaHandler.UpsertConfig)
		api.POST("/agencies/:agencyId/sla/check", slaHandler.CheckBreach)
		api.GET("/agencies/:agencyId/sla/status", slaHandler.Status)

		api.POST("/ownership/check", ownershipHandler.Check)
		api.POST("/ownership/:id/release", ownershipHandler.Release)

		api.POST("/distributions", distributionHandler.Create)
		api.GET("/distributions", distributionHandler.List)
		api.GET("/distributions/:id", distributionHandler.Get)
		api.POST("/distributions/:id/transition", distributionHandler.Transition)
		api.POST("/distributions/:id/submissions", distributionHandler.Submit)

		api.POST("/fees/calculate", feeHandler.Calculate)
		api.GET("/fees/:id", feeHandler.Get)
		api.POST("/fees/:id/post", feeHandler.Post)

		api.POST("/budgets", budgetHandler.Create)
		api.GET("/budgets/:id", budgetHandler.Get)
		api.POST("/budgets/:id/transactions", budgetHandler.PostTransaction)
		api.GET("/budgets/:id/transactions", budgetHandler.ListTransactions)
		api.POST("/budgets/:id/allocations", budgetHandler.Allocate)
		api.GET("/budgets/:id/utilization", budgetHandler.Utilization)
		api.POST("/budgets/:id/forecast", budgetHandler.Forecast)
		api.GET("/budgets/:id/forecast", budgetHandler.LatestForecast)
		api.POST("/budgets/:id/alerts", budgetHandler.CreateAlert)
		api.GET("/budgets/:id/alerts", budgetHandler.ListAlerts)
		api.GET("/budgets/:id/statement", budgetHandler.Statement)
		api.POST("/budget-alerts/:alertId/resolve", budgetHandler.ResolveAlert)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(tenantRepo, forecastSvc, ownershipSvc, slaSvc, cfg.Scheduler, cfg.SLA.Enabled, logr)
		if err := sched.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start scheduler", "error", err)
		}
		defer sched.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// queueDispatcher defers the queue reference so services can be built before
// the queue whose handler depends on them.
type queueDispatcher struct {
	queue *jobs.Queue
}

func (d *queueDispatcher) Enqueue(job jobs.Job) error {
	if d.queue == nil {
		return errors.New("alert queue not ready")
	}
	return d.queue.Enqueue(job)
}

// alertHandler delivers queued alerts. Real channel integrations (email,
// webhooks) sit behind this seam; for now delivery is a structured log line
// plus the lifecycle update on SLA alerts.
func alertHandler(slas *service.SLAService, logr *zap.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case "sla_alert":
			alert, ok := job.Payload.(*models.SLAAlert)
			if !ok {
				return fmt.Errorf("unexpected sla alert payload %T", job.Payload)
			}
			logr.Info("delivering sla alert",
				zap.String("alert_id", alert.ID),
				zap.String("breach_id", alert.BreachID),
				zap.String("channel", alert.Channel))
			return slas.MarkAlert(ctx, alert.TenantID, alert.ID, models.AlertSent, nil)
		case "budget_alert":
			alert, ok := job.Payload.(models.BudgetAlert)
			if !ok {
				return fmt.Errorf("unexpected budget alert payload %T", job.Payload)
			}
			logr.Info("delivering budget alert",
				zap.String("alert_id", alert.ID),
				zap.String("budget_id", alert.BudgetID),
				zap.String("severity", string(alert.Severity)))
			return nil
		default:
			return fmt.Errorf("unknown job type %q", job.Type)
		}
	}
}
