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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicsignal/waltham-events/internal/handler"
	"github.com/civicsignal/waltham-events/internal/ingest"
	"github.com/civicsignal/waltham-events/internal/middleware"
	"github.com/civicsignal/waltham-events/internal/normalize"
	"github.com/civicsignal/waltham-events/internal/repository"
	"github.com/civicsignal/waltham-events/internal/schedule"
	"github.com/civicsignal/waltham-events/internal/service"
	"github.com/civicsignal/waltham-events/internal/source"
	"github.com/civicsignal/waltham-events/pkg/cache"
	"github.com/civicsignal/waltham-events/pkg/config"
	"github.com/civicsignal/waltham-events/pkg/database"
	"github.com/civicsignal/waltham-events/pkg/logger"
	corsmiddleware "github.com/civicsignal/waltham-events/pkg/middleware/cors"
	reqidmiddleware "github.com/civicsignal/waltham-events/pkg/middleware/requestid"
)

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

	loc, err := time.LoadLocation(cfg.Ingest.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid timezone", "tz", cfg.Ingest.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := repository.NewEventRepository(db)
	normalizer := normalize.New(loc)
	metricsSvc := service.NewMetricsService()

	orchestrator := ingest.NewOrchestrator(
		buildSources(cfg, loc),
		normalizer,
		ingest.NewDeduper(repo),
		repo,
		metricsSvc,
		ingest.Options{
			Concurrency:   cfg.Ingest.Concurrency,
			SourceTimeout: cfg.Ingest.SourceTimeout,
		},
		logr,
	)

	validate := validator.New()
	eventSvc := service.NewEventService(repo, redisClient, cfg.Cache.TTL, loc, validate, logr)
	ingestSvc := service.NewIngestService(orchestrator, eventSvc, cfg.Ingest.CycleTimeout, logr)

	var cron *schedule.Runner
	if cfg.Schedule.Enabled {
		cron = schedule.New(logr, ctx, loc)
		err := cron.Register(cfg.Schedule, func(ctx context.Context) error {
			_, err := ingestSvc.Run(ctx)
			return err
		}, ingestSvc)
		if err != nil {
			logr.Sugar().Fatalw("invalid schedule", "error", err)
		}
		cron.Start()
		defer cron.Stop()
	}

	router := buildRouter(cfg, logr, db, eventSvc, ingestSvc, metricsSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}

// buildSources assembles every enabled adapter. The scraped municipal
// sources are always on; the platform APIs join only when a token is
// configured.
func buildSources(cfg *config.Config, loc *time.Location) []source.Source {
	client := source.NewClient(cfg.Ingest.SourceTimeout, cfg.Ingest.UserAgent)

	sources := []source.Source{
		source.NewCityCalendar(client, cfg.Sources.CityCalendarURL, cfg.Ingest.HorizonMonths),
		source.NewLibrary(client, cfg.Sources.LibraryURL),
		source.NewMuseum(client, cfg.Sources.MuseumURL),
		source.NewUniversity(client, cfg.Sources.UniversityURL),
		source.NewRecreation(client, cfg.Sources.RecreationURL),
		source.NewCommon(cfg.Sources.CommonURL, loc, cfg.Ingest.HorizonMonths),
	}

	if eb := cfg.Sources.Eventbrite; eb.Enabled && eb.Token != "" {
		sources = append(sources, source.NewEventbrite(client, eb.BaseURL, eb.Token, eb.Location, eb.RadiusMiles, cfg.Ingest.HorizonMonths))
	}
	if mu := cfg.Sources.Meetup; mu.Enabled && mu.Token != "" {
		sources = append(sources, source.NewMeetup(client, mu.BaseURL, mu.Token, mu.Location, mu.RadiusMiles, cfg.Ingest.HorizonMonths))
	}
	return sources
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db interface{ Ping() error }, eventSvc *service.EventService, ingestSvc *service.IngestService, metricsSvc *service.MetricsService) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	eventHandler := handler.NewEventHandler(eventSvc)
	ingestHandler := handler.NewIngestHandler(ingestSvc)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.Get)
		api.GET("/stats", eventHandler.Stats)
		api.POST("/ingest/run", ingestHandler.Run)
		api.GET("/ingest/status", ingestHandler.Status)
	}

	return r
}
